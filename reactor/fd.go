package reactor

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// FD is the File Descriptor Resource of spec.md §3: an owning wrapper
// around a kernel file descriptor. On drop (garbage collection, via a
// finalizer) it invokes a synchronous close if the descriptor was never
// surrendered to an async Close operation. Surrendering forgets the
// wrapper's descriptor so the synchronous path is skipped, matching
// original_source/src/io_uring_util.rs's Fd::into_raw.
type FD struct {
	fd       int
	released bool
}

// NewFD wraps a raw file descriptor for exclusive ownership.
func NewFD(fd int) *FD {
	f := &FD{fd: fd}
	runtime.SetFinalizer(f, (*FD).Close)
	return f
}

// Int returns the underlying descriptor. The caller must not close it
// directly; use (*Task).Close to release it through the ring.
func (f *FD) Int() int { return f.fd }

// release forgets the descriptor, skipping the synchronous close path.
// Called exactly once, by the Close operation, just before it emits its
// close SQE.
func (f *FD) release() int {
	fd := f.fd
	f.released = true
	return fd
}

// Close performs a synchronous close if the descriptor was never
// surrendered to an async Close operation. Safe to call more than once.
func (f *FD) Close() error {
	if f.released {
		return nil
	}
	f.released = true
	return unix.Close(f.fd)
}
