package verbs

/*
#include <infiniband/verbs.h>
#include <stdlib.h>
*/
import "C"

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// Buffer is a registered memory region usable as a send or receive
// scatter-gather target, grounded in
// original_source/src/verbs_util.rs's Buffer.
type Buffer struct {
	device   *Device
	ptr      unsafe.Pointer
	mr       *C.struct_ibv_mr
	capacity int
	used     int
}

func newBuffer(d *Device) (*Buffer, error) {
	ptr, cerr := C.memalign(4096, C.size_t(d.bufferSize))
	if ptr == nil {
		return nil, errnoOr(cerr, unix.ENOMEM)
	}
	C.memset(ptr, 0, C.size_t(d.bufferSize))

	mr, cerr := C.ibv_reg_mr(d.pd, ptr, C.size_t(d.bufferSize), C.IBV_ACCESS_LOCAL_WRITE)
	if mr == nil {
		C.free(ptr)
		return nil, errnoOr(cerr, unix.EINVAL)
	}
	return &Buffer{device: d, ptr: ptr, mr: mr, capacity: d.bufferSize}, nil
}

// errnoOr translates the error cgo's two-result call form returns (a
// syscall.Errno, or nil when errno was not set) into a *reactor.Error,
// falling back to fallback when the call didn't actually set errno.
func errnoOr(cerr error, fallback unix.Errno) error {
	if errno, ok := cerr.(syscall.Errno); ok && errno != 0 {
		return reactor.OSError(unix.Errno(errno))
	}
	return reactor.OSError(fallback)
}

func (b *Buffer) free() {
	if b.mr != nil {
		C.ibv_dereg_mr(b.mr)
		b.mr = nil
	}
	if b.ptr != nil {
		C.free(b.ptr)
		b.ptr = nil
	}
}

// Bytes exposes the buffer's full capacity: for a received message only
// the first Len bytes are valid; to send, fill it and then call SetLen.
func (b *Buffer) Bytes() []byte {
	return unsafe.Slice((*byte)(b.ptr), b.capacity)
}

// Len returns the number of valid bytes currently in the buffer.
func (b *Buffer) Len() int { return b.used }

// SetLen marks n bytes of the buffer as the payload to send.
func (b *Buffer) SetLen(n int) { b.used = n }

func (b *Buffer) lkey() C.uint32_t { return b.mr.lkey }
func (b *Buffer) addr() C.uint64_t { return C.uint64_t(uintptr(b.ptr)) }
