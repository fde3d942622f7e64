package reactor

import (
	"unsafe"

	"github.com/jakobt/agrippa/uring"
)

// Accept waits for a new connection on the listening socket fd and
// returns the accepted connection's FD (spec.md §4.2.1). The peer address
// is discarded, matching original_source/src/tcp.rs's ListenSocket::accept.
func (t *Task) Accept(fd int) (*FD, error) {
	res, err := t.doOp("accept", func(r *uring.Ring, userData uint64) error {
		return r.PrepAccept(fd, userData)
	})
	if err != nil {
		return nil, err
	}
	n, err := resultFromRes(res)
	if err != nil {
		return nil, err
	}
	return NewFD(n), nil
}

// Connect issues a connect(2) against fd using the raw sockaddr at addr
// (addrLen bytes), producing unit on success (spec.md §4.2.2).
func (t *Task) Connect(fd int, addr unsafe.Pointer, addrLen uint32) error {
	_, err := t.doOp("connect", func(r *uring.Ring, userData uint64) error {
		return r.PrepConnect(fd, addr, addrLen, userData)
	})
	if err != nil {
		return err
	}
	return nil
}

// OpenAt opens path relative to dirfd (or the current working directory
// if dirfd is unix.AT_FDCWD) with the given open(2) flags and creation mode, producing
// a new FD (spec.md §4.2.3). path must be a NUL-terminated byte slice
// that outlives the call.
func (t *Task) OpenAt(dirfd int, path *byte, flags int, mode uint32) (*FD, error) {
	res, err := t.doOp("openat", func(r *uring.Ring, userData uint64) error {
		return r.PrepOpenat(dirfd, path, flags, mode, userData)
	})
	if err != nil {
		return nil, err
	}
	n, err := resultFromRes(res)
	if err != nil {
		return nil, err
	}
	return NewFD(n), nil
}

// Read reads up to len(buf) bytes from fd at offset, returning the byte
// count. Zero bytes for a non-empty request signals EOF (spec.md
// §4.2.4).
func (t *Task) Read(fd int, buf []byte, offset uint64) (int, error) {
	res, err := t.doOp("read", func(r *uring.Ring, userData uint64) error {
		return r.PrepRead(fd, buf, offset, userData)
	})
	if err != nil {
		return 0, err
	}
	n, err := resultFromRes(res)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, ErrEOF
	}
	return n, nil
}

// Write writes up to len(buf) bytes from buf to fd at offset, returning
// the byte count the kernel reports, which may be short. Zero bytes for a non-empty request signals EOF (spec.md
// §4.2.4).
func (t *Task) Write(fd int, buf []byte, offset uint64) (int, error) {
	res, err := t.doOp("write", func(r *uring.Ring, userData uint64) error {
		return r.PrepWrite(fd, buf, offset, userData)
	})
	if err != nil {
		return 0, err
	}
	n, err := resultFromRes(res)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, ErrEOF
	}
	return n, nil
}

// Close consumes fd, emitting a ring close operation and forgetting the
// FD's destructor so the synchronous close path is skipped (spec.md
// §4.2.5, §3's FDR contract).
func (t *Task) Close(fd *FD) error {
	raw := fd.release()
	_, err := t.doOp("close", func(r *uring.Ring, userData uint64) error {
		return r.PrepClose(raw, userData)
	})
	if err != nil {
		return err
	}
	return nil
}
