//go:build linux

package uring

import (
	"sync/atomic"
	"unsafe"

	"github.com/jakobt/agrippa/internal/sys"
)

// getSQE returns the next available SQE, or nil if the queue is full.
// NOT thread-safe; caller must hold sqLock.
func (r *Ring) getSQE() *sys.SQE {
	head := atomic.LoadUint32(r.sqHead)
	tail := atomic.LoadUint32(r.sqTail) + r.sqPending

	if tail-head >= r.sqEntries {
		return nil
	}

	idx := tail & r.sqMask
	sqe := &r.sqes[idx]
	sqe.Reset()

	r.sqArray[idx] = uint32(idx)
	r.sqPending++

	return sqe
}

// GetSQE returns the next available SQE, acquiring the ring and submitting
// the current batch once if the ring reports no slot available. This is
// the SQE Dispatcher contract: never blocks the whole thread, only ever
// submits as a side effect of acquisition.
func (r *Ring) GetSQE() (*sys.SQE, error) {
	r.sqLock.Lock()
	sqe := r.getSQE()
	r.sqLock.Unlock()
	if sqe != nil {
		return sqe, nil
	}

	if _, err := r.Submit(); err != nil {
		return nil, err
	}

	r.sqLock.Lock()
	sqe = r.getSQE()
	r.sqLock.Unlock()
	if sqe == nil {
		return nil, ErrSQFull
	}
	return sqe, nil
}

// PrepAccept prepares an accept operation.
func (r *Ring) PrepAccept(fd int, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
	sqe.Fd = int32(fd)
	sqe.UserData = userData
	return nil
}

// PrepConnect prepares a connect operation. addr must remain valid until
// the operation completes.
func (r *Ring) PrepConnect(fd int, addr unsafe.Pointer, addrLen uint32, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_CONNECT)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(addr))
	sqe.Off = uint64(addrLen)
	sqe.UserData = userData
	return nil
}

// PrepOpenat prepares an openat operation. path must be a null-terminated
// string that remains valid until completion.
func (r *Ring) PrepOpenat(dirfd int, path *byte, flags int, mode uint32, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_OPENAT)
	sqe.Fd = int32(dirfd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
	sqe.Len = mode
	sqe.OpFlags = uint32(flags)
	sqe.UserData = userData
	return nil
}

// PrepRead prepares a read of up to len(buf) bytes from fd at offset.
func (r *Ring) PrepRead(fd int, buf []byte, offset uint64, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_READ)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	sqe.UserData = userData
	return nil
}

// PrepWrite prepares a write of len(buf) bytes from buf to fd at offset.
func (r *Ring) PrepWrite(fd int, buf []byte, offset uint64, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_WRITE)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	sqe.UserData = userData
	return nil
}

// PrepClose prepares a close operation.
func (r *Ring) PrepClose(fd int, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
	sqe.Fd = int32(fd)
	sqe.UserData = userData
	return nil
}

// PrepCancel prepares an async cancel operation. targetUserData is the
// user-data token of the operation to cancel.
func (r *Ring) PrepCancel(targetUserData uint64, flags uint32, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
	sqe.Fd = -1
	sqe.Addr = targetUserData
	sqe.OpFlags = flags
	sqe.UserData = userData
	return nil
}
