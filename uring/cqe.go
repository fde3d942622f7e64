//go:build linux

package uring

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// PeekCQE returns the next completion queue entry without blocking.
func (r *Ring) PeekCQE() (userData uint64, res int32, flags uint32, ok bool) {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)

	if head == tail {
		return 0, 0, 0, false
	}

	idx := head & r.cqMask
	cqe := &r.cqes[idx]

	return cqe.UserData, cqe.Res, cqe.Flags, true
}

// SeenCQE advances the CQ head by one, marking the current CQE consumed.
// The load-then-store pair is the only memory fence this design needs:
// Go's memory model ties the atomic store to a happens-before edge with
// any later atomic load of the same head, which is what the ring's shared
// memory with the kernel requires.
func (r *Ring) SeenCQE() {
	head := atomic.LoadUint32(r.cqHead)
	atomic.StoreUint32(r.cqHead, head+1)
}

// WaitCQE blocks until exactly one completion is available, submitting
// any pending SQEs first. This is the single blocking point in the
// runtime (spec.md §4.1, §4.5).
func (r *Ring) WaitCQE() (userData uint64, res int32, flags uint32, err error) {
	if r.closed.Load() {
		return 0, 0, 0, ErrRingClosed
	}

	if userData, res, flags, ok := r.PeekCQE(); ok {
		return userData, res, flags, nil
	}

	if _, err = r.SubmitAndWait(1); err != nil {
		return 0, 0, 0, err
	}

	if userData, res, flags, ok := r.PeekCQE(); ok {
		return userData, res, flags, nil
	}

	return 0, 0, 0, unix.EAGAIN
}

// ResultError converts a CQE result to an error if negative.
func ResultError(res int32) error {
	if res >= 0 {
		return nil
	}
	return unix.Errno(-res)
}
