package reactor

import (
	"runtime/cgo"
	"sync"

	"github.com/jakobt/agrippa/uring"
)

type eventKind int

const (
	eventParked eventKind = iota
	eventFinished
)

type taskEvent struct {
	kind eventKind
	err  error
}

// Task is the Computation of spec.md §3: a suspendable unit of work with
// a priority fixed at spawn, a body running in its own goroutine, a
// back-reference to the owning Reactor, and a per-operation state
// machine for whatever kernel operation is currently outstanding.
//
// The body goroutine and the Reactor's own loop goroutine hand off a
// baton over two channels (resume, events) so that only one of them is
// ever runnable at a time — the Go realization of the single-threaded
// cooperative model in spec.md §5, built on the same push/pull-generator
// technique the standard library's iter.Pull uses internally.
type Task struct {
	priority Priority
	reactor  *Reactor

	resume chan struct{}
	events chan taskEvent

	mu               sync.Mutex
	currentOp        *operation
	cancelRequested  bool
	timeoutRequested bool
	terminal         bool
}

func newTask(r *Reactor, priority Priority, body func(*Task) error) *Task {
	t := &Task{
		priority: priority,
		reactor:  r,
		resume:   make(chan struct{}),
		events:   make(chan taskEvent),
	}
	go func() {
		<-t.resume
		err := body(t)
		t.events <- taskEvent{kind: eventFinished, err: err}
	}()
	return t
}

// resumeAndWait hands the baton to the task's body goroutine and blocks
// until it is handed back, either because the body parked on a new
// operation or because it finished. Called only from the Reactor's own
// goroutine.
func (t *Task) resumeAndWait() taskEvent {
	t.resume <- struct{}{}
	return <-t.events
}

// park suspends the calling body goroutine until the Reactor resumes it.
// Every operation's first poll, reactor.Yield, a buffer acquisition that
// finds the pool empty, and a recv on a QP with no queued buffer are all
// realized as a call to park (spec.md §4.5's suspension-point list).
func (t *Task) park() {
	t.events <- taskEvent{kind: eventParked}
	<-t.resume
}

// Suspend parks the calling Task without submitting any ring operation,
// for use by package verbs when a buffer acquisition or a QP recv finds
// nothing available (spec.md §4.5's suspension-point list). The Task
// stays off the ready queue until some other code calls (*Reactor).Wake
// on it.
func (t *Task) Suspend() { t.park() }

// Reactor returns the Task's owning Reactor, for use by package fs,
// tcpnet, and verbs, which need it to reach the ring/device handles.
func (t *Task) Reactor() *Reactor { return t.reactor }

// Priority returns the Task's priority, fixed at spawn. Used by package
// verbs to park a Task on the correct band of the buffer-starvation wait
// queue (spec.md §3, §4.4).
func (t *Task) Priority() Priority { return t.priority }

// doOp drives one Initial→Submitted→Terminal cycle of the operation state
// machine (spec.md §4.2). fill must emit exactly one SQE carrying
// userData as its correlation token, or return an error without emitting
// one. The returned result is the raw CQE res (a byte count, or translated
// into an *Error by the caller as appropriate for the specific op).
func (t *Task) doOp(name string, fill func(ring *uring.Ring, userData uint64) error) (int32, error) {
	t.mu.Lock()
	if t.cancelRequested {
		t.cancelRequested = false
		t.mu.Unlock()
		return 0, ErrCancelled
	}
	if t.timeoutRequested {
		t.timeoutRequested = false
		t.mu.Unlock()
		return 0, ErrTimeout
	}
	t.mu.Unlock()

	op := newOperation(t, name)
	handle := cgo.NewHandle(op)
	op.handle = handle

	if err := fill(t.reactor.ring, uint64(handle)); err != nil {
		handle.Delete()
		return 0, err
	}

	t.mu.Lock()
	op.transition("submit", opSubmitted)
	t.currentOp = op
	t.mu.Unlock()
	t.reactor.outstanding.Add(1)

	t.park()

	t.mu.Lock()
	outcome := op.outcome
	res := op.result
	t.currentOp = nil
	t.mu.Unlock()

	switch outcome {
	case outcomeCancelled:
		return 0, ErrCancelled
	case outcomeTimedOut:
		return 0, ErrTimeout
	default:
		return res, nil
	}
}

// Cancel requests cancellation of the Task's current (or next) operation.
// Idempotent, safe to call from any goroutine and in any state (spec.md
// §6). If an operation is Submitted, an async-cancel SQE is emitted
// referencing it and the op moves to Cancelling; if the op already
// completed but the Task hasn't observed the result yet, the outcome is
// overwritten to Cancelled (matching original_source/src/runtime.rs's
// Task::cancel, which does the same to a UringDone(_) op); if no
// operation is outstanding, the next one issued short-circuits
// immediately instead.
func (t *Task) Cancel() { t.requestStop(false) }

// Timeout requests that the Task's current (or next) operation be failed
// with a timeout, using the same tie-break rules as Cancel.
func (t *Task) Timeout() { t.requestStop(true) }

func (t *Task) requestStop(isTimeout bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminal {
		return
	}

	op := t.currentOp
	if op == nil {
		if isTimeout {
			t.timeoutRequested = true
		} else {
			t.cancelRequested = true
		}
		return
	}

	switch op.state {
	case opSubmitted:
		trigger, next, outcome := "cancel", opCancelling, outcomeCancelled
		if isTimeout {
			trigger, next, outcome = "timeout", opTimingOut, outcomeTimedOut
		}
		// Fire-and-forget per spec.md §4.2: its own completion is
		// ignored by the reactor (userData 0, see Reactor.Run).
		_ = t.reactor.ring.PrepCancel(uint64(op.handle), 0, 0)
		t.reactor.outstanding.Add(1)
		op.transition(trigger, next)
		op.outcome = outcome
	case opTerminal:
		// Completed but not yet observed by the Task's body goroutine:
		// overwrite the result per spec.md §5's "never a success result,
		// even if the original operation raced to completion."
		if isTimeout {
			op.outcome = outcomeTimedOut
		} else {
			op.outcome = outcomeCancelled
		}
	case opCancelling, opTimingOut:
		// already in flight to a terminal cancel/timeout; idempotent.
	}
}
