package reactor

import (
	"runtime/cgo"
	"sync/atomic"

	"github.com/jakobt/agrippa/uring"
)

// Reactor is the single-threaded cooperative scheduler of spec.md §4.5:
// it owns the io_uring ring, a priority ready queue, and drives Tasks to
// completion one CQE or one ready-task poll at a time. A Reactor must be
// driven from exactly one goroutine (Run's caller); Task.Cancel/Timeout
// are the only methods meant to be called from elsewhere.
type Reactor struct {
	ring  *uring.Ring
	ready readyQueue

	// outstanding counts SQEs submitted but not yet completed, including
	// fire-and-forget AsyncCancel SQEs. Used by idle to recognize that
	// there is nothing left to wait for. Mutated from arbitrary
	// goroutines (Task.Cancel/Timeout may emit an AsyncCancel SQE from
	// outside the reactor goroutine), hence atomic.
	outstanding atomic.Int64

	// external is a bounded list of non-ring completion sources this
	// Reactor must also drain once per iteration — in particular the
	// verbs engine's completion channel, registered by package verbs.
	// Each hook reports whether it made progress; it must not block.
	external []func() bool

	// idleChecks lets a registered external drain source (package verbs)
	// tell Run that it still has work in flight even when a given
	// iteration found nothing to dispatch — e.g. a posted SRQ receive or
	// an in-flight send with no completion yet. Without this, idle would
	// only see ring-submitted SQEs and could end Run while a verbs
	// completion is still outstanding.
	idleChecks []func() bool
}

// New creates a Reactor backed by a ring with the given submission queue
// depth.
func New(entries uint32, opts ...uring.Option) (*Reactor, error) {
	r, err := uring.New(entries, opts...)
	if err != nil {
		return nil, err
	}
	return &Reactor{ring: r}, nil
}

// Close releases the underlying ring.
func (re *Reactor) Close() error { return re.ring.Close() }

// RegisterExternalDrain adds a non-blocking completion source to be
// polled once per Run iteration, in addition to the ring. Used by
// package verbs to fold its completion channel into the same single
// scheduling loop (spec.md §9's "one event loop, not two").
func (re *Reactor) RegisterExternalDrain(fn func() bool) {
	re.external = append(re.external, fn)
}

// RegisterIdleCheck adds a predicate Run consults before deciding there
// is nothing left to do: fn must return true only while the registrant
// still has work in flight (posted but not yet completed), so Run keeps
// looping instead of returning early. Used by package verbs to report
// posted SRQ receives and outstanding sends that the ring's own
// outstanding-SQE counter knows nothing about.
func (re *Reactor) RegisterIdleCheck(fn func() bool) {
	re.idleChecks = append(re.idleChecks, fn)
}

// Wake re-enters a Task that previously called Suspend into the ready
// queue. Used by package verbs to resume a Task waiting on a buffer
// release or a QP receive once one becomes available.
func (re *Reactor) Wake(t *Task) { re.ready.push(t) }

// Spawn creates a new Task running body at the given priority and enters
// it into the ready queue. The Task does not start running until Run
// polls it for the first time.
func (re *Reactor) Spawn(priority Priority, body func(*Task) error) *Task {
	t := newTask(re, priority, body)
	re.ready.push(t)
	return t
}

// Run drives the reactor until the ready queue is empty, no operations
// are outstanding, and every registered external source reports no
// progress: that is, until there is nothing left to do (spec.md §4.5).
//
// Each iteration: drain external completion sources once each (bounded,
// so a busy verbs engine cannot starve ring-backed tasks); if a task is
// ready, resume exactly one; otherwise block on the ring's single CQE
// wait and dispatch the result to its owning operation.
func (re *Reactor) Run() error {
	for {
		progressed := false
		for _, drain := range re.external {
			if drain() {
				progressed = true
			}
		}

		if !re.ready.empty() {
			t := re.ready.pop()
			re.poll(t)
			continue
		}

		if progressed {
			continue
		}

		if re.idle() {
			return nil
		}

		if err := re.waitAndDispatch(); err != nil {
			return err
		}
	}
}

// idle reports whether the reactor has nothing left to wait for: an
// empty ready queue and no Task parked on an outstanding operation.
// Approximated here as "the ring has no pending SQEs and nothing in
// flight to wait on"; since every parked Task's only way back to the
// ready queue is a CQE or an external drain, an empty ready queue with
// no external progress and a ring with no outstanding submissions means
// every Task has finished.
func (re *Reactor) idle() bool {
	if re.outstanding.Load() != 0 {
		return false
	}
	for _, busy := range re.idleChecks {
		if busy() {
			return false
		}
	}
	return true
}

func (re *Reactor) poll(t *Task) {
	ev := t.resumeAndWait()
	switch ev.kind {
	case eventFinished:
		t.mu.Lock()
		t.terminal = true
		t.mu.Unlock()
		if ev.err != nil {
			Logf("agrippa: task failed: %v\n", ev.err)
		} else {
			Logf("agrippa: task finished\n")
		}
	case eventParked:
		// Task parked on a new operation (or a Yield); it re-enters the
		// ready queue only once its operation's CQE arrives, or
		// immediately for a plain Yield.
	}
}

func (re *Reactor) waitAndDispatch() error {
	userData, res, _, err := re.ring.WaitCQE()
	if err != nil {
		return err
	}
	re.ring.SeenCQE()
	re.outstanding.Add(-1)

	if userData == 0 {
		// AsyncCancel's own completion: fire-and-forget, discarded
		// per spec.md §4.2.
		return nil
	}

	handle := cgo.Handle(userData)
	op, ok := handle.Value().(*operation)
	if !ok {
		Logf("agrippa: CQE with unrecognized correlation token %d\n", userData)
		return nil
	}
	handle.Delete()

	owner := op.owner
	owner.mu.Lock()
	op.transition("cqe", opTerminal)
	if op.outcome != outcomeCancelled && op.outcome != outcomeTimedOut {
		op.outcome = outcomeResult
	}
	op.result = res
	owner.mu.Unlock()

	re.ready.push(owner)
	return nil
}
