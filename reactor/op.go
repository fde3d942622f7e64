package reactor

import "runtime/cgo"

// opState is the per-operation state machine of spec.md §4.2, stored as
// an explicit tagged enum rather than a nest of booleans (spec.md §9).
type opState int

const (
	opInitial opState = iota
	opSubmitted
	opCancelling
	opTimingOut
	opTerminal
)

func (s opState) String() string {
	switch s {
	case opInitial:
		return "initial"
	case opSubmitted:
		return "submitted"
	case opCancelling:
		return "cancelling"
	case opTimingOut:
		return "timing-out"
	case opTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// resultPending is the result-slot sentinel meaning "no completion yet"
// (spec.md §3). Ring/verbs results are either a non-negative byte count
// or a negative errno, so any value outside [-4095, positive-max] is safe;
// we use a value no real completion can produce.
const resultPending int32 = -1 << 31

// kernelOutcome is how a CQE (or a verbs completion) resolved.
type kernelOutcome int

const (
	outcomeResult kernelOutcome = iota // res carries a byte count or -errno
	outcomeCancelled
	outcomeTimedOut
)

// operation is the Operation Descriptor of spec.md §4.2: a per-operation
// record carrying the state machine and the result slot, keyed to exactly
// one Task. The owning Task's body goroutine is parked for the operation's
// entire Submitted window (see Task.doOp), so there is no "drop while
// Submitted" event the Go realization needs to detect separately: it is
// structurally unreachable.
type operation struct {
	owner   *Task
	name    string // operation name, for panic messages only
	state   opState
	result  int32
	outcome kernelOutcome
	handle  cgo.Handle // valid while state == opSubmitted/opCancelling/opTimingOut
}

func newOperation(owner *Task, name string) *operation {
	return &operation{owner: owner, name: name, state: opInitial, result: resultPending}
}

// transition asserts a legal (state, trigger) pair and commits the move,
// per spec.md §9's "transitions belong in a single method that asserts
// legal predecessors." Grounded in original_source/src/runtime.rs's
// Task::cancel/Task::timeout/CQE-dispatch match arms, which enumerate
// exactly these pairs and panic on anything else.
func (op *operation) transition(trigger string, next opState) {
	switch trigger {
	case "submit":
		if op.state != opInitial {
			panic("agrippa: submit from non-initial state " + op.state.String())
		}
	case "cancel", "timeout":
		// Initial short-circuits to terminal without touching the ring;
		// Submitted moves to Cancelling/TimingOut; anything already
		// Cancelling/TimingOut/Terminal is an idempotent no-op handled
		// by the caller before transition is invoked.
		if op.state != opInitial && op.state != opSubmitted {
			panic("agrippa: " + trigger + " from illegal state " + op.state.String())
		}
	case "cqe":
		if op.state != opSubmitted && op.state != opCancelling && op.state != opTimingOut {
			panic("agrippa: cqe delivered to op " + op.name + " in illegal state " + op.state.String())
		}
	default:
		panic("agrippa: unknown operation trigger " + trigger)
	}
	op.state = next
}
