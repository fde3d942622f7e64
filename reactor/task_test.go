//go:build linux

package reactor

import (
	"os"
	"testing"
)

func osPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	return r, w
}

// TestCancelSubmittedOperationYieldsCancelled cancels a blocked read from
// a second Task scheduled on the same reactor, rather than a real OS
// goroutine: Cancel runs strictly after the first Task parks and before
// the reactor ever blocks in the kernel wait, so the outcome is
// deterministic without relying on timing.
func TestCancelSubmittedOperationYieldsCancelled(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	r, w := osPipe(t)
	defer r.Close()
	defer w.Close()

	var opErr error
	var target *Task
	target = re.Spawn(Normal, func(task *Task) error {
		buf := make([]byte, 16)
		_, opErr = task.Read(int(r.Fd()), buf, 0)
		return nil
	})
	re.Spawn(Normal, func(task *Task) error {
		target.Cancel()
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opErr != ErrCancelled {
		t.Fatalf("opErr = %v, want ErrCancelled", opErr)
	}
}

func TestCancelBeforeAnyOperationShortCircuitsNextOne(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	r, w := osPipe(t)
	defer r.Close()
	defer w.Close()

	var opErr error
	tk := re.Spawn(Normal, func(task *Task) error {
		buf := make([]byte, 16)
		_, opErr = task.Read(int(r.Fd()), buf, 0)
		return nil
	})
	tk.Cancel()

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opErr != ErrCancelled {
		t.Fatalf("opErr = %v, want ErrCancelled", opErr)
	}
}
