//go:build linux

package reactor

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func skipIfNoIOURing(t *testing.T) {
	t.Helper()
	r, err := New(8)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EPERM {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Skipf("io_uring setup failed: %v", err)
	}
	r.Close()
}

func TestRunDrivesSpawnedTaskToCompletion(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	var ran bool
	re.Spawn(Normal, func(tk *Task) error {
		ran = true
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Fatal("task body never ran")
	}
}

func TestRunSchedulesHighPriorityFirst(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	var order []string
	re.Spawn(Low, func(tk *Task) error {
		order = append(order, "low")
		return nil
	})
	re.Spawn(High, func(tk *Task) error {
		order = append(order, "high")
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("order = %v, want [high low]", order)
	}
}

func TestYieldResumesOnNextIteration(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	var resumed bool
	re.Spawn(Normal, func(tk *Task) error {
		Yield(tk)
		resumed = true
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resumed {
		t.Fatal("task never resumed after Yield")
	}
}

func TestAcceptOnBadFdReturnsOSError(t *testing.T) {
	skipIfNoIOURing(t)

	re, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	var opErr error
	re.Spawn(Normal, func(tk *Task) error {
		_, opErr = tk.Accept(-1)
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opErr == nil {
		t.Fatal("expected an OS error from Accept on a bad fd")
	}
	var rerr *Error
	if !errors.As(opErr, &rerr) || rerr.Kind != KindOS {
		t.Fatalf("opErr = %v, want KindOS", opErr)
	}
}
