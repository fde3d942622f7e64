//go:build linux

package uring

import (
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

func TestNewRing(t *testing.T) {
	skipIfNoIOURing(t)

	cases := []struct {
		name    string
		entries uint32
		opts    []Option
		wantErr bool
	}{
		{"zero_entries", 0, nil, true},
		{"small", 8, nil, false},
		{"cqsize", 8, []Option{WithCQSize(32)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New(tc.entries, tc.opts...)
			if tc.wantErr {
				if err == nil {
					r.Close()
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer r.Close()
			if r.Fd() < 0 {
				t.Fatal("expected non-negative fd")
			}
		})
	}
}

func TestAcceptOnBadFdYieldsOSError(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	const token = 0x1234
	if err := r.PrepAccept(-1, token); err != nil {
		t.Fatalf("PrepAccept: %v", err)
	}

	userData, res, _, err := r.WaitCQE()
	if err != nil {
		t.Fatalf("WaitCQE: %v", err)
	}
	r.SeenCQE()

	if userData != token {
		t.Fatalf("userData = %#x, want %#x", userData, token)
	}
	if ResultError(res) == nil {
		t.Fatalf("res = %d, want a negative errno", res)
	}
}

func TestCloseIdempotent(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
