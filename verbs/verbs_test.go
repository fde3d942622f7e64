//go:build linux

package verbs

import (
	"testing"

	"github.com/jakobt/agrippa/reactor"
)

// skipIfNoVerbsDevice mirrors skipIfNoIOURing in reactor_test.go: most
// CI hosts have no RDMA-capable NIC, so every test that needs a real
// Device skips rather than fails when one can't be opened.
func skipIfNoVerbsDevice(t *testing.T, r *reactor.Reactor) *Device {
	t.Helper()
	d, err := NewDevice(r, WithRxDepth(4))
	if err != nil {
		t.Skipf("verbs device unavailable: %v", err)
	}
	return d
}

func TestBufferPoolSizedTwiceRxDepth(t *testing.T) {
	re, err := reactor.New(8)
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer re.Close()

	d := skipIfNoVerbsDevice(t, re)
	defer d.Close()

	if got, want := len(d.freeBuffers), 8; got != want {
		t.Fatalf("initial free buffers = %d, want %d (2*rxDepth)", got, want)
	}
}

func TestGetBufferExhaustionSuspendsAndPutBufferWakes(t *testing.T) {
	re, err := reactor.New(8)
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer re.Close()

	d := skipIfNoVerbsDevice(t, re)
	defer d.Close()

	var acquired []*Buffer
	var waiterResumed bool

	// Drain the pool from a first Task.
	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		for i := 0; i < 8; i++ {
			b, err := GetBuffer(tk)
			if err != nil {
				return err
			}
			acquired = append(acquired, b)
		}
		return nil
	})

	// A second, lower-priority Task tries to acquire one more and must
	// suspend until the first releases one (spec.md §8's boundary
	// property).
	re.Spawn(reactor.Low, func(tk *reactor.Task) error {
		b, err := GetBuffer(tk)
		if err != nil {
			return err
		}
		waiterResumed = true
		PutBuffer(b)
		return nil
	})

	re.Spawn(reactor.High, func(tk *reactor.Task) error {
		reactor.Yield(tk)
		if len(acquired) == 8 {
			PutBuffer(acquired[0])
			acquired = acquired[1:]
		}
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !waiterResumed {
		t.Fatal("buffer waiter never resumed after PutBuffer")
	}
}

func TestConnectWithoutPeerProducesLocalAddress(t *testing.T) {
	re, err := reactor.New(8)
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	defer re.Close()

	d := skipIfNoVerbsDevice(t, re)
	defer d.Close()

	var addr Addr
	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		b, err := Connect(tk)
		if err != nil {
			return err
		}
		addr = b.LocalAddress()
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if addr.Qpn == 0 {
		t.Fatal("local address has zero qpn")
	}
}
