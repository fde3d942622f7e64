//go:build linux

package tcpnet

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

func skipIfNoIOURing(t *testing.T) *reactor.Reactor {
	t.Helper()
	re, err := reactor.New(16)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EPERM {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Fatalf("reactor.New: %v", err)
	}
	return re
}

type wireHeader struct {
	QPN uint32
	PSN uint32
	LID uint16
}

func TestListenAcceptConnectRoundTrip(t *testing.T) {
	re := skipIfNoIOURing(t)
	defer re.Close()

	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	sent := wireHeader{QPN: 7, PSN: 42, LID: 3}
	var received wireHeader
	var serverErr, clientErr error

	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		sock, err := ln.Accept(tk)
		if err != nil {
			serverErr = err
			return nil
		}
		received, serverErr = ReadItem[wireHeader](tk, sock)
		sock.Close(tk)
		ln.Close(tk)
		return nil
	})

	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		sock, err := Connect(tk, ln.Addr())
		if err != nil {
			clientErr = err
			return nil
		}
		clientErr = WriteItem(tk, sock, &sent)
		sock.Close(tk)
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if serverErr != nil {
		t.Fatalf("server error: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client error: %v", clientErr)
	}
	if received != sent {
		t.Fatalf("received = %+v, want %+v", received, sent)
	}
}
