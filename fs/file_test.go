//go:build linux

package fs

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

func skipIfNoIOURing(t *testing.T) *reactor.Reactor {
	t.Helper()
	re, err := reactor.New(8)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EPERM {
			t.Skipf("io_uring unavailable: %v", err)
		}
		t.Fatalf("reactor.New: %v", err)
	}
	return re
}

func TestCreateWriteReadAllClose(t *testing.T) {
	re := skipIfNoIOURing(t)
	defer re.Close()

	dir := t.TempDir()
	path := dir + "/agrippa-fs-test"

	var readBack []byte
	var opErr error

	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		f, err := Create(tk, path)
		if err != nil {
			opErr = err
			return nil
		}
		payload := []byte("the quick brown fox jumps over the lazy dog")
		if err := f.Write(tk, payload, 0); err != nil {
			opErr = err
			f.Close(tk)
			return nil
		}
		if err := f.Close(tk); err != nil {
			opErr = err
			return nil
		}

		f2, err := Open(tk, path, NewOpenOptions())
		if err != nil {
			opErr = err
			return nil
		}
		readBack, opErr = f2.ReadAll(tk)
		f2.Close(tk)
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opErr != nil {
		t.Fatalf("file op failed: %v", opErr)
	}
	want := "the quick brown fox jumps over the lazy dog"
	if string(readBack) != want {
		t.Fatalf("ReadAll = %q, want %q", readBack, want)
	}
	os.Remove(path)
}

func TestReadPastEOFReturnsZeroAndEOF(t *testing.T) {
	re := skipIfNoIOURing(t)
	defer re.Close()

	dir := t.TempDir()
	path := dir + "/agrippa-fs-eof"

	var opErr error
	n := -1
	re.Spawn(reactor.Normal, func(tk *reactor.Task) error {
		f, err := Create(tk, path)
		if err != nil {
			opErr = err
			return nil
		}
		if err := f.Write(tk, []byte("hi"), 0); err != nil {
			opErr = err
			return nil
		}
		if err := f.Close(tk); err != nil {
			opErr = err
			return nil
		}

		f2, err := Open(tk, path, NewOpenOptions())
		if err != nil {
			opErr = err
			return nil
		}
		buf := make([]byte, 16)
		n, opErr = f2.Read(tk, buf, 100)
		f2.Close(tk)
		return nil
	})

	if err := re.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if opErr != reactor.ErrEOF {
		t.Fatalf("opErr = %v, want reactor.ErrEOF", opErr)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
	os.Remove(path)
}
