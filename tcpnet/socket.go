package tcpnet

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// Socket is a connected TCP stream.
type Socket struct {
	fd *reactor.FD
}

// Connect resolves addr and connects a new socket to it, matching
// original_source/src/tcp.rs's connect.
func Connect(t *reactor.Task, addr string) (*Socket, error) {
	domain, sockaddr, sockaddrLen, err := resolve(addr)
	if err != nil {
		return nil, reactor.Boxed(err)
	}

	raw, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, reactor.OSError(err.(unix.Errno))
	}
	fd := reactor.NewFD(raw)

	if err := t.Connect(raw, sockaddr, sockaddrLen); err != nil {
		fd.Close()
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// Write writes all of data, retrying short writes, matching
// original_source/src/tcp.rs's Socket::write.
func (s *Socket) Write(t *reactor.Task, data []byte) error {
	start := 0
	for start != len(data) {
		n, err := t.Write(s.fd.Int(), data[start:], 0)
		if err != nil {
			return err
		}
		start += n
	}
	return nil
}

// Read reads into data, returning the number of bytes read.
func (s *Socket) Read(t *reactor.Task, data []byte) (int, error) {
	return t.Read(s.fd.Int(), data, 0)
}

// ReadAll fills data completely, retrying short reads.
func (s *Socket) ReadAll(t *reactor.Task, data []byte) error {
	start := 0
	for start != len(data) {
		n, err := t.Read(s.fd.Int(), data[start:], 0)
		if err != nil {
			return err
		}
		start += n
	}
	return nil
}

// Close closes the socket through the ring.
func (s *Socket) Close(t *reactor.Task) error {
	return t.Close(s.fd)
}

// WriteItem writes the raw in-memory bytes of *v to s, with no
// endianness conversion — the wire format is native host byte order
// (see SPEC_FULL.md's resolved Open Question on VerbsAddress byte
// order), matching original_source/src/tcp.rs's write_item, which also
// copies a value's bytes directly.
func WriteItem[T any](t *reactor.Task, s *Socket, v *T) error {
	size := unsafe.Sizeof(*v)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
	return s.Write(t, buf)
}

// ReadItem reads sizeof(T) raw bytes from s into a zero-valued T, with
// no endianness conversion, matching original_source/src/tcp.rs's
// read_item.
func ReadItem[T any](t *reactor.Task, s *Socket) (T, error) {
	var v T
	size := unsafe.Sizeof(v)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	if err := s.ReadAll(t, buf); err != nil {
		return v, err
	}
	return v, nil
}
