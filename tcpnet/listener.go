// Package tcpnet is the TCP facade of agrippa: listen/accept/connect
// issued through a Task's reactor, plus the raw fixed-size WriteItem/
// ReadItem generics used by the verbs address handshake.
package tcpnet

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// Listener is a bound, listening TCP socket.
type Listener struct {
	fd   *reactor.FD
	addr string
}

// Addr returns the address the listener is bound to, suitable for
// passing to Connect.
func (ln *Listener) Addr() string { return ln.addr }

// Listen binds and listens on addr ("host:port"), using the standard
// library's resolver and socket setup the way
// original_source/src/tcp.rs's listen does (TcpListener::bind, then take
// ownership of the raw descriptor), so that accept/close go through the
// reactor while bind/listen keep their well-tested net package behavior.
func Listen(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, reactor.Boxed(err)
	}
	tl, ok := l.(*net.TCPListener)
	if !ok {
		l.Close()
		return nil, reactor.InternalError("net.Listen did not return a *net.TCPListener")
	}
	boundAddr := tl.Addr().String()
	f, err := tl.File()
	if err != nil {
		l.Close()
		return nil, reactor.Boxed(err)
	}
	l.Close()

	// Duplicate the descriptor so the os.File, which closes its own copy
	// when closed or collected, does not own the one the Listener keeps.
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	if err != nil {
		return nil, reactor.OSError(err.(unix.Errno))
	}
	return &Listener{fd: reactor.NewFD(fd), addr: boundAddr}, nil
}

// Accept waits for and returns the next inbound connection.
func (ln *Listener) Accept(t *reactor.Task) (*Socket, error) {
	fd, err := t.Accept(ln.fd.Int())
	if err != nil {
		return nil, err
	}
	return &Socket{fd: fd}, nil
}

// Close releases the listening socket through the ring.
func (ln *Listener) Close(t *reactor.Task) error {
	return t.Close(ln.fd)
}
