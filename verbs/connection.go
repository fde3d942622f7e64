package verbs

import (
	"runtime/cgo"

	"github.com/jakobt/agrippa/reactor"
)

// Builder is the pre-connect half of a verbs handshake: a freshly
// created QP that has advanced RESET -> INIT and can advertise its
// LocalAddress, but has not yet been driven to RTR/RTS against a peer.
// Grounded in original_source/src/verbs.rs's ConnectionBuilder.
type Builder struct {
	qp *QP
}

// LocalAddress returns the Addr the caller must send to the remote peer
// out-of-band (spec.md §4.4's "Address exchange"), for the peer to pass
// to its own Builder.Connect.
func (b *Builder) LocalAddress() Addr {
	return b.qp.localAddress()
}

// Connect drives the Builder's QP through Ready-to-Receive and
// Ready-to-Send against the peer's advertised Addr (spec.md §4.4's
// "Connect" paragraph), yielding a live Connection. Grounded in
// original_source/src/verbs.rs's ConnectionBuilder::connect.
func (b *Builder) Connect(remote Addr) (*Connection, error) {
	if err := b.qp.connect(remote); err != nil {
		return nil, err
	}
	return &Connection{qp: b.qp}, nil
}

// Connection is an established RC queue pair ready to Send and Recv
// (spec.md §6's verbs facade). Grounded in
// original_source/src/verbs.rs's Connection.
type Connection struct {
	qp *QP
}

// Send posts b over the connection and suspends the calling Task until
// the completion arrives, returning any verbs error the completion
// reports. b is returned to the device's buffer pool in all cases
// (success or failure) — mirroring
// original_source/src/verbs.rs's Send future, which always calls
// put_buffer once done. Grounded in spec.md §4.4's "Send" paragraph.
func (c *Connection) Send(t *reactor.Task, b *Buffer) error {
	op := &pendingSend{task: t, buffer: b}
	handle := cgo.NewHandle(op)

	if err := c.qp.send(uint64(handle), b); err != nil {
		handle.Delete()
		c.qp.device.putBuffer(b)
		return err
	}

	t.Suspend()
	return op.err
}

// Recv returns the next buffer received on this connection, suspending
// the calling Task if none has arrived yet (spec.md §4.4's "Receive
// pump": "at most one waiting computation awaiting a receive"; a second
// concurrent Recv call on the same Connection is an invariant
// violation). Grounded in original_source/src/verbs.rs's Recv future.
func (c *Connection) Recv(t *reactor.Task) (*Buffer, error) {
	for {
		if b := c.qp.read(); b != nil {
			return b, nil
		}
		if err := c.qp.wait(t); err != nil {
			return nil, err
		}
		t.Suspend()
	}
}

// Close tears down the underlying QP, returning any still-queued
// received buffers to the device's pool.
func (c *Connection) Close() {
	c.qp.close()
}

// Connect begins a verbs handshake by creating a fresh QP against t's
// reactor's registered Device (spec.md §6's `connect() -> Builder`).
// Grounded in original_source/src/verbs.rs's connect()/Connect future.
func Connect(t *reactor.Task) (*Builder, error) {
	d, err := deviceFor(t)
	if err != nil {
		return nil, err
	}
	qp, err := newQP(d)
	if err != nil {
		return nil, err
	}
	return &Builder{qp: qp}, nil
}

// GetBuffer acquires a buffer from t's reactor's registered Device's
// pool, suspending t if the pool is exhausted (spec.md §4.4's "Buffer
// pool" paragraph). Grounded in original_source/src/verbs.rs's
// get_buffer()/GetBuffer future.
func GetBuffer(t *reactor.Task) (*Buffer, error) {
	d, err := deviceFor(t)
	if err != nil {
		return nil, err
	}
	return d.getBuffer(t)
}

// PutBuffer returns b to the Device pool it was acquired from, waking
// the highest-priority waiter if any (spec.md §4.4's "Buffer pool").
// Unlike GetBuffer, this needs no Task: a Buffer already remembers which
// Device minted it, matching spec.md §6's `put_buffer(b)` signature
// exactly (no reactor handle argument). Grounded in
// original_source/src/verbs.rs's put_buffer()/PutBuffer future.
func PutBuffer(b *Buffer) {
	b.device.putBuffer(b)
}
