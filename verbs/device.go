package verbs

/*
#include <infiniband/verbs.h>
#include <stdlib.h>
#include <string.h>

// ibv_post_send/ibv_post_recv/ibv_post_srq_recv/ibv_poll_cq/ibv_req_notify_cq
// are static inline wrappers in <infiniband/verbs.h> that index through
// ibv_context's ops table; cgo compiles that header text directly, so
// C.ibv_post_send etc. below are ordinary calls, no function-pointer
// indirection needed on the Go side (see doc.go).
static int agrippa_post_srq_recv(struct ibv_srq *srq, uint64_t wr_id, void *addr, uint32_t length, uint32_t lkey) {
	struct ibv_sge sge;
	memset(&sge, 0, sizeof(sge));
	sge.addr = (uint64_t)(uintptr_t)addr;
	sge.length = length;
	sge.lkey = lkey;

	struct ibv_recv_wr wr;
	memset(&wr, 0, sizeof(wr));
	wr.wr_id = wr_id;
	wr.sg_list = &sge;
	wr.num_sge = 1;

	struct ibv_recv_wr *bad_wr = NULL;
	return ibv_post_srq_recv(srq, &wr, &bad_wr);
}

static int agrippa_post_send(struct ibv_qp *qp, uint64_t wr_id, void *addr, uint32_t length, uint32_t lkey) {
	struct ibv_sge sge;
	memset(&sge, 0, sizeof(sge));
	sge.addr = (uint64_t)(uintptr_t)addr;
	sge.length = length;
	sge.lkey = lkey;

	struct ibv_send_wr wr;
	memset(&wr, 0, sizeof(wr));
	wr.wr_id = wr_id;
	wr.sg_list = &sge;
	wr.num_sge = 1;
	wr.opcode = IBV_WR_SEND;
	wr.send_flags = IBV_SEND_SIGNALED;

	struct ibv_send_wr *bad_wr = NULL;
	return ibv_post_send(qp, &wr, &bad_wr);
}
*/
import "C"

import (
	"runtime/cgo"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// Device is the Verbs Engine of spec.md §4.4: it owns the verbs device
// context, protection domain, completion channel, completion queue,
// shared receive queue, buffer pool, and the per-connection QP registry
// needed to rehome a completed receive into its owning QP's FIFO.
//
// Grounded in original_source/src/verbs_util.rs's Device, with the two
// deviations from that file's (incomplete) behavior resolved in favor of
// spec.md's fuller prose and recorded in DESIGN.md: re-arming
// ibv_req_notify_cq after every drain, and rehoming completed receives
// into the owning QP's FIFO instead of discarding them.
type Device struct {
	cfg *deviceConfig

	deviceList *C.struct_ibv_device
	context    *C.struct_ibv_context
	channel    *C.struct_ibv_comp_channel
	pd         *C.struct_ibv_pd
	cq         *C.struct_ibv_cq
	srq        *C.struct_ibv_srq
	portLID    uint16

	bufferSize int

	// readSlot/emptyReadSlots implement spec.md §4.4's "Receive pump":
	// a fixed array of rx_depth slots, each either empty or holding a
	// buffer posted to the SRQ, plus a free-index stack.
	readSlot       []*Buffer
	emptyReadSlots []int
	freeBuffers    []*Buffer

	// qps maps a QP's qp_num to its owning *QP so a completed receive
	// (identified only by wr_id == slot index and the CQ, not the QP)
	// can be rehomed into the right connection's FIFO — spec.md §4.4's
	// "Receive pump" paragraph.
	qps map[uint32]*QP

	// bufferWait is the priority-ordered buffer-starvation wait queue of
	// spec.md §3/§4.4: Tasks parked because get_buffer found the pool
	// empty, highest priority first within arrival order.
	bufferWait [int(reactor.Low) + 1][]*reactor.Task

	notifyArmed bool

	// pendingWR counts posted-but-not-yet-completed SRQ receives and
	// sends. Reported to the Reactor through RegisterIdleCheck so Run
	// does not end while a verbs completion is still in flight but the
	// ring itself has nothing outstanding (spec.md §9: verbs and the
	// ring are peers under one idle condition, not two).
	pendingWR int

	closeOnce sync.Once
}

// NewDevice opens a verbs device and prepares its SRQ, CQ, protection
// domain, and buffer pool (spec.md §4.4's "Device setup"), then
// registers its completion channel as an external drain source on r so
// Reactor.Run folds verbs completions into the same single scheduling
// loop as ring CQEs (spec.md §9: "Verbs Engine and the ring loop ...
// peers under the reactor").
func NewDevice(r *reactor.Reactor, opts ...Option) (*Device, error) {
	cfg := newDeviceConfig(opts)

	d := &Device{
		cfg:        cfg,
		bufferSize: cfg.bufferSize,
		qps:        make(map[uint32]*QP),
	}

	if err := d.open(); err != nil {
		d.Close()
		return nil, err
	}

	d.readSlot = make([]*Buffer, cfg.rxDepth)
	d.emptyReadSlots = make([]int, cfg.rxDepth)
	for i := range d.emptyReadSlots {
		d.emptyReadSlots[i] = int(cfg.rxDepth) - 1 - i
	}

	for i := uint32(0); i < cfg.rxDepth*2; i++ {
		b, err := newBuffer(d)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.freeBuffers = append(d.freeBuffers, b)
	}

	registerDevice(r, d)
	r.RegisterExternalDrain(d.process)
	r.RegisterIdleCheck(d.busy)
	return d, nil
}

// busy reports whether this device still has a posted SRQ receive or
// send in flight with no completion yet (see pendingWR's doc comment).
func (d *Device) busy() bool {
	return d.pendingWR != 0
}

func (d *Device) open() error {
	var numDevices C.int
	list, cerr := C.ibv_get_device_list(&numDevices)
	if list == nil {
		return errnoOr(cerr, unix.ENODEV)
	}
	defer C.ibv_free_device_list(list)

	deviceSlice := unsafe.Slice(list, int(numDevices))

	var chosen *C.struct_ibv_device
	for _, dev := range deviceSlice {
		namePtr := C.ibv_get_device_name(dev)
		if namePtr == nil {
			continue
		}
		if d.cfg.name != "" && C.GoString(namePtr) != d.cfg.name {
			continue
		}
		chosen = dev
		break
	}
	if chosen == nil {
		return reactor.InternalError("no verbs device found")
	}

	ctx, cerr := C.ibv_open_device(chosen)
	if ctx == nil {
		return errnoOr(cerr, unix.ENODEV)
	}
	d.context = ctx

	channel, cerr := C.ibv_create_comp_channel(ctx)
	if channel == nil {
		return errnoOr(cerr, unix.EIO)
	}
	d.channel = channel

	pd, cerr := C.ibv_alloc_pd(ctx)
	if pd == nil {
		return errnoOr(cerr, unix.EIO)
	}
	d.pd = pd

	cq, cerr := C.ibv_create_cq(ctx, C.int(d.cfg.rxDepth+1), nil, channel, 0)
	if cq == nil {
		return errnoOr(cerr, unix.EIO)
	}
	d.cq = cq

	var srqAttr C.struct_ibv_srq_init_attr
	C.memset(unsafe.Pointer(&srqAttr), 0, C.size_t(unsafe.Sizeof(srqAttr)))
	srqAttr.attr.max_wr = C.uint32_t(d.cfg.rxDepth)
	srqAttr.attr.max_sge = 1

	srq, cerr := C.ibv_create_srq(pd, &srqAttr)
	if srq == nil {
		return errnoOr(cerr, unix.EIO)
	}
	d.srq = srq

	var portAttr C.struct_ibv_port_attr
	C.memset(unsafe.Pointer(&portAttr), 0, C.size_t(unsafe.Sizeof(portAttr)))
	if rc := C.ibv_query_port(ctx, C.uint8_t(d.cfg.ibPort), &portAttr); rc != 0 {
		return reactor.OSError(unix.Errno(rc))
	}
	if portAttr.link_layer != C.IBV_LINK_LAYER_ETHERNET && portAttr.lid == 0 {
		return reactor.InternalError("could not get local LID")
	}
	d.portLID = uint16(portAttr.lid)

	if rc := C.ibv_req_notify_cq(cq, 0); rc != 0 {
		return reactor.OSError(unix.Errno(rc))
	}
	d.notifyArmed = true

	return nil
}

// Close releases every resource the device holds, in the reverse order
// of acquisition, matching original_source/src/verbs_util.rs's Drop for
// Device. Safe to call more than once.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		for _, b := range d.freeBuffers {
			b.free()
		}
		d.freeBuffers = nil
		for _, b := range d.readSlot {
			if b != nil {
				b.free()
			}
		}
		if d.srq != nil {
			C.ibv_destroy_srq(d.srq)
			d.srq = nil
		}
		if d.cq != nil {
			C.ibv_destroy_cq(d.cq)
			d.cq = nil
		}
		if d.pd != nil {
			C.ibv_dealloc_pd(d.pd)
			d.pd = nil
		}
		if d.channel != nil {
			C.ibv_destroy_comp_channel(d.channel)
			d.channel = nil
		}
		if d.context != nil {
			C.ibv_close_device(d.context)
			d.context = nil
		}
	})
}

// process is the Device's external-drain hook (spec.md §4.5 item 1):
// post any pending receives, poll the verbs CQ, and dispatch completions
// to their owning QP or pending send. Returns whether it made progress,
// so Reactor.Run knows whether to loop again before blocking on the
// ring.
//
// Open Question 3 (bounded verbs-before-ready-pop fairness, resolved in
// SPEC_FULL.md): this drains at most one 16-entry poll_cq chunk per
// call, rather than looping to empty, so a completion flood cannot
// starve ring-backed ready Tasks within a single Reactor.Run iteration.
func (d *Device) process() bool {
	progressed := d.postPendingReceives()

	if !d.notifyArmed {
		C.ibv_req_notify_cq(d.cq, 0)
		d.notifyArmed = true
	}

	const chunk = 16
	var wc [chunk]C.struct_ibv_wc
	ne := C.ibv_poll_cq(d.cq, C.int(chunk), &wc[0])
	if ne <= 0 {
		return progressed
	}
	progressed = true

	for i := 0; i < int(ne); i++ {
		d.dispatch(&wc[i])
	}

	// Re-arm only after this drain, per SPEC_FULL.md's resolution of
	// the source's single-arm-only behavior.
	d.notifyArmed = false

	return progressed
}

func (d *Device) postPendingReceives() bool {
	posted := false
	for len(d.emptyReadSlots) > 0 && len(d.freeBuffers) > 0 {
		slot := d.emptyReadSlots[len(d.emptyReadSlots)-1]
		d.emptyReadSlots = d.emptyReadSlots[:len(d.emptyReadSlots)-1]

		buf := d.freeBuffers[len(d.freeBuffers)-1]
		d.freeBuffers = d.freeBuffers[:len(d.freeBuffers)-1]

		d.readSlot[slot] = buf
		rc := C.agrippa_post_srq_recv(d.srq, C.uint64_t(slot), buf.ptr, C.uint32_t(buf.capacity), C.uint32_t(buf.lkey()))
		if rc != 0 {
			// Undo: the buffer never made it to the kernel, return it
			// for the next attempt.
			d.readSlot[slot] = nil
			d.freeBuffers = append(d.freeBuffers, buf)
			d.emptyReadSlots = append(d.emptyReadSlots, slot)
			break
		}
		d.pendingWR++
		posted = true
	}
	return posted
}

func (d *Device) dispatch(wc *C.struct_ibv_wc) {
	switch wc.opcode {
	case C.IBV_WC_RECV:
		d.dispatchRecv(wc)
	case C.IBV_WC_SEND:
		d.dispatchSend(wc)
	default:
		// Unhandled opcode; nothing in this engine issues anything
		// else, so there is no owner to notify.
	}
}

func (d *Device) dispatchRecv(wc *C.struct_ibv_wc) {
	d.pendingWR--
	slot := int(wc.wr_id)
	buf := d.readSlot[slot]
	d.readSlot[slot] = nil
	d.emptyReadSlots = append(d.emptyReadSlots, slot)

	qp := d.qps[uint32(wc.qp_num)]
	if qp == nil {
		// The owning QP was already torn down; return the buffer to
		// the pool instead of leaking it.
		d.freeBuffers = append(d.freeBuffers, buf)
		return
	}

	if wc.status == C.IBV_WC_SUCCESS {
		buf.SetLen(int(wc.byte_len))
		qp.received = append(qp.received, buf)
	} else {
		d.freeBuffers = append(d.freeBuffers, buf)
	}

	if qp.waiter != nil {
		t := qp.waiter
		qp.waiter = nil
		t.Reactor().Wake(t)
	}
}

func (d *Device) dispatchSend(wc *C.struct_ibv_wc) {
	d.pendingWR--
	handle := cgo.Handle(wc.wr_id)
	op, ok := handle.Value().(*pendingSend)
	if !ok {
		return
	}
	handle.Delete()

	d.putBuffer(op.buffer)
	if wc.status != C.IBV_WC_SUCCESS {
		op.err = reactor.InternalError("verbs send completed with non-zero status")
	}
	t := op.task
	t.Reactor().Wake(t)
}

// getBuffer implements spec.md §4.4's buffer-pool acquisition: pop the
// free list if non-empty, otherwise park t on the buffer-wait queue and
// suspend.
func (d *Device) getBuffer(t *reactor.Task) (*Buffer, error) {
	for {
		if len(d.freeBuffers) > 0 {
			b := d.freeBuffers[len(d.freeBuffers)-1]
			d.freeBuffers = d.freeBuffers[:len(d.freeBuffers)-1]
			return b, nil
		}
		d.bufferWait[t.Priority()] = append(d.bufferWait[t.Priority()], t)
		t.Suspend()
		// Woken by putBuffer, which already popped us off the wait
		// queue; loop to actually claim a buffer (the receive pump in
		// process runs before the next ready Task and may post the
		// released buffer to the SRQ first, so this re-checks rather
		// than assuming success).
	}
}

// putBuffer implements spec.md §4.4's buffer-pool release: push to the
// free list, then wake exactly one waiter — the highest-priority one,
// FIFO within its band (spec.md §4.5 item 2, §8's boundary property).
func (d *Device) putBuffer(b *Buffer) {
	d.freeBuffers = append(d.freeBuffers, b)
	for p := range d.bufferWait {
		q := d.bufferWait[p]
		if len(q) == 0 {
			continue
		}
		t := q[0]
		d.bufferWait[p] = q[1:]
		t.Reactor().Wake(t)
		return
	}
}

// pendingSend is the Operation Descriptor analogue for an outstanding
// verbs send (spec.md §4.4's "Send" paragraph): the wr_id carries a
// cgo.Handle to this struct, mirroring the ring CCT's leaked-pointer
// design (spec.md §4.3) for the verbs completion source.
type pendingSend struct {
	task   *reactor.Task
	buffer *Buffer
	err    error
}

var (
	devicesMu sync.Mutex
	devices   = map[*reactor.Reactor]*Device{}
)

// registerDevice associates d with r so package-level GetBuffer/PutBuffer/
// Connect (spec.md §6's verbs facade) can find the device for a given
// Task without threading it through every call, matching spec.md §3's
// "Reactor ... owns ... the Verbs Engine" even though Go's Reactor and
// Device are peers coupled only through this registry and the shared
// ready queues (SPEC_FULL.md §9).
func registerDevice(r *reactor.Reactor, d *Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices[r] = d
}

func deviceFor(t *reactor.Task) (*Device, error) {
	devicesMu.Lock()
	d := devices[t.Reactor()]
	devicesMu.Unlock()
	if d == nil {
		return nil, reactor.InternalError("no verbs device registered for this reactor")
	}
	return d, nil
}
