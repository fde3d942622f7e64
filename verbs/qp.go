package verbs

/*
#include <infiniband/verbs.h>
#include <string.h>
*/
import "C"

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// QP is the Queue Pair of spec.md §3: a verbs connection endpoint with a
// randomly chosen initial PSN, a FIFO of received buffers, and at most
// one Task waiting on a receive. Grounded in
// original_source/src/verbs_util.rs's QueuePair.
type QP struct {
	device *Device
	qp     *C.struct_ibv_qp
	psn    uint32

	received []*Buffer
	waiter   *reactor.Task
}

// newQP creates a Reliable-Connection QP against d's shared CQ and SRQ
// and transitions it RESET -> INIT (spec.md §4.4's "QP creation"),
// choosing a 24-bit random initial PSN the way
// original_source/src/verbs_util.rs's QueuePair::new does
// (`rand::random::<u32>() & 0xFFFFFF`).
func newQP(d *Device) (*QP, error) {
	var initAttr C.struct_ibv_qp_init_attr
	C.memset(unsafe.Pointer(&initAttr), 0, C.size_t(unsafe.Sizeof(initAttr)))
	initAttr.send_cq = d.cq
	initAttr.recv_cq = d.cq
	initAttr.srq = d.srq
	initAttr.cap.max_send_wr = 1
	initAttr.cap.max_recv_wr = C.uint32_t(d.cfg.rxDepth)
	initAttr.cap.max_send_sge = 1
	initAttr.cap.max_recv_sge = 1
	initAttr.qp_type = C.IBV_QPT_RC

	rawQP, cerr := C.ibv_create_qp(d.pd, &initAttr)
	if rawQP == nil {
		return nil, errnoOr(cerr, unix.EIO)
	}

	q := &QP{
		device: d,
		qp:     rawQP,
		psn:    randomPSN(),
	}

	var attr C.struct_ibv_qp_attr
	C.memset(unsafe.Pointer(&attr), 0, C.size_t(unsafe.Sizeof(attr)))
	attr.qp_state = C.IBV_QPS_INIT
	attr.pkey_index = 0
	attr.port_num = C.uint8_t(d.cfg.ibPort)
	attr.qp_access_flags = 0

	mask := C.IBV_QP_STATE | C.IBV_QP_PKEY_INDEX | C.IBV_QP_PORT | C.IBV_QP_ACCESS_FLAGS
	if rc := C.ibv_modify_qp(rawQP, &attr, C.int(mask)); rc != 0 {
		C.ibv_destroy_qp(rawQP)
		return nil, reactor.OSError(unix.Errno(rc))
	}

	d.qps[uint32(rawQP.qp_num)] = q
	return q, nil
}

// close destroys the underlying QP and removes it from the device's
// receive-rehoming registry, matching
// original_source/src/verbs_util.rs's Drop for QueuePair.
func (q *QP) close() {
	if q.qp == nil {
		return
	}
	delete(q.device.qps, uint32(q.qp.qp_num))
	C.ibv_destroy_qp(q.qp)
	q.qp = nil
	for _, b := range q.received {
		q.device.putBuffer(b)
	}
	q.received = nil
}

// localAddress returns the handshake payload a peer needs to connect to
// this QP (spec.md §4.4's "Address exchange"). gid is always zero: this
// implementation targets RoCE/InfiniBand configurations reachable by
// LID alone, matching original_source/src/verbs_util.rs's
// QueuePair::local_address, which hardcodes gid: 0.
func (q *QP) localAddress() Addr {
	return Addr{
		Qpn: uint32(q.qp.qp_num),
		Psn: q.psn,
		Lid: q.device.portLID,
	}
}

// connect drives the QP RESET -> INIT (already done in newQP) -> RTR ->
// RTS using the peer's advertised Addr, with exactly the attributes
// spec.md §4.4's "Connect" paragraph specifies. Grounded in
// original_source/src/verbs_util.rs's QueuePair::connect.
func (q *QP) connect(remote Addr) error {
	var attr C.struct_ibv_qp_attr
	C.memset(unsafe.Pointer(&attr), 0, C.size_t(unsafe.Sizeof(attr)))
	attr.qp_state = C.IBV_QPS_RTR
	attr.path_mtu = C.IBV_MTU_1024
	attr.dest_qp_num = C.uint32_t(remote.Qpn)
	attr.rq_psn = C.uint32_t(remote.Psn)
	attr.max_dest_rd_atomic = 1
	attr.min_rnr_timer = 12
	attr.ah_attr.is_global = 0
	attr.ah_attr.dlid = C.uint16_t(remote.Lid)
	attr.ah_attr.sl = 0
	attr.ah_attr.src_path_bits = 0
	attr.ah_attr.port_num = C.uint8_t(q.device.cfg.ibPort)

	rtrMask := C.IBV_QP_STATE | C.IBV_QP_AV | C.IBV_QP_PATH_MTU | C.IBV_QP_DEST_QPN |
		C.IBV_QP_RQ_PSN | C.IBV_QP_MAX_DEST_RD_ATOMIC | C.IBV_QP_MIN_RNR_TIMER
	if rc := C.ibv_modify_qp(q.qp, &attr, C.int(rtrMask)); rc != 0 {
		return reactor.OSError(unix.Errno(rc))
	}

	attr.qp_state = C.IBV_QPS_RTS
	attr.timeout = 14
	attr.retry_cnt = 7
	attr.rnr_retry = 7
	attr.sq_psn = C.uint32_t(q.psn)
	attr.max_rd_atomic = 1

	rtsMask := C.IBV_QP_STATE | C.IBV_QP_TIMEOUT | C.IBV_QP_RETRY_CNT | C.IBV_QP_RNR_RETRY |
		C.IBV_QP_SQ_PSN | C.IBV_QP_MAX_QP_RD_ATOMIC
	if rc := C.ibv_modify_qp(q.qp, &attr, C.int(rtsMask)); rc != 0 {
		return reactor.OSError(unix.Errno(rc))
	}
	return nil
}

// read pops the oldest received buffer off the QP's FIFO, if any,
// matching original_source/src/verbs_util.rs's QueuePair::read.
func (q *QP) read() *Buffer {
	if len(q.received) == 0 {
		return nil
	}
	b := q.received[0]
	q.received = q.received[1:]
	return b
}

// wait parks t on this QP's single waiting-task slot until a receive
// completes. spec.md §3: "at most one waiting computation awaiting a
// receive" — a second concurrent waiter is an invariant violation, not a
// queueing opportunity, matching
// original_source/src/verbs_util.rs's QueuePair::wait, which errors on
// "two concurrent reads."
func (q *QP) wait(t *reactor.Task) error {
	if q.waiter != nil {
		return reactor.InternalError("two concurrent reads on the same queue pair are not supported")
	}
	q.waiter = t
	return nil
}

// send posts buf as a single-SGE SEND work request carrying token as its
// wr_id (spec.md §4.4's "Send" paragraph, §4.3's CCT mirrored onto the
// verbs completion source).
func (q *QP) send(token uint64, buf *Buffer) error {
	rc := C.agrippa_post_send(q.qp, C.uint64_t(token), buf.ptr, C.uint32_t(buf.Len()), C.uint32_t(buf.lkey()))
	if rc != 0 {
		return reactor.OSError(unix.Errno(rc))
	}
	q.device.pendingWR++
	return nil
}
