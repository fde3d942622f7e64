package verbs

// Addr is the wire handshake payload of spec.md §3/§6: everything one
// peer needs to drive its Queue Pair to Ready-to-Send against the
// other. Exchanged raw over a plain TCP socket via tcpnet.WriteItem/
// ReadItem, which copy a value's in-memory bytes with no endianness
// conversion — see SPEC_FULL.md's resolved Open Question on byte order,
// grounded in original_source/src/verbs_util.rs's VerbsAddr
// (`#[repr(C, packed(1))]`).
//
// The source's own arithmetic for this type's wire size ("30-byte packed
// record") doesn't match the field widths it lists (4+4+16+2 = 26, not
// 30); DESIGN.md records this as an apparent inconsistency in the
// source rather than something this implementation invents a padding
// scheme to satisfy. As a Go struct, Addr is 28 bytes: the 26 bytes of
// fields plus 2 trailing padding bytes from its 4-byte alignment, and
// WriteItem/ReadItem transfer all 28.
type Addr struct {
	Qpn uint32
	Psn uint32
	Gid [16]byte
	Lid uint16
}
