package verbs

import "math/rand"

// randomPSN picks a uniformly random 24-bit initial packet sequence
// number, matching original_source/src/verbs_util.rs's
// `rand::random::<u32>() & 0xFFFFFF` (spec.md §3's QP attribute).
func randomPSN() uint32 {
	return rand.Uint32() & 0xFFFFFF
}
