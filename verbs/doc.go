// Package verbs is the RDMA verbs facade of agrippa: an RC queue pair
// per connection, a shared receive queue and buffer pool owned by a
// single Device, and a completion channel drained once per reactor
// iteration via (*reactor.Reactor).RegisterExternalDrain.
//
// Grounded in original_source/src/verbs_util.rs and verbs.rs. Unlike
// the Rust source, which has to chase the verbs context's ops function
// pointer table by hand because its bindgen output doesn't expose
// libibverbs' static inline wrapper functions (ibv_post_send,
// ibv_poll_cq, ibv_req_notify_cq, ...) as linkable symbols, cgo compiles
// the real <infiniband/verbs.h> header text, so those inline functions
// are ordinary C calls from Go's point of view: this package calls
// C.ibv_post_send etc. directly, with no function-pointer indirection.
package verbs

/*
#cgo LDFLAGS: -libverbs
#include <infiniband/verbs.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"
