package reactor

import "log"

// Logf is called by Run to report a task's terminal outcome (spec.md
// §4.5 item 3: "log success or surface error"). The default forwards to
// the standard library logger: the logging surface is an external
// collaborator per spec.md §1, so this is a redirection point, not a
// logging library.
var Logf = log.Printf
