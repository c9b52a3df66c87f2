package health

import "sync/atomic"

// ready gates the readiness probe during startup and graceful shutdown. The
// process starts ready; shutdown flips it off before draining so the load
// balancer stops routing new callbacks.
var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles the readiness gate.
func SetReady(v bool) {
	ready.Store(v)
}

// Ready reports whether the process accepts traffic.
func Ready() bool {
	return ready.Load()
}
