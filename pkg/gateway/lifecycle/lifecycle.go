// Package lifecycle holds process-wide shutdown state shared across
// handlers.
package lifecycle

import "sync/atomic"

// Lifecycle flips to draining during graceful shutdown so readiness probes
// and websocket upgrades can refuse new work while in-flight calls finish.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
