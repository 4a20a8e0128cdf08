package engine

import "github.com/covercall/covercall/pkg/gateway/meeting/protocol"

// BroadcastAll sends an event to every participant transport in the
// meeting, best effort. A failed individual send never aborts the rest.
func (e *Engine) BroadcastAll(meetingID string, event any) {
	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		return
	}
	targets := e.transportsLocked(m, "")
	e.mu.Unlock()

	e.deliver(targets, event)
}

// BroadcastAdmins sends an event to admin-role participants only.
func (e *Engine) BroadcastAdmins(meetingID string, event any) {
	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		return
	}
	targets := e.adminTransportsLocked(m)
	e.mu.Unlock()

	e.deliver(targets, event)
}

// transportsLocked resolves participant transports, skipping excludeConnID
// and connections that have already closed.
func (e *Engine) transportsLocked(m *meeting, excludeConnID string) []Transport {
	targets := make([]Transport, 0, len(m.participants))
	for _, p := range m.participants {
		if p.connID == excludeConnID {
			continue
		}
		if c, ok := e.conns[p.connID]; ok {
			targets = append(targets, c.transport)
		}
	}
	return targets
}

func (e *Engine) adminTransportsLocked(m *meeting) []Transport {
	targets := make([]Transport, 0, len(m.participants))
	for _, p := range m.participants {
		if p.role != protocol.RoleAdmin {
			continue
		}
		if c, ok := e.conns[p.connID]; ok {
			targets = append(targets, c.transport)
		}
	}
	return targets
}

func (e *Engine) deliver(targets []Transport, event any) {
	for _, t := range targets {
		if err := t.WriteJSON(event); err != nil {
			e.logger.Warn("event delivery failed", "error", err)
		}
	}
}
