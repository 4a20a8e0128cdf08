package engine

import "github.com/google/uuid"

// connection is an entry in the connection registry. The registry owns the
// transport; meeting participants reference it by connection id only.
type connection struct {
	id        string
	transport Transport
	userID    string
}

// Register adds a live transport and returns its server-generated
// connection id.
func (e *Engine) Register(t Transport) string {
	id := uuid.NewString()
	e.mu.Lock()
	e.conns[id] = &connection{id: id, transport: t}
	e.mu.Unlock()
	return id
}

// Bind attaches a user identity to a registered connection. Unknown ids are
// a no-op.
func (e *Engine) Bind(connID, userID string) {
	e.mu.Lock()
	if c, ok := e.conns[connID]; ok {
		c.userID = userID
	}
	e.mu.Unlock()
}

// Lookup returns the transport for a connection id.
func (e *Engine) Lookup(connID string) (Transport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[connID]
	if !ok {
		return nil, false
	}
	return c.transport, true
}

// ConnectionClosed unregisters the connection and removes it from any
// meeting it joined. A connection is only ever in one meeting, but the scan
// is defensive and does not rely on that.
func (e *Engine) ConnectionClosed(connID string) {
	e.mu.Lock()
	delete(e.conns, connID)
	var pending []delivery
	for id, m := range e.meetings {
		if d, ok := e.removeParticipantLocked(m, connID); ok {
			if len(m.participants) == 0 {
				e.dropMeetingLocked(id)
				continue
			}
			pending = append(pending, d)
		}
	}
	e.mu.Unlock()

	for _, d := range pending {
		e.deliver(d.targets, d.event)
	}
}
