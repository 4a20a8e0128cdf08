package engine

import "github.com/covercall/covercall/pkg/gateway/meeting/protocol"

// RelaySignal forwards a WebRTC negotiation payload to the target
// participant, tagged with the sender's user id. A missing meeting or target
// is dropped and logged; the sender cannot act on the miss mid-call, so no
// error is sent back.
func (e *Engine) RelaySignal(connID string, msg protocol.Signal) {
	e.mu.Lock()
	var fromUserID string
	if c, ok := e.conns[connID]; ok {
		fromUserID = c.userID
	}
	var target Transport
	if m := e.meetings[msg.MeetingID]; m != nil {
		for _, p := range m.participants {
			if p.userID != msg.TargetUserID {
				continue
			}
			if c, ok := e.conns[p.connID]; ok {
				target = c.transport
			}
			break
		}
	}
	e.mu.Unlock()

	if target == nil {
		e.logger.Info("signal target not found",
			"type", msg.Type,
			"meeting_id", msg.MeetingID,
			"target_user_id", msg.TargetUserID,
		)
		return
	}

	fwd := protocol.SignalForward{Type: msg.Type, FromUserID: fromUserID, Signal: msg.Signal}
	if err := target.WriteJSON(fwd); err != nil {
		e.logger.Warn("signal forward failed", "type", msg.Type, "meeting_id", msg.MeetingID, "error", err)
	}
}
