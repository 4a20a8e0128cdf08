package engine

import (
	"encoding/base64"
	"fmt"
)

// IngestAudio decodes an audio fragment and appends it to the meeting's
// accumulation buffer, then applies the windowing policy. A stale meeting
// reference is an ordinary race with leave and is silently dropped.
func (e *Engine) IngestAudio(meetingID, userID, audioB64 string) error {
	raw, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}

	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		e.logger.Debug("audio chunk for unknown meeting", "meeting_id", meetingID)
		return nil
	}
	m.audioBuf = append(m.audioBuf, raw...)

	// Privacy gate: a lone participant's audio must never reach the
	// transcription provider. The buffer is still bounded so gated audio
	// cannot grow without limit; overflow is discarded, not transcribed.
	if len(m.participants) < 2 {
		if len(m.audioBuf) > e.cfg.GatedCeilingBytes {
			m.audioBuf = nil
		}
		e.mu.Unlock()
		return nil
	}

	e.maybeStartTranscriptionLocked(m, userID)
	e.mu.Unlock()
	return nil
}

// maybeStartTranscriptionLocked detaches the buffer as a transcription
// window when the trigger condition holds. Detach-and-reset happens in one
// step under the engine lock, so concurrent chunk arrivals can neither
// double-trigger a window nor lose bytes.
func (e *Engine) maybeStartTranscriptionLocked(m *meeting, userID string) {
	if m.transcribing || len(m.audioBuf) < e.cfg.TriggerBytes {
		return
	}
	window := m.audioBuf
	m.audioBuf = nil
	m.transcribing = true

	e.bg.Add(1)
	go e.transcribeWindow(m.id, userID, window)
}
