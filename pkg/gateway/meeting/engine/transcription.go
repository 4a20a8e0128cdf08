package engine

import (
	"context"
	"strings"
	"time"

	"github.com/covercall/covercall/pkg/gateway/audio"
	"github.com/covercall/covercall/pkg/gateway/metrics"
	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
)

// transcribeWindow runs as a detached background task: it wraps the window
// in the canonical WAV container, calls the transcription collaborator, and
// appends any resulting text to the transcript.
func (e *Engine) transcribeWindow(meetingID, userID string, window []byte) {
	defer e.bg.Done()
	// The in-flight guard must be released on every exit path; a leaked
	// guard would permanently stall transcription for the meeting.
	defer e.clearTranscribing(meetingID)

	if e.co.Transcriber == nil {
		e.logger.Warn("transcriber not configured, dropping audio window", "meeting_id", meetingID, "bytes", len(window))
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TranscribeTimeout)
	defer cancel()

	text, err := e.co.Transcriber.Transcribe(ctx, audio.CaptureToWAV(window))
	if err != nil {
		metrics.RecordTranscriptionFailure()
		e.logger.Warn("transcription failed", "meeting_id", meetingID, "bytes", len(window), "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		// Silence.
		return
	}

	entry := TranscriptEntry{UserID: userID, Text: text, Timestamp: time.Now().UTC()}

	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		// Meeting ended while the window was in flight.
		e.mu.Unlock()
		return
	}
	m.transcript = append(m.transcript, entry)
	admins := e.adminTransportsLocked(m)
	e.mu.Unlock()

	metrics.ObserveTranscriptionDuration(time.Since(start).Seconds())
	e.deliver(admins, protocol.Transcription{
		Type:      protocol.TypeTranscription,
		UserID:    userID,
		Text:      text,
		Timestamp: entry.Timestamp.Format(time.RFC3339),
	})
	e.archiveTranscript(meetingID, userID, "customer", text)
}

func (e *Engine) clearTranscribing(meetingID string) {
	e.mu.Lock()
	if m := e.meetings[meetingID]; m != nil {
		m.transcribing = false
	}
	e.mu.Unlock()
}

// archiveTranscript persists an entry in the background when an archive is
// configured. Failures only log.
func (e *Engine) archiveTranscript(meetingID, speaker, role, text string) {
	if e.co.Archive == nil {
		return
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.co.Archive.SaveTranscript(ctx, meetingID, speaker, role, text); err != nil {
			e.logger.Warn("transcript archive failed", "meeting_id", meetingID, "error", err)
		}
	}()
}
