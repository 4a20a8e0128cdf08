package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/covercall/covercall/pkg/gateway/archive"
	"github.com/covercall/covercall/pkg/gateway/meeting/engine"
)

// TranscriptStore is the archive surface the meetings API reads from. Nil
// when archival is disabled.
type TranscriptStore interface {
	Transcript(ctx context.Context, meetingID string) ([]archive.TranscriptLine, error)
}

// MeetingsHandler serves POST /v1/meetings.
type MeetingsHandler struct {
	Logger *slog.Logger
}

func (h MeetingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	type createResp struct {
		MeetingID string `json:"meetingId"`
	}
	id := uuid.NewString()
	if h.Logger != nil {
		h.Logger.Info("meeting created", "meeting_id", id)
	}
	writeJSON(w, http.StatusCreated, createResp{MeetingID: id})
}

// MeetingHandler serves GET /v1/meetings/{id} and
// GET /v1/meetings/{id}/transcript.
type MeetingHandler struct {
	Engine  *engine.Engine
	Archive TranscriptStore
}

func (h MeetingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/meetings/")
	meetingID, sub, _ := strings.Cut(rest, "/")
	if meetingID == "" {
		writeJSONError(w, http.StatusBadRequest, "meeting id is required", "")
		return
	}

	switch sub {
	case "":
		sum, ok := h.Engine.Summary(meetingID)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "meeting not found", "")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	case "transcript":
		if h.Archive == nil {
			writeJSONError(w, http.StatusNotImplemented, "transcript archive is not configured", "")
			return
		}
		lines, err := h.Archive.Transcript(r.Context(), meetingID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to load transcript", "")
			return
		}
		type transcriptResp struct {
			MeetingID  string                   `json:"meetingId"`
			Transcript []archive.TranscriptLine `json:"transcript"`
		}
		if lines == nil {
			lines = []archive.TranscriptLine{}
		}
		writeJSON(w, http.StatusOK, transcriptResp{MeetingID: meetingID, Transcript: lines})
	default:
		writeJSONError(w, http.StatusNotFound, "not found", "")
	}
}
