// Package protocol defines the websocket wire contract between meeting
// participants and the gateway. Every frame is a JSON object with a "type"
// discriminator; field names are camelCase to match the browser clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeJoinMeeting       = "join-meeting"
	TypeOffer             = "offer"
	TypeAnswer            = "answer"
	TypeICECandidate      = "ice-candidate"
	TypeAudioChunk        = "audio-chunk"
	TypeRequestSuggestion = "request-ai-suggestion"
	TypeLeaveMeeting      = "leave-meeting"
)

// Server event types.
const (
	TypeJoinedMeeting     = "joined-meeting"
	TypeParticipantJoined = "participant-joined"
	TypeParticipantLeft   = "participant-left"
	TypeTranscription     = "transcription"
	TypeAISuggestion      = "ai-suggestion"
	TypeError             = "error"
)

// Participant roles. Transcriptions and suggestions are only delivered to
// admin-role participants.
const (
	RoleAgent    = "agent"
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Message: message, Param: param}
}

// JoinMeeting enrolls the connection in a meeting.
type JoinMeeting struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId"`
	UserID    string `json:"userId,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Signal carries one leg of a WebRTC negotiation (offer, answer, or
// ice-candidate). The signal payload is opaque to the gateway.
type Signal struct {
	Type         string          `json:"type"`
	MeetingID    string          `json:"meetingId,omitempty"`
	TargetUserID string          `json:"targetUserId"`
	Signal       json.RawMessage `json:"signal"`
}

// AudioChunk is a base64-encoded fragment of raw PCM microphone audio
// (16 kHz, mono, 16-bit signed little-endian).
type AudioChunk struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	AudioData string `json:"audioData"`
}

// SuggestionRequest asks the gateway for a citation-backed suggestion
// grounded on the knowledge base.
type SuggestionRequest struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Text      string `json:"text"`
}

// LeaveMeeting removes the connection from its meeting.
type LeaveMeeting struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId,omitempty"`
}

// Participant is a roster entry as it appears on the wire.
type Participant struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// JoinedMeeting acknowledges a join to the joining connection, carrying the
// full roster.
type JoinedMeeting struct {
	Type         string        `json:"type"`
	MeetingID    string        `json:"meetingId"`
	UserID       string        `json:"userId"`
	Role         string        `json:"role"`
	Participants []Participant `json:"participants"`
}

// ParticipantJoined notifies existing participants about a new arrival.
type ParticipantJoined struct {
	Type         string        `json:"type"`
	MeetingID    string        `json:"meetingId"`
	UserID       string        `json:"userId"`
	Role         string        `json:"role"`
	Participants []Participant `json:"participants"`
}

// ParticipantLeft notifies remaining participants about a departure.
type ParticipantLeft struct {
	Type         string        `json:"type"`
	MeetingID    string        `json:"meetingId"`
	UserID       string        `json:"userId"`
	Role         string        `json:"role"`
	Participants []Participant `json:"participants"`
}

// SignalForward is a relayed negotiation message, augmented with the sender
// identity so the receiver can answer.
type SignalForward struct {
	Type       string          `json:"type"`
	FromUserID string          `json:"fromUserId"`
	Signal     json.RawMessage `json:"signal"`
}

// Transcription is delivered to admin participants when a transcribed audio
// window produced text.
type Transcription struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// AISuggestion is delivered to admin participants in response to a
// SuggestionRequest.
type AISuggestion struct {
	Type       string   `json:"type"`
	Suggestion string   `json:"suggestion"`
	RelatedTo  string   `json:"relatedTo"`
	Sources    []string `json:"sources"`
	Timestamp  string   `json:"timestamp"`
}

// ErrorEvent is sent to the originating connection for malformed or
// unroutable messages.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error event.
func NewError(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

type envelope struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses a client frame into its typed message. Unknown
// or malformed frames yield a *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badRequest("invalid json frame", "")
	}

	switch env.Type {
	case TypeJoinMeeting:
		var m JoinMeeting
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("invalid join-meeting frame", "")
		}
		if strings.TrimSpace(m.MeetingID) == "" {
			return nil, badRequest("meetingId is required", "meetingId")
		}
		return m, nil
	case TypeOffer, TypeAnswer, TypeICECandidate:
		var m Signal
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("invalid signaling frame", "")
		}
		if len(m.Signal) == 0 {
			return nil, badRequest(env.Type+" missing signal payload", "signal")
		}
		return m, nil
	case TypeAudioChunk:
		var m AudioChunk
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("invalid audio-chunk frame", "")
		}
		if m.AudioData == "" {
			return nil, badRequest("audioData is required", "audioData")
		}
		return m, nil
	case TypeRequestSuggestion:
		var m SuggestionRequest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("invalid request-ai-suggestion frame", "")
		}
		if strings.TrimSpace(m.Text) == "" {
			return nil, badRequest("text is required", "text")
		}
		return m, nil
	case TypeLeaveMeeting:
		var m LeaveMeeting
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, badRequest("invalid leave-meeting frame", "")
		}
		return m, nil
	default:
		return nil, badRequest("unknown message type", "type")
	}
}
