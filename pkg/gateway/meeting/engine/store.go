package engine

import (
	"time"

	"github.com/covercall/covercall/pkg/gateway/metrics"
	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
)

type participant struct {
	connID string
	userID string
	role   string
}

// TranscriptEntry is one appended line of the meeting transcript. Entries
// are immutable and ordered by append time.
type TranscriptEntry struct {
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// meeting is created lazily on first join and dropped when its last
// participant leaves, taking the audio buffer and transcript with it.
type meeting struct {
	id           string
	participants []*participant
	transcript   []TranscriptEntry
	audioBuf     []byte
	transcribing bool
	suggestSeq   map[string]uint64
}

func newMeeting(id string) *meeting {
	return &meeting{
		id:         id,
		suggestSeq: make(map[string]uint64),
	}
}

// delivery is a broadcast collected under the engine lock and performed
// after releasing it.
type delivery struct {
	targets []Transport
	event   any
}

// Join enrolls a registered connection in a meeting, creating the meeting if
// absent. Existing participants are notified; the returned roster is for the
// join acknowledgement to the joining connection. Joining the same meeting
// twice on one connection is a no-op.
func (e *Engine) Join(meetingID, connID, userID, role string) ([]protocol.Participant, bool) {
	e.mu.Lock()
	if _, ok := e.conns[connID]; !ok {
		e.mu.Unlock()
		return nil, false
	}
	m := e.meetings[meetingID]
	if m == nil {
		m = newMeeting(meetingID)
		e.meetings[meetingID] = m
		metrics.SetActiveMeetings(len(e.meetings))
	}
	for _, p := range m.participants {
		if p.connID == connID {
			roster := rosterLocked(m)
			e.mu.Unlock()
			return roster, true
		}
	}
	m.participants = append(m.participants, &participant{connID: connID, userID: userID, role: role})
	roster := rosterLocked(m)
	targets := e.transportsLocked(m, connID)
	e.mu.Unlock()

	e.deliver(targets, protocol.ParticipantJoined{
		Type:         protocol.TypeParticipantJoined,
		MeetingID:    meetingID,
		UserID:       userID,
		Role:         role,
		Participants: roster,
	})
	return roster, true
}

// Leave removes the connection's participant from the meeting. When the
// meeting empties it is deleted outright. A second Leave for the same
// connection is a no-op and broadcasts nothing.
func (e *Engine) Leave(meetingID, connID string) {
	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		return
	}
	d, ok := e.removeParticipantLocked(m, connID)
	if !ok {
		e.mu.Unlock()
		return
	}
	if len(m.participants) == 0 {
		e.dropMeetingLocked(meetingID)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.deliver(d.targets, d.event)
}

// removeParticipantLocked detaches the participant matching connID and
// prepares the participant-left broadcast for the remaining roster.
func (e *Engine) removeParticipantLocked(m *meeting, connID string) (delivery, bool) {
	for i, p := range m.participants {
		if p.connID != connID {
			continue
		}
		m.participants = append(m.participants[:i], m.participants[i+1:]...)
		return delivery{
			targets: e.transportsLocked(m, ""),
			event: protocol.ParticipantLeft{
				Type:         protocol.TypeParticipantLeft,
				MeetingID:    m.id,
				UserID:       p.userID,
				Role:         p.role,
				Participants: rosterLocked(m),
			},
		}, true
	}
	return delivery{}, false
}

func (e *Engine) dropMeetingLocked(meetingID string) {
	delete(e.meetings, meetingID)
	metrics.SetActiveMeetings(len(e.meetings))
}

func rosterLocked(m *meeting) []protocol.Participant {
	roster := make([]protocol.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		roster = append(roster, protocol.Participant{UserID: p.userID, Role: p.role})
	}
	return roster
}

// Summary is the administrative view of a meeting.
type Summary struct {
	MeetingID    string                 `json:"meetingId"`
	Participants []protocol.Participant `json:"participants"`
	Transcript   []TranscriptEntry      `json:"transcript"`
}

// Summary returns the roster and transcript log for a meeting.
func (e *Engine) Summary(meetingID string) (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.meetings[meetingID]
	if m == nil {
		return Summary{}, false
	}
	transcript := make([]TranscriptEntry, len(m.transcript))
	copy(transcript, m.transcript)
	return Summary{
		MeetingID:    meetingID,
		Participants: rosterLocked(m),
		Transcript:   transcript,
	}, true
}
