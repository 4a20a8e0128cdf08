package engine

import (
	"testing"

	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
)

func TestJoin_CreatesMeetingAndNotifiesOthers(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})

	first := &fakeTransport{}
	c1 := e.Register(first)
	roster, ok := e.Join("m1", c1, "u1", "agent")
	if !ok {
		t.Fatalf("join failed")
	}
	if len(roster) != 1 || roster[0].UserID != "u1" {
		t.Fatalf("roster=%+v, want [u1]", roster)
	}
	// The only participant gets no participant-joined for their own join.
	if n := countOf[protocol.ParticipantJoined](first); n != 0 {
		t.Fatalf("self notifications=%d, want 0", n)
	}

	second := &fakeTransport{}
	c2 := e.Register(second)
	roster, ok = e.Join("m1", c2, "u2", "customer")
	if !ok {
		t.Fatalf("second join failed")
	}
	if len(roster) != 2 {
		t.Fatalf("roster size=%d, want 2", len(roster))
	}
	joined, ok := firstOf[protocol.ParticipantJoined](first)
	if !ok {
		t.Fatalf("existing participant saw no participant-joined")
	}
	if joined.UserID != "u2" || joined.Role != "customer" {
		t.Fatalf("unexpected participant-joined: %+v", joined)
	}
}

func TestJoin_UnregisteredConnection(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	if _, ok := e.Join("m1", "nope", "u1", "agent"); ok {
		t.Fatalf("join with unregistered connection should fail")
	}
	if _, ok := e.Summary("m1"); ok {
		t.Fatalf("meeting should not exist")
	}
}

func TestJoin_SameConnectionTwiceIsNoOp(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	tr := &fakeTransport{}
	c := e.Register(tr)
	e.Join("m1", c, "u1", "agent")
	roster, ok := e.Join("m1", c, "u1", "agent")
	if !ok || len(roster) != 1 {
		t.Fatalf("re-join roster=%+v ok=%v, want single entry", roster, ok)
	}
}

func TestLeave_RemovesAndBroadcastsOnce(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	agent, _, agentConn, _ := joinPair(t, e, "m1")

	e.Leave("m1", agentConn)
	sum, ok := e.Summary("m1")
	if !ok {
		t.Fatalf("meeting should survive with one participant")
	}
	if len(sum.Participants) != 1 || sum.Participants[0].UserID != "admin-1" {
		t.Fatalf("participants=%+v, want [admin-1]", sum.Participants)
	}
	// The departed connection receives nothing further.
	if n := countOf[protocol.ParticipantLeft](agent); n != 0 {
		t.Fatalf("departed participant notifications=%d, want 0", n)
	}

	// Second leave for the same connection is a no-op: no duplicate
	// participant-left anywhere.
	e.Leave("m1", agentConn)
	sum, _ = e.Summary("m1")
	if len(sum.Participants) != 1 {
		t.Fatalf("participants=%d after duplicate leave, want 1", len(sum.Participants))
	}
}

func TestLeave_LastParticipantDeletesMeeting(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	tr := &fakeTransport{}
	c := e.Register(tr)
	e.Join("m1", c, "u1", "agent")

	e.Leave("m1", c)
	if _, ok := e.Summary("m1"); ok {
		t.Fatalf("empty meeting should be deleted")
	}
}

func TestConnectionClosed_LeavesMeetings(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	_, admin, agentConn, _ := joinPair(t, e, "m1")

	e.ConnectionClosed(agentConn)

	left, ok := firstOf[protocol.ParticipantLeft](admin)
	if !ok {
		t.Fatalf("remaining participant saw no participant-left")
	}
	if left.UserID != "agent-1" {
		t.Fatalf("participant-left userId=%q, want agent-1", left.UserID)
	}
	if _, found := e.Lookup(agentConn); found {
		t.Fatalf("closed connection still registered")
	}
}

func TestSummary_CopiesTranscript(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	tr := &fakeTransport{}
	c := e.Register(tr)
	e.Join("m1", c, "u1", "agent")

	sum, ok := e.Summary("m1")
	if !ok {
		t.Fatalf("summary missing")
	}
	if len(sum.Transcript) != 0 {
		t.Fatalf("transcript=%d entries, want 0", len(sum.Transcript))
	}
	if sum.MeetingID != "m1" {
		t.Fatalf("meetingId=%q", sum.MeetingID)
	}
}
