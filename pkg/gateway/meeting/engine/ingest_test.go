package engine

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
)

func chunk(n int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, n))
}

func TestIngestAudio_RejectsBadBase64(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	if err := e.IngestAudio("m1", "u1", "not base64!!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestIngestAudio_UnknownMeetingIsDropped(t *testing.T) {
	e := newTestEngine(t, Config{}, Collaborators{})
	if err := e.IngestAudio("ghost", "u1", chunk(16)); err != nil {
		t.Fatalf("stale meeting reference should not error: %v", err)
	}
}

func TestPrivacyGate_LoneParticipantNeverTranscribed(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, Config{TriggerBytes: 200, GatedCeilingBytes: 300}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			calls.Add(1)
			return "text", nil
		}},
	})
	tr := &fakeTransport{}
	c := e.Register(tr)
	e.Join("m1", c, "u1", "agent")

	// Far past the trigger threshold, still gated.
	for i := 0; i < 5; i++ {
		if err := e.IngestAudio("m1", "u1", chunk(200)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	waitEngine(t, e)
	if calls.Load() != 0 {
		t.Fatalf("transcriber invoked %d times while gated, want 0", calls.Load())
	}
}

func TestPrivacyGate_TruncatesBufferAtCeiling(t *testing.T) {
	var windows []int
	var mu sync.Mutex
	e := newTestEngine(t, Config{TriggerBytes: 200, GatedCeilingBytes: 300}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			mu.Lock()
			windows = append(windows, len(wav))
			mu.Unlock()
			return "", nil
		}},
	})
	tr := &fakeTransport{}
	c := e.Register(tr)
	e.Join("m1", c, "u1", "agent")

	// Two gated chunks cross the ceiling; the buffer is discarded, not kept.
	e.IngestAudio("m1", "u1", chunk(200))
	e.IngestAudio("m1", "u1", chunk(200))

	other := &fakeTransport{}
	c2 := e.Register(other)
	e.Join("m1", c2, "u2", "customer")

	// If truncation had not happened the first ungated chunk would already
	// cross the trigger with stale gated bytes included.
	e.IngestAudio("m1", "u1", chunk(100))
	waitEngine(t, e)
	mu.Lock()
	n := len(windows)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("transcription fired with %d windows before threshold, want 0", n)
	}

	e.IngestAudio("m1", "u1", chunk(100))
	waitEngine(t, e)
	mu.Lock()
	defer mu.Unlock()
	if len(windows) != 1 {
		t.Fatalf("windows=%d, want 1", len(windows))
	}
	if windows[0] != 44+200 {
		t.Fatalf("window container size=%d, want %d", windows[0], 44+200)
	}
}

func TestTrigger_SingleFlightUnderConcurrentBursts(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int64
	e := newTestEngine(t, Config{TriggerBytes: 64, GatedCeilingBytes: 1 << 20}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			calls.Add(1)
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return "", nil
		}},
	})
	joinPair(t, e, "m1")

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := e.IngestAudio("m1", "u1", chunk(64)); err != nil {
					t.Errorf("ingest: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	waitEngine(t, e)

	if calls.Load() == 0 {
		t.Fatalf("trigger never fired")
	}
	if maxInFlight.Load() != 1 {
		t.Fatalf("max concurrent transcriptions=%d, want 1", maxInFlight.Load())
	}
}

func TestTranscription_AppendsAndBroadcastsToAdminsOnly(t *testing.T) {
	e := newTestEngine(t, Config{TriggerBytes: 100, GatedCeilingBytes: 1 << 20}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			return "hello there", nil
		}},
	})
	agent, admin, _, _ := joinPair(t, e, "m1")

	if err := e.IngestAudio("m1", "agent-1", chunk(128)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	waitEngine(t, e)

	ev, ok := firstOf[protocol.Transcription](admin)
	if !ok {
		t.Fatalf("admin received no transcription")
	}
	if ev.UserID != "agent-1" || ev.Text != "hello there" {
		t.Fatalf("unexpected transcription: %+v", ev)
	}
	if n := countOf[protocol.Transcription](agent); n != 0 {
		t.Fatalf("non-admin received %d transcriptions, want 0", n)
	}

	sum, _ := e.Summary("m1")
	if len(sum.Transcript) != 1 || sum.Transcript[0].Text != "hello there" {
		t.Fatalf("transcript=%+v, want one entry", sum.Transcript)
	}
}

func TestTranscription_GuardReleasedOnFailure(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, Config{TriggerBytes: 100, GatedCeilingBytes: 1 << 20}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			calls.Add(1)
			return "", context.DeadlineExceeded
		}},
	})
	joinPair(t, e, "m1")

	e.IngestAudio("m1", "u1", chunk(128))
	waitEngine(t, e)
	// The guard must be released after failure so the next window triggers.
	e.IngestAudio("m1", "u1", chunk(128))
	waitEngine(t, e)

	if calls.Load() != 2 {
		t.Fatalf("calls=%d, want 2 (guard leaked?)", calls.Load())
	}
}

func TestTranscription_SilenceAppendsNothing(t *testing.T) {
	e := newTestEngine(t, Config{TriggerBytes: 100, GatedCeilingBytes: 1 << 20}, Collaborators{
		Transcriber: fakeTranscriber{fn: func(ctx context.Context, wav []byte) (string, error) {
			return "   ", nil
		}},
	})
	_, admin, _, _ := joinPair(t, e, "m1")

	e.IngestAudio("m1", "u1", chunk(128))
	waitEngine(t, e)

	if n := countOf[protocol.Transcription](admin); n != 0 {
		t.Fatalf("silence broadcast %d transcriptions, want 0", n)
	}
	sum, _ := e.Summary("m1")
	if len(sum.Transcript) != 0 {
		t.Fatalf("transcript=%d entries, want 0", len(sum.Transcript))
	}
}
