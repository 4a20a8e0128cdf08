package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

type writeErr struct{}

func (writeErr) Error() string { return "transport closed" }

func (t *fakeTransport) WriteJSON(v any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return writeErr{}
	}
	t.events = append(t.events, v)
	return nil
}

func (t *fakeTransport) Close() error { return nil }

func (t *fakeTransport) snapshot() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.events))
	copy(out, t.events)
	return out
}

func countOf[T any](t *fakeTransport) int {
	n := 0
	for _, ev := range t.snapshot() {
		if _, ok := ev.(T); ok {
			n++
		}
	}
	return n
}

func firstOf[T any](t *fakeTransport) (T, bool) {
	for _, ev := range t.snapshot() {
		if v, ok := ev.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

type fakeTranscriber struct {
	fn func(ctx context.Context, wav []byte) (string, error)
}

func (f fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return f.fn(ctx, wav)
}

type fakeEmbedder struct {
	fn func(ctx context.Context, text string) ([]float32, error)
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.fn(ctx, text)
}

type fakeSearcher struct {
	fn func(ctx context.Context, vector []float32, partition string, topK int) ([]Match, error)
}

func (f fakeSearcher) Query(ctx context.Context, vector []float32, partition string, topK int) ([]Match, error) {
	return f.fn(ctx, vector, partition, topK)
}

type fakeGenerator struct {
	fn func(ctx context.Context, system, user string) (string, error)
}

func (f fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return f.fn(ctx, system, user)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg Config, co Collaborators) *Engine {
	t.Helper()
	return New(cfg, testLogger(), co)
}

// joinPair registers two transports and joins both to the meeting.
func joinPair(t *testing.T, e *Engine, meetingID string) (agent, admin *fakeTransport, agentConn, adminConn string) {
	t.Helper()
	agent = &fakeTransport{}
	admin = &fakeTransport{}
	agentConn = e.Register(agent)
	adminConn = e.Register(admin)
	e.Bind(agentConn, "agent-1")
	e.Bind(adminConn, "admin-1")
	if _, ok := e.Join(meetingID, agentConn, "agent-1", "agent"); !ok {
		t.Fatalf("agent join failed")
	}
	if _, ok := e.Join(meetingID, adminConn, "admin-1", "admin"); !ok {
		t.Fatalf("admin join failed")
	}
	return agent, admin, agentConn, adminConn
}

func waitEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !e.Wait(ctx) {
		t.Fatalf("engine background work did not finish")
	}
}
