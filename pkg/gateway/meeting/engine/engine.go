// Package engine implements the real-time meeting session engine: connection
// registry, meeting store, signaling relay, audio windowing, transcription
// hand-off, and retrieval-augmented suggestions. All meeting state is owned
// by a single Engine instance; every read-modify-write against a meeting
// happens under the engine lock.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Documented policy constants. The trigger approximates an 8-second window
// at 16 kHz mono 16-bit PCM; the ceiling bounds memory while the privacy
// gate is closed.
const (
	DefaultTriggerBytes      = 256000
	DefaultGatedCeilingBytes = 500000
	DefaultPartitionTopK     = 3
	DefaultMergeTopK         = 5
	DefaultContextWindow     = 10

	DefaultPartitionQueryTimeout = 3 * time.Second
	DefaultTranscribeTimeout     = 30 * time.Second
	DefaultSuggestionTimeout     = 30 * time.Second
)

// DefaultPartitions is the fixed set of knowledge-base partitions queried
// during suggestion fan-out, one per regulatory universe.
var DefaultPartitions = []string{
	"training-reference",
	"fl-state-authority",
	"cms-medicare",
	"federal-aca",
	"erisa-irs-selffunded",
	"fl-medicaid-agency",
	"carrier-fmo-policies",
}

// Transport is the engine's view of a participant connection. Writes must be
// safe for concurrent use; the websocket layer provides that.
type Transport interface {
	WriteJSON(v any) error
	Close() error
}

// Transcriber converts a canonical WAV container into transcript text.
// An empty result means silence.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Embedder turns free text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one similarity hit from a knowledge-base partition.
type Match struct {
	Score     float64
	Partition string
	Citation  string
	Filename  string
	Text      string
}

// Searcher runs a similarity query against a single partition. Failures are
// per partition and never abort the surrounding request.
type Searcher interface {
	Query(ctx context.Context, vector []float32, partition string, topK int) ([]Match, error)
}

// Generator produces suggestion text from a system instruction and a user
// turn.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Archiver persists transcript entries. Calls are fire-and-forget; errors
// are logged and otherwise ignored.
type Archiver interface {
	SaveTranscript(ctx context.Context, meetingID, speaker, role, text string) error
}

// Collaborators are the external services the engine degrades gracefully
// without. Any field may be nil.
type Collaborators struct {
	Transcriber Transcriber
	Embedder    Embedder
	Searcher    Searcher
	Generator   Generator
	Archive     Archiver
}

type Config struct {
	TriggerBytes      int
	GatedCeilingBytes int
	PartitionTopK     int
	MergeTopK         int
	ContextWindow     int
	Partitions        []string

	PartitionQueryTimeout time.Duration
	TranscribeTimeout     time.Duration
	SuggestionTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.TriggerBytes <= 0 {
		c.TriggerBytes = DefaultTriggerBytes
	}
	if c.GatedCeilingBytes <= 0 {
		c.GatedCeilingBytes = DefaultGatedCeilingBytes
	}
	if c.PartitionTopK <= 0 {
		c.PartitionTopK = DefaultPartitionTopK
	}
	if c.MergeTopK <= 0 {
		c.MergeTopK = DefaultMergeTopK
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if len(c.Partitions) == 0 {
		c.Partitions = DefaultPartitions
	}
	if c.PartitionQueryTimeout <= 0 {
		c.PartitionQueryTimeout = DefaultPartitionQueryTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if c.SuggestionTimeout <= 0 {
		c.SuggestionTimeout = DefaultSuggestionTimeout
	}
	return c
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
	co     Collaborators

	mu       sync.Mutex
	conns    map[string]*connection
	meetings map[string]*meeting

	bg sync.WaitGroup
}

func New(cfg Config, logger *slog.Logger, co Collaborators) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		co:       co,
		conns:    make(map[string]*connection),
		meetings: make(map[string]*meeting),
	}
}

// Wait blocks until in-flight background work (transcriptions, suggestions,
// archive writes) finishes, or ctx expires. Returns false on expiry.
func (e *Engine) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		e.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
