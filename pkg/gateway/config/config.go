package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/covercall/covercall/pkg/gateway/meeting/engine"
)

type Config struct {
	Addr string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Gemini (transcription, embeddings, suggestion generation). Empty key
	// disables AI features; the gateway still relays calls.
	GeminiAPIKey   string
	GeminiModel    string
	EmbeddingModel string
	EmbeddingDims  int

	// Pinecone knowledge base. Both must be set to enable retrieval.
	PineconeAPIKey string
	PineconeHost   string
	Partitions     []string

	// Postgres transcript archive. Empty URL disables archival.
	DatabaseURL string

	// Audio windowing policy.
	TriggerBytes      int
	GatedCeilingBytes int

	// Retrieval policy.
	PartitionTopK         int
	MergeTopK             int
	ContextWindow         int
	PartitionQueryTimeout time.Duration
	TranscribeTimeout     time.Duration
	SuggestionTimeout     time.Duration

	// WebSocket limits.
	WSMaxMessageBytes int64
	WSWriteTimeout    time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("COVERCALL_ADDR", ":8080"),
		CORSAllowedOrigins:    make(map[string]struct{}),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("COVERCALL_GEMINI_API_KEY")),
		GeminiModel:           envOr("COVERCALL_GEMINI_MODEL", "gemini-2.5-flash"),
		EmbeddingModel:        envOr("COVERCALL_EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDims:         envIntOr("COVERCALL_EMBEDDING_DIMS", 768),
		PineconeAPIKey:        strings.TrimSpace(os.Getenv("COVERCALL_PINECONE_API_KEY")),
		PineconeHost:          strings.TrimSpace(os.Getenv("COVERCALL_PINECONE_HOST")),
		Partitions:            splitCSV(os.Getenv("COVERCALL_KB_PARTITIONS")),
		DatabaseURL:           strings.TrimSpace(os.Getenv("COVERCALL_DATABASE_URL")),
		TriggerBytes:          envIntOr("COVERCALL_AUDIO_TRIGGER_BYTES", engine.DefaultTriggerBytes),
		GatedCeilingBytes:     envIntOr("COVERCALL_AUDIO_GATED_CEILING_BYTES", engine.DefaultGatedCeilingBytes),
		PartitionTopK:         envIntOr("COVERCALL_KB_PARTITION_TOP_K", engine.DefaultPartitionTopK),
		MergeTopK:             envIntOr("COVERCALL_KB_MERGE_TOP_K", engine.DefaultMergeTopK),
		ContextWindow:         envIntOr("COVERCALL_CONTEXT_WINDOW", engine.DefaultContextWindow),
		PartitionQueryTimeout: envDurationOr("COVERCALL_KB_QUERY_TIMEOUT", engine.DefaultPartitionQueryTimeout),
		TranscribeTimeout:     envDurationOr("COVERCALL_TRANSCRIBE_TIMEOUT", engine.DefaultTranscribeTimeout),
		SuggestionTimeout:     envDurationOr("COVERCALL_SUGGESTION_TIMEOUT", engine.DefaultSuggestionTimeout),
		WSMaxMessageBytes:     envInt64Or("COVERCALL_WS_MAX_MESSAGE_BYTES", 1<<20), // 1 MiB
		WSWriteTimeout:        envDurationOr("COVERCALL_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:     envDurationOr("COVERCALL_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:   envDurationOr("COVERCALL_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}
	if len(cfg.Partitions) == 0 {
		cfg.Partitions = engine.DefaultPartitions
	}

	for _, origin := range splitCSV(os.Getenv("COVERCALL_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.EmbeddingDims <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_EMBEDDING_DIMS must be > 0")
	}
	if cfg.TriggerBytes <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_AUDIO_TRIGGER_BYTES must be > 0")
	}
	if cfg.GatedCeilingBytes < cfg.TriggerBytes {
		return Config{}, fmt.Errorf("COVERCALL_AUDIO_GATED_CEILING_BYTES must be >= COVERCALL_AUDIO_TRIGGER_BYTES")
	}
	if cfg.PartitionTopK <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_KB_PARTITION_TOP_K must be > 0")
	}
	if cfg.MergeTopK <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_KB_MERGE_TOP_K must be > 0")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_CONTEXT_WINDOW must be > 0")
	}
	if cfg.PartitionQueryTimeout <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_KB_QUERY_TIMEOUT must be > 0")
	}
	if cfg.TranscribeTimeout <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_TRANSCRIBE_TIMEOUT must be > 0")
	}
	if cfg.SuggestionTimeout <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_SUGGESTION_TIMEOUT must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("COVERCALL_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.PineconeAPIKey != "" && cfg.PineconeHost == "" {
		return Config{}, fmt.Errorf("COVERCALL_PINECONE_HOST must be set when COVERCALL_PINECONE_API_KEY is set")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
