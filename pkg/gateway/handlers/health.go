package handlers

import (
	"net/http"

	"github.com/covercall/covercall/pkg/gateway/config"
	"github.com/covercall/covercall/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle

	// Degraded-mode flags surfaced for operators.
	AIEnabled        bool
	RetrievalEnabled bool
	ArchiveEnabled   bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK               bool     `json:"ok"`
		Draining         bool     `json:"draining"`
		AIEnabled        bool     `json:"ai_enabled"`
		RetrievalEnabled bool     `json:"retrieval_enabled"`
		ArchiveEnabled   bool     `json:"archive_enabled"`
		Issues           []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	if h.Config.TriggerBytes <= 0 {
		issues = append(issues, "audio trigger bytes must be > 0")
	}
	if h.Config.GatedCeilingBytes < h.Config.TriggerBytes {
		issues = append(issues, "gated ceiling must be >= trigger bytes")
	}
	if len(h.Config.Partitions) == 0 {
		issues = append(issues, "no knowledge base partitions configured")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ShutdownGracePeriod <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, readyResp{
		OK:               ok,
		Draining:         draining,
		AIEnabled:        h.AIEnabled,
		RetrievalEnabled: h.RetrievalEnabled,
		ArchiveEnabled:   h.ArchiveEnabled,
		Issues:           issues,
	})
}
