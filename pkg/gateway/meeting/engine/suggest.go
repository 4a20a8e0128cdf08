package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/covercall/covercall/pkg/gateway/metrics"
	"github.com/covercall/covercall/pkg/gateway/meeting/protocol"
)

// EscalationMessage is broadcast instead of a model answer when retrieval
// produced no usable sources. The compliance gate never lets the model
// answer without verified context.
const EscalationMessage = "NO VERIFIED SOURCES FOUND. ESCALATE OR VERIFY MANUALLY."

const suggestionSystemPrompt = `You are a compliance-first AI assistant supporting a licensed insurance agent on a live sales call.

RULES:
1. Use ONLY the retrieved context provided below. Never invent facts, plan details, or figures.
2. Every claim must carry an inline citation to its numbered source, e.g. [1].
3. Reply with at most two short bullet points.
4. If the context is missing or insufficient, reply exactly: "` + EscalationMessage + `"`

// RequestSuggestion starts an asynchronous citation-backed suggestion for
// the given utterance. A newer request for the same meeting and user
// supersedes an in-flight one; superseded results are discarded unseen.
func (e *Engine) RequestSuggestion(meetingID, userID, text string) {
	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		e.logger.Debug("suggestion request for unknown meeting", "meeting_id", meetingID)
		return
	}
	m.suggestSeq[userID]++
	seq := m.suggestSeq[userID]
	convContext := conversationContextLocked(m, e.cfg.ContextWindow)
	e.mu.Unlock()

	e.archiveTranscript(meetingID, userID, "customer", text)

	e.bg.Add(1)
	go e.generateSuggestion(meetingID, userID, text, convContext, seq)
}

// conversationContextLocked renders the last window of transcript entries as
// "speaker: text" lines in chronological order.
func conversationContextLocked(m *meeting, window int) string {
	entries := m.transcript
	if len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	lines := make([]string, 0, len(entries))
	for _, en := range entries {
		lines = append(lines, en.UserID+": "+en.Text)
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) generateSuggestion(meetingID, userID, text, convContext string, seq uint64) {
	defer e.bg.Done()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SuggestionTimeout)
	defer cancel()

	merged := e.retrieve(ctx, text)
	if len(merged) == 0 {
		e.finishSuggestion(meetingID, userID, seq, start, EscalationMessage, text, nil)
		return
	}

	sources := citations(merged)
	suggestion, err := e.generate(ctx, text, convContext, merged)
	if err != nil {
		e.logger.Warn("suggestion generation failed", "meeting_id", meetingID, "error", err)
		e.finishSuggestion(meetingID, userID, seq, start, EscalationMessage, text, sources)
		return
	}
	e.finishSuggestion(meetingID, userID, seq, start, suggestion, text, sources)
}

// retrieve embeds the utterance and fans out one similarity query per
// knowledge-base partition in parallel, merging the results into a ranked
// shortlist. A failed or slow partition contributes nothing; it never fails
// the request.
func (e *Engine) retrieve(ctx context.Context, text string) []Match {
	if e.co.Embedder == nil || e.co.Searcher == nil {
		return nil
	}
	vector, err := e.co.Embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("query embedding failed", "error", err)
		return nil
	}

	perPartition := make([][]Match, len(e.cfg.Partitions))
	var wg sync.WaitGroup
	for i, partition := range e.cfg.Partitions {
		wg.Add(1)
		go func(i int, partition string) {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, e.cfg.PartitionQueryTimeout)
			defer cancel()
			matches, err := e.co.Searcher.Query(qctx, vector, partition, e.cfg.PartitionTopK)
			if err != nil {
				metrics.RecordPartitionQueryFailure(partition)
				e.logger.Warn("partition query failed", "partition", partition, "error", err)
				return
			}
			for j := range matches {
				matches[j].Partition = partition
			}
			perPartition[i] = matches
		}(i, partition)
	}
	wg.Wait()

	return mergeMatches(perPartition, e.cfg.MergeTopK)
}

// mergeMatches flattens per-partition results in partition order and keeps
// the topK highest-scoring matches. The sort is stable, so equal scores keep
// arrival order.
func mergeMatches(perPartition [][]Match, topK int) []Match {
	var merged []Match
	for _, matches := range perPartition {
		merged = append(merged, matches...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

func citationFor(m Match) string {
	switch {
	case m.Citation != "":
		return m.Citation
	case m.Filename != "":
		return m.Filename
	default:
		return "Unknown Source"
	}
}

func citations(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, citationFor(m))
	}
	return out
}

// formatContext renders the shortlist as numbered citation blocks.
func formatContext(matches []Match) string {
	if len(matches) == 0 {
		return "No relevant documents found."
	}
	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		blocks = append(blocks, fmt.Sprintf("[%d] Source: %s\n%s", i+1, citationFor(m), m.Text))
	}
	return strings.Join(blocks, "\n---\n")
}

func (e *Engine) generate(ctx context.Context, text, convContext string, matches []Match) (string, error) {
	if e.co.Generator == nil {
		return "", errors.New("generator not configured")
	}
	user := fmt.Sprintf(
		"Retrieved context:\n%s\n\nConversation so far:\n%s\n\nCustomer just said: %q\n\nProvide a short suggestion for the agent:",
		formatContext(matches), convContext, text,
	)
	return e.co.Generator.Generate(ctx, suggestionSystemPrompt, user)
}

// finishSuggestion broadcasts the outcome to admin participants unless a
// newer request for the same user has superseded this one.
func (e *Engine) finishSuggestion(meetingID, userID string, seq uint64, start time.Time, suggestion, relatedTo string, sources []string) {
	e.mu.Lock()
	m := e.meetings[meetingID]
	if m == nil {
		e.mu.Unlock()
		return
	}
	if m.suggestSeq[userID] != seq {
		e.mu.Unlock()
		e.logger.Debug("discarding superseded suggestion", "meeting_id", meetingID, "user_id", userID)
		return
	}
	admins := e.adminTransportsLocked(m)
	e.mu.Unlock()

	metrics.ObserveSuggestionDuration(time.Since(start).Seconds())
	if sources == nil {
		sources = []string{}
	}
	e.deliver(admins, protocol.AISuggestion{
		Type:       protocol.TypeAISuggestion,
		Suggestion: suggestion,
		RelatedTo:  relatedTo,
		Sources:    sources,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	e.archiveTranscript(meetingID, "ai_assistant", "ai", suggestion)
}
