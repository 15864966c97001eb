// Package llmcall records classification oracle calls for traceability.
// Every call is stored with its prompt hash, response and metrics.
package llmcall

import (
	"crypto/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/jackzampolin/semtag/internal/providers"
	"github.com/jackzampolin/semtag/internal/store"
)

// MaxResponseBytes caps the stored response body.
const MaxResponseBytes = 8 << 10

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	JobID      string
	PromptHash string
	BatchSize  int
	// Err is the transport or parse error, if any. It wins over the
	// result's own error message.
	Err error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-ordered call id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// FromChatResult creates a call record from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *store.LLMCall {
	if result == nil {
		return nil
	}

	call := &store.LLMCall{
		ID:           NewID(),
		JobID:        opts.JobID,
		Timestamp:    time.Now().UTC(),
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		PromptHash:   opts.PromptHash,
		BatchSize:    opts.BatchSize,
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		Success:      result.Success && opts.Err == nil,
		Response:     truncate(result.Content, MaxResponseBytes),
	}
	switch {
	case opts.Err != nil:
		call.Error = opts.Err.Error()
	case !result.Success:
		call.Error = result.ErrorMessage
	}
	return call
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
