// Package usage tracks the last rate-limit signal seen on downstream
// responses so GET /v1/usage can report it without spending a provider call.
package usage

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Snapshot is the most recent rate-limit information from the provider.
type Snapshot struct {
	Remaining  *int      `json:"remaining,omitempty"`
	Limit      *int      `json:"limit,omitempty"`
	ResetAt    *string   `json:"reset_at,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Tracker holds the latest snapshot. Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	last *Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordFromResponse extracts rate-limit headers from a downstream response
// and stores them. Responses without rate-limit headers are ignored.
func (t *Tracker) RecordFromResponse(headers http.Header) {
	if headers == nil {
		return
	}
	snap := parseHeaders(headers)
	if snap == nil {
		return
	}
	t.mu.Lock()
	t.last = snap
	t.mu.Unlock()
}

// Last returns the most recent snapshot, or nil if none was recorded yet.
func (t *Tracker) Last() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func parseHeaders(headers http.Header) *Snapshot {
	remaining := intHeader(headers, "x-ratelimit-remaining")
	limit := intHeader(headers, "x-ratelimit-limit")
	var resetAt *string
	if v := headers.Get("x-ratelimit-reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			s := time.Unix(secs, 0).UTC().Format(time.RFC3339)
			resetAt = &s
		}
	}
	if remaining == nil && limit == nil && resetAt == nil {
		return nil
	}
	return &Snapshot{
		Remaining:  remaining,
		Limit:      limit,
		ResetAt:    resetAt,
		CapturedAt: time.Now().UTC(),
	}
}

func intHeader(headers http.Header, key string) *int {
	v := headers.Get(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &i
}
