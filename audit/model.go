// api/audit/model.go
package audit

import "time"

// EventUpstreamFetch is the event-bus topic for completed upstream fetches.
const EventUpstreamFetch = "upstream.fetch"

// FetchRecord is one upstream fetch as indexed in the audit trail.
type FetchRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	ResourceKey string    `json:"resource_key"`
	Kind        string    `json:"kind"`
	Refresh     bool      `json:"refresh"`
	DurationMs  int64     `json:"duration_ms"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}
