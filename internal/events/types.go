package events

import "time"

// EventType identifies the kind of event broadcast to clients.
type EventType string

const (
	// EventTypeProgress reports encoding pipeline progress.
	EventTypeProgress EventType = "encode_progress"
	// EventTypeJobDone reports a finished encoding job.
	EventTypeJobDone EventType = "encode_done"
	// EventTypeConnection reports client connect/disconnect.
	EventTypeConnection EventType = "connection"
)

// Event is the envelope sent to connected clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ProgressEvent reports progress of one column encoding job.
type ProgressEvent struct {
	Column       string  `json:"column"`
	Checkpoint   string  `json:"checkpoint"`
	RowsEncoded  int64   `json:"rows_encoded"`
	RowsTotal    int64   `json:"rows_total"`
	RowsPerSec   float64 `json:"rows_per_sec"`
	CacheHits    int64   `json:"cache_hits"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}

// JobDoneEvent reports the outcome of a finished encoding job.
type JobDoneEvent struct {
	Column      string `json:"column"`
	Checkpoint  string `json:"checkpoint"`
	RowsEncoded int64  `json:"rows_encoded"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error,omitempty"`
}

// ConnectionEvent reports client connect/disconnect.
type ConnectionEvent struct {
	Action   string `json:"action"`
	ClientID string `json:"client_id"`
}
