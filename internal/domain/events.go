package domain

import "time"

// EventType represents the type of progress event
type EventType string

const (
	EventBatchStart       EventType = "batch_start"
	EventDocumentStart    EventType = "document_start"
	EventRouted           EventType = "routed"
	EventPagesProgress    EventType = "pages_progress"
	EventSliceRetry       EventType = "slice_retry"
	EventDocumentComplete EventType = "document_complete"
	EventBatchComplete    EventType = "batch_complete"
)

// Event is emitted by the orchestrator while a batch runs.
type Event struct {
	Type      EventType       `json:"type"`
	Document  string          `json:"document,omitempty"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Done      int             `json:"done,omitempty"`
	Pages     int             `json:"pages,omitempty"`
	Engine    string          `json:"engine,omitempty"`
	Status    StatusCode      `json:"status"`
	Payload   string          `json:"payload,omitempty"`
	Result    *DocumentResult `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}
