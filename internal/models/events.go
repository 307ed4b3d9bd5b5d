package models

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeQuoteCompleted = "QUOTE_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QuoteCompletedEvent is published after a quote response has been returned
// to the caller. It carries the full request/response pair for the audit log.
type QuoteCompletedEvent struct {
	BaseEvent
	RequestID    string          `json:"request_id"`
	Stores       []string        `json:"stores"`
	PostcodeArea string          `json:"postcode_area,omitempty"`
	Request      json.RawMessage `json:"request"`
	Response     json.RawMessage `json:"response"`
}
