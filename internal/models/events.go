package models

import "time"

// Event types
const (
	EventTypeDocumentChanged = "DOCUMENT_CHANGED"
)

// Document operations carried by change events
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentChangedEvent published after every committed store mutation
type DocumentChangedEvent struct {
	BaseEvent
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Operation  string `json:"operation"`
}
