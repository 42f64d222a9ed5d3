package domain

import (
	"encoding/json"
	"time"
)

// SyncItem is one buffered offline mutation waiting for replay against the
// REST API.
type SyncItem struct {
	ID     string          `json:"id,omitempty"`
	URL    string          `json:"url"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Notification is a locally scheduled reminder.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
