// Package domain contains core domain types for the dashboard.
package domain

import (
	"time"
)

// MaxChatMessages bounds the AI chat history kept on the document.
const MaxChatMessages = 50

// MaxJournalEntries bounds the journal after a batch sync merge.
const MaxJournalEntries = 100

// Document is the single JSON aggregate holding all state for one user.
// It is persisted as a whole; every mutation rewrites the full document.
type Document struct {
	UserID        string                   `json:"userId"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt,omitzero"`
	LastSync      time.Time                `json:"lastSync,omitzero"`
	RestoredAt    time.Time                `json:"restoredAt,omitzero"`
	Tasks         map[string]bool          `json:"tasks"`
	Journal       []JournalEntry           `json:"journal"`
	StudyTopics   []map[string]any         `json:"studyTopics"`
	Streaks       map[string]*StreakRecord `json:"streaks"`
	StudySessions []map[string]any         `json:"studySessions"`
	Settings      map[string]any           `json:"settings"`
	AIChat        []ChatMessage            `json:"aiChat"`
}

// JournalEntry is a dated free-text note. Entries are immutable once created
// and the journal is kept newest-first.
type JournalEntry struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// StreakRecord tracks one habit. History maps completed dates (YYYY-MM-DD)
// to true and only ever grows. Current is maintained incrementally and is
// never recomputed from history server-side.
type StreakRecord struct {
	Current int             `json:"current"`
	History map[string]bool `json:"history"`
}

// ChatMessage is one turn of the AI chat history.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDocument returns a default document for the given user with all
// collections initialized, so the serialized form always carries the full
// set of top-level keys.
func NewDocument(userID string) *Document {
	return &Document{
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
		Tasks:         map[string]bool{},
		Journal:       []JournalEntry{},
		StudyTopics:   []map[string]any{},
		Streaks:       map[string]*StreakRecord{},
		StudySessions: []map[string]any{},
		Settings:      map[string]any{},
		AIChat:        []ChatMessage{},
	}
}

// Normalize ensures all collections are non-nil. Restored backups may omit
// keys; the document invariant is that every collection is present.
func (d *Document) Normalize() {
	if d.Tasks == nil {
		d.Tasks = map[string]bool{}
	}
	if d.Journal == nil {
		d.Journal = []JournalEntry{}
	}
	if d.StudyTopics == nil {
		d.StudyTopics = []map[string]any{}
	}
	if d.Streaks == nil {
		d.Streaks = map[string]*StreakRecord{}
	}
	if d.StudySessions == nil {
		d.StudySessions = []map[string]any{}
	}
	if d.Settings == nil {
		d.Settings = map[string]any{}
	}
	if d.AIChat == nil {
		d.AIChat = []ChatMessage{}
	}
}

// Touch stamps the document as modified.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UTC()
}

// AppendChat appends a chat message and truncates the history to the most
// recent MaxChatMessages entries.
func (d *Document) AppendChat(msg ChatMessage) {
	d.AIChat = append(d.AIChat, msg)
	if len(d.AIChat) > MaxChatMessages {
		d.AIChat = d.AIChat[len(d.AIChat)-MaxChatMessages:]
	}
}

// RecentChat returns the last n chat messages, oldest first.
func (d *Document) RecentChat(n int) []ChatMessage {
	if n >= len(d.AIChat) {
		return d.AIChat
	}
	return d.AIChat[len(d.AIChat)-n:]
}

// Streak returns the streak bucket for the given habit type, creating an
// empty one if needed.
func (d *Document) Streak(habitType string) *StreakRecord {
	rec, ok := d.Streaks[habitType]
	if !ok || rec == nil {
		rec = &StreakRecord{History: map[string]bool{}}
		d.Streaks[habitType] = rec
	}
	if rec.History == nil {
		rec.History = map[string]bool{}
	}
	return rec
}

// Mark records the given date as completed. It returns true if the date was
// not already marked, in which case Current is bumped by one.
func (r *StreakRecord) Mark(date string) bool {
	if r.History[date] {
		return false
	}
	r.History[date] = true
	r.Current++
	return true
}
