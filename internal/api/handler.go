// Package api provides HTTP handlers for the dashboard REST API.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/cyprianokoli/life-os-dashboard/internal/assistant"
	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
	"github.com/cyprianokoli/life-os-dashboard/internal/store"
)

// chatHistoryLimit is how many messages GET /api/ai/chat returns.
const chatHistoryLimit = 20

// Handler serves the dashboard REST API for the single configured user.
//
// Every mutating endpoint follows the same read-modify-write shape against
// the store: load the full document, apply the change, stamp updatedAt,
// persist the whole document. There is no request-level locking; concurrent
// writers race and the last full-document write wins.
type Handler struct {
	repo      store.Store
	responder *assistant.Responder
	userID    string
}

// NewHandler creates a Handler bound to the given user.
func NewHandler(repo store.Store, responder *assistant.Responder, userID string) *Handler {
	return &Handler{
		repo:      repo,
		responder: responder,
		userID:    userID,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/data", h.GetData)
		r.Post("/tasks", h.UpdateTasks)
		r.Post("/journal", h.AddJournalEntry)
		r.Post("/study-topics", h.AddStudyTopic)
		r.Put("/study-topics/{id}", h.UpdateStudyTopic)
		r.Post("/streaks", h.RecordStreak)
		r.Post("/study-sessions", h.AddStudySession)
		r.Post("/ai", h.Chat)
		r.Get("/ai/chat", h.ChatHistory)
		r.Post("/sync", h.Sync)
		r.Get("/backup", h.Backup)
		r.Post("/restore", h.Restore)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Health reports service liveness.
//
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetData returns the full document. The document is created lazily: a
// first read for a user with no persisted state returns a fresh default.
//
// GET /api/data
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	JSON(w, http.StatusOK, doc)
}

// UpdateTasks merge-replaces the tasks mapping: shallow key union with new
// values overwriting existing ones.
//
// POST /api/tasks {"tasks": {"task-1": true}}
func (h *Handler) UpdateTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks map[string]bool `json:"tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	for id, completed := range req.Tasks {
		doc.Tasks[id] = completed
	}
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "tasks": doc.Tasks})
}

// AddJournalEntry prepends a new journal entry with a freshly minted
// time-derived id. Entries are immutable once created.
//
// POST /api/journal {"text": "..."}
func (h *Handler) AddJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	now := time.Now().UTC()
	entry := domain.JournalEntry{
		ID:   strconv.FormatInt(now.UnixMilli(), 10),
		Text: req.Text,
		Date: now,
	}
	doc.Journal = append([]domain.JournalEntry{entry}, doc.Journal...)
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusCreated, entry)
}

// AddStudyTopic appends a study topic. Fields are free-form; the server
// only mints the id and createdAt.
//
// POST /api/study-topics {...}
func (h *Handler) AddStudyTopic(w http.ResponseWriter, r *http.Request) {
	var topic map[string]any
	if err := json.NewDecoder(r.Body).Decode(&topic); err != nil || topic == nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	now := time.Now().UTC()
	topic["id"] = fmt.Sprintf("sr-%d", now.UnixMilli())
	topic["createdAt"] = now.Format(time.RFC3339)
	doc.StudyTopics = append(doc.StudyTopics, topic)
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusCreated, topic)
}

// UpdateStudyTopic partially updates a study topic by id: supplied fields
// are shallow-merged over the existing ones. The id itself is immutable.
//
// PUT /api/study-topics/{id}
func (h *Handler) UpdateStudyTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil || updates == nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	var topic map[string]any
	for _, t := range doc.StudyTopics {
		if t["id"] == id {
			topic = t
			break
		}
	}
	if topic == nil {
		Error(w, http.StatusNotFound, "Topic not found")
		return
	}

	for k, v := range updates {
		if k == "id" {
			continue
		}
		topic[k] = v
	}
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, topic)
}

// RecordStreak marks the given date (default: today) as completed for a
// habit, creating the streak bucket if needed. Current is bumped only when
// the date was newly marked; it is never recomputed from history.
//
// POST /api/streaks {"type": "meditation", "date": "2026-08-25"}
func (h *Handler) RecordStreak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		Error(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	rec := doc.Streak(req.Type)
	rec.Mark(req.Date)
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, map[string]any{"type": req.Type, "streak": rec})
}

// AddStudySession appends a study session record. Fields are free-form;
// the server stamps the timestamp and generates an id when absent.
//
// POST /api/study-sessions {...}
func (h *Handler) AddStudySession(w http.ResponseWriter, r *http.Request) {
	var session map[string]any
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil || session == nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	if _, ok := session["id"]; !ok {
		session["id"] = xid.New().String()
	}
	session["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	doc.StudySessions = append(doc.StudySessions, session)
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusCreated, session)
}

// Chat runs the keyword assistant against the message and document state,
// appends both turns to the chat history, and truncates the history to the
// last 50 messages.
//
// POST /api/ai {"message": "..."}
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	reply := h.responder.Respond(doc, req.Message)

	now := time.Now().UTC()
	doc.AppendChat(domain.ChatMessage{Role: "user", Content: req.Message, Timestamp: now})
	doc.AppendChat(domain.ChatMessage{Role: "assistant", Content: reply, Timestamp: now})
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, map[string]string{"response": reply})
}

// ChatHistory returns the most recent chat messages, oldest first.
//
// GET /api/ai/chat
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"messages": doc.RecentChat(chatHistoryLimit)})
}

// syncRequest is the batch-merge payload posted by a client coming back
// online.
type syncRequest struct {
	Tasks   map[string]bool                 `json:"tasks"`
	Journal []domain.JournalEntry           `json:"journal"`
	Streaks map[string]*domain.StreakRecord `json:"streaks"`
}

// Sync batch-merges offline client state into the document: tasks are
// unioned (client values win), unseen journal entries are prepended with
// the journal capped at 100, and streak histories are unioned with current
// resolving to the larger value. Stamps lastSync.
//
// POST /api/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	for id, completed := range req.Tasks {
		doc.Tasks[id] = completed
	}

	if len(req.Journal) > 0 {
		seen := make(map[string]bool, len(doc.Journal))
		for _, e := range doc.Journal {
			seen[e.ID] = true
		}
		var fresh []domain.JournalEntry
		for _, e := range req.Journal {
			if !seen[e.ID] {
				fresh = append(fresh, e)
			}
		}
		doc.Journal = append(fresh, doc.Journal...)
		if len(doc.Journal) > domain.MaxJournalEntries {
			doc.Journal = doc.Journal[:domain.MaxJournalEntries]
		}
	}

	for habitType, incoming := range req.Streaks {
		if incoming == nil {
			continue
		}
		rec := doc.Streak(habitType)
		for date := range incoming.History {
			rec.History[date] = true
		}
		// A stale client must not be able to zero out a streak.
		if incoming.Current > rec.Current {
			rec.Current = incoming.Current
		}
	}

	doc.LastSync = time.Now().UTC()
	doc.Touch()

	if err := h.save(w, r, doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "lastSync": doc.LastSync})
}

// Backup exports the full document as a downloadable snapshot.
//
// GET /api/backup
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Load(r.Context(), h.userID)
	if err != nil {
		slog.Error("Failed to load document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	filename := fmt.Sprintf("dashboard-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	JSON(w, http.StatusOK, doc)
}

// Restore replaces the entire document wholesale from a caller-supplied
// snapshot. The only validation is that the body decodes as a document.
//
// POST /api/restore
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var doc domain.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		Error(w, http.StatusBadRequest, "Invalid backup data")
		return
	}

	if doc.UserID == "" {
		doc.UserID = h.userID
	}
	doc.Normalize()
	doc.RestoredAt = time.Now().UTC()
	doc.Touch()

	if err := h.save(w, r, &doc); err != nil {
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "restoredAt": doc.RestoredAt})
}

// save persists the document, writing the 500 response itself on failure.
// Callers must stop when the returned error is non-nil.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, doc *domain.Document) error {
	if err := h.repo.Save(r.Context(), h.userID, doc); err != nil {
		slog.Error("Failed to save document", "user_id", h.userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save data")
		return err
	}
	return nil
}
