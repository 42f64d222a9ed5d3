package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cyprianokoli/life-os-dashboard/internal/assistant"
	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
	"github.com/cyprianokoli/life-os-dashboard/internal/store"
)

const testUser = "test-user"

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	repo, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	h := NewHandler(repo, assistant.New(), testUser)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getDocument(t *testing.T, r http.Handler) *domain.Document {
	t.Helper()
	w := doJSON(t, r, http.MethodGet, "/api/data", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/data returned %d", w.Code)
	}
	var doc domain.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return &doc
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", got["status"])
	}
}

func TestGetDataReturnsDefaultDocument(t *testing.T) {
	r := newTestRouter(t)

	doc := getDocument(t, r)
	if doc.UserID != testUser {
		t.Errorf("Expected userId %q, got %q", testUser, doc.UserID)
	}
	if doc.Tasks == nil || doc.Journal == nil || doc.AIChat == nil {
		t.Error("Default document must carry all collections")
	}
}

func TestUpdateTasksUnion(t *testing.T) {
	r := newTestRouter(t)

	// Sequence of task merges must equal key-wise union, later values win.
	steps := []map[string]bool{
		{"a": true, "b": false},
		{"b": true, "c": false},
		{"c": true},
	}
	for _, tasks := range steps {
		w := doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{"tasks": tasks})
		if w.Code != http.StatusOK {
			t.Fatalf("POST /api/tasks returned %d: %s", w.Code, w.Body.String())
		}
	}

	doc := getDocument(t, r)
	want := map[string]bool{"a": true, "b": true, "c": true}
	for id, completed := range want {
		if doc.Tasks[id] != completed {
			t.Errorf("Task %q = %v, want %v", id, doc.Tasks[id], completed)
		}
	}
	if len(doc.Tasks) != len(want) {
		t.Errorf("Expected %d tasks, got %d", len(want), len(doc.Tasks))
	}
	if doc.UpdatedAt.IsZero() {
		t.Error("Mutating endpoint must stamp updatedAt")
	}
}

func TestJournalNewestFirst(t *testing.T) {
	r := newTestRouter(t)

	for _, text := range []string{"first", "second", "third"} {
		w := doJSON(t, r, http.MethodPost, "/api/journal", map[string]string{"text": text})
		if w.Code != http.StatusCreated {
			t.Fatalf("POST /api/journal returned %d", w.Code)
		}
	}

	doc := getDocument(t, r)
	if len(doc.Journal) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(doc.Journal))
	}
	if doc.Journal[0].Text != "third" || doc.Journal[2].Text != "first" {
		t.Errorf("Journal must be newest-first, got %+v", doc.Journal)
	}
	for _, e := range doc.Journal {
		if e.ID == "" {
			t.Error("Journal entries must get a minted id")
		}
	}
}

func TestJournalRequiresText(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/journal", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty text, got %d", w.Code)
	}
}

func TestAddStudyTopicMintsID(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/study-topics", map[string]any{"name": "goroutines", "interval": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/study-topics returned %d", w.Code)
	}

	var topic map[string]any
	if err := json.NewDecoder(w.Body).Decode(&topic); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id, _ := topic["id"].(string)
	if !strings.HasPrefix(id, "sr-") {
		t.Errorf("Expected sr- prefixed id, got %q", id)
	}
	if topic["createdAt"] == nil {
		t.Error("Expected createdAt to be stamped")
	}
	if topic["name"] != "goroutines" {
		t.Error("Caller-supplied fields must be preserved")
	}
}

func TestUpdateStudyTopicPartialMerge(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/study-topics", map[string]any{"name": "sql", "interval": 1})
	var topic map[string]any
	if err := json.NewDecoder(w.Body).Decode(&topic); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := topic["id"].(string)

	w = doJSON(t, r, http.MethodPut, "/api/study-topics/"+id,
		map[string]any{"interval": 3, "nextReview": "2026-09-01T00:00:00Z"})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT returned %d: %s", w.Code, w.Body.String())
	}

	doc := getDocument(t, r)
	got := doc.StudyTopics[0]
	if got["interval"] != float64(3) {
		t.Errorf("Expected interval 3, got %v", got["interval"])
	}
	if got["name"] != "sql" {
		t.Error("Fields not in the update must be untouched")
	}
	if got["id"] != id {
		t.Error("Topic id must be immutable")
	}
}

func TestUpdateStudyTopicNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/study-topics/sr-999", map[string]any{"interval": 3})
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "Topic not found" {
		t.Errorf("Expected 'Topic not found', got %q", got["error"])
	}

	// The document must be left unchanged.
	doc := getDocument(t, r)
	if len(doc.StudyTopics) != 0 {
		t.Error("Failed update must not modify the document")
	}
}

func TestRecordStreak(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/streaks",
			map[string]string{"type": "meditation", "date": "2026-08-25"})
		if w.Code != http.StatusOK {
			t.Fatalf("POST /api/streaks returned %d", w.Code)
		}
	}
	w := doJSON(t, r, http.MethodPost, "/api/streaks",
		map[string]string{"type": "meditation", "date": "2026-08-26"})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/streaks returned %d", w.Code)
	}

	doc := getDocument(t, r)
	rec := doc.Streaks["meditation"]
	if rec == nil {
		t.Fatal("Expected meditation streak bucket")
	}
	// Same-date repeat must not double-increment.
	if rec.Current != 2 {
		t.Errorf("Expected current 2, got %d", rec.Current)
	}
	if !rec.History["2026-08-25"] || !rec.History["2026-08-26"] {
		t.Errorf("Expected both dates in history, got %v", rec.History)
	}
}

func TestRecordStreakRequiresType(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/streaks", map[string]string{"date": "2026-08-25"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without type, got %d", w.Code)
	}
}

func TestAddStudySession(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/study-sessions",
		map[string]any{"topicId": "sr-1", "durationMinutes": 25})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/study-sessions returned %d", w.Code)
	}

	var session map[string]any
	if err := json.NewDecoder(w.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session["id"] == nil || session["id"] == "" {
		t.Error("Expected a generated session id")
	}
	if session["timestamp"] == nil {
		t.Error("Expected a timestamp")
	}

	doc := getDocument(t, r)
	if len(doc.StudySessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(doc.StudySessions))
	}
}

func TestChatAppendsAndCapsHistory(t *testing.T) {
	r := newTestRouter(t)

	// 30 exchanges = 60 messages, history must stay capped at 50.
	for i := 0; i < 30; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/ai",
			map[string]string{"message": fmt.Sprintf("message %d about tasks", i)})
		if w.Code != http.StatusOK {
			t.Fatalf("POST /api/ai returned %d", w.Code)
		}
	}

	doc := getDocument(t, r)
	if len(doc.AIChat) != domain.MaxChatMessages {
		t.Errorf("Expected chat capped at %d, got %d", domain.MaxChatMessages, len(doc.AIChat))
	}
	last := doc.AIChat[len(doc.AIChat)-1]
	if last.Role != "assistant" {
		t.Errorf("Expected assistant reply last, got role %q", last.Role)
	}
}

func TestChatHistoryReturnsLast20(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 15; i++ {
		doJSON(t, r, http.MethodPost, "/api/ai", map[string]string{"message": "hello"})
	}

	w := doJSON(t, r, http.MethodGet, "/api/ai/chat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/ai/chat returned %d", w.Code)
	}
	var got struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Messages) != 20 {
		t.Errorf("Expected 20 messages, got %d", len(got.Messages))
	}
}

func TestSyncBatchMerge(t *testing.T) {
	r := newTestRouter(t)

	// Existing state.
	doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{"tasks": map[string]bool{"a": false}})
	doJSON(t, r, http.MethodPost, "/api/journal", map[string]string{"text": "existing"})
	doJSON(t, r, http.MethodPost, "/api/streaks", map[string]string{"type": "water", "date": "2026-08-24"})

	w := doJSON(t, r, http.MethodPost, "/api/sync", map[string]any{
		"tasks": map[string]bool{"a": true, "b": true},
		"journal": []map[string]any{
			{"id": "offline-1", "text": "written offline", "date": "2026-08-25T08:00:00Z"},
		},
		"streaks": map[string]any{
			"water": map[string]any{"current": 1, "history": map[string]bool{"2026-08-25": true}},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/sync returned %d: %s", w.Code, w.Body.String())
	}

	doc := getDocument(t, r)
	if !doc.Tasks["a"] || !doc.Tasks["b"] {
		t.Errorf("Sync must union tasks with client values winning: %v", doc.Tasks)
	}
	if len(doc.Journal) != 2 || doc.Journal[0].ID != "offline-1" {
		t.Errorf("Sync must prepend new journal entries: %+v", doc.Journal)
	}
	rec := doc.Streaks["water"]
	if !rec.History["2026-08-24"] || !rec.History["2026-08-25"] {
		t.Errorf("Sync must union streak history: %v", rec.History)
	}
	if rec.Current != 1 {
		t.Errorf("Sync must keep the larger current, got %d", rec.Current)
	}
	if doc.LastSync.IsZero() {
		t.Error("Sync must stamp lastSync")
	}
}

func TestSyncJournalDedupAndCap(t *testing.T) {
	r := newTestRouter(t)

	entries := make([]map[string]any, 0, domain.MaxJournalEntries+20)
	for i := 0; i < domain.MaxJournalEntries+20; i++ {
		entries = append(entries, map[string]any{
			"id":   fmt.Sprintf("e-%d", i),
			"text": "bulk",
			"date": "2026-08-25T08:00:00Z",
		})
	}

	// Sync twice with the same payload: no duplicates, capped at 100.
	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/sync", map[string]any{"journal": entries})
		if w.Code != http.StatusOK {
			t.Fatalf("POST /api/sync returned %d", w.Code)
		}
	}

	doc := getDocument(t, r)
	if len(doc.Journal) != domain.MaxJournalEntries {
		t.Errorf("Expected journal capped at %d, got %d", domain.MaxJournalEntries, len(doc.Journal))
	}
	seen := map[string]bool{}
	for _, e := range doc.Journal {
		if seen[e.ID] {
			t.Fatalf("Duplicate journal entry %q after repeated sync", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{"tasks": map[string]bool{"a": true}})
	doJSON(t, r, http.MethodPost, "/api/journal", map[string]string{"text": "keep me"})

	w := doJSON(t, r, http.MethodGet, "/api/backup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/backup returned %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "dashboard-backup-") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}
	backup := w.Body.Bytes()

	// Wipe state by restoring, then restore the original backup.
	var snapshot map[string]any
	if err := json.Unmarshal(backup, &snapshot); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/restore", bytes.NewReader(backup))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("POST /api/restore returned %d: %s", w2.Code, w2.Body.String())
	}

	doc := getDocument(t, r)
	if !doc.Tasks["a"] {
		t.Error("Restored document must contain the backup's tasks")
	}
	if len(doc.Journal) != 1 || doc.Journal[0].Text != "keep me" {
		t.Error("Restored document must contain the backup's journal")
	}
	if doc.RestoredAt.IsZero() {
		t.Error("Restore must stamp restoredAt")
	}
}

func TestRestoreRejectsInvalidBody(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/restore", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "Invalid backup data" {
		t.Errorf("Expected 'Invalid backup data', got %q", got["error"])
	}
}

func TestJSONHelper(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusTeapot, map[string]string{"foo": "bar"})

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}
}
