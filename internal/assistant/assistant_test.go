package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

func TestRulePriorityOrder(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")
	doc.Streak("meditation").Mark("2026-08-25")

	// "streak" outranks "task" even when both keywords appear.
	reply := r.Respond(doc, "how is my streak on that task going?")
	if !strings.Contains(reply, "streak") {
		t.Errorf("Expected streak branch to win, got %q", reply)
	}
}

func TestStreakResponseUsesDocumentState(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")
	rec := doc.Streak("reading")
	rec.Mark("2026-08-23")
	rec.Mark("2026-08-24")
	rec.Mark("2026-08-25")

	reply := r.Respond(doc, "what's my best streak?")
	if !strings.Contains(reply, "3 day(s)") || !strings.Contains(reply, "reading") {
		t.Errorf("Expected 3-day reading streak in reply, got %q", reply)
	}
}

func TestStudyResponseCountsDueTopics(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")
	doc.StudyTopics = []map[string]any{
		{"id": "sr-1", "name": "go", "nextReview": time.Now().Add(-time.Hour).Format(time.RFC3339)},
		{"id": "sr-2", "name": "sql", "nextReview": time.Now().Add(48 * time.Hour).Format(time.RFC3339)},
	}

	reply := r.Respond(doc, "anything to study today?")
	if !strings.Contains(reply, "1 of 2") {
		t.Errorf("Expected 1 of 2 topics due, got %q", reply)
	}
}

func TestTaskResponse(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")
	doc.Tasks["a"] = true
	doc.Tasks["b"] = false
	doc.Tasks["c"] = false

	reply := r.Respond(doc, "what tasks are left?")
	if !strings.Contains(reply, "2 open task(s)") {
		t.Errorf("Expected 2 open tasks, got %q", reply)
	}
}

func TestGreetingMatchesWholeWordOnly(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")

	if reply := r.Respond(doc, "hi there"); !strings.Contains(reply, "Hey!") {
		t.Errorf("Expected greeting for 'hi there', got %q", reply)
	}
	// "hi" inside another word must not trigger the greeting branch.
	if reply := r.Respond(doc, "think about everything"); strings.Contains(reply, "Hey!") {
		t.Errorf("Greeting must not match substrings, got %q", reply)
	}
}

func TestFallback(t *testing.T) {
	r := New()
	doc := domain.NewDocument("alice")

	reply := r.Respond(doc, "what is the weather like?")
	if !strings.Contains(reply, "not sure") {
		t.Errorf("Expected fallback reply, got %q", reply)
	}
}
