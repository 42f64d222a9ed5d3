// Package assistant implements the keyword-matching chat assistant.
//
// Responses are canned: the assistant matches the incoming message against
// an ordered list of rules and builds a reply from the current document
// state. The first rule whose keywords match wins, so rule order is the
// priority order.
package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// rule pairs a keyword set with a response builder. Rules are evaluated in
// order; the first match stops the scan.
type rule struct {
	keywords []string
	respond  func(doc *domain.Document, message string) string
}

// Responder answers chat messages from document state.
type Responder struct {
	rules    []rule
	fallback func(doc *domain.Document, message string) string
}

// New creates a Responder with the default rule set, in priority order:
// health, streak, study, journal, progress, task, greeting.
func New() *Responder {
	return &Responder{
		rules: []rule{
			{keywords: []string{"health", "sleep", "exercise", "workout", "wellness"}, respond: respondHealth},
			{keywords: []string{"streak", "habit", "consistent", "consistency"}, respond: respondStreak},
			{keywords: []string{"study", "review", "learn", "topic", "revise"}, respond: respondStudy},
			{keywords: []string{"journal", "diary", "entry", "wrote"}, respond: respondJournal},
			{keywords: []string{"progress", "summary", "stats", "doing"}, respond: respondProgress},
			{keywords: []string{"task", "todo", "done", "finish"}, respond: respondTasks},
			{keywords: []string{"hello", "hi", "hey", "morning", "evening"}, respond: respondGreeting},
		},
		fallback: respondFallback,
	}
}

// Respond produces a reply for the given message.
func (r *Responder) Respond(doc *domain.Document, message string) string {
	for _, rule := range r.rules {
		if matchesAny(message, rule.keywords) {
			return rule.respond(doc, message)
		}
	}
	return r.fallback(doc, message)
}

// matchesAny reports whether any keyword appears in the message. Short
// keywords must match a whole word so "hi" does not trigger on "this";
// longer keywords also match as a word prefix so "task" covers "tasks".
func matchesAny(message string, keywords []string) bool {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, kw := range keywords {
		for _, w := range words {
			if w == kw {
				return true
			}
			if len(kw) >= 4 && strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}

func respondHealth(doc *domain.Document, _ string) string {
	if len(doc.Streaks) == 0 {
		return "You haven't logged any health habits yet. Start small: pick one habit and check it off today."
	}
	return fmt.Sprintf("You're tracking %d habit(s). Keeping them up daily is the best thing you can do for your health.", len(doc.Streaks))
}

func respondStreak(doc *domain.Document, _ string) string {
	bestType, best := "", 0
	for habitType, rec := range doc.Streaks {
		if rec != nil && rec.Current > best {
			bestType, best = habitType, rec.Current
		}
	}
	if best == 0 {
		return "No active streaks yet. Complete a habit today to start one!"
	}
	return fmt.Sprintf("Your longest streak is %d day(s) on %q. Don't break the chain!", best, bestType)
}

func respondStudy(doc *domain.Document, _ string) string {
	due := 0
	now := time.Now()
	for _, topic := range doc.StudyTopics {
		if t, ok := reviewTime(topic["nextReview"]); ok && !t.After(now) {
			due++
		}
	}
	if len(doc.StudyTopics) == 0 {
		return "You have no study topics yet. Add one and I'll help you keep up with reviews."
	}
	if due == 0 {
		return fmt.Sprintf("All caught up! None of your %d topic(s) are due for review right now.", len(doc.StudyTopics))
	}
	return fmt.Sprintf("You have %d of %d topic(s) due for review. A short session now beats a long one later.", due, len(doc.StudyTopics))
}

func respondJournal(doc *domain.Document, _ string) string {
	if len(doc.Journal) == 0 {
		return "Your journal is empty. Writing a few lines a day is a great way to reflect."
	}
	latest := doc.Journal[0]
	return fmt.Sprintf("You have %d journal entrie(s); the latest is from %s.", len(doc.Journal), latest.Date.Format("Jan 2"))
}

func respondProgress(doc *domain.Document, _ string) string {
	done := 0
	for _, completed := range doc.Tasks {
		if completed {
			done++
		}
	}
	return fmt.Sprintf("Today so far: %d/%d tasks done, %d journal entrie(s), %d study topic(s) tracked.",
		done, len(doc.Tasks), len(doc.Journal), len(doc.StudyTopics))
}

func respondTasks(doc *domain.Document, _ string) string {
	open := 0
	for _, completed := range doc.Tasks {
		if !completed {
			open++
		}
	}
	if open == 0 {
		return "No open tasks. Nice work!"
	}
	return fmt.Sprintf("You have %d open task(s). Pick the smallest one and knock it out.", open)
}

func respondGreeting(_ *domain.Document, _ string) string {
	return "Hey! Ask me about your tasks, streaks, study topics, or journal."
}

func respondFallback(_ *domain.Document, _ string) string {
	return "I'm not sure about that one. Try asking about your tasks, habits, study topics, or progress."
}

// reviewTime interprets a free-form nextReview field. The client may store
// it as an RFC 3339 string or as unix milliseconds.
func reviewTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t, true
		}
	case float64:
		return time.UnixMilli(int64(val)), true
	}
	return time.Time{}, false
}
