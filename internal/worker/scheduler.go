package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// Scheduler arms in-process timers for locally scheduled notifications.
// Timers live only as long as the process; there is no persistence of
// pending schedules across restarts.
type Scheduler struct {
	notify Broadcaster

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler(notify Broadcaster) *Scheduler {
	return &Scheduler{
		notify: notify,
		timers: map[string]*time.Timer{},
	}
}

// Schedule arms a timer for the notification. An existing timer with the
// same id is cancelled first. Notifications whose timestamp is already in
// the past are skipped.
func (s *Scheduler) Schedule(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[n.ID]; ok {
		timer.Stop()
		delete(s.timers, n.ID)
	}

	delay := time.Until(n.Timestamp)
	if delay <= 0 {
		slog.Debug("Notification timestamp already passed, skipping", "id", n.ID)
		return
	}

	s.timers[n.ID] = time.AfterFunc(delay, func() {
		s.fire(n)
	})
	slog.Info("Notification scheduled", "id", n.ID, "in", delay.Round(time.Second))
}

// Cancel stops the pending timer for an id, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Pending reports how many timers are currently armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) fire(n domain.Notification) {
	s.mu.Lock()
	delete(s.timers, n.ID)
	s.mu.Unlock()

	slog.Info("Notification fired", "id", n.ID, "title", n.Title)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.notify.Broadcast(ctx, notificationShownMessage{
		Type:  MsgNotificationShown,
		ID:    n.ID,
		Title: n.Title,
		Body:  n.Body,
	})
}
