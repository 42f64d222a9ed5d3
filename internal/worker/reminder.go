package worker

import (
	"context"
	"log/slog"
	"time"
)

// dailyReminder is the static reminder broadcast by the periodic loop.
var dailyReminder = notificationShownMessage{
	Type:  MsgNotificationShown,
	ID:    "daily-reminder",
	Title: "Daily check-in",
	Body:  "Review your habits and check off today's tasks.",
}

// StartReminderWorker runs a background goroutine that broadcasts a static
// daily reminder on the given interval. Best-effort: clients that are not
// connected when it fires simply miss it.
func StartReminderWorker(ctx context.Context, notify Broadcaster, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Reminder worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				notify.Broadcast(ctx, dailyReminder)
				slog.Info("Daily reminder broadcast", "id", dailyReminder.ID)
			case <-ctx.Done():
				slog.Info("Reminder worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
