// Package worker is the service-worker analog: it holds the process-scoped
// state the browser worker kept in memory (the offline sync queue and the
// notification timer map) and talks to connected clients over a websocket
// message channel.
//
// All of this state is owned by the running process and reinitialized on
// restart. Unfired notification timers and unprocessed queue items are lost
// when the process dies; clients needing durability must persist their own
// schedule state.
package worker

import (
	"context"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// Message types exchanged with clients.
const (
	// Inbound.
	MsgQueueSync            = "QUEUE_SYNC"
	MsgScheduleNotification = "SCHEDULE_NOTIFICATION"

	// Outbound.
	MsgSyncComplete      = "SYNC_COMPLETE"
	MsgNotificationShown = "NOTIFICATION_SHOWN"
)

// clientMessage is the envelope for inbound client frames.
type clientMessage struct {
	Type         string               `json:"type"`
	Queue        []domain.SyncItem    `json:"queue,omitempty"`
	Online       bool                 `json:"online,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// syncCompleteMessage notifies clients that queue processing finished.
type syncCompleteMessage struct {
	Type   string `json:"type"`
	Failed int    `json:"failed"`
}

// notificationShownMessage notifies clients that a reminder fired.
type notificationShownMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Broadcaster fans a message out to all connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg any)
}
