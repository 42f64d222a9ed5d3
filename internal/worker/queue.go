package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/cyprianokoli/life-os-dashboard/internal/domain"
)

// SyncQueue buffers offline client mutations for replay against the REST
// API. The client owns the queue contents: every QUEUE_SYNC message
// replaces the queue wholesale. Processing keeps only the failed subset,
// in original relative order, for the next trigger.
//
// Delivery is at-least-once: an item that succeeded remotely but whose
// completion notice was lost can be queued and replayed again.
type SyncQueue struct {
	apiBase string
	client  *http.Client
	notify  Broadcaster

	mu    sync.Mutex
	items []domain.SyncItem
}

// NewSyncQueue creates a queue replaying items against apiBase.
func NewSyncQueue(apiBase string, notify Broadcaster) *SyncQueue {
	return &SyncQueue{
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		notify:  notify,
	}
}

// Replace swaps the queue contents wholesale. Items without an id get one
// minted so retries are traceable in logs.
func (q *SyncQueue) Replace(items []domain.SyncItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = xid.New().String()
		}
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	slog.Info("Sync queue replaced", "items", len(items))
}

// Items returns a snapshot of the pending queue.
func (q *SyncQueue) Items() []domain.SyncItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make([]domain.SyncItem, len(q.items))
	copy(snapshot, q.items)
	return snapshot
}

// Process replays every pending item in order. Items that fail (transport
// error or non-2xx response) are retained as the new queue, preserving
// their original relative order; successes are dropped. All connected
// clients are then told how many items failed. Returns the failure count.
func (q *SyncQueue) Process(ctx context.Context) int {
	pending := q.Items()
	if len(pending) == 0 {
		return 0
	}

	var failed []domain.SyncItem
	for _, item := range pending {
		if err := q.send(ctx, item); err != nil {
			slog.Warn("Sync item failed", "id", item.ID, "url", item.URL, "error", err)
			failed = append(failed, item)
		}
	}

	q.mu.Lock()
	q.items = failed
	q.mu.Unlock()

	slog.Info("Sync queue processed", "total", len(pending), "failed", len(failed))
	q.notify.Broadcast(ctx, syncCompleteMessage{Type: MsgSyncComplete, Failed: len(failed)})
	return len(failed)
}

// send replays a single item. Relative URLs are resolved against the
// configured API base.
func (q *SyncQueue) send(ctx context.Context, item domain.SyncItem) error {
	target := item.URL
	if strings.HasPrefix(target, "/") {
		target = q.apiBase + target
	}

	method := item.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(item.Data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close sync response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote returned %d", resp.StatusCode)
	}
	return nil
}
