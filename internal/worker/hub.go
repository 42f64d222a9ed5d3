package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Hub is the websocket message channel between clients and the worker
// subsystem. Clients post QUEUE_SYNC and SCHEDULE_NOTIFICATION frames; the
// worker broadcasts SYNC_COMPLETE and NOTIFICATION_SHOWN to every
// connected client.
type Hub struct {
	queue     *SyncQueue
	scheduler *Scheduler

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates a Hub. Wire the queue and scheduler afterwards with
// SetQueue/SetScheduler; both need the hub as their broadcaster.
func NewHub() *Hub {
	return &Hub{
		clients: map[*websocket.Conn]struct{}{},
	}
}

// SetQueue attaches the sync queue handling QUEUE_SYNC frames.
func (h *Hub) SetQueue(q *SyncQueue) {
	h.queue = q
}

// SetScheduler attaches the scheduler handling SCHEDULE_NOTIFICATION frames.
func (h *Hub) SetScheduler(s *Scheduler) {
	h.scheduler = s
}

// ServeHTTP upgrades the connection and runs the client read loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept worker websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "bye"); closeErr != nil {
			slog.Debug("Failed to close worker websocket", "error", closeErr)
		}
	}()

	h.register(ws)
	defer h.unregister(ws)
	slog.Info("Worker client connected", "ip", r.RemoteAddr)

	ctx := r.Context()
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			slog.Debug("Worker client disconnected", "error", err)
			return
		}
		h.dispatch(ctx, msg)
	}
}

func (h *Hub) dispatch(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case MsgQueueSync:
		if h.queue == nil {
			return
		}
		h.queue.Replace(msg.Queue)
		// When the client reports being online there is no reason to wait
		// for a background trigger: process immediately.
		if msg.Online {
			go func() {
				pctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				h.queue.Process(pctx)
			}()
		}
	case MsgScheduleNotification:
		if h.scheduler == nil || msg.Notification == nil {
			return
		}
		h.scheduler.Schedule(*msg.Notification)
	default:
		slog.Warn("Unknown worker message type", "type", msg.Type)
	}
}

// Broadcast sends a JSON frame to every connected client. Write failures
// only drop that client's frame; the connection is reaped by its own read
// loop.
func (h *Hub) Broadcast(ctx context.Context, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode broadcast", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for ws := range h.clients {
		conns = append(conns, ws)
	}
	h.mu.Unlock()

	for _, ws := range conns {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := ws.Write(wctx, websocket.MessageText, data); err != nil {
			slog.Debug("Broadcast write failed", "error", err)
		}
		cancel()
	}
}

func (h *Hub) register(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ws] = struct{}{}
}

func (h *Hub) unregister(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ws)
}
