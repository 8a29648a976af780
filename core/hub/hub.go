package hub

import (
	"context"
	"strconv"
	"sync"
	"time"

	"songforge/logger"
	"songforge/model"
)

// UserKey is the subscription key for every job of one user.
func UserKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// Broadcaster is what job producers need from the hub.
type Broadcaster interface {
	Broadcast(msg model.ProgressMessage)
}

// Hub fans progress messages out to websocket clients, keyed by job id
// or by owner (UserKey).
type Hub struct {
	// 按 jobID 分组的客户端
	clients map[string]map[*Client]bool

	broadcast  chan model.ProgressMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub; Run must be started before it delivers anything.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan model.ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is done, closing every
// client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for jobID, clients := range h.clients {
				for c := range clients {
					close(c.send)
				}
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.jobID] == nil {
				h.clients[c.jobID] = make(map[*Client]bool)
			}
			h.clients[c.jobID][c] = true
			h.mu.Unlock()
			logger.Debug("[Hub] 客户端已连接", logger.String("jobId", c.jobID))

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()
			logger.Debug("[Hub] 客户端已断开", logger.String("jobId", c.jobID))

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.deliver(msg.JobID, msg)
			if msg.UserID != 0 {
				h.deliver(UserKey(msg.UserID), msg)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends msg to one subscriber group; slow clients are dropped.
func (h *Hub) deliver(key string, msg model.ProgressMessage) {
	for c := range h.clients[key] {
		select {
		case c.send <- msg:
		default:
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.clients[c.jobID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, c.jobID)
	}
}

// Broadcast queues msg for delivery. It never blocks; a full queue drops it.
func (h *Hub) Broadcast(msg model.ProgressMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("[Hub] 广播队列已满，丢弃消息", logger.String("jobId", msg.JobID), logger.String("type", msg.Type))
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribers returns the number of clients watching jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}
