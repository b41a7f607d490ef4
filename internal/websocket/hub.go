package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	publishQueueSize = 256
	publishTimeout   = 2 * time.Second
)

// clusterMessage is what instances exchange over redis. Origin lets an
// instance skip its own messages, which it already delivered locally.
type clusterMessage struct {
	Origin      string          `json:"origin"`
	WorkspaceId string          `json:"workspace_id"`
	Message     json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients map: WorkspaceID -> List of Clients (multi-tab)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb     *redis.Client
	channel string
	origin  string
	publish chan []byte

	done chan struct{}

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, channel string, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		channel:    channel,
		origin:     uuid.NewString(),
		publish:    make(chan []byte, publishQueueSize),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
		go h.publishToRedis(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			client.registered = true
			h.clients[client.WorkspaceID] = append(h.clients[client.WorkspaceID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"workspace_id": client.WorkspaceID})

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for id, clients := range h.clients {
				for _, c := range clients {
					c.registered = false
					close(c.Send)
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !client.registered {
		return
	}
	clients := h.clients[client.WorkspaceID]
	for i, c := range clients {
		if c == client {
			h.clients[client.WorkspaceID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	client.registered = false
	close(client.Send)
	if len(h.clients[client.WorkspaceID]) == 0 {
		delete(h.clients, client.WorkspaceID)
		h.logger.Info("Hub", "Workspace has no more clients", map[string]interface{}{"workspace_id": client.WorkspaceID})
	}
}

// Connections counts the local clients of a workspace.
func (h *Hub) Connections(workspaceId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspaceId])
}

// Send (NotificationDelivery interface implementation). It never waits on
// redis: cluster messages are queued and dropped when the queue is full.
func (h *Hub) Send(workspaceId string, msg dto.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal outbound message", map[string]interface{}{
			"workspace_id": workspaceId,
			"type":         msg.Type,
			"error":        err.Error(),
		})
		return
	}

	h.deliver(workspaceId, data)

	// Always publish: other instances may hold tabs of the same workspace.
	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.origin, WorkspaceId: workspaceId, Message: data})
		select {
		case h.publish <- payload:
		default:
			h.logger.Warn("Hub", "Redis publish queue full, dropping message", map[string]interface{}{
				"workspace_id": workspaceId,
				"type":         msg.Type,
			})
		}
	}
}

func (h *Hub) publishToRedis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-h.publish:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := h.rdb.Publish(pctx, h.channel, payload).Err()
			cancel()
			if err != nil {
				h.logger.Warn("Hub", "Failed to publish to redis", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// deliver queues data on every local client of the workspace. Clients
// with a full buffer are disconnected.
func (h *Hub) deliver(workspaceId string, data []byte) {
	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients[workspaceId] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"workspace_id": workspaceId})
		h.drop(client)
	}
}

// reply queues data on one client, unless it was already unregistered.
func (h *Hub) reply(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !client.registered {
		return
	}
	select {
	case client.Send <- data:
	default:
		go h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.origin {
				continue
			}
			h.deliver(payload.WorkspaceId, payload.Message)
		}
	}
}
