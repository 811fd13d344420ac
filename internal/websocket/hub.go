package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"lupa-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries sync messages between instances.
const ClusterChannel = "lupa_sync"

type clusterMessage struct {
	Origin    string          `json:"origin"`
	ProjectID string          `json:"project_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// project id -> connected clients
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// nil when running on a single instance
	rdb *redis.Client

	instanceID string
	logger     logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ProjectID] = append(h.clients[client.ProjectID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"project_id": client.ProjectID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.ProjectID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.ProjectID] = append(clients[:i], clients[i+1:]...)
			client.close()
			break
		}
	}
	if len(h.clients[client.ProjectID]) == 0 {
		delete(h.clients, client.ProjectID)
	}
}

// Connected returns the number of live connections for a project.
func (h *Hub) Connected(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

// Deliver sends data to every client of the project on this instance and
// publishes it for the other instances.
func (h *Hub) Deliver(ctx context.Context, projectID uuid.UUID, data []byte) {
	h.deliverLocal(projectID, data)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterMessage{
		Origin:    h.instanceID,
		ProjectID: projectID.String(),
		Message:   data,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}
}

func (h *Hub) deliverLocal(projectID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*Client(nil), h.clients[projectID]...)
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"project_id": projectID})
			h.remove(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instanceID {
			continue
		}
		projectID, err := uuid.Parse(payload.ProjectID)
		if err != nil {
			continue
		}
		h.deliverLocal(projectID, payload.Message)
	}
}
