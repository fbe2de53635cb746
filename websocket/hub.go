package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"disaster-coordination/metrics"
	"disaster-coordination/models"
)

// subscription is a client's request to join or leave a disaster room.
type subscription struct {
	client     *Client
	disasterID string
}

// Hub manages WebSocket connections, disaster rooms and broadcasting.
//
// A client that never joins a room receives every event. Once a client
// joins one or more disaster rooms it receives only events scoped to those
// disasters. All room and client state is owned by the Run goroutine, which
// also gives a single total order to delivered events.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Disaster room memberships, keyed by disaster id
	rooms map[string]map[*Client]bool

	// Entity events queued for delivery
	broadcast chan models.EntityEvent

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Room join/leave requests from client read pumps
	join  chan subscription
	leave chan subscription

	// Mutex guarding the stats counters read by handlers
	mutex sync.RWMutex

	connectedClients int
	eventsDelivered  int
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan models.EntityEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
	}
}

// Notify queues an entity event for broadcast. It never blocks the caller:
// when the queue is full the event is dropped and logged. Mutations must
// not wait on slow WebSocket consumers.
func (h *Hub) Notify(event models.EntityEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("Broadcast queue full, dropping %s event", event.EventName())
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.setConnected(len(h.clients))
			log.Printf("Client connected. Total clients: %d", len(h.clients))

		case client := <-h.Unregister:
			h.removeClient(client)
			log.Printf("Client disconnected. Total clients: %d", len(h.clients))

		case sub := <-h.join:
			if !h.clients[sub.client] {
				continue
			}
			room, ok := h.rooms[sub.disasterID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[sub.disasterID] = room
			}
			room[sub.client] = true
			sub.client.rooms[sub.disasterID] = true

		case sub := <-h.leave:
			h.leaveRoom(sub.client, sub.disasterID)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for disasterID := range client.rooms {
		h.leaveRoom(client, disasterID)
	}
	close(client.send)
	h.setConnected(len(h.clients))
}

func (h *Hub) leaveRoom(client *Client, disasterID string) {
	delete(client.rooms, disasterID)
	if room, ok := h.rooms[disasterID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, disasterID)
		}
	}
}

// deliver fans an event out to the clients that should see it. A slow
// client whose send buffer is full is dropped rather than stalling the
// rest of the fan-out.
func (h *Hub) deliver(event models.EntityEvent) {
	message := models.BroadcastMessage{
		Type:      event.EventName(),
		Data:      event.Payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	delivered := 0
	for client := range h.clients {
		if !h.wantsEvent(client, event) {
			continue
		}
		select {
		case client.send <- data:
			delivered++
		default:
			h.removeClient(client)
		}
	}

	metrics.EventsBroadcastTotal.WithLabelValues(event.EventName()).Inc()
	h.mutex.Lock()
	h.eventsDelivered += delivered
	h.mutex.Unlock()
}

func (h *Hub) wantsEvent(client *Client, event models.EntityEvent) bool {
	if len(client.rooms) == 0 {
		return true
	}
	if event.DisasterID == "" {
		return false
	}
	return client.rooms[event.DisasterID]
}

func (h *Hub) setConnected(n int) {
	h.mutex.Lock()
	h.connectedClients = n
	h.mutex.Unlock()
	metrics.ConnectedClients.Set(float64(n))
}

// GetStats returns current hub statistics.
func (h *Hub) GetStats() (int, int) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.eventsDelivered
}
