// Package hub fans room events out to websocket clients. Each room with at least one
// connected client holds one event subscription.
package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/repository"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	subscribeTimeout = 5 * time.Second
)

// Hub owns every connected client and the room subscriptions feeding them.
// All state is confined to the Run goroutine.
type Hub struct {
	subscriber repository.RoomEventSubscriber

	register   chan *Client
	unregister chan *Client
	events     chan domain.RoomEvent
	done       chan struct{}

	rooms map[string]map[*Client]bool
	subs  map[string]repository.RoomEventSubscription
}

// NewHub creates a Hub.
func NewHub(subscriber repository.RoomEventSubscriber) *Hub {
	if subscriber == nil {
		panic("RoomEventSubscriber cannot be nil for Hub")
	}
	return &Hub{
		subscriber: subscriber,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		events:     make(chan domain.RoomEvent, 256),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		subs:       make(map[string]repository.RoomEventSubscription),
	}
}

// Run is the hub's event loop. It returns once ctx is done, after closing every
// subscription and client.
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")
	defer func() {
		close(h.done)
		h.stopAll()
		log.Info("Hub stopped.")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(ctx, client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

// Register queues client for registration. It reports false when the hub is saturated or stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- client:
		return true
	default:
		logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID}).Warn("Hub register channel full")
		return false
	}
}

func (h *Hub) registerClient(ctx context.Context, client *Client) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID})

	if _, ok := h.subs[client.roomID]; !ok {
		subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
		sub, err := h.subscriber.Subscribe(subCtx, client.roomID)
		cancel()
		if err != nil {
			logCtx.WithError(err).Error("Failed to subscribe to room events")
			close(client.send)
			return
		}
		h.subs[client.roomID] = sub
		go h.forward(sub)
		logCtx.Info("Subscribed to room events")
	}

	clients, ok := h.rooms[client.roomID]
	if !ok {
		clients = make(map[*Client]bool)
		h.rooms[client.roomID] = clients
	}
	clients[client] = true
	logCtx.WithField("clients", len(clients)).Info("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.rooms[client.roomID]
	if !ok || !clients[client] {
		return
	}
	h.removeClient(client)
	logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID}).Info("Client unregistered")
}

// removeClient drops client and releases the room subscription when it was the last one.
func (h *Hub) removeClient(client *Client) {
	clients := h.rooms[client.roomID]
	delete(clients, client)
	close(client.send)
	if len(clients) > 0 {
		return
	}
	delete(h.rooms, client.roomID)
	if sub, ok := h.subs[client.roomID]; ok {
		if err := sub.Close(); err != nil {
			logrus.WithError(err).WithField("room_id", client.roomID).Warn("Failed to close room subscription")
		}
		delete(h.subs, client.roomID)
	}
}

// forward copies a subscription's events into the hub loop until it closes.
func (h *Hub) forward(sub repository.RoomEventSubscription) {
	for event := range sub.Events() {
		select {
		case h.events <- event:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) broadcast(event domain.RoomEvent) {
	clients := h.rooms[event.RoomID]
	if len(clients) == 0 {
		return
	}
	message, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("room_id", event.RoomID).Error("Failed to marshal room event")
		return
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{"room_id": client.roomID, "user_id": client.userID}).Warn("Client send buffer full, dropping client")
			h.removeClient(client)
		}
	}
}

func (h *Hub) stopAll() {
	for roomID, clients := range h.rooms {
		for client := range clients {
			close(client.send)
		}
		delete(h.rooms, roomID)
	}
	for roomID, sub := range h.subs {
		_ = sub.Close()
		delete(h.subs, roomID)
	}
}
