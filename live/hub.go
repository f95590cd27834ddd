// Package live pushes competition status and ranking changes to connected
// dashboards over WebSocket. Rooms are keyed per competition plus one shared
// admin room.
package live

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event types published to rooms.
const (
	EventCompetitionStatus = "COMPETITION_STATUS"
	EventRankingUpdated    = "RANKING_UPDATED"
	EventFinalized         = "COMPETITION_FINALIZED"
)

// AdminRoom receives every event in addition to the per-competition rooms.
const AdminRoom = "admin"

// CompetitionRoom returns the room id for one competition's watchers.
func CompetitionRoom(competitionID int) string {
	return fmt.Sprintf("competition_%d", competitionID)
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok {
				if _, registered := clients[client]; registered {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends an event to the competition's room and mirrors it to the
// admin room. Best effort: slow clients are skipped, never blocked on.
func (h *Hub) Publish(roomID, eventType string, payload interface{}) {
	message := Message{Type: eventType, Payload: payload, RoomID: roomID}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("live: failed to marshal %s event for room %s: %v", eventType, roomID, err)
		return
	}
	h.broadcastToRoom(roomID, data)
	if roomID != AdminRoom {
		h.broadcastToRoom(AdminRoom, data)
	}
}

func (h *Hub) broadcastToRoom(roomID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		client.Mu.Lock()
		if !client.IsClosed {
			select {
			case client.Send <- data:
			default:
				// Send buffer full; drop rather than stall the hub.
			}
		}
		client.Mu.Unlock()
	}
}
