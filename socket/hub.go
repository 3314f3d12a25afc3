package socket

import (
	"context"
	"encoding/json"
	"sync"

	"giftletter/internal/canvas/itemstore"
	"giftletter/internal/canvas/model"
	"giftletter/internal/canvas/persistence"
	"giftletter/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	SnapshotType   = "SNAPSHOT"    // Full item collection, sent on join
	StatusType     = "STATUS"      // Save indicator changed
	ErrorType      = "ERROR"       // An operation from this client was rejected
	ItemAddedType  = "ITEM_ADDED"  // Reply to ADD_ITEM with the created item
	AddItemType    = "ADD_ITEM"    // Place a new item
	MoveItemType   = "MOVE_ITEM"   // Pointer-move frame of a drag
	UpdateItemType = "UPDATE_ITEM" // Text or caption edit
	DeleteItemType = "DELETE_ITEM" // Remove an item
)

type WSMessage struct {
	Type    string          `json:"type"`
	GiftID  string          `json:"gift_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ItemRef struct {
	ID string `json:"id"`
}

type MoveItemPayload struct {
	ID       string         `json:"id"`
	Position model.Position `json:"position"`
}

type UpdateItemPayload struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}

type ErrorPayload struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// Canvas is the gift service as seen by a socket connection.
type Canvas interface {
	Items(ctx context.Context, giftID string) ([]model.LetterItem, error)
	Status(giftID string) persistence.Status
	NewItem(ctx context.Context, giftID string, req model.AddItemRequest) (model.LetterItem, error)
	MoveItem(ctx context.Context, giftID, itemID string, pos model.Position) error
	UpdateItemField(ctx context.Context, giftID, itemID string, field itemstore.Field, value string) error
	DeleteItem(ctx context.Context, giftID, itemID string) error
}

// Hub keeps one room per gift. Item edits are not relayed between
// connections; the room only fans out save status.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	Canvas     Canvas
	mu         sync.Mutex
	done       chan struct{} // closed when Run returns
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	GiftID string
	Send   chan []byte
}

func NewHub(canvas Canvas) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Canvas:     canvas,
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled. On exit every connection is
// closed and later Register and Unregister calls return at once.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.GiftID] == nil {
				h.Rooms[client.GiftID] = make(map[*Client]bool)
			}
			h.Rooms[client.GiftID][client] = true
			h.mu.Unlock()
			logger.Sugar.Debugf("Canvas connected to gift %s", client.GiftID)

		case client := <-h.Unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.Rooms[msg.GiftID] {
				select {
				case client.Send <- payload:
				default:
					// The read pump unregisters the client once the close lands.
					logger.Sugar.Warnf("Send buffer full for a canvas of gift %s. Disconnecting it.", msg.GiftID)
					client.Conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for _, room := range h.Rooms {
		for client := range room {
			client.Conn.Close()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// join hands the client to Run. It reports false when the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) dropLocked(client *Client) {
	room := h.Rooms[client.GiftID]
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.Rooms, client.GiftID)
		logger.Sugar.Debugf("Closed empty room: %s", client.GiftID)
	}
}

// PublishStatus queues a STATUS message for every canvas of the gift.
func (h *Hub) PublishStatus(giftID string, st persistence.Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling status: %v", err)
		return
	}
	select {
	case h.Broadcast <- WSMessage{Type: StatusType, GiftID: giftID, Payload: payload}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropped status for gift %s", giftID)
	}
}

// RemoveGift disconnects every canvas of a deleted gift. The read pumps
// unregister the clients as their connections fail.
func (h *Hub) RemoveGift(giftID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.Rooms[giftID] {
		client.Conn.Close()
	}
}

// Connections reports how many canvases are open for a gift.
func (h *Hub) Connections(giftID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[giftID])
}
