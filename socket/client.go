package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"giftletter/internal/canvas/itemstore"
	"giftletter/internal/canvas/model"
	"giftletter/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	opTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The editor is served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errUnknownType = errors.New("unknown message type")

// ServeWs restores the gift's canvas, upgrades the connection and sends the
// SNAPSHOT and current STATUS before any operation is read.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, giftID string) {
	if giftID == "" {
		http.Error(w, "Missing giftId", http.StatusBadRequest)
		return
	}
	items, err := hub.Canvas.Items(r.Context(), giftID)
	if err != nil {
		logger.Sugar.Errorf("Failed to restore gift %s for canvas: %v", giftID, err)
		http.Error(w, "Failed to load canvas", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		GiftID: giftID,
		Send:   make(chan []byte, 256),
	}
	client.reply(SnapshotType, items)
	client.reply(StatusType, hub.Canvas.Status(giftID))

	if !hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			c.reply(ErrorType, ErrorPayload{Message: "malformed message"})
			continue
		}

		if err := c.apply(msg); err != nil {
			logger.Sugar.Warnf("Rejected %s on gift %s: %v", msg.Type, c.GiftID, err)
			c.reply(ErrorType, ErrorPayload{Op: msg.Type, Message: err.Error()})
		}
	}
}

// apply runs one operation against the connection's own gift; the gift id
// in the message is ignored.
func (c *Client) apply(msg WSMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case AddItemType:
		var req model.AddItemRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		item, err := c.Hub.Canvas.NewItem(ctx, c.GiftID, req)
		if err != nil {
			return err
		}
		c.reply(ItemAddedType, item)
		return nil

	case MoveItemType:
		var p MoveItemPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		return c.Hub.Canvas.MoveItem(ctx, c.GiftID, p.ID, p.Position)

	case UpdateItemType:
		var p UpdateItemPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		return c.Hub.Canvas.UpdateItemField(ctx, c.GiftID, p.ID, itemstore.Field(p.Field), p.Value)

	case DeleteItemType:
		var p ItemRef
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		return c.Hub.Canvas.DeleteItem(ctx, c.GiftID, p.ID)

	default:
		return errUnknownType
	}
}

// reply queues a message for this connection only. It is dropped when the
// connection is not keeping up.
func (c *Client) reply(msgType string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s: %v", msgType, err)
		return
	}
	raw, _ := json.Marshal(WSMessage{Type: msgType, GiftID: c.GiftID, Payload: payload})
	select {
	case c.Send <- raw:
	default:
		logger.Sugar.Warnf("Send buffer full for a canvas of gift %s, dropped %s", c.GiftID, msgType)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Hub.done:
			return
		}
	}
}
