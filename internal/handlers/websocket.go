package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"crash-rounds-backend/internal/services"
	"crash-rounds-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the wire format of the websocket feed.
type Message struct {
	Type string      `json:"type"`
	Room string      `json:"room,omitempty"`
	Data interface{} `json:"data"`
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	rooms  map[string]bool
}

type subscription struct {
	client *Client
	room   string
	add    bool
}

// WebSocketHub fans round events out to connected clients. It implements
// services.Notifier, so the round engine publishes straight into it. The hub
// goroutine owns all client state; everything reaches it through channels.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan *Message
}

func NewWebSocketHub() *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan *Message, 256),
	}
	go hub.run()
	return hub
}

func (hub *WebSocketHub) run() {
	ctx := context.Background()
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			logger.Debug(ctx).Int64("user_id", client.UserID).Msg("ws client registered")

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				logger.Debug(ctx).Int64("user_id", client.UserID).Msg("ws client unregistered")
			}

		case sub := <-hub.subscribe:
			if _, ok := hub.clients[sub.client]; ok {
				if sub.add {
					sub.client.rooms[sub.room] = true
				} else {
					delete(sub.client.rooms, sub.room)
				}
			}

		case message := <-hub.broadcast:
			for client := range hub.clients {
				if message.Room != "" && !client.rooms[message.Room] {
					continue
				}
				if err := client.Conn.WriteJSON(message); err != nil {
					logger.Warn(ctx).Err(err).
						Int64("user_id", client.UserID).
						Msg("ws write failed, dropping client")
					client.Conn.Close()
					delete(hub.clients, client)
				}
			}
		}
	}
}

// publish queues a message without blocking the round engine's tick loop. A
// full queue drops the message; the engine logs that and plays on.
func (hub *WebSocketHub) publish(msg *Message) error {
	select {
	case hub.broadcast <- msg:
		return nil
	default:
		return fmt.Errorf("notifier queue full, dropped %s for room %s", msg.Type, msg.Room)
	}
}

func (hub *WebSocketHub) PublishCommitment(room, commitment string) error {
	return hub.publish(&Message{
		Type: "ROUND_OPEN",
		Room: room,
		Data: gin.H{
			"commitment": commitment,
			"message":    "bets are open",
		},
	})
}

func (hub *WebSocketHub) PublishTick(room string, multiplier float64) error {
	return hub.publish(&Message{
		Type: "TICK",
		Room: room,
		Data: gin.H{
			"multiplier": multiplier,
			"display":    fmt.Sprintf("%.2fx", multiplier),
			"cashout":    true, // render a cash-out affordance
			"timestamp":  time.Now().Unix(),
		},
	})
}

func (hub *WebSocketHub) PublishSettlement(room string, settlement services.Settlement) error {
	return hub.publish(&Message{
		Type: "SETTLEMENT",
		Room: room,
		Data: settlement,
	})
}

type WebSocketHandler struct {
	hub *WebSocketHub
}

func NewWebSocketHandler(hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the connection and serves the room feed. Initial
// room subscriptions come from ?rooms=a,b; clients can adjust them later with
// SUBSCRIBE/UNSUBSCRIBE messages.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context()).Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		rooms:  make(map[string]bool),
	}

	if rooms := c.Query("rooms"); rooms != "" {
		for _, room := range strings.Split(rooms, ",") {
			client.rooms[strings.TrimSpace(room)] = true
		}
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn(c.Request.Context()).Err(err).Msg("websocket read failed")
			}
			break
		}
		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		client.Conn.WriteJSON(Message{Type: "PONG", Data: gin.H{"timestamp": time.Now().Unix()}})
	case "SUBSCRIBE":
		if room, ok := msg.Data.(string); ok {
			h.hub.subscribe <- subscription{client: client, room: room, add: true}
		}
	case "UNSUBSCRIBE":
		if room, ok := msg.Data.(string); ok {
			h.hub.subscribe <- subscription{client: client, room: room, add: false}
		}
	}
}
