package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsClient bridges one WebSocket connection to a hub subscription.
type wsClient struct {
	hub  *Hub
	sub  *Subscriber
	conn *websocket.Conn
}

// HandleWebSocket upgrades the request and starts the read and write pumps.
// Capacity is checked before the upgrade so a full hub costs the client a
// plain 503 instead of a dropped socket.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	sub, err := h.Subscribe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server at capacity"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Unsubscribe(sub)
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{hub: h, sub: sub, conn: conn}
	go client.writePump()
	go client.readPump()
}

// writePump drains the subscriber channel onto the socket and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sub.Frames():
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client commands until the connection dies, then
// unsubscribes. The feed is a single capped snapshot per tick, so
// subscribe and unsubscribe are acknowledged and coin selection stays
// client side.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var cmd struct {
			Action string   `json:"action"`
			Coins  []string `json:"coins"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "ping":
			c.ack("pong", nil)
		case "subscribe":
			c.ack("subscribed", cmd.Coins)
		case "unsubscribe":
			c.ack("unsubscribed", cmd.Coins)
		}
	}
}

func (c *wsClient) ack(msgType string, data interface{}) {
	frame, err := marshalEnvelope(msgType, data)
	if err != nil {
		return
	}
	c.hub.sendTo(c.sub, frame)
}
