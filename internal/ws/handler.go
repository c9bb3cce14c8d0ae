package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/loanrecovery/backend/internal/http/middleware"
	"golang.org/x/net/websocket"
)

const writeTimeout = 10 * time.Second

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// HandleWebSocket expects the auth middleware to have placed the caller's
// viewer in the context.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	viewer, ok := middleware.ViewerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn, viewer)
		go h.writer(client)
		h.reader(client)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		close(client.out)
		client.disconnect()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			client.send(controlMessage("error", "invalid_message", ""))
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			client.send(controlMessage("error", "unsupported_action", ""))
			continue
		}
		topic := subscriptionTopic(msg, client.viewer)
		if topic == "" {
			client.send(controlMessage("error", "channel_not_allowed", msg.Channel))
			continue
		}
		h.hub.Subscribe(topic, client)
		client.send(controlMessage("subscribed", "", topic))
	}
}

func controlMessage(event, code, channel string) []byte {
	body := map[string]string{"event": event}
	if code != "" {
		body["error"] = code
	}
	if channel != "" {
		body["channel"] = channel
	}
	payload, _ := json.Marshal(body)
	return payload
}

// writer drains the client queue. A stalled or failed write closes the
// connection, which in turn ends reader.
func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			client.disconnect()
			return
		}
	}
}

// subscriptionTopic resolves a requested channel against what the viewer may
// see. Agents only ever get their own feed.
func subscriptionTopic(msg subscribeMessage, viewer identity.Viewer) string {
	channel := strings.ToLower(strings.TrimSpace(msg.Channel))
	switch v := viewer.(type) {
	case identity.Bank:
		if channel == BankPaymentsChannel {
			return BankPaymentsChannel
		}
	case identity.Agent:
		if channel == "agent:payments" {
			return AgentPaymentsChannel(v.ID)
		}
	}
	return ""
}
