package ws

import (
	"sync"

	"github.com/loanrecovery/backend/internal/domain/identity"
	"golang.org/x/net/websocket"
)

const clientBuffer = 64

// Client is one websocket connection. The viewer fixes which channels it may
// join for the life of the connection.
type Client struct {
	conn   *websocket.Conn
	viewer identity.Viewer
	out    chan []byte

	closeOnce sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
}

func NewClient(conn *websocket.Conn, viewer identity.Viewer) *Client {
	return &Client{
		conn:     conn,
		viewer:   viewer,
		out:      make(chan []byte, clientBuffer),
		channels: map[string]struct{}{},
	}
}

// send queues payload without blocking. A client whose buffer is full is
// disconnected and reported as not delivered.
func (c *Client) send(payload []byte) bool {
	select {
	case c.out <- payload:
		return true
	default:
		c.disconnect()
		return false
	}
}

func (c *Client) disconnect() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) join(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channel]; ok {
		return false
	}
	c.channels[channel] = struct{}{}
	return true
}

func (c *Client) joined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
