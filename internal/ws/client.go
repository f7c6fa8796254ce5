package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"studygroups-service/internal/models"
)

const sendBufferSize = 64

// Client is one websocket connection. All writes go through a buffered send
// channel drained by a single writer goroutine, so broadcasts from many
// rooms never interleave partial frames.
type Client struct {
	conn     *websocket.Conn
	userID   string
	userName string

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, userID, userName string) *Client {
	return &Client{
		conn:     conn,
		userID:   userID,
		userName: userName,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Enqueue implements broker.Conn. A full buffer means the client has
// stopped draining; the hub drops it and history replay on reconnect is the
// recovery path.
func (c *Client) Enqueue(event models.RoomEvent) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws marshal error: %v", err)
		return true
	}
	select {
	case <-c.done:
		return false
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump is the single writer for the connection.
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error: %v", err)
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
