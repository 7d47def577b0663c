package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one accepted WebSocket connection and its outbound queue.
type conn struct {
	id    string
	attrs map[string]string
	ws    *websocket.Conn

	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, attrs map[string]string, ws *websocket.Conn, sendBuffer int) *conn {
	return &conn{
		id:    id,
		attrs: attrs,
		ws:    ws,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
}

// close shuts the socket down once. Safe to call from the read loop, the
// write pump and the server concurrently.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.ws.Close()
	})
}
