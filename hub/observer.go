package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type observer struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration
	timer     *time.Timer
	mux       sync.Mutex
	closed    bool
}

// send writes one message; writes to a connection are serialized
func (o *observer) send(message interface{}) error {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.closed {
		return websocket.ErrCloseSent
	}
	if o.writeWait > 0 {
		_ = o.conn.SetWriteDeadline(time.Now().Add(o.writeWait))
	}
	return o.conn.WriteJSON(message)
}

func (o *observer) close() {
	o.mux.Lock()
	defer o.mux.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	_ = o.conn.Close()
}
