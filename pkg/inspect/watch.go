package inspect

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/binding"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

// Message is sent to /watch clients.
type Message struct {
	Property   string     `json:"property,omitempty"`
	Expression string     `json:"expression,omitempty"`
	Value      any        `json:"value"`
	Old        any        `json:"old,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// client is one /watch connection. It is also the liveness handle of the
// subscription it opened.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// Alive reports whether the connection is still open.
func (c *client) Alive() bool {
	return !c.closed.Load()
}

func (c *client) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
		c.conn.Close()
	})
}

// push queues msg without blocking the writer of the data.
func (c *client) push(msg Message) bool {
	if c.closed.Load() {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleWatch streams a property (?property=name) or an expression
// (?expression=a+b) of the instance data.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	property := r.URL.Query().Get("property")
	expression := r.URL.Query().Get("expression")
	if (property == "") == (expression == "") {
		writeError(w, http.StatusBadRequest, errors.New(errors.CodeInvalidInput).
			WithDetail("exactly one of property or expression is required"))
		return
	}
	if property != "" && !s.rt.Data().Has(property) {
		writeError(w, http.StatusNotFound, errors.New(errors.CodeInvalidInput).
			WithDetail("no property "+property))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("watch upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	go c.writeLoop()

	s.rt.Do(func() {
		if property != "" {
			s.rt.Watch(property, func(value, old any) {
				c.push(Message{Property: property, Value: jsonValue(value), Old: jsonValue(old)})
			}, c)
			c.push(Message{Property: property, Value: jsonValue(s.rt.Data().Peek(property))})
			return
		}
		b := s.rt.Bind(binding.Options{
			Expression: expression,
			Liveness:   c,
			Sink: func(value any) {
				c.push(Message{Expression: expression, Value: jsonValue(value)})
			},
		})
		if err := b.Err(); err != nil {
			c.push(Message{Expression: expression, Error: errorBody(err)})
		}
	})
	s.logger.Debug("watch opened", "property", property, "expression", expression)

	// Keep the connection until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	c.close()
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	s.logger.Debug("watch closed", "property", property, "expression", expression)
}
