package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/network/protocol"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is the push interface. Each connecting viewer receives a replay of
// the current bundle followed by every transform broadcast.
type Hub struct {
	store    *Store
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu         sync.Mutex
	clients    map[*client]struct{}
	transforms protocol.Transforms
}

// NewHub creates a hub serving the bundles of st.
func NewHub(st *Store) *Hub {
	return &Hub{
		store: st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:        logger.Named("hub"),
		clients:    make(map[*client]struct{}),
		transforms: make(protocol.Transforms),
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves one viewer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	msgs, err := h.replay()
	if err != nil {
		h.mu.Unlock()
		h.log.Error("building replay", zap.Error(err))
		conn.Close()
		return
	}
	c := &client{conn: conn, send: make(chan []byte, len(msgs)+sendBuffer)}
	for _, m := range msgs {
		c.send <- m
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Info("viewer connected", zap.String("remote", r.RemoteAddr), zap.Int("replayed", len(msgs)))
	go h.writePump(c)
	h.readPump(c)
}

// Reload replays the current bundle to every connected viewer.
func (h *Hub) Reload() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transforms = make(protocol.Transforms)
	msgs, err := h.replay()
	if err != nil {
		h.log.Error("building replay", zap.Error(err))
		return
	}
	for c := range h.clients {
		for _, m := range msgs {
			if !h.queue(c, m) {
				break
			}
		}
	}
}

// Broadcast sends an UPDATE_TRANSFORM carrying t to every viewer. The
// transforms are remembered and replayed to viewers that connect later.
func (h *Hub) Broadcast(t protocol.Transforms) error {
	msg, err := protocol.Encode(protocol.UpdateTransform, t)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, tr := range t {
		h.transforms[name] = tr
	}
	for c := range h.clients {
		h.queue(c, msg)
	}
	return nil
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

// queue hands msg to c without blocking. A viewer whose buffer is full is
// disconnected. Must hold h.mu.
func (h *Hub) queue(c *client, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.log.Warn("viewer too slow, disconnecting", zap.String("remote", c.conn.RemoteAddr().String()))
		h.drop(c)
		return false
	}
}

// drop unregisters c and closes its send queue. Must hold h.mu.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// replay lists the messages that bring a fresh viewer to the current
// bundle. Must hold h.mu.
func (h *Hub) replay() ([][]byte, error) {
	b := h.store.Bundle()
	var msgs [][]byte
	add := func(inst protocol.Instruction, v any) error {
		m, err := protocol.Encode(inst, v)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
		return nil
	}

	if err := add(protocol.Reset, nil); err != nil {
		return nil, err
	}
	for _, m := range b.Scene.Meshes {
		if err := add(protocol.LoadMesh, m); err != nil {
			return nil, err
		}
	}
	for _, t := range b.Scene.Textures {
		if err := add(protocol.LoadTexture, t); err != nil {
			return nil, err
		}
	}
	for _, m := range b.Scene.Materials {
		if err := add(protocol.LoadMaterial, m); err != nil {
			return nil, err
		}
	}
	for _, body := range Flatten(&b.Scene.Root) {
		if err := add(protocol.CreateObject, body); err != nil {
			return nil, err
		}
	}
	if len(h.transforms) > 0 {
		if err := add(protocol.UpdateTransform, h.transforms); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws write failed", zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debug("ws ping failed", zap.Error(err))
				h.unregister(c)
				return
			}
		}
	}
}

// readPump discards incoming messages so control frames are processed.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.log.Info("viewer disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
			return
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

