package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/network/protocol"
)

// Handler handles one push instruction. It runs on the loop.
type Handler func(env protocol.Envelope) error

// Channel is the push transport: a websocket connection whose messages are
// decoded and dispatched to per-instruction handlers on the loop. It
// reconnects with backoff when the connection drops.
type Channel struct {
	url     string
	loop    *loop.Loop
	dialer  *websocket.Dialer
	backoff *Backoff
	log     *zap.Logger

	handlers map[protocol.Instruction]Handler

	mu        sync.Mutex
	connected bool
	received  int
	dropped   int
}

// NewChannel creates a push channel for the websocket endpoint at url.
// Handlers must be registered before Run.
func NewChannel(url string, l *loop.Loop, b *Backoff) *Channel {
	return &Channel{
		url:      url,
		loop:     l,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		backoff:  b,
		log:      logger.Named("push"),
		handlers: make(map[protocol.Instruction]Handler),
	}
}

// RegisterHandler installs the handler for inst. Names outside the
// instruction set are rejected.
func (c *Channel) RegisterHandler(inst protocol.Instruction, h Handler) error {
	if !inst.Valid() {
		return fmt.Errorf("registering handler: %w: %q", protocol.ErrUnknownInstruction, inst)
	}
	c.handlers[inst] = h
	return nil
}

// Dispatch invokes the handler for env synchronously. Must be called on the loop.
func (c *Channel) Dispatch(env protocol.Envelope) error {
	if !env.Instruction.Valid() {
		return fmt.Errorf("%w: %q", protocol.ErrUnknownInstruction, env.Instruction)
	}
	h, ok := c.handlers[env.Instruction]
	if !ok {
		return fmt.Errorf("no handler for %s", env.Instruction)
	}
	return h(env)
}

// IsConnected returns connection status.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats returns the number of messages received and dropped as undecodable.
func (c *Channel) Stats() (received, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received, c.dropped
}

// Run connects and reads messages until ctx is cancelled, reconnecting with
// backoff after every failure. It always returns ctx.Err().
func (c *Channel) Run(ctx context.Context) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.backoff.Reset()
			c.log.Info("push channel connected", zap.String("url", c.url))
			err = c.read(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.backoff.Next()
		c.log.Warn("push channel down, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Channel) read(ctx context.Context, conn *websocket.Conn) error {
	c.setConnected(true)
	defer c.setConnected(false)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		mtype, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading push message: %w", err)
		}
		if mtype != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(msg)
		c.count(err != nil)
		if err != nil {
			c.log.Warn("dropping push message", zap.Error(err))
			continue
		}

		c.loop.Post(func() {
			if err := c.Dispatch(env); err != nil {
				c.log.Warn("push handler failed",
					zap.String("instruction", string(env.Instruction)),
					zap.Error(err))
			}
		})
	}
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Channel) count(dropped bool) {
	c.mu.Lock()
	c.received++
	if dropped {
		c.dropped++
	}
	c.mu.Unlock()
}
