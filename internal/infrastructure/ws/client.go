package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/metrics"
	"golang.org/x/time/rate"
)

var ErrSendQueueFull = errors.New("send queue full")

type ClientConfig struct {
	SendBuffer        int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
	WriteWait         time.Duration
	PongWait          time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 << 10
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 50
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = 100
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	return c
}

func (c ClientConfig) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Client is a peer's websocket transport. Send never blocks; outbound frames
// are queued and written by WritePump.
type Client struct {
	conn    *connWrapper
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	cfg     ClientConfig
	logger  logging.Logger

	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex

	PeerID string `json:"peerId"`
	RoomID string `json:"roomId"`
}

func NewClient(conn *websocket.Conn, peerID, roomID string, cfg ClientConfig, logger logging.Logger) *Client {
	cfg = cfg.withDefaults()

	return &Client{
		conn:    newConnWrapper(conn),
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst),
		cfg:     cfg,
		logger:  logger,
		PeerID:  peerID,
		RoomID:  roomID,
	}
}

func (c *Client) Connection() domain.Connection {
	return domain.Connection{
		PeerID:    c.PeerID,
		RoomID:    c.RoomID,
		Transport: c,
	}
}

func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrTransportClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Done is closed once the client stops accepting frames.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops accepting frames. Frames already queued are still flushed by
// WritePump before the socket is closed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// ReadPump feeds inbound frames to core until the socket fails, then reports
// the disconnect.
func (c *Client) ReadPump(ctx context.Context, core *Core) {
	conn := c.Connection()
	defer func() {
		if err := core.Disconnect(context.WithoutCancel(ctx), conn); err != nil && !errors.Is(err, ErrStopped) {
			c.logger.Error(logging.Signaling, logging.Disconnect, "disconnect failed", map[logging.ExtraKey]any{
				logging.PeerID:       c.PeerID,
				logging.RoomID:       c.RoomID,
				logging.ErrorMessage: err.Error(),
			})
		}
		_ = c.Close()
		_ = c.conn.Close()
	}()

	socket := c.conn.conn
	socket.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = socket.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn(logging.IO, logging.Disconnect, "websocket read error", map[logging.ExtraKey]any{
					logging.PeerID:       c.PeerID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		if !c.limiter.Allow() {
			core.metrics.Dropped(metrics.DropRateLimited)
			c.logger.Warn(logging.Signaling, logging.RateLimiting, "inbound frame dropped", map[logging.ExtraKey]any{
				logging.PeerID: c.PeerID,
				logging.RoomID: c.RoomID,
			})
			continue
		}

		if err := core.Receive(ctx, conn, raw); err != nil {
			return
		}
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg, c.cfg.WriteWait); err != nil {
				c.writeFailed(err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil, c.cfg.WriteWait); err != nil {
				c.writeFailed(err)
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteClose(c.cfg.WriteWait)
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg, c.cfg.WriteWait); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) writeFailed(err error) {
	c.logger.Warn(logging.IO, logging.Delivery, "websocket write error", map[logging.ExtraKey]any{
		logging.PeerID:       c.PeerID,
		logging.ErrorMessage: err.Error(),
	})
	_ = c.Close()
}
