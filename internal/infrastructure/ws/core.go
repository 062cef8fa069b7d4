package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrStopped = errors.New("signaling core stopped")

const tracerName = "github.com/hilthontt/duet/internal/infrastructure/ws"

type CoreConfig struct {
	// HangUpGrace is how long peers get to tear down after a hang-up before
	// room-closed is sent.
	HangUpGrace time.Duration
	Shards      int
	QueueSize   int
}

func (c CoreConfig) withDefaults() CoreConfig {
	if c.HangUpGrace <= 0 {
		c.HangUpGrace = 500 * time.Millisecond
	}
	if c.Shards <= 0 {
		c.Shards = 16
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

type eventKind uint8

const (
	connectEvent eventKind = iota
	receiveEvent
	disconnectEvent
	leaveEvent
)

func (k eventKind) String() string {
	switch k {
	case connectEvent:
		return "signaling.connect"
	case receiveEvent:
		return "signaling.receive"
	case disconnectEvent:
		return "signaling.disconnect"
	case leaveEvent:
		return "signaling.leave"
	}
	return "signaling.unknown"
}

type event struct {
	kind   eventKind
	conn   domain.Connection
	raw    []byte
	parent trace.SpanContext
	done   chan struct{}
}

// Core routes signaling traffic between the peers of a room. Events are
// handled by a fixed set of shard goroutines; all events for one room land on
// the same shard, so a room's connects, messages and disconnects are applied
// one at a time in arrival order.
type Core struct {
	registry    *Registry
	messages    domain.MessageRepository
	publisher   domain.RoomEventPublisher
	metrics     *metrics.Metrics
	logger      logging.Logger
	tracer      trace.Tracer
	hangUpGrace time.Duration

	shards   []chan event
	quit     chan struct{}
	workers  sync.WaitGroup
	pending  sync.WaitGroup
	stopOnce sync.Once
}

func NewCore(
	cfg CoreConfig,
	registry *Registry,
	messages domain.MessageRepository,
	publisher domain.RoomEventPublisher,
	m *metrics.Metrics,
	logger logging.Logger,
) *Core {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = discardEvents{}
	}

	c := &Core{
		registry:    registry,
		messages:    messages,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		hangUpGrace: cfg.HangUpGrace,
		shards:      make([]chan event, cfg.Shards),
		quit:        make(chan struct{}),
	}

	for i := range c.shards {
		c.shards[i] = make(chan event, cfg.QueueSize)
		c.workers.Add(1)
		go c.work(c.shards[i])
	}

	return c
}

func (c *Core) Registry() *Registry {
	return c.registry
}

// Connect attaches conn to its room and runs the pairing handshake.
func (c *Core) Connect(ctx context.Context, conn domain.Connection) error {
	if conn.PeerID == "" || conn.RoomID == "" || conn.Transport == nil {
		return domain.ErrInvalidInput
	}
	return c.dispatch(ctx, event{kind: connectEvent, conn: conn})
}

// Receive handles one raw inbound frame from conn.
func (c *Core) Receive(ctx context.Context, conn domain.Connection, raw []byte) error {
	return c.dispatch(ctx, event{kind: receiveEvent, conn: conn, raw: raw})
}

// Disconnect detaches conn and notifies whoever is left in the room.
func (c *Core) Disconnect(ctx context.Context, conn domain.Connection) error {
	return c.dispatch(ctx, event{kind: disconnectEvent, conn: conn})
}

func (c *Core) dispatch(ctx context.Context, ev event) error {
	ev.parent = trace.SpanContextFromContext(ctx)
	ev.done = make(chan struct{})
	shard := c.shards[xxhash.Sum64String(ev.conn.RoomID)%uint64(len(c.shards))]

	select {
	case <-c.quit:
		return ErrStopped
	default:
	}

	select {
	case shard <- ev:
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ev.done:
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

func (c *Core) work(events <-chan event) {
	defer c.workers.Done()

	for {
		select {
		case ev := <-events:
			c.handle(ev)
			close(ev.done)
		case <-c.quit:
			return
		}
	}
}

func (c *Core) handle(ev event) {
	ctx := trace.ContextWithSpanContext(context.Background(), ev.parent)
	ctx, span := c.tracer.Start(ctx, ev.kind.String(), trace.WithAttributes(
		attribute.String("peer.id", ev.conn.PeerID),
		attribute.String("room.id", ev.conn.RoomID),
	))
	defer span.End()

	switch ev.kind {
	case connectEvent:
		c.onConnect(ctx, ev.conn)
	case receiveEvent:
		if !c.registry.IsCurrent(ev.conn) {
			c.metrics.Dropped(metrics.DropStale)
			return
		}
		c.onMessage(ctx, span, ev.conn, ev.raw)
	case disconnectEvent:
		c.onDisconnect(ctx, ev.conn)
	case leaveEvent:
		// The peer may have moved back before the teardown ran.
		if current, ok := c.registry.Get(ev.conn.PeerID); ok && current.RoomID == ev.conn.RoomID {
			return
		}
		c.onLeave(ctx, ev.conn)
	}
}

func (c *Core) onConnect(ctx context.Context, conn domain.Connection) {
	existing := c.othersInRoom(conn)

	if prev, replaced := c.registry.Add(conn); replaced {
		c.logger.Info(logging.Signaling, logging.Connect, "connection replaced", map[logging.ExtraKey]any{
			logging.PeerID: conn.PeerID,
			logging.RoomID: conn.RoomID,
			"PreviousRoom": prev.RoomID,
		})
		closeTransport(prev)
		if prev.RoomID != conn.RoomID {
			c.leaveLater(prev)
		}
	}

	c.send(conn, NewPeerID(conn.PeerID))

	history, err := c.messages.GetByRoom(ctx, conn.RoomID)
	if err != nil {
		c.logger.Error(logging.Signaling, logging.History, "failed to load history", map[logging.ExtraKey]any{
			logging.RoomID:       conn.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	} else if len(history) > 0 {
		c.send(conn, NewMessageHistory(history))
	}

	// Rooms hold two peers; a later joiner is tracked but only ever paired
	// with the first peer already present.
	if len(existing) > 0 {
		other := existing[0]
		c.send(conn, NewPeerConnected(other.PeerID))
		c.send(other, NewPeerConnected(conn.PeerID))
	}

	c.publish(domain.EventPeerJoined, conn, len(existing)+1)

	c.logger.Info(logging.Signaling, logging.Connect, "peer connected", map[logging.ExtraKey]any{
		logging.PeerID: conn.PeerID,
		logging.RoomID: conn.RoomID,
		"Peers":        len(existing) + 1,
	})
}

func (c *Core) onMessage(ctx context.Context, span trace.Span, conn domain.Connection, raw []byte) {
	var in InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		c.metrics.Inbound("invalid")
		c.metrics.Dropped(metrics.DropMalformed)
		span.SetStatus(codes.Error, "invalid json")
		c.logger.Warn(logging.Signaling, logging.Routing, "invalid json from peer", map[logging.ExtraKey]any{
			logging.PeerID:       conn.PeerID,
			logging.RoomID:       conn.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		c.send(conn, NewError(invalidJSONMessage))
		return
	}

	span.SetAttributes(attribute.String("message.type", in.Type))

	switch in.Type {
	case Offer, Answer, IceCandidate:
		c.metrics.Inbound(in.Type)
		c.forward(conn, in)
	case HangUp:
		c.metrics.Inbound(in.Type)
		c.hangUp(conn)
	case Chat:
		c.metrics.Inbound(in.Type)
		c.chat(ctx, conn, in)
	default:
		c.metrics.Inbound("unknown")
		c.metrics.Dropped(metrics.DropUnknownType)
		c.logger.Debug(logging.Signaling, logging.Routing, "ignoring unknown message type", map[logging.ExtraKey]any{
			logging.PeerID:      conn.PeerID,
			logging.MessageType: in.Type,
		})
	}
}

// forward relays an offer, answer or ICE candidate to a single peer in the
// sender's room. Misses are dropped without telling the sender.
func (c *Core) forward(from domain.Connection, in InboundMessage) {
	if in.To == "" {
		c.metrics.Dropped(metrics.DropMissingTarget)
		c.logger.Warn(logging.Signaling, logging.Routing, "malformed message: missing target", map[logging.ExtraKey]any{
			logging.PeerID:      from.PeerID,
			logging.RoomID:      from.RoomID,
			logging.MessageType: in.Type,
		})
		return
	}

	target, ok := c.registry.Get(in.To)
	if !ok || target.RoomID != from.RoomID || !target.Transport.IsOpen() {
		c.metrics.Dropped(metrics.DropUnknownTarget)
		c.logger.Debug(logging.Signaling, logging.Routing, "target not reachable", map[logging.ExtraKey]any{
			logging.PeerID:      from.PeerID,
			logging.TargetID:    in.To,
			logging.MessageType: in.Type,
		})
		return
	}

	c.send(target, NewForward(in.Type, from.PeerID, in.Payload))
}

func (c *Core) hangUp(from domain.Connection) {
	recipients := c.othersInRoom(from)
	for _, peer := range recipients {
		c.send(peer, NewHangUp(from.PeerID))
	}

	c.publish(domain.EventCallEnded, from, len(recipients)+1)

	closed := NewRoomClosed(ReasonCallEnded)
	for _, peer := range recipients {
		c.later(peer, closed)
	}
}

func (c *Core) chat(ctx context.Context, from domain.Connection, in InboundMessage) {
	message, err := domain.NewChatMessage(from.PeerID, from.RoomID, in.Payload)
	if err != nil {
		c.metrics.Dropped(metrics.DropMalformed)
		return
	}

	if err := c.messages.Add(ctx, message); err != nil {
		c.logger.Error(logging.Signaling, logging.History, "failed to store chat message", map[logging.ExtraKey]any{
			logging.PeerID:       from.PeerID,
			logging.RoomID:       from.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	data, err := encode(message)
	if err != nil {
		c.metrics.SendFailed(metrics.SendEncode)
		return
	}
	c.registry.BroadcastToRoom(from.RoomID, data)
}

func (c *Core) onDisconnect(ctx context.Context, conn domain.Connection) {
	if !c.registry.RemoveConn(conn) {
		c.logger.Debug(logging.Signaling, logging.Disconnect, "stale connection closed", map[logging.ExtraKey]any{
			logging.PeerID: conn.PeerID,
			logging.RoomID: conn.RoomID,
		})
		return
	}

	c.onLeave(ctx, conn)
}

// onLeave runs the room teardown for a peer that is no longer tracked in
// conn's room.
func (c *Core) onLeave(ctx context.Context, conn domain.Connection) {
	remaining := c.registry.PeersInRoom(conn.RoomID)
	c.publish(domain.EventPeerLeft, conn, len(remaining))

	switch len(remaining) {
	case 0:
		if err := c.messages.ClearByRoom(ctx, conn.RoomID); err != nil {
			c.logger.Error(logging.Signaling, logging.History, "failed to clear history", map[logging.ExtraKey]any{
				logging.RoomID:       conn.RoomID,
				logging.ErrorMessage: err.Error(),
			})
		}
		c.publish(domain.EventRoomEmptied, conn, 0)
	case 1:
		c.send(remaining[0], NewRoomClosed(ReasonPeerDisconnected))
	}

	c.logger.Info(logging.Signaling, logging.Disconnect, "peer disconnected", map[logging.ExtraKey]any{
		logging.PeerID: conn.PeerID,
		logging.RoomID: conn.RoomID,
		"Peers":        len(remaining),
	})
}

// leaveLater queues the teardown of conn's old room on that room's shard. The
// caller is a worker, so the event is dispatched from its own goroutine.
func (c *Core) leaveLater(conn domain.Connection) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		_ = c.dispatch(context.Background(), event{kind: leaveEvent, conn: conn})
	}()
}

// later sends msg to conn after the hang-up grace period unless the
// transport closes or the core stops first.
func (c *Core) later(conn domain.Connection, msg *WSMessage) {
	var gone <-chan struct{}
	if t, ok := conn.Transport.(interface{ Done() <-chan struct{} }); ok {
		gone = t.Done()
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		timer := time.NewTimer(c.hangUpGrace)
		defer timer.Stop()

		select {
		case <-timer.C:
			c.send(conn, msg)
		case <-gone:
		case <-c.quit:
		}
	}()
}

func (c *Core) othersInRoom(conn domain.Connection) []domain.Connection {
	peers := c.registry.PeersInRoom(conn.RoomID)
	others := peers[:0]
	for _, peer := range peers {
		if peer.PeerID != conn.PeerID {
			others = append(others, peer)
		}
	}
	return others
}

func (c *Core) send(conn domain.Connection, msg *WSMessage) {
	data, err := encode(msg)
	if err != nil {
		c.metrics.SendFailed(metrics.SendEncode)
		c.logger.Error(logging.Signaling, logging.Delivery, "failed to encode message", map[logging.ExtraKey]any{
			logging.MessageType:  msg.Type,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	c.registry.Send(conn, data)
}

func (c *Core) publish(kind domain.RoomEventType, conn domain.Connection, peers int) {
	c.publisher.Publish(domain.RoomEvent{
		Type:       kind,
		RoomID:     conn.RoomID,
		PeerID:     conn.PeerID,
		Peers:      peers,
		OccurredAt: time.Now().UTC(),
	})
}

// Stop halts event processing, drops pending hang-up follow-ups, tells every
// connected peer the server is going away and clears all chat history.
func (c *Core) Stop(ctx context.Context) error {
	var err error

	c.stopOnce.Do(func() {
		close(c.quit)

		drained := make(chan struct{})
		go func() {
			c.workers.Wait()
			c.pending.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-ctx.Done():
			err = ctx.Err()
		}

		if data, encErr := encode(NewRoomClosed(ReasonServerShutdown)); encErr == nil {
			c.registry.BroadcastAll(data)
		}

		for _, conn := range c.registry.All() {
			closeTransport(conn)
		}

		if clearErr := c.messages.ClearAll(context.WithoutCancel(ctx)); clearErr != nil {
			c.logger.Error(logging.Signaling, logging.Shutdown, "failed to clear history", map[logging.ExtraKey]any{
				logging.ErrorMessage: clearErr.Error(),
			})
		}

		c.logger.Info(logging.Signaling, logging.Shutdown, "signaling core stopped", map[logging.ExtraKey]any{
			"Connections": c.registry.Len(),
			"Rooms":       c.registry.Rooms(),
		})
	})

	return err
}

func closeTransport(conn domain.Connection) {
	if closer, ok := conn.Transport.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

type discardEvents struct{}

func (discardEvents) Publish(domain.RoomEvent) {}
