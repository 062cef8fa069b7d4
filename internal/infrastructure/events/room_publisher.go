package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/contracts"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/messaging"
)

const publishTimeout = 5 * time.Second

// Sink is where encoded room events end up. *messaging.RabbitMQ is the
// production sink.
type Sink interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

// RoomPublisher forwards room events to a Sink from a background goroutine so
// the signaling path never waits on the broker. Events are dropped when the
// buffer is full.
type RoomPublisher struct {
	sink   Sink
	queue  chan domain.RoomEvent
	logger logging.Logger

	closed  bool
	mu      sync.RWMutex
	stopped chan struct{}
}

func NewRoomPublisher(sink Sink, buffer int, logger logging.Logger) *RoomPublisher {
	if buffer <= 0 {
		buffer = 256
	}

	p := &RoomPublisher{
		sink:    sink,
		queue:   make(chan domain.RoomEvent, buffer),
		logger:  logger,
		stopped: make(chan struct{}),
	}
	go p.run()

	return p
}

func (p *RoomPublisher) Publish(event domain.RoomEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	select {
	case p.queue <- event:
	default:
		p.logger.Warn(logging.RabbitMQ, logging.Publish, "event buffer full, dropping event", map[logging.ExtraKey]any{
			logging.RoomID:      event.RoomID,
			logging.MessageType: string(event.Type),
		})
	}
}

// Close stops accepting events and waits for the queued ones to be sent.
func (p *RoomPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RoomPublisher) run() {
	defer close(p.stopped)

	for event := range p.queue {
		if err := p.send(event); err != nil {
			p.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
				logging.RoomID:       event.RoomID,
				logging.MessageType:  string(event.Type),
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

func (p *RoomPublisher) send(event domain.RoomEvent) error {
	payload, err := json.Marshal(messaging.RoomEventData{Event: event})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.sink.PublishMessage(ctx, routingKey(event.Type), contracts.AmqpMessage{
		RoomID: event.RoomID,
		Data:   payload,
	})
}

func routingKey(t domain.RoomEventType) string {
	switch t {
	case domain.EventPeerJoined:
		return contracts.EventPeerJoined
	case domain.EventPeerLeft:
		return contracts.EventPeerLeft
	case domain.EventRoomEmptied:
		return contracts.EventRoomEmptied
	case domain.EventCallEnded:
		return contracts.EventCallEnded
	}
	return string(t)
}

// NopPublisher discards events. It is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.RoomEvent) {}
