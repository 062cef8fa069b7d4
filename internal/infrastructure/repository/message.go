package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hilthontt/duet/internal/domain"
)

const defaultMessageCapacity = 100

type storedMessage struct {
	seq     uint64
	message domain.ChatMessage
}

// Per room, oldest messages are evicted when capacity is exceeded.
type messageRepository struct {
	messages map[string][]storedMessage // roomID -> messages in arrival order
	capacity uint
	seq      uint64
	mu       *sync.RWMutex
}

func NewMessageRepository(capacity uint) domain.MessageRepository {
	if capacity == 0 {
		capacity = defaultMessageCapacity
	}
	return &messageRepository{
		capacity: capacity,
		messages: make(map[string][]storedMessage),
		mu:       &sync.RWMutex{},
	}
}

func (r *messageRepository) Add(ctx context.Context, message *domain.ChatMessage) error {
	if message == nil || message.RoomID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	roomMsgs, exists := r.messages[message.RoomID]
	if !exists {
		roomMsgs = make([]storedMessage, 0, r.capacity+1)
	}

	roomMsgs = append(roomMsgs, storedMessage{seq: r.seq, message: *message})

	// Evict oldest if over capacity
	if len(roomMsgs) > int(r.capacity) {
		excess := len(roomMsgs) - int(r.capacity)
		n := copy(roomMsgs, roomMsgs[excess:])
		clear(roomMsgs[n:])
		roomMsgs = roomMsgs[:n]
	}

	r.messages[message.RoomID] = roomMsgs

	return nil
}

func (r *messageRepository) GetByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomMsgs := r.messages[roomID]

	// Return a copy to prevent external mutation
	cpy := make([]domain.ChatMessage, len(roomMsgs))
	for i, m := range roomMsgs {
		cpy[i] = m.message
	}

	return cpy, nil
}

func (r *messageRepository) ClearByRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, roomID)
	return nil
}

// GetAll returns every retained message across rooms in global arrival order.
func (r *messageRepository) GetAll(ctx context.Context) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	all := make([]storedMessage, 0, len(r.messages)*int(r.capacity))
	for _, roomMsgs := range r.messages {
		all = append(all, roomMsgs...)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	out := make([]domain.ChatMessage, len(all))
	for i, m := range all {
		out[i] = m.message
	}

	return out, nil
}

func (r *messageRepository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = make(map[string][]storedMessage)
	return nil
}
