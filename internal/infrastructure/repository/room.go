package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/duet/internal/domain"
)

const (
	defaultRoomCapacity   = 1000
	defaultIdleRoomExpiry = 30 * time.Minute
)

type roomEntry struct {
	id         string
	createdAt  time.Time
	peers      map[string]struct{}
	lastAccess time.Time
}

func (e *roomEntry) snapshot() *domain.Room {
	return &domain.Room{
		ID:        e.id,
		CreatedAt: e.createdAt,
		Peers:     domain.SortedPeers(e.peers),
	}
}

type roomRepository struct {
	rooms          map[string]*roomEntry // ID -> Room
	capacity       uint
	idleRoomExpiry time.Duration
	now            func() time.Time
	mu             *sync.RWMutex
}

func NewRoomRepository(capacity uint, idleRoomExpiry time.Duration) domain.RoomRepository {
	if capacity == 0 {
		capacity = defaultRoomCapacity
	}
	if idleRoomExpiry == 0 {
		idleRoomExpiry = defaultIdleRoomExpiry
	}

	return &roomRepository{
		rooms:          make(map[string]*roomEntry),
		capacity:       capacity,
		idleRoomExpiry: idleRoomExpiry,
		now:            time.Now,
		mu:             &sync.RWMutex{},
	}
}

// evictIdle drops rooms nobody ever joined (or everybody left through an
// expiry race) once they have been idle for longer than idleRoomExpiry.
func (r *roomRepository) evictIdle() {
	cutoff := r.now().Add(-r.idleRoomExpiry)
	for id, room := range r.rooms {
		if len(room.peers) == 0 && room.lastAccess.Before(cutoff) {
			delete(r.rooms, id)
		}
	}
}

// enforceCapacity makes room for one more entry by removing the least
// recently accessed room that has no peers. Occupied rooms are never evicted.
func (r *roomRepository) enforceCapacity() error {
	for uint(len(r.rooms)) >= r.capacity {
		var oldest *roomEntry
		for _, room := range r.rooms {
			if len(room.peers) > 0 {
				continue
			}
			if oldest == nil || room.lastAccess.Before(oldest.lastAccess) {
				oldest = room
			}
		}
		if oldest == nil {
			return domain.ErrRoomCapacity
		}
		delete(r.rooms, oldest.id)
	}
	return nil
}

func (r *roomRepository) CreateRoom(ctx context.Context) (*domain.Room, error) {
	room := domain.NewRoom()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictIdle()
	if err := r.enforceCapacity(); err != nil {
		return nil, err
	}

	entry := &roomEntry{
		id:         room.ID,
		createdAt:  room.CreatedAt,
		peers:      make(map[string]struct{}),
		lastAccess: r.now(),
	}
	r.rooms[room.ID] = entry

	return entry.snapshot(), nil
}

// GetByID returns a snapshot of the room and updates access time.
func (r *roomRepository) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	room.lastAccess = r.now()

	return room.snapshot(), nil
}

func (r *roomRepository) JoinRoom(ctx context.Context, roomID, peerID string) error {
	if peerID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return domain.ErrRoomNotFound
	}

	room.peers[peerID] = struct{}{}
	room.lastAccess = r.now()

	return nil
}

// LeaveRoom is idempotent; the room is deleted once its last peer leaves.
func (r *roomRepository) LeaveRoom(ctx context.Context, roomID, peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil
	}

	delete(room.peers, peerID)
	room.lastAccess = r.now()

	if len(room.peers) == 0 {
		delete(r.rooms, roomID)
	}

	return nil
}

func (r *roomRepository) RoomPeers(ctx context.Context, roomID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return []string{}, nil
	}

	return domain.SortedPeers(room.peers), nil
}

func (r *roomRepository) RoomExists(ctx context.Context, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.rooms[roomID]
	return exists
}
