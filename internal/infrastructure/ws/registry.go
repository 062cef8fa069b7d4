package ws

import (
	"errors"
	"sync"

	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/metrics"
)

var ErrTransportClosed = errors.New("transport closed")

// Registry tracks live peer connections and the rooms they belong to. A
// room is present only while at least one peer is connected to it.
type Registry struct {
	peers   map[string]domain.Connection // peerID -> connection
	rooms   map[string][]string          // roomID -> peer ids in join order
	logger  logging.Logger
	metrics *metrics.Metrics
	mu      sync.RWMutex
}

func NewRegistry(logger logging.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		peers:   make(map[string]domain.Connection),
		rooms:   make(map[string][]string),
		logger:  logger,
		metrics: m,
	}
}

// Add registers conn. A connection already tracked under the same peer id is
// replaced and returned.
func (r *Registry) Add(conn domain.Connection) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.peers[conn.PeerID]
	if replaced {
		r.detach(prev)
	}

	r.peers[conn.PeerID] = conn
	r.rooms[conn.RoomID] = append(r.rooms[conn.RoomID], conn.PeerID)
	r.metrics.SetLive(len(r.peers), len(r.rooms))

	return prev, replaced
}

// Remove drops whatever connection is tracked for peerID.
func (r *Registry) Remove(peerID string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.peers[peerID]
	if !ok {
		return domain.Connection{}, false
	}

	delete(r.peers, peerID)
	r.detach(conn)
	r.metrics.SetLive(len(r.peers), len(r.rooms))

	return conn, true
}

// RemoveConn drops conn only if it is still the connection tracked for its
// peer. A connection that was replaced by a newer one is left alone.
func (r *Registry) RemoveConn(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.peers[conn.PeerID]
	if !ok || current.Transport != conn.Transport {
		return false
	}

	delete(r.peers, conn.PeerID)
	r.detach(current)
	r.metrics.SetLive(len(r.peers), len(r.rooms))

	return true
}

// detach removes conn's peer id from its room. Caller holds r.mu.
func (r *Registry) detach(conn domain.Connection) {
	ids := r.rooms[conn.RoomID]
	for i, id := range ids {
		if id == conn.PeerID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	if len(ids) == 0 {
		delete(r.rooms, conn.RoomID)
		return
	}
	r.rooms[conn.RoomID] = ids
}

func (r *Registry) Get(peerID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.peers[peerID]
	return conn, ok
}

// IsCurrent reports whether conn is the connection tracked for its peer.
func (r *Registry) IsCurrent(conn domain.Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.peers[conn.PeerID]
	return ok && current.Transport == conn.Transport
}

// PeersInRoom returns a snapshot of the room's connections in join order.
func (r *Registry) PeersInRoom(roomID string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.rooms[roomID]
	conns := make([]domain.Connection, 0, len(ids))
	for _, id := range ids {
		conns = append(conns, r.peers[id])
	}

	return conns
}

func (r *Registry) All() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]domain.Connection, 0, len(r.peers))
	for _, ids := range r.rooms {
		for _, id := range ids {
			conns = append(conns, r.peers[id])
		}
	}

	return conns
}

func (r *Registry) BroadcastToRoom(roomID string, msg []byte) {
	for _, conn := range r.PeersInRoom(roomID) {
		r.Send(conn, msg)
	}
}

func (r *Registry) BroadcastAll(msg []byte) {
	for _, conn := range r.All() {
		r.Send(conn, msg)
	}
}

// Send delivers msg to conn if its transport is open. Failures are logged and
// counted, never returned.
func (r *Registry) Send(conn domain.Connection, msg []byte) bool {
	if conn.Transport == nil || !conn.Transport.IsOpen() {
		return false
	}

	if err := conn.Transport.Send(msg); err != nil {
		reason := metrics.SendOther
		switch {
		case errors.Is(err, ErrTransportClosed):
			reason = metrics.SendClosed
		case errors.Is(err, ErrSendQueueFull):
			reason = metrics.SendQueueFull
		}
		r.metrics.SendFailed(reason)
		r.logger.Warn(logging.Signaling, logging.Delivery, "send failed", map[logging.ExtraKey]any{
			logging.PeerID:       conn.PeerID,
			logging.RoomID:       conn.RoomID,
			logging.ErrorMessage: err.Error(),
		})
		return false
	}

	return true
}

// Rooms returns the number of rooms with live connections.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
