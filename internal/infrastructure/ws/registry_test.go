package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
)

type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	err      error
	frames   [][]byte
	attempts int
	done     chan struct{}
	once     sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: true, done: make(chan struct{})}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if !f.open {
		return ErrTransportClosed
	}
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Done() <-chan struct{} {
	return f.done
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.open = false
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

// frame decodes every outbound shape, including stored chat messages.
type frame struct {
	Type     string               `json:"type"`
	From     string               `json:"from"`
	Payload  json.RawMessage      `json:"payload"`
	PeerID   string               `json:"peerId"`
	RoomID   string               `json:"roomId"`
	Messages []domain.ChatMessage `json:"messages"`
	Reason   string               `json:"reason"`
	Error    string               `json:"error"`
}

func (f *fakeTransport) received(t *testing.T) []frame {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]frame, 0, len(f.frames))
	for _, raw := range f.frames {
		var fr frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			t.Fatalf("decode frame %s: %v", raw, err)
		}
		out = append(out, fr)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func conn(peerID, roomID string, tr domain.Transport) domain.Connection {
	return domain.Connection{PeerID: peerID, RoomID: roomID, Transport: tr}
}

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNop(), nil)
}

func TestRegistryDropsEmptyRooms(t *testing.T) {
	r := newTestRegistry()
	r.Add(conn("a", "r1", newFakeTransport()))
	r.Add(conn("b", "r1", newFakeTransport()))
	r.Add(conn("c", "r2", newFakeTransport()))

	if _, ok := r.Remove("a"); !ok {
		t.Fatalf("Remove(a) reported unknown peer")
	}
	if got := r.Rooms(); got != 2 {
		t.Fatalf("rooms=%d, want 2", got)
	}

	r.Remove("b")
	if got := r.Rooms(); got != 1 {
		t.Fatalf("rooms=%d, want 1", got)
	}
	if got := r.PeersInRoom("r1"); len(got) != 0 {
		t.Fatalf("PeersInRoom(r1)=%v, want empty", got)
	}

	if _, ok := r.Remove("nobody"); ok {
		t.Fatalf("Remove(nobody) reported a removal")
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("len=%d, want 1", got)
	}
}

func TestRegistryReplacesPeer(t *testing.T) {
	r := newTestRegistry()
	first := conn("a", "r1", newFakeTransport())
	second := conn("a", "r2", newFakeTransport())

	r.Add(first)
	prev, replaced := r.Add(second)
	if !replaced || prev.Transport != first.Transport {
		t.Fatalf("Add did not report the replaced connection")
	}
	if got := r.Rooms(); got != 1 {
		t.Fatalf("rooms=%d, want 1", got)
	}

	if r.RemoveConn(first) {
		t.Fatalf("RemoveConn removed the replacement")
	}
	got, ok := r.Get("a")
	if !ok || got.Transport != second.Transport || got.RoomID != "r2" {
		t.Fatalf("Get(a)=%+v, want the second connection", got)
	}

	if !r.RemoveConn(second) {
		t.Fatalf("RemoveConn(second)=false, want true")
	}
	if r.Len() != 0 || r.Rooms() != 0 {
		t.Fatalf("registry not empty: len=%d rooms=%d", r.Len(), r.Rooms())
	}
}

func TestRegistryPeersInRoomIsOrderedSnapshot(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Add(conn(id, "r1", newFakeTransport()))
	}

	peers := r.PeersInRoom("r1")
	if len(peers) != 3 || peers[0].PeerID != "c" || peers[1].PeerID != "a" || peers[2].PeerID != "b" {
		t.Fatalf("peers=%v, want join order c a b", peers)
	}

	peers[0].PeerID = "mutated"
	r.Remove("a")
	again := r.PeersInRoom("r1")
	if len(again) != 2 || again[0].PeerID != "c" || again[1].PeerID != "b" {
		t.Fatalf("peers=%v, want c b", again)
	}
}

func TestRegistryBroadcastIsBestEffort(t *testing.T) {
	r := newTestRegistry()

	failing := newFakeTransport()
	failing.err = errors.New("boom")
	closed := newFakeTransport()
	_ = closed.Close()
	healthy := newFakeTransport()
	elsewhere := newFakeTransport()

	r.Add(conn("f", "r1", failing))
	r.Add(conn("c", "r1", closed))
	r.Add(conn("h", "r1", healthy))
	r.Add(conn("e", "r2", elsewhere))

	r.BroadcastToRoom("r1", []byte(`{"type":"chat"}`))

	if got := len(healthy.received(t)); got != 1 {
		t.Fatalf("healthy got %d frames, want 1", got)
	}
	if closed.attempts != 0 {
		t.Fatalf("closed transport was sent to %d times", closed.attempts)
	}
	if got := len(elsewhere.received(t)); got != 0 {
		t.Fatalf("other room got %d frames, want 0", got)
	}

	r.BroadcastAll([]byte(`{"type":"room-closed"}`))
	if got := len(elsewhere.received(t)); got != 1 {
		t.Fatalf("BroadcastAll reached other room %d times, want 1", got)
	}
	if got := len(healthy.received(t)); got != 2 {
		t.Fatalf("healthy got %d frames, want 2", got)
	}
}

func TestRegistryIsCurrentTracksReplacement(t *testing.T) {
	r := newTestRegistry()
	old := conn("a", "r1", newFakeTransport())
	fresh := conn("a", "r2", newFakeTransport())

	r.Add(old)
	if !r.IsCurrent(old) {
		t.Fatalf("registered connection not current")
	}

	r.Add(fresh)
	if r.IsCurrent(old) {
		t.Fatalf("replaced connection still current")
	}
	if !r.IsCurrent(fresh) {
		t.Fatalf("replacement not current")
	}
	if n := len(r.PeersInRoom("r1")); n != 0 {
		t.Fatalf("r1 peers=%d, want 0", n)
	}
}
