package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/duet/internal/domain"
	"github.com/hilthontt/duet/internal/infrastructure/logging"
	"github.com/hilthontt/duet/internal/infrastructure/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.RoomEvent
}

func (p *recordingPublisher) Publish(ev domain.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) snapshot() []domain.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.RoomEvent(nil), p.events...)
}

func (p *recordingPublisher) types() []domain.RoomEventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]domain.RoomEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testCore struct {
	*Core
	store     domain.MessageRepository
	publisher *recordingPublisher
}

func newTestCore(t *testing.T, grace time.Duration) *testCore {
	t.Helper()

	store := repository.NewMessageRepository(100)
	publisher := &recordingPublisher{}
	core := NewCore(
		CoreConfig{HangUpGrace: grace, Shards: 4},
		newTestRegistry(),
		store,
		publisher,
		nil,
		logging.NewNop(),
	)
	t.Cleanup(func() {
		_ = core.Stop(context.Background())
	})

	return &testCore{Core: core, store: store, publisher: publisher}
}

func (c *testCore) connect(t *testing.T, peerID, roomID string) (*fakeTransport, domain.Connection) {
	t.Helper()

	tr := newFakeTransport()
	cn := conn(peerID, roomID, tr)
	if err := c.Connect(context.Background(), cn); err != nil {
		t.Fatalf("Connect(%s): %v", peerID, err)
	}
	return tr, cn
}

func (c *testCore) receive(t *testing.T, cn domain.Connection, raw string) {
	t.Helper()

	if err := c.Receive(context.Background(), cn, []byte(raw)); err != nil {
		t.Fatalf("Receive(%s): %v", raw, err)
	}
}

func countType(frames []frame, messageType string) int {
	n := 0
	for _, f := range frames {
		if f.Type == messageType {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestCoreConnectPairsPeers(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, _ := c.connect(t, "a", "r1")
	got := a.received(t)
	if len(got) != 1 || got[0].Type != PeerIDEvent || got[0].PeerID != "a" {
		t.Fatalf("first peer frames=%+v, want only peer-id a", got)
	}

	b, _ := c.connect(t, "b", "r1")
	got = b.received(t)
	if len(got) != 2 {
		t.Fatalf("second peer frames=%+v, want peer-id and peer-connected", got)
	}
	if got[0].Type != PeerIDEvent || got[0].PeerID != "b" {
		t.Fatalf("frame 0=%+v, want peer-id b", got[0])
	}
	if got[1].Type != PeerConnected || got[1].PeerID != "a" {
		t.Fatalf("frame 1=%+v, want peer-connected a", got[1])
	}

	got = a.received(t)
	if n := countType(got, PeerConnected); n != 1 {
		t.Fatalf("a got %d peer-connected, want 1", n)
	}
	if last := got[len(got)-1]; last.PeerID != "b" {
		t.Fatalf("a peer-connected=%+v, want b", last)
	}
}

func TestCoreReplaysHistoryToLateJoiner(t *testing.T) {
	c := newTestCore(t, time.Second)

	_, a := c.connect(t, "a", "r1")
	c.receive(t, a, `{"type":"chat","payload":"hi"}`)

	stored, _ := c.store.GetByRoom(context.Background(), "r1")
	if len(stored) != 1 {
		t.Fatalf("stored=%d, want 1", len(stored))
	}

	b, _ := c.connect(t, "b", "r1")
	got := b.received(t)
	if len(got) != 3 {
		t.Fatalf("frames=%+v, want peer-id, message-history, peer-connected", got)
	}
	history := got[1]
	if history.Type != MessageHistory || len(history.Messages) != 1 {
		t.Fatalf("frame 1=%+v, want one history entry", history)
	}
	m := history.Messages[0]
	if m.Type != "chat" || m.From != "a" || string(m.Payload) != `"hi"` || m.RoomID != "r1" {
		t.Fatalf("history entry=%+v", m)
	}
	if got[2].Type != PeerConnected {
		t.Fatalf("frame 2=%+v, want peer-connected", got[2])
	}
}

func TestCoreChatReachesBothPeers(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	a.reset()
	b.reset()

	c.receive(t, ac, `{"type":"chat","from":"spoofed","payload":"hello"}`)

	for name, tr := range map[string]*fakeTransport{"a": a, "b": b} {
		got := tr.received(t)
		if len(got) != 1 || got[0].Type != Chat || got[0].From != "a" || got[0].RoomID != "r1" {
			t.Fatalf("%s frames=%+v, want chat from a", name, got)
		}
	}
}

func TestCoreForwardsSignalingToTarget(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	a.reset()
	b.reset()

	c.receive(t, ac, `{"type":"offer","to":"b","from":"mallory","payload":{"sdp":"v=0"}}`)

	got := b.received(t)
	if len(got) != 1 || got[0].Type != Offer || got[0].From != "a" || string(got[0].Payload) != `{"sdp":"v=0"}` {
		t.Fatalf("b frames=%+v, want offer from a", got)
	}
	if n := len(a.received(t)); n != 0 {
		t.Fatalf("sender got %d frames, want 0", n)
	}
}

func TestCoreDropsUnreachableTargets(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	other, _ := c.connect(t, "x", "r2")
	a.reset()
	b.reset()
	other.reset()

	c.receive(t, ac, `{"type":"ice-candidate","to":"ghost","payload":{"candidate":"1"}}`)
	c.receive(t, ac, `{"type":"ice-candidate","to":"x","payload":{"candidate":"2"}}`)
	c.receive(t, ac, `{"type":"answer","payload":{"sdp":"v=0"}}`)
	c.receive(t, ac, `{"type":"ice-candidate","to":"b","payload":{"candidate":"3"}}`)

	got := b.received(t)
	if len(got) != 1 || string(got[0].Payload) != `{"candidate":"3"}` {
		t.Fatalf("b frames=%+v, want only the third candidate", got)
	}
	if n := len(other.received(t)); n != 0 {
		t.Fatalf("peer in another room got %d frames", n)
	}
	if n := len(a.received(t)); n != 0 {
		t.Fatalf("sender got %d frames, want no error replies", n)
	}
}

func TestCoreRepliesToInvalidJSON(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	a.reset()
	b.reset()

	c.receive(t, ac, `{not json`)
	c.receive(t, ac, `{"type":"dance"}`)

	got := a.received(t)
	if len(got) != 1 || got[0].Type != ErrorEvent || got[0].Error != "Invalid JSON format" {
		t.Fatalf("a frames=%+v, want a single error", got)
	}
	if n := len(b.received(t)); n != 0 {
		t.Fatalf("b got %d frames, want 0", n)
	}
	if _, ok := c.Registry().Get("a"); !ok {
		t.Fatalf("sender was dropped after invalid json")
	}
}

func TestCoreHangUpFollowsUpWithRoomClosed(t *testing.T) {
	c := newTestCore(t, 20*time.Millisecond)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	a.reset()
	b.reset()

	c.receive(t, ac, `{"type":"hang-up"}`)

	got := b.received(t)
	if len(got) != 1 || got[0].Type != HangUp || got[0].From != "a" {
		t.Fatalf("b frames=%+v, want hang-up from a", got)
	}

	waitFor(t, time.Second, func() bool { return len(b.received(t)) == 2 })
	got = b.received(t)
	if got[1].Type != RoomClosed || got[1].Reason != ReasonCallEnded {
		t.Fatalf("follow-up=%+v, want room-closed call-ended", got[1])
	}
	if n := len(a.received(t)); n != 0 {
		t.Fatalf("sender got %d frames, want 0", n)
	}
}

func TestCoreStopCancelsPendingFollowUp(t *testing.T) {
	c := newTestCore(t, time.Hour)

	_, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	b.reset()

	c.receive(t, ac, `{"type":"hang-up"}`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := b.received(t)
	if len(got) != 2 || got[0].Type != HangUp || got[1].Reason != ReasonServerShutdown {
		t.Fatalf("b frames=%+v, want hang-up then server-shutdown", got)
	}
}

func TestCoreDisconnectLastPeerClearsHistory(t *testing.T) {
	c := newTestCore(t, time.Second)

	_, ac := c.connect(t, "a", "r1")
	c.receive(t, ac, `{"type":"chat","payload":"bye"}`)

	if err := c.Disconnect(context.Background(), ac); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	stored, err := c.store.GetByRoom(context.Background(), "r1")
	if err != nil || len(stored) != 0 {
		t.Fatalf("history=%v err=%v, want empty", stored, err)
	}
	if c.Registry().Rooms() != 0 {
		t.Fatalf("room still tracked after last peer left")
	}

	want := []domain.RoomEventType{domain.EventPeerJoined, domain.EventPeerLeft, domain.EventRoomEmptied}
	got := c.publisher.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
}

func TestCoreDisconnectNotifiesRemainingPeer(t *testing.T) {
	c := newTestCore(t, time.Second)

	_, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	c.receive(t, ac, `{"type":"chat","payload":"kept"}`)
	b.reset()

	if err := c.Disconnect(context.Background(), ac); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	got := b.received(t)
	if n := countType(got, RoomClosed); n != 1 {
		t.Fatalf("b got %d room-closed, want 1", n)
	}
	if got[0].Reason != ReasonPeerDisconnected {
		t.Fatalf("reason=%q, want %q", got[0].Reason, ReasonPeerDisconnected)
	}

	stored, _ := c.store.GetByRoom(context.Background(), "r1")
	if len(stored) != 1 {
		t.Fatalf("history=%d, want 1 while a peer remains", len(stored))
	}
}

func TestCoreStaleDisconnectKeepsReplacement(t *testing.T) {
	c := newTestCore(t, time.Second)

	_, old := c.connect(t, "a", "r1")
	fresh, _ := c.connect(t, "a", "r1")
	fresh.reset()

	if err := c.Disconnect(context.Background(), old); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	got, ok := c.Registry().Get("a")
	if !ok || got.Transport != domain.Transport(fresh) {
		t.Fatalf("replacement connection was evicted")
	}
	if n := len(fresh.received(t)); n != 0 {
		t.Fatalf("replacement got %d frames, want 0", n)
	}
}

func TestCoreReconnectDoesNotPairWithItself(t *testing.T) {
	c := newTestCore(t, time.Second)

	c.connect(t, "a", "r1")
	again, _ := c.connect(t, "a", "r1")

	if n := countType(again.received(t), PeerConnected); n != 0 {
		t.Fatalf("reconnected peer got %d peer-connected, want 0", n)
	}
}

func TestCoreReplacedConnectionIsClosedAndIgnored(t *testing.T) {
	c := newTestCore(t, time.Second)

	oldTr, old := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	c.connect(t, "a", "r1")
	b.reset()

	if oldTr.IsOpen() {
		t.Fatalf("replaced transport still open")
	}

	c.receive(t, old, `{"type":"chat","payload":"ghost"}`)
	c.receive(t, old, `{"type":"offer","to":"b","payload":{}}`)

	if n := len(b.received(t)); n != 0 {
		t.Fatalf("b got %d frames from a replaced connection, want 0", n)
	}
	stored, _ := c.store.GetByRoom(context.Background(), "r1")
	if len(stored) != 0 {
		t.Fatalf("history=%d, want 0", len(stored))
	}
}

func TestCoreMovingToAnotherRoomTearsDownTheOldOne(t *testing.T) {
	t.Run("last peer", func(t *testing.T) {
		c := newTestCore(t, time.Second)

		oldTr, old := c.connect(t, "a", "r1")
		c.receive(t, old, `{"type":"chat","payload":"hi"}`)
		c.connect(t, "a", "r2")

		waitFor(t, time.Second, func() bool {
			stored, _ := c.store.GetByRoom(context.Background(), "r1")
			return len(stored) == 0
		})
		if n := len(c.Registry().PeersInRoom("r1")); n != 0 {
			t.Fatalf("r1 peers=%d, want 0", n)
		}
		if oldTr.IsOpen() {
			t.Fatalf("old transport still open")
		}

		if err := c.Disconnect(context.Background(), old); err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
		if got, ok := c.Registry().Get("a"); !ok || got.RoomID != "r2" {
			t.Fatalf("a=%+v ok=%v, want tracked in r2", got, ok)
		}

		waitFor(t, time.Second, func() bool {
			for _, ev := range c.publisher.snapshot() {
				if ev.Type == domain.EventRoomEmptied && ev.RoomID == "r1" {
					return true
				}
			}
			return false
		})
	})

	t.Run("remaining peer", func(t *testing.T) {
		c := newTestCore(t, time.Second)

		c.connect(t, "a", "r1")
		b, _ := c.connect(t, "b", "r1")
		b.reset()

		c.connect(t, "a", "r2")

		waitFor(t, time.Second, func() bool {
			return countType(b.received(t), RoomClosed) == 1
		})
		got := b.received(t)
		if last := got[len(got)-1]; last.Reason != ReasonPeerDisconnected {
			t.Fatalf("reason=%q, want %q", last.Reason, ReasonPeerDisconnected)
		}
		if n := len(c.Registry().PeersInRoom("r1")); n != 1 {
			t.Fatalf("r1 peers=%d, want 1", n)
		}
	})
}

func TestCoreThirdPeerIsAcceptedButPairedWithFirst(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, _ := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r1")
	a.reset()
	b.reset()

	third, _ := c.connect(t, "c", "r1")

	got := third.received(t)
	if n := countType(got, PeerConnected); n != 1 || got[len(got)-1].PeerID != "a" {
		t.Fatalf("third peer frames=%+v, want peer-connected a", got)
	}
	if n := len(b.received(t)); n != 0 {
		t.Fatalf("second peer got %d frames, want 0", n)
	}
	if n := len(c.Registry().PeersInRoom("r1")); n != 3 {
		t.Fatalf("peers=%d, want 3", n)
	}
}

func TestCoreConcurrentConnectsAlwaysPair(t *testing.T) {
	c := newTestCore(t, time.Second)

	const rooms = 50
	transports := make([][2]*fakeTransport, rooms)

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		roomID := fmt.Sprintf("room-%d", i)
		for j := 0; j < 2; j++ {
			tr := newFakeTransport()
			transports[i][j] = tr
			wg.Add(1)
			go func(peerID string) {
				defer wg.Done()
				if err := c.Connect(context.Background(), conn(peerID, roomID, tr)); err != nil {
					t.Errorf("Connect: %v", err)
				}
			}(fmt.Sprintf("%s-peer-%d", roomID, j))
		}
	}
	wg.Wait()

	for i, pair := range transports {
		for j, tr := range pair {
			if n := countType(tr.received(t), PeerConnected); n != 1 {
				t.Fatalf("room %d peer %d got %d peer-connected, want 1", i, j, n)
			}
		}
	}
}

func TestCoreStopNotifiesAndClears(t *testing.T) {
	c := newTestCore(t, time.Second)

	a, ac := c.connect(t, "a", "r1")
	b, _ := c.connect(t, "b", "r2")
	c.receive(t, ac, `{"type":"chat","payload":"x"}`)
	a.reset()
	b.reset()

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for name, tr := range map[string]*fakeTransport{"a": a, "b": b} {
		got := tr.received(t)
		if len(got) != 1 || got[0].Type != RoomClosed || got[0].Reason != ReasonServerShutdown {
			t.Fatalf("%s frames=%+v, want server-shutdown", name, got)
		}
		if tr.IsOpen() {
			t.Fatalf("%s transport still open after stop", name)
		}
	}

	all, _ := c.store.GetAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("history=%d after stop, want 0", len(all))
	}

	err := c.Connect(context.Background(), conn("late", "r1", newFakeTransport()))
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Connect after stop err=%v, want ErrStopped", err)
	}
}

func TestCoreRejectsIncompleteConnection(t *testing.T) {
	c := newTestCore(t, time.Second)

	err := c.Connect(context.Background(), conn("", "r1", newFakeTransport()))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
}
