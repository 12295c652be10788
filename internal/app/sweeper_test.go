package app

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	shortRetention = 60 * time.Millisecond
	waitFor        = 2 * time.Second
	tick           = 5 * time.Millisecond
)

func newSweptRegistry(retention time.Duration) (*RoomRegistry, *Sweeper) {
	reg := NewRoomRegistry()
	sw := NewSweeper(reg, retention, time.Hour)
	reg.SetEmptyNotifier(sw)
	return reg, sw
}

func TestSweeperDefaults(t *testing.T) {
	sw := NewSweeper(NewRoomRegistry(), 0, 0)
	assert.Equal(t, DefaultRetention, sw.retention)
	assert.Equal(t, DefaultSweepInterval, sw.interval)
}

func TestDeferredCleanupRemovesEmptyRoom(t *testing.T) {
	reg, sw := newSweptRegistry(shortRetention)
	defer sw.Stop()
	tok, _ := reg.CreateRoom()
	share, _ := reg.GenerateShareToken(tok)

	_, _ = reg.Join(tok, "alice")
	reg.Leave(tok, "alice")
	assert.Equal(t, 1, sw.Pending())
	assert.True(t, reg.Exists(tok), "room survives until the window elapses")

	assert.Eventually(t, func() bool {
		return !reg.Exists(tok) && !reg.Exists(share)
	}, waitFor, tick)
	assert.Eventually(t, func() bool { return sw.Pending() == 0 }, waitFor, tick)
}

func TestDeferredCleanupSparesRejoinedRoom(t *testing.T) {
	reg, sw := newSweptRegistry(shortRetention)
	defer sw.Stop()
	tok, _ := reg.CreateRoom()

	_, _ = reg.Join(tok, "alice")
	reg.Leave(tok, "alice")
	_, _ = reg.Join(tok, "bob")

	assert.Eventually(t, func() bool { return sw.Pending() == 0 }, waitFor, tick)
	assert.True(t, reg.Exists(tok))
	assert.Equal(t, 1, reg.UserCount(tok))
}

func TestDeferredCleanupIsDebounced(t *testing.T) {
	reg, sw := newSweptRegistry(time.Hour)
	defer sw.Stop()
	tok, _ := reg.CreateRoom()

	for i := 0; i < 10; i++ {
		_, _ = reg.Join(tok, "alice")
		reg.Leave(tok, "alice")
	}
	assert.Equal(t, 1, sw.Pending())
}

func TestStopDisarmsChecks(t *testing.T) {
	reg, sw := newSweptRegistry(shortRetention)
	tok, _ := reg.CreateRoom()
	_, _ = reg.Join(tok, "alice")
	reg.Leave(tok, "alice")

	sw.Stop()
	assert.Equal(t, 0, sw.Pending())
	sw.RoomEmptied(tok)
	assert.Equal(t, 0, sw.Pending())

	time.Sleep(3 * shortRetention)
	assert.True(t, reg.Exists(tok))
}

func TestSweepRemovesOnlyExpiredEmptyRooms(t *testing.T) {
	clock := time.Unix(10_000, 0)
	now := func() time.Time { return clock }
	reg := NewRoomRegistry(WithClock(now))
	sw := NewSweeper(reg, time.Hour, time.Minute)
	sw.now = now

	stale, _ := reg.CreateRoom()
	occupied, _ := reg.CreateRoom()
	_, _ = reg.Join(occupied, "alice")

	clock = clock.Add(50 * time.Minute)
	fresh, _ := reg.CreateRoom()

	clock = clock.Add(11 * time.Minute)
	assert.Equal(t, 1, sw.Sweep())

	assert.False(t, reg.Exists(stale))
	assert.True(t, reg.Exists(occupied))
	assert.True(t, reg.Exists(fresh))
	assert.Equal(t, 0, sw.Sweep())
}

func TestSweepUsesTimeSinceEmptied(t *testing.T) {
	clock := time.Unix(10_000, 0)
	now := func() time.Time { return clock }
	reg := NewRoomRegistry(WithClock(now))
	sw := NewSweeper(reg, time.Hour, time.Minute)
	sw.now = now

	tok, _ := reg.CreateRoom()
	_, _ = reg.Join(tok, "alice")
	clock = clock.Add(3 * time.Hour)
	reg.Leave(tok, "alice")

	clock = clock.Add(10 * time.Minute)
	assert.Equal(t, 0, sw.Sweep(), "old room that only just emptied is kept")

	clock = clock.Add(time.Hour)
	assert.Equal(t, 1, sw.Sweep())
}

func TestRunStopsWithContext(t *testing.T) {
	reg := NewRoomRegistry()
	sw := NewSweeper(reg, time.Nanosecond, 10*time.Millisecond)
	tok, _ := reg.CreateRoom()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	assert.Eventually(t, func() bool { return !reg.Exists(tok) }, waitFor, tick)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
}

// The end-to-end lifecycle: create, join via primary and share token, chat,
// everyone leaves, the room lingers for the retention window and then both
// tokens stop resolving.
func TestRoomLifecycleScenario(t *testing.T) {
	reg, sw := newSweptRegistry(shortRetention)
	defer sw.Stop()
	sm := NewSessionManager(reg)

	tok, err := reg.CreateRoom()
	require.NoError(t, err)

	_, err = sm.Bind("alice-conn", "alice", tok)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.UserCount(tok))
	assert.Empty(t, reg.RecentMessages(tok, 50))

	require.True(t, reg.AppendMessage(tok, domain.Message{Username: "alice", EncryptedMessage: "ciphertext1", Timestamp: 1}))

	share, err := reg.GenerateShareToken(tok)
	require.NoError(t, err)

	bob, err := sm.Bind("bob-conn", "bob", share)
	require.NoError(t, err)
	assert.Equal(t, tok, bob.RoomToken)
	assert.Equal(t, 2, reg.UserCount(tok))
	msgs := reg.RecentMessages(tok, 50)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ciphertext1", msgs[0].EncryptedMessage)

	sm.Unbind("alice-conn")
	sm.Unbind("bob-conn")
	assert.Equal(t, 0, reg.UserCount(tok))
	assert.True(t, reg.Exists(tok))
	assert.True(t, reg.Exists(share))

	assert.Eventually(t, func() bool {
		return !reg.Exists(tok) && !reg.Exists(share)
	}, waitFor, tick)
}

// lateVisitReaper lets a member come and go right after the sweep takes
// its snapshot.
type lateVisitReaper struct {
	*RoomRegistry
	visit func()
}

func (r lateVisitReaper) Snapshot() []domain.RoomInfo {
	snap := r.RoomRegistry.Snapshot()
	r.visit()
	return snap
}

func TestSweepKeepsRoomEmptiedAfterSnapshot(t *testing.T) {
	clock := time.Unix(10_000, 0)
	now := func() time.Time { return clock }
	reg := NewRoomRegistry(WithClock(now))
	tok, _ := reg.CreateRoom()
	clock = clock.Add(2 * time.Hour)

	reaper := lateVisitReaper{RoomRegistry: reg, visit: func() {
		_, _ = reg.Join(tok, "alice")
		reg.Leave(tok, "alice")
	}}
	sw := NewSweeper(reaper, time.Hour, time.Minute)
	sw.now = now

	assert.Equal(t, 0, sw.Sweep())
	assert.True(t, reg.Exists(tok))

	clock = clock.Add(2 * time.Hour)
	reaper.visit = func() {}
	sw.rooms = reaper
	assert.Equal(t, 1, sw.Sweep())
	assert.False(t, reg.Exists(tok))
}
