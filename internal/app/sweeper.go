package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetention     = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// RoomReaper is what the sweeper needs from the registry.
type RoomReaper interface {
	DeleteRoom(token domain.RoomToken) bool
	DeleteRoomIfEmptySince(token domain.RoomToken, cutoff time.Time) bool
	Snapshot() []domain.RoomInfo
}

// Sweeper deletes rooms that stayed empty past the retention window.
// A room that empties gets one pending check, reset every time it empties
// again; the periodic sweep catches anything those checks missed. Both end
// in RoomReaper.DeleteRoom, which re-checks emptiness.
type Sweeper struct {
	rooms     RoomReaper
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[domain.RoomToken]*time.Timer
	stopped bool
}

func NewSweeper(rooms RoomReaper, retention, interval time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		rooms:     rooms,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		pending:   make(map[domain.RoomToken]*time.Timer),
	}
}

// RoomEmptied implements EmptyNotifier.
func (s *Sweeper) RoomEmptied(token domain.RoomToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.pending[token]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		if s.pending[token] == t {
			delete(s.pending, token)
		}
		s.mu.Unlock()
		if s.rooms.DeleteRoom(token) {
			log.Info().Str("module", "app.sweeper").Str("room", token.Short()).Msg("deferred cleanup removed room")
		}
	})
	s.pending[token] = t
	log.Debug().Str("module", "app.sweeper").Str("room", token.Short()).Dur("after", s.retention).Msg("cleanup scheduled")
}

// Pending reports how many deferred checks are armed.
func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Sweep deletes every room that has been empty longer than the retention
// window and returns how many went away. The age is checked again at
// deletion time, so a room that emptied after the snapshot is kept.
func (s *Sweeper) Sweep() int {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, info := range s.rooms.Snapshot() {
		if !info.Empty() || !info.EmptySince.Before(cutoff) {
			continue
		}
		if s.rooms.DeleteRoomIfEmptySince(info.Token, cutoff) {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Str("module", "app.sweeper").Int("removed", removed).Msg("periodic sweep")
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.sweeper").Dur("interval", s.interval).Dur("retention", s.retention).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Stop disarms every pending check. Later RoomEmptied calls are ignored.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for token, t := range s.pending {
		t.Stop()
		delete(s.pending, token)
	}
}
