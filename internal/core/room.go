package core

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// Room is a threadsafe in-memory room.
// Once closed it rejects every mutation, so a caller holding a stale
// pointer cannot bring a deleted room back to life.
type Room struct {
	token     domain.RoomToken
	createdAt time.Time

	mu          sync.Mutex
	members     map[string]struct{}
	history     *MessageLog
	shareTokens map[domain.RoomToken]struct{}
	emptySince  time.Time
	closed      bool
}

func NewRoom(token domain.RoomToken, createdAt time.Time, historyCap int) *Room {
	return &Room{
		token:       token,
		createdAt:   createdAt,
		members:     make(map[string]struct{}),
		history:     NewMessageLog(historyCap),
		shareTokens: make(map[domain.RoomToken]struct{}),
		emptySince:  createdAt,
	}
}

func (r *Room) Token() domain.RoomToken { return r.token }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// AddMember reports false only when the room is already closed.
func (r *Room) AddMember(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.members[username] = struct{}{}
	r.emptySince = time.Time{}
	return true
}

// RemoveMember removes username and reports whether this removal left the
// room empty.
func (r *Room) RemoveMember(username string, now time.Time) (removed, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, false
	}
	if _, ok := r.members[username]; !ok {
		return false, false
	}
	delete(r.members, username)
	if len(r.members) == 0 {
		r.emptySince = now
		return true, true
	}
	return true, false
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns the usernames sorted.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members))
	for name := range r.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Room) Append(m domain.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.history.Append(m)
	return true
}

func (r *Room) Recent(limit int) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Recent(limit)
}

func (r *Room) AddShareToken(share domain.RoomToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.shareTokens[share] = struct{}{}
	return true
}

// CloseIfEmpty marks the room closed when nobody is in it and hands back the
// share tokens that must be purged along with it.
func (r *Room) CloseIfEmpty() ([]domain.RoomToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(time.Time{})
}

// CloseIfEmptySince is CloseIfEmpty that also requires the room to have been
// empty since before cutoff.
func (r *Room) CloseIfEmptySince(cutoff time.Time) ([]domain.RoomToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(cutoff)
}

// closeLocked must be called with r.mu held. A zero cutoff skips the age check.
func (r *Room) closeLocked(cutoff time.Time) ([]domain.RoomToken, bool) {
	if r.closed || len(r.members) > 0 {
		return nil, false
	}
	if !cutoff.IsZero() && !r.emptySince.Before(cutoff) {
		return nil, false
	}
	r.closed = true
	shares := make([]domain.RoomToken, 0, len(r.shareTokens))
	for s := range r.shareTokens {
		shares = append(shares, s)
	}
	return shares, true
}

func (r *Room) Info() domain.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomInfo{
		Token:        r.token,
		MemberCount:  len(r.members),
		MessageCount: r.history.Len(),
		ShareTokens:  len(r.shareTokens),
		CreatedAt:    r.createdAt,
		EmptySince:   r.emptySince,
	}
}
