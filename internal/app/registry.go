package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxTokenAttempts = 5

var errTokenSpaceExhausted = errors.New("could not mint a unique token")

// EmptyNotifier is told when the last member leaves a room.
type EmptyNotifier interface {
	RoomEmptied(token domain.RoomToken)
}

// RoomRegistry owns every room and the share-token alias table.
// The room table and the alias table are guarded independently; each room
// serializes its own membership, history and share tokens. Lock order is
// rooms -> aliases -> room.
type RoomRegistry struct {
	tokens     core.TokenGenerator
	tokenBytes int
	historyCap int
	now        func() time.Time

	roomsMu sync.RWMutex
	rooms   map[domain.RoomToken]*core.Room

	aliasMu sync.RWMutex
	aliases map[domain.RoomToken]domain.RoomToken

	notifyMu sync.RWMutex
	onEmpty  EmptyNotifier
}

type RegistryOption func(*RoomRegistry)

func WithTokenGenerator(g core.TokenGenerator) RegistryOption {
	return func(r *RoomRegistry) { r.tokens = g }
}

func WithTokenBytes(n int) RegistryOption {
	return func(r *RoomRegistry) {
		if n > 0 {
			r.tokenBytes = n
		}
	}
}

// WithHistoryCap bounds each room's history; <= 0 keeps everything.
func WithHistoryCap(n int) RegistryOption {
	return func(r *RoomRegistry) { r.historyCap = n }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func NewRoomRegistry(opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		tokens:     core.NewCryptoTokens(),
		tokenBytes: core.DefaultTokenBytes,
		now:        time.Now,
		rooms:      make(map[domain.RoomToken]*core.Room),
		aliases:    make(map[domain.RoomToken]domain.RoomToken),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RoomRegistry) SetEmptyNotifier(n EmptyNotifier) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.onEmpty = n
}

func (r *RoomRegistry) CreateRoom() (domain.RoomToken, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		raw, err := r.tokens.GenerateToken(r.tokenBytes)
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		token := domain.RoomToken(raw)

		r.roomsMu.Lock()
		if _, taken := r.rooms[token]; taken || r.isAlias(token) {
			r.roomsMu.Unlock()
			continue
		}
		r.rooms[token] = core.NewRoom(token, r.now(), r.historyCap)
		r.roomsMu.Unlock()

		log.Info().Str("module", "app.registry").Str("room", token.Short()).Msg("room created")
		return token, nil
	}
	return "", fmt.Errorf("create room: %w", errTokenSpaceExhausted)
}

func (r *RoomRegistry) isAlias(token domain.RoomToken) bool {
	r.aliasMu.RLock()
	defer r.aliasMu.RUnlock()
	_, ok := r.aliases[token]
	return ok
}

// lookup is the single resolution path: a primary token directly, otherwise
// exactly one alias hop. An alias whose room is gone does not resolve.
func (r *RoomRegistry) lookup(token domain.RoomToken) (*core.Room, domain.RoomToken, bool) {
	r.roomsMu.RLock()
	room, ok := r.rooms[token]
	r.roomsMu.RUnlock()
	if ok {
		return room, token, true
	}

	r.aliasMu.RLock()
	primary, ok := r.aliases[token]
	r.aliasMu.RUnlock()
	if !ok {
		return nil, "", false
	}

	r.roomsMu.RLock()
	room, ok = r.rooms[primary]
	r.roomsMu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return room, primary, true
}

func (r *RoomRegistry) ResolvePrimary(token domain.RoomToken) (domain.RoomToken, bool) {
	_, primary, ok := r.lookup(token)
	return primary, ok
}

func (r *RoomRegistry) Exists(token domain.RoomToken) bool {
	_, _, ok := r.lookup(token)
	return ok
}

// GenerateShareToken mints a new alias for the room token resolves to.
func (r *RoomRegistry) GenerateShareToken(token domain.RoomToken) (domain.RoomToken, error) {
	room, primary, ok := r.lookup(token)
	if !ok {
		return "", domain.ErrRoomNotFound
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		raw, err := r.tokens.GenerateToken(r.tokenBytes)
		if err != nil {
			return "", fmt.Errorf("generate share token: %w", err)
		}
		share := domain.RoomToken(raw)

		r.roomsMu.RLock()
		_, clash := r.rooms[share]
		r.roomsMu.RUnlock()
		if clash {
			continue
		}

		r.aliasMu.Lock()
		if _, clash := r.aliases[share]; clash {
			r.aliasMu.Unlock()
			continue
		}
		if !room.AddShareToken(share) {
			r.aliasMu.Unlock()
			return "", domain.ErrRoomNotFound
		}
		r.aliases[share] = primary
		r.aliasMu.Unlock()

		log.Info().Str("module", "app.registry").Str("room", primary.Short()).Str("share", share.Short()).Msg("share token generated")
		return share, nil
	}
	return "", fmt.Errorf("generate share token: %w", errTokenSpaceExhausted)
}

// Join adds username to the room. Joining twice is a no-op.
func (r *RoomRegistry) Join(token domain.RoomToken, username string) (domain.RoomToken, error) {
	room, primary, ok := r.lookup(token)
	if !ok || !room.AddMember(username) {
		return "", domain.ErrRoomNotFound
	}
	log.Info().Str("module", "app.registry").Str("room", primary.Short()).Str("username", username).Msg("member joined")
	return primary, nil
}

// Leave removes username. The room's expiration path starts when it empties.
func (r *RoomRegistry) Leave(token domain.RoomToken, username string) bool {
	room, primary, ok := r.lookup(token)
	if !ok {
		return false
	}
	removed, emptied := room.RemoveMember(username, r.now())
	if !removed {
		return false
	}
	log.Info().Str("module", "app.registry").Str("room", primary.Short()).Str("username", username).Bool("emptied", emptied).Msg("member left")
	if emptied {
		r.notifyMu.RLock()
		n := r.onEmpty
		r.notifyMu.RUnlock()
		if n != nil {
			n.RoomEmptied(primary)
		}
	}
	return true
}

func (r *RoomRegistry) UserCount(token domain.RoomToken) int {
	room, _, ok := r.lookup(token)
	if !ok {
		return 0
	}
	return room.MemberCount()
}

func (r *RoomRegistry) Members(token domain.RoomToken) []string {
	room, _, ok := r.lookup(token)
	if !ok {
		return []string{}
	}
	return room.Members()
}

// AppendMessage reports false when the room vanished; the message is dropped.
func (r *RoomRegistry) AppendMessage(token domain.RoomToken, m domain.Message) bool {
	room, _, ok := r.lookup(token)
	if !ok {
		return false
	}
	return room.Append(m)
}

func (r *RoomRegistry) RecentMessages(token domain.RoomToken, limit int) []domain.Message {
	room, _, ok := r.lookup(token)
	if !ok {
		return []domain.Message{}
	}
	return room.Recent(limit)
}

// DeleteRoom removes the room and every alias pointing at it, but only if the
// room is still empty right now.
func (r *RoomRegistry) DeleteRoom(token domain.RoomToken) bool {
	return r.deleteRoom(token, (*core.Room).CloseIfEmpty)
}

// DeleteRoomIfEmptySince is DeleteRoom for rooms that have stayed empty since
// before cutoff. A room that emptied again after cutoff is kept.
func (r *RoomRegistry) DeleteRoomIfEmptySince(token domain.RoomToken, cutoff time.Time) bool {
	return r.deleteRoom(token, func(room *core.Room) ([]domain.RoomToken, bool) {
		return room.CloseIfEmptySince(cutoff)
	})
}

func (r *RoomRegistry) deleteRoom(token domain.RoomToken, closeRoom func(*core.Room) ([]domain.RoomToken, bool)) bool {
	room, primary, ok := r.lookup(token)
	if !ok {
		return false
	}

	r.roomsMu.Lock()
	if r.rooms[primary] != room {
		r.roomsMu.Unlock()
		return false
	}
	shares, closed := closeRoom(room)
	if !closed {
		r.roomsMu.Unlock()
		return false
	}
	delete(r.rooms, primary)
	r.roomsMu.Unlock()

	r.aliasMu.Lock()
	for _, s := range shares {
		if r.aliases[s] == primary {
			delete(r.aliases, s)
		}
	}
	r.aliasMu.Unlock()

	log.Info().Str("module", "app.registry").Str("room", primary.Short()).Int("share_tokens", len(shares)).Msg("room deleted")
	return true
}

// Snapshot lists every live room.
func (r *RoomRegistry) Snapshot() []domain.RoomInfo {
	r.roomsMu.RLock()
	rooms := make([]*core.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.roomsMu.RUnlock()

	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	return out
}
