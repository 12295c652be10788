package app

import (
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConnID identifies one live transport connection.
type ConnID string

// Session binds a connection to the room it joined.
// RoomToken is always the primary token, never a share token.
type Session struct {
	ConnID         ConnID           `json:"-"`
	Username       string           `json:"username"`
	RoomToken      domain.RoomToken `json:"-"`
	UsedShareToken bool             `json:"usedShareToken"`
	JoinedAt       time.Time        `json:"joinedAt"`
}

// RoomMembership is the part of the registry sessions need.
type RoomMembership interface {
	ResolvePrimary(token domain.RoomToken) (domain.RoomToken, bool)
	Join(token domain.RoomToken, username string) (domain.RoomToken, error)
	Leave(token domain.RoomToken, username string) bool
}

type presence struct {
	room     domain.RoomToken
	username string
}

// SessionManager maps connections to (username, room).
// Membership in a room is per username, so two connections using the same
// name in the same room share one presence; the username only leaves the
// room when the last of those connections goes away.
//
// mu guards only the session map. Registry calls run under a lock for the
// room involved, so joins and leaves in unrelated rooms never wait on each
// other.
type SessionManager struct {
	rooms RoomMembership
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[ConnID]*Session

	locksMu sync.Mutex
	locks   map[domain.RoomToken]*roomLock

	holdersMu sync.Mutex
	holders   map[presence]int
}

// roomLock serializes the presence refcount of one room with the registry
// calls that follow it. It is dropped once nobody waits on it.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionManager(rooms RoomMembership) *SessionManager {
	return &SessionManager{
		rooms:    rooms,
		now:      time.Now,
		sessions: make(map[ConnID]*Session),
		locks:    make(map[domain.RoomToken]*roomLock),
		holders:  make(map[presence]int),
	}
}

// lockRoom locks room and returns the matching unlock.
func (m *SessionManager) lockRoom(room domain.RoomToken) func() {
	m.locksMu.Lock()
	l, ok := m.locks[room]
	if !ok {
		l = &roomLock{}
		m.locks[room] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, room)
		}
		m.locksMu.Unlock()
	}
}

// Bind joins the connection to the room requested resolves to, replacing
// any session the connection already had. A failed join keeps the old
// session.
func (m *SessionManager) Bind(cid ConnID, username string, requested domain.RoomToken) (Session, error) {
	primary, ok := m.rooms.ResolvePrimary(requested)
	if !ok {
		return Session{}, domain.ErrRoomNotFound
	}

	if err := m.acquire(presence{room: primary, username: username}); err != nil {
		return Session{}, err
	}

	sess := &Session{
		ConnID:         cid,
		Username:       username,
		RoomToken:      primary,
		UsedShareToken: requested != primary,
		JoinedAt:       m.now(),
	}
	m.mu.Lock()
	prev, hadPrev := m.sessions[cid]
	m.sessions[cid] = sess
	m.mu.Unlock()

	if hadPrev {
		m.release(*prev)
	}
	log.Info().Str("module", "app.sessions").Str("cid", string(cid)).Str("room", primary.Short()).Bool("share", sess.UsedShareToken).Msg("bound session")
	return *sess, nil
}

// acquire joins the registry and counts one more holder of p.
func (m *SessionManager) acquire(p presence) error {
	unlock := m.lockRoom(p.room)
	defer unlock()

	if _, err := m.rooms.Join(p.room, p.username); err != nil {
		return err
	}
	m.holdersMu.Lock()
	m.holders[p]++
	m.holdersMu.Unlock()
	return nil
}

// release drops one holder of the session's presence and leaves the room
// when it was the last.
func (m *SessionManager) release(s Session) {
	p := presence{room: s.RoomToken, username: s.Username}
	unlock := m.lockRoom(p.room)
	defer unlock()

	m.holdersMu.Lock()
	m.holders[p]--
	last := m.holders[p] <= 0
	if last {
		delete(m.holders, p)
	}
	m.holdersMu.Unlock()

	if last {
		m.rooms.Leave(p.room, p.username)
	}
}

// Unbind drops the connection's session. Connections that never joined are
// a no-op.
func (m *SessionManager) Unbind(cid ConnID) (Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[cid]
	if ok {
		delete(m.sessions, cid)
	}
	m.mu.Unlock()
	if !ok {
		return Session{}, false
	}

	m.release(*sess)
	log.Info().Str("module", "app.sessions").Str("cid", string(cid)).Str("room", sess.RoomToken.Short()).Msg("unbind session")
	return *sess, true
}

func (m *SessionManager) SessionOf(cid ConnID) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[cid]; ok {
		return *s, true
	}
	return Session{}, false
}

// ConnectionsOf lists the connections bound to a primary room token.
func (m *SessionManager) ConnectionsOf(primary domain.RoomToken) []ConnID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConnID, 0)
	for cid, s := range m.sessions {
		if s.RoomToken == primary {
			out = append(out, cid)
		}
	}
	return out
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
