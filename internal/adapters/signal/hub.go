package signal

import (
	"sync"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/domain"
)

// roomPeers is the set of sockets bound to one room. Holding mu while
// appending and fanning out keeps delivery in history order.
type roomPeers struct {
	mu    sync.Mutex
	conns map[app.ConnID]*WsSignalConn
	dead  bool
}

// fanout enqueues frame on every peer and returns those that could not
// take it.
func (p *roomPeers) fanout(frame []byte) []*WsSignalConn {
	var failed []*WsSignalConn
	for _, c := range p.conns {
		if err := c.TrySend(frame); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

type roomHub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomToken]*roomPeers
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[domain.RoomToken]*roomPeers)}
}

// lock returns the room's peers locked, creating the entry if needed.
func (h *roomHub) lock(room domain.RoomToken) *roomPeers {
	for {
		h.mu.Lock()
		p, ok := h.rooms[room]
		if !ok {
			p = &roomPeers{conns: make(map[app.ConnID]*WsSignalConn)}
			h.rooms[room] = p
		}
		h.mu.Unlock()

		p.mu.Lock()
		if !p.dead {
			return p
		}
		p.mu.Unlock()
	}
}

// lockExisting is lock without creation; nil when nobody is connected.
func (h *roomHub) lockExisting(room domain.RoomToken) *roomPeers {
	h.mu.RLock()
	p, ok := h.rooms[room]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	p.mu.Lock()
	if p.dead {
		p.mu.Unlock()
		return nil
	}
	return p
}

// dropIfEmpty forgets a room once its last socket is gone.
func (h *roomHub) dropIfEmpty(room domain.RoomToken) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.rooms[room]
	if !ok {
		return
	}
	p.mu.Lock()
	if len(p.conns) == 0 {
		p.dead = true
		delete(h.rooms, room)
	}
	p.mu.Unlock()
}

func (h *roomHub) size(room domain.RoomToken) int {
	p := h.lockExisting(room)
	if p == nil {
		return 0
	}
	defer p.mu.Unlock()
	return len(p.conns)
}
