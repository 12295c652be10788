package signal

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(conn *WsSignalConn, data []byte) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomToken == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, errorEvent{Type: evError, Error: "bad_payload"})
		return
	}
	username, err := domain.NormalizeUsername(p.Username)
	if err != nil {
		ctl.sendJSON(conn, roomErrorEvent{Type: evRoomError, Message: err.Error()})
		return
	}

	token := domain.RoomToken(p.RoomToken)
	primary, ok := ctl.Orch.ResolvePrimary(token)
	if !ok {
		log.Info().Str("module", "signal").Str("room", token.Short()).Msg("join: room is not exists")
		ctl.sendJSON(conn, roomErrorEvent{Type: evRoomError, Message: msgRoomNotFound})
		return
	}

	prev, hadPrev := ctl.Orch.Sessions.SessionOf(conn.id)

	peers := ctl.hub.lock(primary)
	res, err := ctl.Orch.Join(conn.id, token, username)
	if err != nil {
		peers.mu.Unlock()
		ctl.hub.dropIfEmpty(primary)
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Error().Err(err).Str("module", "signal").Msg("join failed")
		}
		ctl.sendJSON(conn, roomErrorEvent{Type: evRoomError, Message: msgRoomNotFound})
		return
	}
	peers.conns[conn.id] = conn
	ctl.sendJSON(conn, roomJoinedEvent{
		Type:      evRoomJoined,
		RoomToken: res.PrimaryToken,
		UserCount: res.UserCount,
		Messages:  res.Messages,
	})
	var failed []*WsSignalConn
	renamed := hadPrev && prev.RoomToken == res.PrimaryToken && prev.Username != username
	if renamed && ctl.departed(primary, prev.Username) {
		if frame, ok := encode(presenceEvent{Type: evUserLeft, Username: prev.Username, UserCount: res.UserCount}); ok {
			failed = peers.fanout(frame)
		}
	}
	if frame, ok := encode(presenceEvent{Type: evUserJoined, Username: username, UserCount: res.UserCount}); ok {
		failed = append(failed, peers.fanout(frame)...)
	}
	peers.mu.Unlock()
	ctl.applyPolicy(primary, failed)

	if hadPrev && prev.RoomToken != res.PrimaryToken {
		ctl.detach(prev, conn.id)
	}
	log.Info().Str("module", "signal").Str("cid", string(conn.id)).Str("room", primary.Short()).Msg("join")
}

func (ctl *SignalWSController) handleSendMessage(conn *WsSignalConn, data []byte) {
	var p sendPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomToken == "" {
		ctl.sendJSON(conn, errorEvent{Type: evError, Error: "bad_payload"})
		return
	}
	if p.EncryptedMessage == "" {
		ctl.sendJSON(conn, errorEvent{Type: evError, Error: domain.ErrPayloadEmpty.Error()})
		return
	}
	if !conn.limiter.Allow() {
		ctl.sendJSON(conn, errorEvent{Type: evError, Error: "rate_limited"})
		return
	}

	sess, ok := ctl.Orch.Sessions.SessionOf(conn.id)
	if !ok {
		ctl.sendJSON(conn, errorEvent{Type: evError, Error: "not_joined"})
		return
	}
	primary, ok := ctl.Orch.ResolvePrimary(domain.RoomToken(p.RoomToken))
	if !ok || primary != sess.RoomToken {
		// the room vanished or the client is writing to a room it never joined
		log.Debug().Str("module", "signal").Str("cid", string(conn.id)).Msg("send dropped")
		return
	}

	peers := ctl.hub.lockExisting(primary)
	if peers == nil {
		return
	}
	var failed []*WsSignalConn
	if _, msg, ok := ctl.Orch.Send(primary, sess.Username, p.EncryptedMessage, p.Timestamp); ok {
		if frame, ok := encode(newMessageEvent{Type: evNewMessage, Message: msg}); ok {
			failed = peers.fanout(frame)
		}
	}
	peers.mu.Unlock()
	ctl.applyPolicy(primary, failed)
}

func (ctl *SignalWSController) handleShareToken(conn *WsSignalConn, data []byte) {
	var p sharePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomToken == "" {
		ctl.sendJSON(conn, shareTokenEvent{Type: evShareToken})
		return
	}
	resp := shareTokenEvent{Type: evShareToken, RequestID: p.RequestID}
	share, err := ctl.Orch.GenerateShareToken(domain.RoomToken(p.RoomToken))
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Error().Err(err).Str("module", "signal").Msg("generate share token")
		}
		ctl.sendJSON(conn, resp)
		return
	}
	resp.ShareToken = &share
	ctl.sendJSON(conn, resp)
}

// handleDisconnect runs once per socket when its read loop exits.
func (ctl *SignalWSController) handleDisconnect(conn *WsSignalConn) {
	sess, ok := ctl.Orch.Sessions.SessionOf(conn.id)
	if !ok {
		ctl.Orch.Disconnect(conn.id)
		return
	}

	peers := ctl.hub.lockExisting(sess.RoomToken)
	ctl.Orch.Disconnect(conn.id)
	if peers == nil {
		return
	}
	delete(peers.conns, conn.id)
	failed := ctl.announceLeft(peers, sess.RoomToken, sess.Username)
	peers.mu.Unlock()
	ctl.hub.dropIfEmpty(sess.RoomToken)
	ctl.applyPolicy(sess.RoomToken, failed)
}

// detach removes a socket from the room it was in before a re-join.
func (ctl *SignalWSController) detach(prev app.Session, cid app.ConnID) {
	peers := ctl.hub.lockExisting(prev.RoomToken)
	if peers == nil {
		return
	}
	delete(peers.conns, cid)
	failed := ctl.announceLeft(peers, prev.RoomToken, prev.Username)
	peers.mu.Unlock()
	ctl.hub.dropIfEmpty(prev.RoomToken)
	ctl.applyPolicy(prev.RoomToken, failed)
}

// departed reports whether username is no longer a member of room. A name
// still held by another connection has not left.
func (ctl *SignalWSController) departed(room domain.RoomToken, username string) bool {
	return !slices.Contains(ctl.Orch.Rooms.Members(room), username)
}

// announceLeft sends user-left to peers if username really left room.
// peers must be locked.
func (ctl *SignalWSController) announceLeft(peers *roomPeers, room domain.RoomToken, username string) []*WsSignalConn {
	if !ctl.departed(room, username) {
		return nil
	}
	frame, ok := encode(presenceEvent{Type: evUserLeft, Username: username, UserCount: ctl.Orch.UserCount(room)})
	if !ok {
		return nil
	}
	return peers.fanout(frame)
}

func (ctl *SignalWSController) applyPolicy(room domain.RoomToken, failed []*WsSignalConn) {
	for _, c := range failed {
		switch ctl.Policy.OnBackPressure(room, c.id) {
		case app.KickMember:
			log.Warn().Str("module", "signal").Str("cid", string(c.id)).Str("room", room.Short()).Msg("kicking slow member")
			c.Close()
		case app.DropMessage:
			log.Debug().Str("module", "signal").Str("cid", string(c.id)).Str("room", room.Short()).Msg("frame dropped for slow member")
		}
	}
}
