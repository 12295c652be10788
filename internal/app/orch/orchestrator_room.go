package orch

import (
	"fmt"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinResult struct {
	PrimaryToken   domain.RoomToken `json:"roomToken"`
	UserCount      int              `json:"userCount"`
	Messages       []domain.Message `json:"messages"`
	UsedShareToken bool             `json:"-"`
}

// Join binds cid to the room token resolves to and returns the state a
// joiner needs: the primary token, the head count and the recent backlog.
func (o *Orchestrator) Join(cid app.ConnID, token domain.RoomToken, username string) (JoinResult, error) {
	sess, err := o.Sessions.Bind(cid, username, token)
	if err != nil {
		return JoinResult{}, fmt.Errorf("join %s: %w", token.Short(), err)
	}
	res := JoinResult{
		PrimaryToken:   sess.RoomToken,
		UserCount:      o.Rooms.UserCount(sess.RoomToken),
		Messages:       o.Rooms.RecentMessages(sess.RoomToken, o.JoinHistory),
		UsedShareToken: sess.UsedShareToken,
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Str("room", res.PrimaryToken.Short()).Int("users", res.UserCount).Msg("joined room")
	return res, nil
}

// Disconnect releases whatever cid held. Always safe to call.
func (o *Orchestrator) Disconnect(cid app.ConnID) (app.Session, bool) {
	sess, ok := o.Sessions.Unbind(cid)
	if ok {
		log.Info().Str("module", "orch").Str("cid", string(cid)).Str("room", sess.RoomToken.Short()).Msg("disconnected")
	}
	return sess, ok
}

// UserCount is exposed for membership notifications after a disconnect.
func (o *Orchestrator) UserCount(primary domain.RoomToken) int {
	return o.Rooms.UserCount(primary)
}
