package orch

import (
	"github.com/dkeye/Relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Send appends a message to the room token resolves to. It reports false
// when the room is gone; the message is dropped without error.
func (o *Orchestrator) Send(token domain.RoomToken, username, payload string, clientTS int64) (domain.RoomToken, domain.Message, bool) {
	primary, ok := o.Rooms.ResolvePrimary(token)
	if !ok {
		log.Debug().Str("module", "orch").Str("room", token.Short()).Msg("send dropped: unknown room")
		return "", domain.Message{}, false
	}
	msg := domain.Message{
		Username:         username,
		EncryptedMessage: payload,
		Timestamp:        clientTS,
		MessageID:        o.Tokens.GenerateMessageID(),
	}
	if !o.Rooms.AppendMessage(primary, msg) {
		log.Debug().Str("module", "orch").Str("room", primary.Short()).Msg("send dropped: room closed")
		return "", domain.Message{}, false
	}
	return primary, msg, true
}
