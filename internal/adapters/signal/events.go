package signal

import (
	"github.com/dkeye/Relay/internal/domain"
)

// Event names on the wire.
const (
	evJoinRoom      = "join-room"
	evSendMessage   = "send-message"
	evGenerateShare = "generate-share-token"
	evPing          = "ping"
	evWhoAmI        = "whoami"

	evRoomJoined = "room-joined"
	evRoomError  = "room-error"
	evUserJoined = "user-joined"
	evUserLeft   = "user-left"
	evNewMessage = "new-message"
	evShareToken = "share-token"
	evPong       = "pong"
	evError      = "error"
)

const msgRoomNotFound = "Room does not exist or has expired"

type joinPayload struct {
	RoomToken string `json:"roomToken"`
	Username  string `json:"username"`
}

type sendPayload struct {
	RoomToken        string `json:"roomToken"`
	EncryptedMessage string `json:"encryptedMessage"`
	Timestamp        int64  `json:"timestamp"`
	Username         string `json:"username"`
}

type sharePayload struct {
	RoomToken string `json:"roomToken"`
	RequestID string `json:"requestId,omitempty"`
}

type roomJoinedEvent struct {
	Type      string           `json:"type"`
	RoomToken domain.RoomToken `json:"roomToken"`
	UserCount int              `json:"userCount"`
	Messages  []domain.Message `json:"messages"`
}

type presenceEvent struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	UserCount int    `json:"userCount"`
}

type newMessageEvent struct {
	Type string `json:"type"`
	domain.Message
}

type shareTokenEvent struct {
	Type       string            `json:"type"`
	RequestID  string            `json:"requestId,omitempty"`
	ShareToken *domain.RoomToken `json:"shareToken"`
}

type roomErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
