package domain

import (
	"errors"
	"time"
)

var (
	ErrRoomNotFound = errors.New("room does not exist or has expired")
	ErrPayloadEmpty = errors.New("encrypted payload empty")
)

// RoomToken is either a primary room token or a share token.
// Only the registry can tell which one it is.
type RoomToken string

// Short returns a log-safe prefix of the token. Tokens are capabilities,
// so full values never go to the logs.
func (t RoomToken) Short() string {
	if len(t) <= 8 {
		return string(t)
	}
	return string(t[:8])
}

// RoomInfo is a read-only view of a room for sweeps and stats.
type RoomInfo struct {
	Token        RoomToken `json:"-"`
	MemberCount  int       `json:"userCount"`
	MessageCount int       `json:"messageCount"`
	ShareTokens  int       `json:"shareTokens"`
	CreatedAt    time.Time `json:"createdAt"`
	EmptySince   time.Time `json:"emptySince,omitempty"`
}

// Empty reports whether the room had no members when the snapshot was taken.
func (i RoomInfo) Empty() bool { return i.MemberCount == 0 }
