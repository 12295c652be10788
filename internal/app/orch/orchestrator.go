// Package orch composes the registry, sessions and sweeper into the call
// surface the transport adapters use.
package orch

import (
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// DefaultJoinHistory is how many recent messages a joiner receives.
const DefaultJoinHistory = 50

type Orchestrator struct {
	Rooms    *app.RoomRegistry
	Sessions *app.SessionManager
	Tokens   core.TokenGenerator
	// JoinHistory caps the backlog returned by Join.
	JoinHistory int
}

// New wires a registry to its sessions. The sweeper, if any, must already be
// registered as the registry's EmptyNotifier.
func New(rooms *app.RoomRegistry, tokens core.TokenGenerator, joinHistory int) *Orchestrator {
	if joinHistory <= 0 {
		joinHistory = DefaultJoinHistory
	}
	return &Orchestrator{
		Rooms:       rooms,
		Sessions:    app.NewSessionManager(rooms),
		Tokens:      tokens,
		JoinHistory: joinHistory,
	}
}

// RoomStatus answers an existence check from the REST side.
type RoomStatus struct {
	Exists           bool             `json:"exists"`
	UserCount        int              `json:"userCount"`
	PrimaryRoomToken domain.RoomToken `json:"primaryRoomToken,omitempty"`
}

func (o *Orchestrator) CreateRoom() (domain.RoomToken, error) {
	return o.Rooms.CreateRoom()
}

func (o *Orchestrator) RoomExists(token domain.RoomToken) bool {
	return o.Rooms.Exists(token)
}

func (o *Orchestrator) ResolvePrimary(token domain.RoomToken) (domain.RoomToken, bool) {
	return o.Rooms.ResolvePrimary(token)
}

func (o *Orchestrator) CheckRoom(token domain.RoomToken) RoomStatus {
	primary, ok := o.Rooms.ResolvePrimary(token)
	if !ok {
		return RoomStatus{}
	}
	return RoomStatus{
		Exists:           true,
		UserCount:        o.Rooms.UserCount(primary),
		PrimaryRoomToken: primary,
	}
}

func (o *Orchestrator) GenerateShareToken(token domain.RoomToken) (domain.RoomToken, error) {
	return o.Rooms.GenerateShareToken(token)
}
