package app

import (
	"fmt"

	"github.com/dkeye/Relay/internal/domain"
)

type BackpressureAction int

const (
	// KickMember closes the slow connection; its disconnect is announced to
	// the room as usual.
	KickMember BackpressureAction = iota
	// DropMessage keeps the connection open. The frame that did not fit is
	// lost for that connection only.
	DropMessage
)

// Policy decides what happens to a connection whose send queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomToken, conn ConnID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomToken, ConnID) BackpressureAction {
	return KickMember
}

// LossyPolicy favours keeping slow clients connected over complete delivery.
type LossyPolicy struct{}

func (LossyPolicy) OnBackPressure(domain.RoomToken, ConnID) BackpressureAction {
	return DropMessage
}

// PolicyByName maps the backpressure config value to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LossyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
