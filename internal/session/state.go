// Package session keeps per-chat conversation state in memory.
package session

import "time"

// Mode is the single active conversation mode of a chat.
type Mode int

const (
	ModeNone Mode = iota
	ModePendingOperator
	ModeActiveOperator
	ModeOrderFlow
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModePendingOperator:
		return "pending_operator"
	case ModeActiveOperator:
		return "active_operator"
	case ModeOrderFlow:
		return "order_flow"
	default:
		return "unknown"
	}
}

// OperatorChat reports whether the chat is waiting for or talking to the operator.
func (m Mode) OperatorChat() bool {
	return m == ModePendingOperator || m == ModeActiveOperator
}

// Stage is a step of the order dialog.
type Stage int

const (
	StageAwaitingProduct Stage = iota
	StageAwaitingDelivery
	StageAwaitingPhone
	StageAwaitingConfirmation
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingProduct:
		return "awaiting_product"
	case StageAwaitingDelivery:
		return "awaiting_delivery"
	case StageAwaitingPhone:
		return "awaiting_phone"
	case StageAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Order holds the data collected during the order dialog.
type Order struct {
	Stage     Stage
	Product   string
	Delivery  string
	Phone     string
	Username  string
	StartedAt time.Time
}

// State is the session record of one chat. Name is the display name seen
// by the operator and is kept only while the chat is in operator mode.
type State struct {
	Mode      Mode
	Order     *Order
	Name      string
	UpdatedAt time.Time
}

// Idle reports whether the state carries nothing worth storing.
func (s State) Idle() bool {
	return s.Mode == ModeNone && s.Order == nil
}

func (s State) clone() State {
	if s.Order != nil {
		o := *s.Order
		s.Order = &o
	}
	return s
}

// normalize enforces that an order exists exactly while the chat is in the order flow.
func (s *State) normalize(now time.Time) {
	if !s.Mode.OperatorChat() {
		s.Name = ""
	}
	switch {
	case s.Mode != ModeOrderFlow:
		s.Order = nil
	case s.Order == nil:
		s.Order = &Order{Stage: StageAwaitingProduct, StartedAt: now}
	}
}
