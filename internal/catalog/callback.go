package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadCallback marks callback data that does not decode.
var ErrBadCallback = errors.New("malformed callback data")

// Callback scopes and actions.
const (
	ScopeOrder = "order"
	ScopeRelay = "relay"
	ScopeMenu  = "menu"

	ActionDelivery = "delivery"
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"

	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionClose   = "close"

	ActionOrder    = "order"
	ActionOperator = "operator"
)

// Telegram rejects callback data longer than 64 bytes.
const maxCallbackLen = 64

// Callback is button payload in the form scope:action[:arg].
type Callback struct {
	Scope  string
	Action string
	Arg    string
}

func (c Callback) Encode() string {
	s := c.Scope + ":" + c.Action
	if c.Arg != "" {
		s += ":" + c.Arg
	}
	return s
}

// ChatID parses Arg as a chat id.
func (c Callback) ChatID() (int64, error) {
	id, err := strconv.ParseInt(c.Arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: chat id %q", ErrBadCallback, c.Arg)
	}
	return id, nil
}

// DecodeCallback parses scope:action[:arg] data. Malformed input wraps ErrBadCallback.
func DecodeCallback(data string) (Callback, error) {
	if data == "" || len(data) > maxCallbackLen {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	cb := Callback{Scope: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		cb.Arg = parts[2]
	}
	return cb, nil
}

func DeliveryData(option string) string {
	return Callback{Scope: ScopeOrder, Action: ActionDelivery, Arg: option}.Encode()
}

func RelayData(action string, chatID int64) string {
	return Callback{Scope: ScopeRelay, Action: action, Arg: strconv.FormatInt(chatID, 10)}.Encode()
}
