package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		cmd     Command
		args    string
		isSlash bool
		ok      bool
	}{
		{"/start", CmdStart, "", true, true},
		{"/start@relay_bot", CmdStart, "", true, true},
		{"/ORDER", CmdOrder, "", true, true},
		{"/export 48h", CmdExport, "48h", true, true},
		{ButtonOperator, CmdOperator, "", false, true},
		{"  " + ButtonHome + " ", CmdStart, "", false, true},
		{"/unknown", "", "", true, false},
		{"hello", "", "", false, false},
		{"", "", "", false, false},
	}

	for _, tt := range tests {
		cmd, args, isSlash, ok := ParseCommand(tt.input)
		assert.Equal(t, tt.cmd, cmd, "input: %q", tt.input)
		assert.Equal(t, tt.args, args, "input: %q", tt.input)
		assert.Equal(t, tt.isSlash, isSlash, "input: %q", tt.input)
		assert.Equal(t, tt.ok, ok, "input: %q", tt.input)
	}
}

func TestCallbackCodec(t *testing.T) {
	data := RelayData(ActionAccept, 123456789)
	assert.Equal(t, "relay:accept:123456789", data)

	cb, err := DecodeCallback(data)
	require.NoError(t, err)
	assert.Equal(t, ScopeRelay, cb.Scope)
	assert.Equal(t, ActionAccept, cb.Action)
	id, err := cb.ChatID()
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), id)

	cb, err = DecodeCallback("order:confirm")
	require.NoError(t, err)
	assert.Equal(t, "", cb.Arg)

	cb, err = DecodeCallback(DeliveryData("courier"))
	require.NoError(t, err)
	assert.Equal(t, "courier", cb.Arg)
}

func TestDecodeCallbackErrors(t *testing.T) {
	for _, data := range []string{"", "noop", ":x", "order:", string(make([]byte, 65))} {
		_, err := DecodeCallback(data)
		assert.True(t, errors.Is(err, ErrBadCallback), "data: %q", data)
	}

	cb := Callback{Scope: ScopeRelay, Action: ActionAccept, Arg: "abc"}
	_, err := cb.ChatID()
	assert.ErrorIs(t, err, ErrBadCallback)
}

func TestDeliveryLabel(t *testing.T) {
	label, ok := DeliveryLabel("courier")
	assert.True(t, ok)
	assert.NotEmpty(t, label)

	_, ok = DeliveryLabel("teleport")
	assert.False(t, ok)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "@ivan", DisplayName("ivan", "Ivan", "P"))
	assert.Equal(t, "Ivan P", DisplayName("", "Ivan", "P"))
	assert.Equal(t, "користувач", DisplayName("", "", ""))
}

func TestKeyboardsCarryCallbackData(t *testing.T) {
	kb := OperatorRequestKeyboard(77)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "relay:accept:77", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "relay:decline:77", *kb.InlineKeyboard[0][1].CallbackData)

	dk := DeliveryKeyboard()
	assert.Len(t, dk.InlineKeyboard, len(DeliveryOptions)+1)
}
