package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestActionType_Valid(t *testing.T) {
	for _, a := range ActionTypes {
		assert.True(t, a.Valid(), "%s should be valid", a)
	}
	assert.False(t, ActionType("user_kicked").Valid())
	assert.False(t, ActionType("").Valid())

	a, ok := ParseActionType("user_banned")
	assert.True(t, ok)
	assert.Equal(t, ActionUserBanned, a)
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"cyrillic cut on runes", "приветствую", 6, "привет"},
		{"zero limit", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateText(tt.in, tt.n))
		})
	}

	long := strings.Repeat("ж", 700)
	cut := TruncateText(long, MaxMessageTextLength)
	assert.Equal(t, MaxMessageTextLength, utf8.RuneCountInString(cut))
	assert.True(t, utf8.ValidString(cut))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	if p := StringPtr("x"); assert.NotNil(t, p) {
		assert.Equal(t, "x", *p)
	}
}
