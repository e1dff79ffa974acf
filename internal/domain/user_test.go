package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	_, err := NewUser("", "", "x")
	assert.ErrorIs(t, err, ErrUserIDEmpty)
	_, err = NewUser(strings.Repeat("a", MaxUserIDLen+1), "", "x")
	assert.ErrorIs(t, err, ErrUserIDTooLong)

	u, err := NewUser("u1", "a@example.com", "Ann")
	require.NoError(t, err)
	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "Ann", u.Username)
}

func TestNewUserTrimsNameOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "ascii", in: strings.Repeat("a", MaxUsernameLen+10), want: MaxUsernameLen},
		// "я" is two bytes, so byte 64 would land mid-rune after one leading ASCII byte.
		{name: "two-byte runes", in: "a" + strings.Repeat("я", MaxUsernameLen), want: MaxUsernameLen - 1},
		{name: "four-byte runes", in: strings.Repeat("😀", MaxUsernameLen), want: MaxUsernameLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser("u1", "", tt.in)
			require.NoError(t, err)
			assert.True(t, utf8.ValidString(u.Username))
			assert.Len(t, u.Username, tt.want)
			assert.True(t, strings.HasPrefix(tt.in, u.Username))
		})
	}
}
