package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "trimmed", in: "  bob\t", want: "bob"},
		{name: "empty", in: "", wantErr: ErrUsernameEmpty},
		{name: "blank", in: "   ", wantErr: ErrUsernameEmpty},
		{name: "at limit", in: strings.Repeat("a", MaxUsernameLen), want: strings.Repeat("a", MaxUsernameLen)},
		{name: "too long", in: strings.Repeat("a", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoomTokenShort(t *testing.T) {
	assert.Equal(t, "abc", RoomToken("abc").Short())
	assert.Equal(t, "01234567", RoomToken("0123456789abcdef").Short())
}
