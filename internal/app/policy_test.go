package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name string
		want BackpressureAction
	}{
		{name: "", want: KickMember},
		{name: "kick", want: KickMember},
		{name: "drop", want: DropMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.OnBackPressure("room", "conn"))
		})
	}

	_, err := PolicyByName("ignore")
	assert.ErrorContains(t, err, `unknown backpressure policy "ignore"`)
}
