package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input   string
		want    Channel
		wantErr bool
	}{
		{"push", ChannelPush, false},
		{"inapp", ChannelInApp, false},
		{"PUSH", ChannelPush, false},
		{"email", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseChannel(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, NormalizePriority("high"))
	assert.Equal(t, PriorityMedium, NormalizePriority("Medium"))
	assert.Equal(t, PriorityLow, NormalizePriority("low"))
	// Unknown priorities degrade to low instead of failing the fetch.
	assert.Equal(t, PriorityLow, NormalizePriority("urgent"))
	assert.Equal(t, PriorityLow, NormalizePriority(""))
}

func TestIdentityStringParseRoundTrip(t *testing.T) {
	id := NewIdentity(ChannelPush, "n-123")
	assert.Equal(t, "push:n-123", id.String())

	parsed, err := ParseIdentity(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	// Remote IDs may themselves contain colons.
	id = NewIdentity(ChannelInApp, "shift:2026-08-23:42")
	parsed, err = ParseIdentity(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIdentityRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "push", "push:", "email:n-1", ":n-1"} {
		_, err := ParseIdentity(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIdentityLess(t *testing.T) {
	// Channel is compared first, then remote ID.
	a := NewIdentity(ChannelInApp, "z")
	b := NewIdentity(ChannelPush, "a")
	assert.True(t, a.Less(b), "inapp sorts before push")
	assert.False(t, b.Less(a))

	c := NewIdentity(ChannelPush, "n-1")
	d := NewIdentity(ChannelPush, "n-2")
	assert.True(t, c.Less(d))
	assert.False(t, d.Less(c))
	assert.False(t, c.Less(c))
}

func TestSameRemoteIDDistinctAcrossChannels(t *testing.T) {
	push := NewIdentity(ChannelPush, "n-1")
	inapp := NewIdentity(ChannelInApp, "n-1")
	assert.NotEqual(t, push, inapp)
	assert.NotEqual(t, push.String(), inapp.String())
}
