package orch

import (
	"testing"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrch(t *testing.T) *Orchestrator {
	t.Helper()
	return New(app.NewRoomRegistry(), core.NewCryptoTokens(), 0)
}

func TestNewDefaultsJoinHistory(t *testing.T) {
	o := newOrch(t)
	assert.Equal(t, DefaultJoinHistory, o.JoinHistory)
}

func TestJoinSendShareFlow(t *testing.T) {
	o := newOrch(t)
	tok, err := o.CreateRoom()
	require.NoError(t, err)
	assert.True(t, o.RoomExists(tok))

	res, err := o.Join("c-alice", tok, "alice")
	require.NoError(t, err)
	assert.Equal(t, tok, res.PrimaryToken)
	assert.Equal(t, 1, res.UserCount)
	assert.Empty(t, res.Messages)
	assert.False(t, res.UsedShareToken)

	primary, msg, ok := o.Send(tok, "alice", "ciphertext1", 1700000000000)
	require.True(t, ok)
	assert.Equal(t, tok, primary)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)

	share, err := o.GenerateShareToken(tok)
	require.NoError(t, err)
	resolved, ok := o.ResolvePrimary(share)
	require.True(t, ok)
	assert.Equal(t, tok, resolved)

	res, err = o.Join("c-bob", share, "bob")
	require.NoError(t, err)
	assert.Equal(t, tok, res.PrimaryToken)
	assert.Equal(t, 2, res.UserCount)
	assert.True(t, res.UsedShareToken)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, msg, res.Messages[0])

	status := o.CheckRoom(share)
	assert.Equal(t, RoomStatus{Exists: true, UserCount: 2, PrimaryRoomToken: tok}, status)

	sess, ok := o.Disconnect("c-alice")
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, 1, o.UserCount(tok))

	_, ok = o.Disconnect("c-alice")
	assert.False(t, ok)
}

func TestJoinHistoryIsCapped(t *testing.T) {
	o := New(app.NewRoomRegistry(), core.NewCryptoTokens(), 2)
	tok, _ := o.CreateRoom()
	for _, p := range []string{"m1", "m2", "m3"} {
		_, _, ok := o.Send(tok, "alice", p, 0)
		require.True(t, ok)
	}
	res, err := o.Join("c1", tok, "bob")
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "m2", res.Messages[0].EncryptedMessage)
	assert.Equal(t, "m3", res.Messages[1].EncryptedMessage)
}

func TestUnknownRoom(t *testing.T) {
	o := newOrch(t)

	_, err := o.Join("c1", "missing", "alice")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, _, ok := o.Send("missing", "alice", "ciphertext", 0)
	assert.False(t, ok)

	_, err = o.GenerateShareToken("missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.Equal(t, RoomStatus{}, o.CheckRoom("missing"))
	assert.False(t, o.RoomExists("missing"))
}

func TestSendAfterRoomDeletedIsDropped(t *testing.T) {
	o := newOrch(t)
	tok, _ := o.CreateRoom()
	require.True(t, o.Rooms.DeleteRoom(tok))

	_, _, ok := o.Send(tok, "alice", "ciphertext", 0)
	assert.False(t, ok)
}
