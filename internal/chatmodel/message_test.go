package chatmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInboundEnvelope_ToMessage(t *testing.T) {
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	env := InboundEnvelope{
		Platform:        "discord",
		StreamID:        "s1",
		UserID:          "u1",
		UserDisplayName: "Alice",
		Timestamp:       ts,
		Text:            "hello",
		IsMention:       true,
	}
	msg := env.ToMessage("m-123")
	require.Equal(t, "m-123", msg.ID)
	require.Equal(t, "discord", msg.Platform)
	require.Equal(t, "s1", msg.StreamID)
	require.Equal(t, "u1", msg.UserID)
	require.Equal(t, "Alice", msg.UserDisplayName)
	require.Equal(t, ts, msg.Timestamp)
	require.Equal(t, "hello", msg.Text)
	require.True(t, msg.IsMention)
}
