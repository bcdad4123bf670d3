package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mindloop/internal/chatmodel"
)

func TestChunkCache_SetGetDel(t *testing.T) {
	cc, err := newChunkCache(10)
	require.NoError(t, err)

	_, ok := cc.get("m1")
	require.False(t, ok)

	cc.set(chatmodel.MemoryChunk{MemoryID: "m1", Content: chatmodel.ContentStructure{Display: "hi"}})
	got, ok := cc.get("m1")
	require.True(t, ok)
	require.Equal(t, "hi", got.Content.Display)

	cc.del("m1")
	_, ok = cc.get("m1")
	require.False(t, ok)
}

func TestChunkCache_DefaultsMaxItemsWhenNonPositive(t *testing.T) {
	cc, err := newChunkCache(0)
	require.NoError(t, err)
	require.NotNil(t, cc.c)
}
