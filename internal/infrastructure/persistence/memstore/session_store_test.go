package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	_, ok, err := s.Get(ctx, "story-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "story-1", "resp_abc"))
	token, ok, err := s.Get(ctx, "story-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "resp_abc", token)

	init, err := s.IsInitialized(ctx, "story-1")
	require.NoError(t, err)
	assert.False(t, init)

	require.NoError(t, s.MarkInitialized(ctx, "story-1"))
	init, err = s.IsInitialized(ctx, "story-1")
	require.NoError(t, err)
	assert.True(t, init)

	require.NoError(t, s.Clear(ctx, "story-1"))
	_, ok, err = s.Get(ctx, "story-1")
	require.NoError(t, err)
	assert.False(t, ok)
	init, err = s.IsInitialized(ctx, "story-1")
	require.NoError(t, err)
	assert.False(t, init)
}

func TestSessionStoreIsolatedPerStory(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	require.NoError(t, s.Set(ctx, "story-1", "token-1"))
	require.NoError(t, s.Set(ctx, "story-2", "token-2"))
	require.NoError(t, s.Clear(ctx, "story-1"))

	token, ok, err := s.Get(ctx, "story-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token-2", token)
}

func TestSessionStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			storyID := fmt.Sprintf("story-%d", n%5)
			_ = s.Set(ctx, storyID, fmt.Sprintf("token-%d", n))
			_, _, _ = s.Get(ctx, storyID)
			_ = s.MarkInitialized(ctx, storyID)
			_, _ = s.IsInitialized(ctx, storyID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		_, ok, err := s.Get(ctx, fmt.Sprintf("story-%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
