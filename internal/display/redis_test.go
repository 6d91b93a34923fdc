package display

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
)

// setupSurface creates a surface connected to a miniredis instance
func setupSurface(t *testing.T) (*RedisSurface, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisSurface(rdb, "test"), mr
}

func view(eventID string, version int64, title string) *model.View {
	return &model.View{
		EventID: eventID,
		Version: version,
		Title:   title,
		Footer:  "Event ID: " + eventID,
		Affordances: []model.Affordance{
			{Kind: model.AffordanceJoin, Label: "Join", CustomID: "join|" + eventID},
		},
	}
}

func TestPublishFetch(t *testing.T) {
	s, mr := setupSurface(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, view("e1", 1, "Siege")))
	assert.True(t, mr.Exists("test:artifact:e1"))

	a, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateActive, a.State)
	assert.Equal(t, int64(1), a.Version)
	require.NotNil(t, a.View)
	assert.Equal(t, "Siege", a.View.Title)
	assert.Len(t, a.View.Affordances, 1)
	assert.False(t, a.UpdatedAt.IsZero())

	_, err = s.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.True(t, IsMissing(err))
}

func TestUpdate(t *testing.T) {
	s, _ := setupSurface(t)
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, view("e1", 1, "v1")))

	t.Run("newer version applies", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, view("e1", 3, "v3")))
		a, err := s.Fetch(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "v3", a.View.Title)
	})

	t.Run("stale version is ignored", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, view("e1", 2, "v2")))
		a, err := s.Fetch(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "v3", a.View.Title)
		assert.Equal(t, int64(3), a.Version)
	})

	t.Run("missing artifact", func(t *testing.T) {
		err := s.Update(ctx, view("nope", 5, "x"))
		assert.ErrorIs(t, err, ErrArtifactMissing)
	})
}

func TestInvalidate(t *testing.T) {
	s, _ := setupSurface(t)
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, view("e1", 1, "Siege")))

	require.NoError(t, s.Invalidate(ctx, "e1", "This event no longer exists"))

	a, err := s.Fetch(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, StateInvalidated, a.State)
	assert.Equal(t, "This event no longer exists", a.Notice)
	assert.Nil(t, a.View, "affordances must be stripped with the view")

	err = s.Update(ctx, view("e1", 9, "revived"))
	assert.ErrorIs(t, err, ErrArtifactInvalidated)
}

func TestDelete(t *testing.T) {
	s, mr := setupSurface(t)
	ctx := context.Background()
	require.NoError(t, s.Publish(ctx, view("e1", 1, "Siege")))

	require.NoError(t, s.Delete(ctx, "e1"))
	assert.False(t, mr.Exists("test:artifact:e1"))
	assert.NoError(t, s.Delete(ctx, "e1"), "deleting twice is fine")
}

func TestWatch(t *testing.T) {
	s, _ := setupSurface(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := s.Watch(ctx, "e1")
	require.NoError(t, err)

	require.NoError(t, s.Publish(ctx, view("other", 1, "ignored")))
	require.NoError(t, s.Publish(ctx, view("e1", 1, "Siege")))
	require.NoError(t, s.Update(ctx, view("e1", 2, "Siege v2")))
	require.NoError(t, s.Delete(ctx, "e1"))

	var kinds []EventKind
	for len(kinds) < 3 {
		select {
		case evt := <-events:
			assert.Equal(t, "e1", evt.EventID)
			kinds = append(kinds, evt.Kind)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for events, got %v", kinds)
		}
	}
	assert.Equal(t, []EventKind{EventPublished, EventUpdated, EventDeleted}, kinds)

	cancel()
	for range events {
	}
}
