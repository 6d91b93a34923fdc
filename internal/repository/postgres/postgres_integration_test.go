//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Shivanand-hulikatti/guild-roster/internal/config"
	"github.com/Shivanand-hulikatti/guild-roster/internal/database"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

var errTaken = errors.New("slot taken")

// setupPostgres starts a PostgreSQL container and returns a migrated pool.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "guildroster",
		},
		// the server restarts once after running init scripts
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Postgres container")
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Postgres container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.Default().Store.Postgres
	cfg.Host = host
	cfg.Port = port.Port()

	pool, err := database.NewPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.MigratePostgres(ctx, pool))
	return pool
}

func newRoster(eventID, date string, roles ...string) *model.Roster {
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := &model.Roster{
		EventID:     eventID,
		GuildID:     "g1",
		Organizer:   "org",
		Title:       "Castle siege",
		Date:        date,
		Time:        "20:00",
		Composition: "zvz",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, name := range roles {
		r.Slots = append(r.Slots, model.RoleSlot{RoleID: i + 1, RoleName: name, Party: "Party 1"})
	}
	return r
}

func TestRosterRepository(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewRosterRepository(pool)
	ctx := context.Background()

	lock := 30
	r := newRoster("e1", "01.01.2030", "Tank", "Healer", "DPS")
	r.LockOffsetMinutes = &lock
	require.NoError(t, repo.Create(ctx, r))
	assert.ErrorIs(t, repo.Create(ctx, r), repository.ErrAlreadyExists)

	got, err := repo.Load(ctx, "e1", "g1")
	require.NoError(t, err)
	assert.Equal(t, r.Slots, got.Slots)
	require.NotNil(t, got.LockOffsetMinutes)
	assert.Equal(t, 30, *got.LockOffsetMinutes)

	_, err = repo.Load(ctx, "e1", "g2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	t.Run("concurrent claims serialise", func(t *testing.T) {
		const n = 20
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.Update(ctx, "e1", "g1", func(r *model.Roster) error {
					slot, _ := r.Slot(2)
					if !slot.Available() {
						return errTaken
					}
					slot.Occupant = fmt.Sprintf("U%d", i)
					return nil
				})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, errTaken)
			}
		}
		assert.Equal(t, 1, wins)

		got, err := repo.Load(ctx, "e1", "g1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("list by occupant", func(t *testing.T) {
		got, err := repo.Load(ctx, "e1", "g1")
		require.NoError(t, err)
		occupant := got.Slots[1].Occupant

		list, err := repo.ListByOccupant(ctx, "g1", occupant)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "e1", list[0].EventID)

		list, err = repo.ListByOccupant(ctx, "g1", "nobody")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete started before", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newRoster("old", "01.01.2020", "Tank")))
		ids, err := repo.DeleteStartedBefore(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, []string{"old"}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "e1", "g1"))
		assert.ErrorIs(t, repo.Delete(ctx, "e1", "g1"), repository.ErrNotFound)
	})
}

func TestTemplateRepository(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewTemplateRepository(pool)
	ctx := context.Background()

	names := make([]string, 22)
	for i := range names {
		names[i] = fmt.Sprintf("Role %d", i+1)
	}
	require.NoError(t, repo.PutTemplate(ctx, model.NewTemplate("g1", "zvz", "org", names)))
	assert.ErrorIs(t, repo.PutTemplate(ctx, model.NewTemplate("g1", "zvz", "org", names)), repository.ErrAlreadyExists)

	got, err := repo.GetTemplate(ctx, "zvz", "g1")
	require.NoError(t, err)
	require.Len(t, got.Roles, 22)
	assert.Equal(t, "Party 2", got.Roles[21].Party)
	assert.Equal(t, "org", got.Owner)

	_, err = repo.GetTemplate(ctx, "zvz", "g2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
