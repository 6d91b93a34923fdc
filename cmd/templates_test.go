package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/guild-roster/internal/database"
	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/guild-roster/internal/service"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compositions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadCompositionFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, `
guild: "g1"
owner: "u1"
compositions:
  - name: zvz
    roles: [Caller, Tank, Healer]
`)
		file, err := readCompositionFile(path)
		require.NoError(t, err)
		assert.Equal(t, "g1", file.Guild)
		require.Len(t, file.Compositions, 1)
		assert.Equal(t, []string{"Caller", "Tank", "Healer"}, file.Compositions[0].Roles)
	})

	t.Run("missing guild", func(t *testing.T) {
		_, err := readCompositionFile(writeFile(t, "compositions: [{name: a, roles: [x]}]"))
		assert.ErrorContains(t, err, "guild is required")
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := readCompositionFile(writeFile(t, "guild: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readCompositionFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestImportCompositions(t *testing.T) {
	printer.Output = io.Discard
	t.Cleanup(func() { printer.Output = os.Stdout })

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "rosters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	templates := sqlite.NewTemplateRepo(db)
	svc := service.NewRosterService(sqlite.NewRosterRepo(db), templates, display.NewRedisSurface(rdb, "test"))

	file := &compositionFile{
		Guild: "g1",
		Owner: "u1",
		Compositions: []compositionRecord{
			{Name: "zvz", Roles: []string{"Caller", "Tank"}},
			{Name: "bad", Roles: []string{"A role name that is far too long"}},
			{Name: "zvz", Roles: []string{"Duplicate"}},
		},
	}
	assert.Equal(t, 1, importCompositions(context.Background(), svc, file))

	tmpl, err := templates.GetTemplate(context.Background(), "zvz", "g1")
	require.NoError(t, err)
	assert.Len(t, tmpl.Roles, 2)
}
