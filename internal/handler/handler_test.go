package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/guild-roster/internal/database"
	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/guild-roster/internal/service"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "rosters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	surface := display.NewRedisSurface(rdb, "test")
	svc := service.NewRosterService(sqlite.NewRosterRepo(db), sqlite.NewTemplateRepo(db), surface)
	_, err = svc.ImportTemplate(context.Background(), "g1", "zvz", "org", []string{"Tank", "Healer", "DPS"})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	checks := map[string]HealthCheck{
		"redis":  surface.Ping,
		"sqlite": db.PingContext,
	}
	srv := httptest.NewServer(NewRouter(NewRosterHandler(svc, surface), log, checks))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) (int, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderGuild, "g1")
	if user != "" {
		req.Header.Set(HeaderUser, user)
	}
	if user == "admin" {
		req.Header.Set(HeaderPrivileged, "true")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func createRoster(t *testing.T, srv *httptest.Server, eventID string) {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/rosters", "org", model.CreateRosterRequest{
		EventID:     eventID,
		Title:       "Castle siege",
		Date:        "01.01.2030",
		Time:        "20:00",
		Composition: "zvz",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
}

func TestCreateRoster(t *testing.T) {
	srv := setupServer(t)

	t.Run("issues an event id", func(t *testing.T) {
		status, body := do(t, srv, http.MethodPost, "/rosters", "org", map[string]any{
			"title": "Raid", "date": "02.01.2030", "time": "18:00", "composition": "zvz",
		})
		require.Equal(t, http.StatusCreated, status, string(body))

		var res service.Result
		require.NoError(t, json.Unmarshal(body, &res))
		assert.NotEmpty(t, res.Roster.EventID)
		assert.Equal(t, "org", res.Roster.Organizer)
		assert.Equal(t, "g1", res.Roster.GuildID)
		assert.Len(t, res.View.Parties[0].Lines, 3)
	})

	t.Run("validation error", func(t *testing.T) {
		status, body := do(t, srv, http.MethodPost, "/rosters", "org", map[string]any{
			"title": "Raid", "date": "2030-01-02", "time": "18:00", "composition": "zvz",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "Invalid date")
	})

	t.Run("unknown field", func(t *testing.T) {
		status, _ := do(t, srv, http.MethodPost, "/rosters", "org", map[string]any{"capacity": 10})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing guild header", func(t *testing.T) {
		resp, err := srv.Client().Post(srv.URL+"/rosters", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRosterFlow(t *testing.T) {
	srv := setupServer(t)
	createRoster(t, srv, "E1")

	status, body := do(t, srv, http.MethodPost, "/rosters/E1/claim", "U1", claimRequest{RoleID: 2})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = do(t, srv, http.MethodPost, "/rosters/E1/claim", "U2", claimRequest{RoleID: 2})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "already assigned")

	status, _ = do(t, srv, http.MethodPost, "/rosters/E1/release", "U2", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, srv, http.MethodGet, "/participants/U1/rosters", "U1", nil)
	require.Equal(t, http.StatusOK, status)
	var entries []model.ParticipantEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Healer", entries[0].RoleName)

	status, body = do(t, srv, http.MethodPost, "/rosters/E1/absent", "org", presenceRequest{Present: []string{"U9"}})
	require.Equal(t, http.StatusOK, status)
	var res service.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, []string{"U1"}, res.Affected)

	status, _ = do(t, srv, http.MethodPost, "/rosters/E1/alert", "U1", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, srv, http.MethodPatch, "/rosters/E1", "org", model.MetadataFields{Title: strPtr("Night siege")})
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, srv, http.MethodPost, "/rosters/E1/clear", "org", clearRequest{RoleIDs: []int{2}})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, service.OutcomeCleared, res.Outcome)

	status, _ = do(t, srv, http.MethodDelete, "/rosters/E1", "U1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = do(t, srv, http.MethodDelete, "/rosters/E1", "admin", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, srv, http.MethodGet, "/rosters/E1", "U1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImportComposition(t *testing.T) {
	srv := setupServer(t)

	status, _ := do(t, srv, http.MethodPost, "/compositions", "org", compositionRequest{Name: "small", Roles: []string{"Caller"}})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = do(t, srv, http.MethodPost, "/compositions", "org", compositionRequest{Name: "small", Roles: []string{"Caller"}})
	assert.Equal(t, http.StatusConflict, status)
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	status, body := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","redis":"ok","sqlite":"ok"}`, string(body))
}

func TestWatch(t *testing.T) {
	srv := setupServer(t)
	createRoster(t, srv, "E1")

	header := http.Header{}
	header.Set(HeaderGuild, "g1")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rosters/E1/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	read := func() display.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var evt display.Event
		require.NoError(t, conn.ReadJSON(&evt))
		return evt
	}

	snap := read()
	assert.Equal(t, kindSnapshot, snap.Kind)
	require.NotNil(t, snap.View)
	assert.Empty(t, snap.View.Parties[0].Lines[0].Occupant)

	status, _ := do(t, srv, http.MethodPost, "/rosters/E1/claim", "U1", claimRequest{RoleID: 1})
	require.Equal(t, http.StatusOK, status)

	evt := read()
	assert.Equal(t, display.EventUpdated, evt.Kind)
	require.NotNil(t, evt.View)
	assert.Equal(t, "U1", evt.View.Parties[0].Lines[0].Occupant)

	status, _ = do(t, srv, http.MethodDelete, "/rosters/E1", "org", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, display.EventDeleted, read().Kind)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestWatchUnknownRoster(t *testing.T) {
	srv := setupServer(t)

	header := http.Header{}
	header.Set(HeaderGuild, "g1")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rosters/nope/watch"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func strPtr(s string) *string { return &s }
