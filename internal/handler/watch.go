package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Shivanand-hulikatti/guild-roster/internal/display"
	"github.com/Shivanand-hulikatti/guild-roster/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// kindSnapshot marks the first message of a watch stream, the view as it
// was when the client connected.
const kindSnapshot display.EventKind = "snapshot"

// Watch handles GET /rosters/{id}/watch
// Upgrades to a websocket and streams every change of the roster's display
// artifact until the roster is deleted or invalidated.
func (h *RosterHandler) Watch(w http.ResponseWriter, r *http.Request) {
	if h.watcher == nil {
		writeError(w, http.StatusNotImplemented, "live view is not available")
		return
	}
	id := identityFrom(r)
	if !requireGuild(w, id) {
		return
	}
	eventID := chi.URLParam(r, "id")
	log := logging.FromContext(r.Context())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before reading the snapshot so no change falls in between
	events, err := h.watcher.Watch(ctx, eventID)
	if err != nil {
		log.Error("failed to subscribe to roster changes", "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to watch roster")
		return
	}
	res, err := h.svc.GetRoster(ctx, id.guild, eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		log.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	go readPump(conn, cancel)

	if err := writeEvent(conn, display.Event{Kind: kindSnapshot, EventID: eventID, View: res.View}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			closeConn(conn)
			return
		case evt, ok := <-events:
			if !ok {
				closeConn(conn)
				return
			}
			if err := writeEvent(conn, evt); err != nil {
				log.Debug("watch client gone", "error", err)
				return
			}
			if evt.Kind == display.EventDeleted || evt.Kind == display.EventInvalidated {
				closeConn(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are handled, and
// cancels the stream once the client goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, evt display.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(evt)
}

func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
