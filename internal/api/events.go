package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

const writeWait = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams every published View of the session's form as JSON
// text frames, starting with the current one.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := logging.New("events")

	header := http.Header{}
	id := sessionID(header, r)
	ctrl, err := h.registry.Controller(id, schema.Variant(mux.Vars(r)["variant"]))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, header)
	if err != nil {
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	release := h.registry.Hold(id)
	defer release()

	views, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ctrl.View()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				logger.Debug("event stream closed", "session", id, "error", err)
				return
			}
		}
	}
}
