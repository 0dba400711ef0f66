package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/kartoza/exoplanet-portal/internal/flow"
)

func TestEventsStream(t *testing.T) {
	h := newTestHandler(&stubAPI{}, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/forms/user/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected a session cookie on the upgrade response")
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var view flow.View
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if view.State != flow.StateIdle {
		t.Errorf("Expected initial idle view, got %s", view.State)
	}

	req, _ := http.NewRequest("POST", server.URL+"/forms/user/reset", nil)
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if view.State != flow.StateIdle || view.Generation != 1 {
		t.Errorf("Expected published reset view, got %s gen %d", view.State, view.Generation)
	}
}

func TestEventsUnknownVariant(t *testing.T) {
	r := newRouter(newTestHandler(&stubAPI{}, nil))

	req := httptest.NewRequest("GET", "/forms/admin/events", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
