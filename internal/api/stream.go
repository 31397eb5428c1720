package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pdroute/internal/model"
	"pdroute/internal/store"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// RunStreamHandler handles GET /v1/runs/{id}/stream. It upgrades to a
// WebSocket and sends run events as JSON text frames until the run finishes.
// A run that already finished gets its final event immediately.
func (s *Server) RunStreamHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	// subscribe before reading the run so a completion in between is not lost
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "run not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	write := func(evt Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(evt)
	}
	closeNormal := func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}

	if run.Finished() {
		_ = write(finalEvent(run))
		closeNormal()
		return
	}

	// Read loop: only control frames matter; it ends when the client goes away.
	done := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
			if evt.Terminal() {
				closeNormal()
				return
			}
		}
	}
}

func finalEvent(run model.Run) Event {
	if run.Status == model.RunFailed {
		return Event{Type: EventRunFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}}
	}
	return Event{Type: EventRunCompleted, Data: map[string]any{"run": run.Brief()}}
}
