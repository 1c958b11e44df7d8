package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the UI is served from its own origin during development
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamMsg is one websocket frame: a batch of new lines, or the
// terminal state as the closing frame.
type streamMsg struct {
	Type  string          `json:"type"` // "lines" | "state"
	Lines []model.LogLine `json:"lines,omitempty"`
	State model.RunState  `json:"state,omitempty"`
}

// streamLog pushes the accumulated buffer and then every delta until
// the run reaches a terminal state. A reconnecting client receives the
// whole buffer again; duplicate display is acceptable, loss is not.
func (s *Server) streamLog(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctrl := s.supervisor.Controller()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	next := 0
	for {
		if lines := ctrl.Since(next); len(lines) > 0 {
			next += len(lines)
			if err := conn.WriteJSON(streamMsg{Type: "lines", Lines: lines}); err != nil {
				return
			}
		}

		state := ctrl.State()
		if state.Terminal() && ctrl.LogLen() == next {
			_ = conn.WriteJSON(streamMsg{Type: "state", State: state})
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
