package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// previewMessage is one websocket frame: a freshly rendered page.
type previewMessage struct {
	Type string `json:"type"`
	Page int    `json:"page"`
	SVG  string `json:"svg"`
}

// handleWebSocket streams preview updates: whenever the session's coalesced
// render fires (drags, setters, undo), the selected page is re-rendered and
// pushed to the client.
func (ui *CompositorUI) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	entry := ui.sessionOr404(w, r)
	if entry == nil {
		return
	}
	sess := entry.session

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// renders is a one-slot mailbox: a render that fires while a push is in
	// flight replaces the previous request instead of queueing behind it.
	renders := make(chan struct{}, 1)
	sess.SetRenderHook(func() {
		select {
		case renders <- struct{}{}:
		default:
		}
	})
	defer sess.SetRenderHook(func() {})

	// prime the mailbox so the client gets an initial frame to paint
	select {
	case renders <- struct{}{}:
	default:
	}

	done := make(chan struct{})
	defer close(done)

	// Single writer: renders and pings go through one goroutine, since the
	// connection allows only one concurrent writer.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-renders:
				svg, err := sess.PageSVG(r.Context())
				if err != nil {
					slog.Warn("preview render failed", "error", err)
					continue
				}
				msg := previewMessage{Type: "render", Page: sess.SelectedPage(), SVG: svg}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error", "error", err)
			}
			break
		}
		if messageType == websocket.CloseMessage {
			break
		}
	}
}
