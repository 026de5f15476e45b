package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// wsMessage is sent from client to drive its map session.
type wsMessage struct {
	Action string          `json:"action"` // "events" (default) | "resize" | "reset" | "frame"
	Events []mapview.Event `json:"events,omitempty"`
	Width  float64         `json:"width,omitempty"`
	Height float64         `json:"height,omitempty"`
}

// wsFrame is pushed to the client after each message and whenever another
// session moves a marker.
type wsFrame struct {
	Type  string        `json:"type"` // "frame" | "update"
	Frame mapview.Frame `json:"frame"`
	Error string        `json:"error,omitempty"`
}

// MapWebSocketHandler streams gesture events for the session named by the
// :id route parameter and answers with frames. The session stays open when
// the socket closes; clients close it explicitly or let it expire.
func MapWebSocketHandler(maps *usecases.MapService) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		id := c.Params("id")
		logger := slog.Default().With("session_id", id, "remote", c.RemoteAddr().String())

		updates, unsubscribe, err := maps.Updates(id)
		if err != nil {
			_ = c.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
			return
		}
		defer unsubscribe()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("map socket connected")

		var mu sync.Mutex
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Pushes remote marker moves and keeps the connection alive.
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case _, ok := <-updates:
					if !ok {
						return
					}
					frame, err := maps.Frame(id)
					if err != nil {
						return
					}
					if writeJSON(wsFrame{Type: "update", Frame: frame}) != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsFrame{Type: "error", Error: "invalid JSON"})
				continue
			}

			var frame mapview.Frame
			switch m.Action {
			case "", "events":
				if len(m.Events) > maxEventBatch {
					_ = writeJSON(wsFrame{Type: "error", Error: "too many events in one batch"})
					continue
				}
				countEvents(m.Events)
				frame, err = maps.Dispatch(ctx, id, m.Events)
			case "resize":
				frame, err = maps.Resize(id, m.Width, m.Height)
			case "reset":
				frame, err = maps.Reset(id)
			case "frame":
				frame, err = maps.Frame(id)
			default:
				_ = writeJSON(wsFrame{Type: "error", Error: "unknown action: " + m.Action})
				continue
			}

			out := wsFrame{Type: "frame", Frame: frame}
			if err != nil {
				out.Error = err.Error()
			}
			if errors.Is(err, domain.ErrSessionNotFound) {
				out.Type = "error"
				_ = writeJSON(out)
				break
			}
			if writeJSON(out) != nil {
				break
			}
		}

		close(done)
		logger.Info("map socket disconnected")
	}
}
