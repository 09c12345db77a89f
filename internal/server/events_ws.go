package server

import (
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/onepager/internal/events"
	"github.com/aristath/onepager/internal/utils"
)

const (
	// eventBuffer absorbs bursts per connection; when it fills, events are
	// dropped for that subscriber rather than blocking the bus.
	eventBuffer = 100

	heartbeatInterval = 30 * time.Second
)

// handleEvents handles GET /api/events: a websocket stream of progress
// events. An optional ?types= parameter (comma-separated event types)
// narrows the subscription; the default is everything.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}

	var allowedTypes map[events.EventType]bool
	if requested := utils.ParseCSV(r.URL.Query().Get("types")); requested != nil {
		allowedTypes = make(map[events.EventType]bool, len(requested))
		for _, t := range requested {
			allowedTypes[events.EventType(t)] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Write-only stream: CloseRead pumps the read side and cancels the
	// context when the client goes away.
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, eventBuffer)
	handler := func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			s.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	if allowedTypes == nil {
		for _, eventType := range events.AllTypes {
			s.bus.Subscribe(eventType, handler)
		}
	} else {
		for eventType := range allowedTypes {
			s.bus.Subscribe(eventType, handler)
		}
	}

	s.log.Info().Msg("Client connected to event stream")

	if err := wsjson.Write(ctx, conn, map[string]interface{}{
		"type":    "connected",
		"message": "Connected to research event stream",
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			payload := map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			}
			if err := wsjson.Write(ctx, conn, payload); err != nil {
				s.log.Debug().Err(err).Msg("Event write failed, closing stream")
				return
			}

		case <-heartbeat.C:
			if err := wsjson.Write(ctx, conn, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
