package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"go.uber.org/zap"
)

// handleStream pushes the caller's in-app notifications as Server-Sent
// Events until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if s.bus == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "in-app stream disabled")
		return
	}

	userID := actorFrom(r.Context()).UserID
	events, unsubscribe, err := s.bus.Subscribe(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(s.opts.StreamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Get().Error("encode stream event", zap.Error(err))
				continue
			}
			id := ""
			if ev.Notification != nil {
				id = ev.Notification.ID
			}
			fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Type, id, data)
			flusher.Flush()
		}
	}
}
