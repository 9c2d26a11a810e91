package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rendis/erdstudio/internal/streaming"
)

// sseHeartbeat keeps idle streams from being cut by proxies.
const sseHeartbeat = 25 * time.Second

// handleEvents streams the caller's session events as Server-Sent Events.
// Each frame carries a per-stream sequence id.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := streaming.EventFilter{SessionID: controllerFrom(r).SessionID()}
	events, unsubscribe, err := s.cfg.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.logger.Error("event stream subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case ev, open := <-events:
			if !open {
				return
			}
			seq++
			if err := writeFrame(w, seq, ev); err != nil {
				s.logger.Debug("dropping unencodable event", "event_type", ev.EventType, "error", err)
				continue
			}
		}
		flusher.Flush()
	}
}

func writeFrame(w io.Writer, seq uint64, ev streaming.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, ev.EventType, data)
	return err
}
