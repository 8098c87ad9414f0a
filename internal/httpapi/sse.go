package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MimeLyc/contextual-caption-translator/internal/jobs"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

type streamEvent struct {
	Jobs   []*jobs.TranslationJob `json:"jobs"`
	Videos []service.VideoStatus  `json:"videos"`
}

// handleJobStream pushes the job list and per-video progress as server sent
// events until the client goes away
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() bool {
		event := streamEvent{Jobs: []*jobs.TranslationJob{}, Videos: []service.VideoStatus{}}
		if s.queue != nil {
			event.Jobs = s.queue.List()
		}
		videos, err := s.captions.List(r.Context())
		if err != nil {
			log.Warn("Failed to list videos for progress stream: %v", err)
		} else {
			event.Videos = videos
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
