package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/plan-auditor/internal/pipeline"
)

// SSE event names sent by POST /analyze/stream
const (
	eventProgress = "progress"
	eventComplete = "complete"
	eventError    = "error"
)

var errStreamingUnsupported = errors.New("response writer cannot stream")

// SSEWriter writes an analysis as a stream of server-sent events. Every event
// carries an increasing id so clients can tell whether they missed one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int
	// err is the first write failure; later writes are dropped
	err error
}

// NewSSEWriter sends the stream headers.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{w: w, flusher: flusher, nextID: 1}, nil
}

// WriteEvent sends one event with a JSON payload.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	if s.err != nil {
		return s.err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, payload); err != nil {
		s.err = err
		return err
	}
	s.nextID++
	s.flusher.Flush()
	return nil
}

// WriteProgress forwards a pipeline step event. It matches pipeline.ProgressCallback.
func (s *SSEWriter) WriteProgress(ev pipeline.ProgressEvent) {
	_ = s.WriteEvent(eventProgress, ev)
}

// WriteError ends the stream with the error and the status a plain request
// would have returned.
func (s *SSEWriter) WriteError(err error) {
	_ = s.WriteEvent(eventError, map[string]any{
		"error":  err.Error(),
		"status": HTTPStatus(err),
	})
}

// WriteComplete ends the stream with the analysis.
func (s *SSEWriter) WriteComplete(resp *AnalyzeResponse) {
	_ = s.WriteEvent(eventComplete, resp)
}
