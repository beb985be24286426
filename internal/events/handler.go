package events

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
)

// Handler exposes the long-lived event stream endpoint.
type Handler struct {
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewHandler creates the event stream handler.
func NewHandler(b *Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{broadcaster: b, logger: logger}
}

// Register mounts the stream route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.handleStream)
}

// handleStream pushes newline-delimited JSON frames until the client
// disconnects. Frames broadcast before the subscription existed are not
// replayed.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()

	sub := h.broadcaster.Register()
	defer sub.Close()

	h.logger.InfoContext(r.Context(), "event stream opened",
		"subscription_id", sub.ID,
		"browser", browser,
		"browser_version", version,
		"os", ua.OS(),
	)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.logger.InfoContext(r.Context(), "event stream closed", "subscription_id", sub.ID)
			return
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			// The frame slice is shared with every other subscriber, so it
			// must not be appended to; the delimiter is written separately.
			if err := writeFrame(w, frame); err != nil {
				// Write failures only end this subscriber's stream; other
				// subscribers are unaffected.
				h.logger.WarnContext(r.Context(), "event stream write failed",
					"subscription_id", sub.ID,
					"error", err,
				)
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
