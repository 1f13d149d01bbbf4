package feed

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"
)

// Handler accepts free-text feed items over HTTP POST.
// Params: pipeline destination, HTTP ingest config, metrics, and logger.
// Returns: handler answering 202 for accepted items.
func Handler(pipeline *Pipeline, cfg config.FeedHTTPConfig, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		item, err := domain.DecodeFeedItem(body)
		if err != nil {
			metrics.FeedDropped.WithLabelValues(dropInvalid).Inc()
			logger.Warn("feed ingest decode failed", "error", err.Error())
			http.Error(w, "invalid feed item", http.StatusBadRequest)
			return
		}

		if err := pipeline.Process(r.Context(), item); err != nil {
			logger.Error("feed ingest processing failed", "error", err.Error())
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}
