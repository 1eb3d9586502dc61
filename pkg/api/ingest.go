package api

import (
	"net/http"
	"strconv"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/httputil"
)

// handleIngest stores a batch of widget events. Only the first
// MaxIngestBatch events of an oversized batch are kept; the response
// reports both the stored count and the submitted size so clients can
// detect truncation.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteServiceUnavailable(w, "analytics store not configured")
		return
	}
	ctx := r.Context()

	var req IngestRequest
	if err := httputil.ParseJSON(r, &req); err != nil || len(req.Metrics) == 0 {
		httputil.WriteBadRequest(w, "Invalid metrics data")
		return
	}

	batch := req.Metrics
	originalSize := len(batch)
	if len(batch) > MaxIngestBatch {
		batch = batch[:MaxIngestBatch]
	}

	now := s.now()
	stored, err := s.store.AppendEvents(ctx, batch, now)
	if err != nil {
		s.logger.WithError(err).Error("failed to store event batch")
		httputil.WriteInternalError(w, err)
		return
	}

	// Stored events change every cached view.
	if s.respCache != nil {
		if err := s.respCache.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to invalidate response cache")
		}
	}

	if s.metrics != nil {
		s.metrics.IngestBatchSize.Observe(float64(originalSize))
		for _, e := range batch {
			s.metrics.EventsIngestedTotal.WithLabelValues(string(event.Classify(e))).Inc()
		}
		if dropped := originalSize - stored; dropped > 0 {
			s.metrics.EventsDroppedTotal.WithLabelValues("batch_overflow").Add(float64(dropped))
		}
		if total, err := s.store.EventCount(ctx); err == nil {
			s.metrics.EventsStoredTotal.Set(float64(total))
		}
	}

	w.Header().Set("X-Compression", "enabled")
	w.Header().Set("X-Batch-Size", strconv.Itoa(MaxIngestBatch))
	w.Header().Set("X-Stored-Count", strconv.Itoa(stored))
	httputil.WriteJSON(w, http.StatusOK, IngestResponse{
		Success:      true,
		Stored:       stored,
		Compressed:   true,
		OriginalSize: originalSize,
		Timestamp:    now.UnixMilli(),
	})
}
