package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starsystemlabs/nebula-telemetry/pkg/cache"
	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
	"github.com/starsystemlabs/nebula-telemetry/pkg/httputil"
	"github.com/starsystemlabs/nebula-telemetry/pkg/rolling"
	"github.com/starsystemlabs/nebula-telemetry/pkg/stats"
	"github.com/starsystemlabs/nebula-telemetry/pkg/timeseries"
)

// Query modes of the analytics endpoint. The bare endpoint serves the
// aggregate view.
const (
	modeAggregate  = "aggregate"
	modeTimeseries = "timeseries"
	modeCompare    = "compare"
)

// handleAnalytics dispatches a query to the requested view. Identical
// timeseries and compare requests arriving within the dedup window are
// answered from the dedup cache before any handler runs.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.WriteServiceUnavailable(w, "analytics store not configured")
		return
	}

	rng, err := timeseries.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid range parameter")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = modeAggregate
	}

	hash := cache.RequestHash(mode, r.URL.Query())
	// Aggregate answers never enter the dedup cache, so only the
	// timeseries and compare views consult it.
	if s.dedup != nil && mode != modeAggregate {
		if payload, ok := s.dedup.Get(r.Context(), hash); ok {
			if s.metrics != nil {
				s.metrics.CacheHitsTotal.WithLabelValues("dedup").Inc()
			}
			w.Header().Set("X-Cache", "DEDUP-HIT")
			w.Header().Set("X-Request-Hash", hash)
			writeRaw(w, payload)
			return
		}
	}

	switch mode {
	case modeAggregate:
		s.serveAggregate(w, r, rng, hash)
	case modeTimeseries:
		s.serveTimeseries(w, r, rng, hash)
	case modeCompare:
		s.serveCompare(w, r, rng, hash)
	default:
		httputil.WriteBadRequest(w, "Invalid mode parameter")
	}
}

// serveAggregate computes the metrics document for one period. The
// rolling windows are advanced with the period's outcomes before
// computing, and fresh baselines are persisted whenever the period
// held real samples.
func (s *Server) serveAggregate(w http.ResponseWriter, r *http.Request, rng timeseries.Range, hash string) {
	ctx := r.Context()
	start := time.Now()

	cacheKey := fmt.Sprintf("aggregate:%s", rng)
	if payload, ok := s.cacheGet(ctx, cacheKey); ok {
		s.recordQuery(modeAggregate, rng, "hit", start)
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("X-Request-Hash", hash)
		writeRaw(w, payload)
		return
	}

	to := s.now().UnixMilli()
	from := to - rng.Duration().Milliseconds()

	events, err := s.store.EventsBetween(ctx, from, to)
	if err != nil {
		s.recordQuery(modeAggregate, rng, "error", start)
		s.logger.WithError(err).Error("failed to read events")
		httputil.WriteInternalError(w, err)
		return
	}

	walletWin := s.advanceWindow(ctx, rolling.FamilyWallet, rolling.WalletOutcomes(events))
	loadWin := s.advanceWindow(ctx, rolling.FamilyLoad, rolling.LoadOutcomes(events))

	history, err := s.store.LoadHistory(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load metric baselines")
	}

	agg := stats.Compute(stats.Input{
		Events:       events,
		WalletWindow: walletWin,
		LoadWindow:   loadWin,
		History:      history,
		Now:          to,
	})
	s.persistBaselines(ctx, agg)

	resp := AggregateResponse{
		Range:   string(rng),
		Period:  Period{Start: isoMillis(from), End: isoMillis(to)},
		Metrics: agg,
		Meta: AggregateMeta{
			TotalRawEvents: len(events),
			CacheStatus:    "MISS",
			GeneratedAt:    isoMillis(to),
		},
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.recordQuery(modeAggregate, rng, "error", start)
		httputil.WriteInternalError(w, err)
		return
	}
	s.cacheSet(ctx, cacheKey, payload)

	s.recordQuery(modeAggregate, rng, "miss", start)
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("X-Request-Hash", hash)
	writeRaw(w, payload)
}

// serveTimeseries builds the bucketed series for one period. An empty
// period still returns a drawable series: a synthetic one projected
// from the aggregate view of the rolling windows and baselines.
func (s *Server) serveTimeseries(w http.ResponseWriter, r *http.Request, rng timeseries.Range, hash string) {
	ctx := r.Context()
	start := time.Now()

	cacheKey := fmt.Sprintf("timeseries:%s", rng)
	if payload, ok := s.cacheGet(ctx, cacheKey); ok {
		s.recordQuery(modeTimeseries, rng, "hit", start)
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("X-Request-Hash", hash)
		writeRaw(w, payload)
		return
	}

	to := s.now().UnixMilli()
	from := to - rng.Duration().Milliseconds()

	events, err := s.store.EventsBetween(ctx, from, to)
	if err != nil {
		s.recordQuery(modeTimeseries, rng, "error", start)
		s.logger.WithError(err).Error("failed to read events")
		httputil.WriteInternalError(w, err)
		return
	}

	res := timeseries.Build(events, rng, to)
	if len(res.Series) == 0 {
		agg := s.computeWithCurrentWindows(ctx, events, to)
		res.FillSynthetic(agg, rng, from)
	}

	resp := TimeseriesResponse{
		Range:      string(rng),
		Period:     Period{Start: isoMillis(from), End: isoMillis(to)},
		Timeseries: res.Series,
		Metadata: TimeseriesMeta{
			Metadata:            res.Metadata,
			BucketSize:          res.BucketWidth,
			DataQuality:         res.Quality,
			ProcessingTimestamp: isoMillis(to),
		},
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.recordQuery(modeTimeseries, rng, "error", start)
		httputil.WriteInternalError(w, err)
		return
	}
	s.cacheSet(ctx, cacheKey, payload)
	s.dedupSet(ctx, hash, payload)

	if s.metrics != nil {
		s.metrics.InterpolationRate.Set(res.Quality.InterpolationRate)
	}
	s.recordQuery(modeTimeseries, rng, "miss", start)
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("X-Request-Hash", hash)
	w.Header().Set("X-Data-Quality", fmt.Sprintf("%.0f", res.Quality.QualityScore))
	w.Header().Set("X-Interpolation-Rate", fmt.Sprintf("%.1f", res.Quality.InterpolationRate))
	w.Header().Set("X-Raw-Metrics", fmt.Sprintf("%d", len(events)))
	writeRaw(w, payload)
}

// serveCompare computes the current and previous periods side by side.
// Both event sets are fetched concurrently; comparisons are always
// computed fresh so the deltas never mix cached and live data.
func (s *Server) serveCompare(w http.ResponseWriter, r *http.Request, rng timeseries.Range, hash string) {
	ctx := r.Context()
	start := time.Now()

	to := s.now().UnixMilli()
	width := rng.Duration().Milliseconds()
	curFrom := to - width
	prevFrom := curFrom - width

	var curEvents, prevEvents []event.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		curEvents, err = s.store.EventsBetween(gctx, curFrom, to)
		return err
	})
	g.Go(func() error {
		var err error
		prevEvents, err = s.store.EventsBetween(gctx, prevFrom, curFrom)
		return err
	})
	if err := g.Wait(); err != nil {
		s.recordQuery(modeCompare, rng, "error", start)
		s.logger.WithError(err).Error("failed to read comparison periods")
		httputil.WriteInternalError(w, err)
		return
	}

	history, err := s.store.LoadHistory(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load metric baselines")
	}

	// Rolling windows reflect the present, so only the current period
	// may consult them.
	walletWin, loadWin := s.currentWindows(ctx)
	curAgg := stats.Compute(stats.Input{
		Events:       curEvents,
		WalletWindow: walletWin,
		LoadWindow:   loadWin,
		History:      history,
		Now:          to,
	})
	prevAgg := stats.Compute(stats.Input{
		Events:  prevEvents,
		History: history,
		Now:     curFrom,
	})
	changes := stats.Compare(curAgg, prevAgg)

	resp := CompareResponse{
		Range:           string(rng),
		CurrentPeriod:   Period{Start: isoMillis(curFrom), End: isoMillis(to)},
		PreviousPeriod:  Period{Start: isoMillis(prevFrom), End: isoMillis(curFrom)},
		Current:         MetricsEnvelope{Metrics: curAgg},
		Previous:        MetricsEnvelope{Metrics: prevAgg},
		CurrentMetrics:  curAgg,
		PreviousMetrics: prevAgg,
		Comparison:      &changes,
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.recordQuery(modeCompare, rng, "error", start)
		httputil.WriteInternalError(w, err)
		return
	}
	s.cacheSet(ctx, fmt.Sprintf("compare:%s", rng), payload)
	s.dedupSet(ctx, hash, payload)

	s.recordQuery(modeCompare, rng, "miss", start)
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("X-Compression", "enabled")
	w.Header().Set("X-Metrics-Count", fmt.Sprintf("%d+%d", len(curEvents), len(prevEvents)))
	w.Header().Set("X-Request-Hash", hash)
	writeRaw(w, payload)
}

// advanceWindow folds a period's outcomes into a rolling window,
// falling back to the stored window when the update fails.
func (s *Server) advanceWindow(ctx context.Context, family string, outcomes []rolling.Outcome) *rolling.State {
	tracker := s.trackerFor(family)
	if tracker == nil {
		return nil
	}
	state, err := tracker.Update(ctx, family, outcomes)
	if err != nil {
		s.logger.WithError(err).WithField("family", family).Warn("failed to advance rolling window")
		state, err = tracker.Current(ctx, family)
		if err != nil {
			return nil
		}
	}
	return state
}

// currentWindows reads both rolling windows without advancing them.
func (s *Server) currentWindows(ctx context.Context) (wallet, load *rolling.State) {
	if s.wallet != nil {
		wallet, _ = s.wallet.Current(ctx, rolling.FamilyWallet)
	}
	if s.load != nil {
		load, _ = s.load.Current(ctx, rolling.FamilyLoad)
	}
	return wallet, load
}

func (s *Server) trackerFor(family string) *rolling.Tracker {
	if family == rolling.FamilyWallet {
		return s.wallet
	}
	return s.load
}

// computeWithCurrentWindows builds an aggregate over a period without
// advancing the rolling windows. Used for synthetic series, where the
// period is a projection rather than a report.
func (s *Server) computeWithCurrentWindows(ctx context.Context, events []event.Event, now int64) *stats.Aggregate {
	walletWin, loadWin := s.currentWindows(ctx)
	history, _ := s.store.LoadHistory(ctx)
	return stats.Compute(stats.Input{
		Events:       events,
		WalletWindow: walletWin,
		LoadWindow:   loadWin,
		History:      history,
		Now:          now,
	})
}

// persistBaselines saves the last-known rates and render profile for
// families the period actually observed, so later empty periods can
// fall back to them.
func (s *Server) persistBaselines(ctx context.Context, agg *stats.Aggregate) {
	q := agg.DataQuality
	if q.HasRealWalletData {
		err := s.store.SaveRateBaseline(ctx, rolling.FamilyWallet, &stats.KnownRate{
			SuccessRate: agg.WalletConnectSuccessRate,
			AvgTime:     agg.WalletConnectAvgTime,
			Timestamp:   agg.Timestamp,
		})
		if err != nil {
			s.logger.WithError(err).Warn("failed to save wallet rate baseline")
		}
	}
	if q.HasRealLoadData {
		err := s.store.SaveRateBaseline(ctx, rolling.FamilyLoad, &stats.KnownRate{
			SuccessRate: agg.WidgetLoadSuccessRate,
			Timestamp:   agg.Timestamp,
		})
		if err != nil {
			s.logger.WithError(err).Warn("failed to save load rate baseline")
		}
	}
	if q.HasRealRenderData {
		err := s.store.SaveRenderBaseline(ctx, &stats.RenderBaseline{
			Avg:          agg.RenderTimeAvg,
			P50:          agg.RenderTimeP50,
			P95:          agg.RenderTimeP95,
			Max:          agg.RenderTimeMax,
			Min:          agg.RenderTimeMin,
			Distribution: agg.RenderTimeDistribution,
			Timestamp:    agg.Timestamp,
		})
		if err != nil {
			s.logger.WithError(err).Warn("failed to save render baseline")
		}
	}
}

func (s *Server) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.respCache == nil {
		return nil, false
	}
	payload, ok := s.respCache.Get(ctx, key)
	if s.metrics != nil {
		if ok {
			s.metrics.CacheHitsTotal.WithLabelValues("response").Inc()
		} else {
			s.metrics.CacheMissesTotal.WithLabelValues("response").Inc()
		}
	}
	return payload, ok
}

func (s *Server) cacheSet(ctx context.Context, key string, payload []byte) {
	if s.respCache == nil {
		return
	}
	if err := s.respCache.Set(ctx, key, payload); err != nil {
		s.logger.WithError(err).Warn("failed to cache response")
	}
}

func (s *Server) dedupSet(ctx context.Context, hash string, payload []byte) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Set(ctx, hash, payload); err != nil {
		s.logger.WithError(err).Warn("failed to record dedup entry")
	}
}

func (s *Server) recordQuery(endpoint string, rng timeseries.Range, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryTotal.WithLabelValues(endpoint, string(rng), status).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint, string(rng)).Observe(time.Since(start).Seconds())
}

// writeRaw sends an already marshaled JSON payload.
func writeRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// isoMillis formats a unix millisecond timestamp the way the
// dashboard expects period boundaries.
func isoMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}
