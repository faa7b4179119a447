// Package api implements the indexer's read-side HTTP surface (spec.md
// §6.4), routed with go-chi and wrapped with the teacher's gateway
// middleware (CORS, rate limiting, JWT auth for the /ingest/* routes),
// with per-route metrics recorded through observability.ModuleMetrics.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fluxfield/clmm/gateway/middleware"
	"github.com/fluxfield/clmm/observability"
	"github.com/fluxfield/clmm/services/indexerd"
	"github.com/fluxfield/clmm/services/indexerd/storage"
	"github.com/fluxfield/clmm/services/indexerd/webhook"
)

// Server wires a Store into the §6.4 endpoints, plus an authenticated
// ingest surface that feeds the Projector and fans events out to any
// registered webhook dispatchers.
type Server struct {
	store       storage.Store
	projector   *indexerd.Projector
	dispatchers []*webhook.Dispatcher
	logger      *log.Logger
	router      chi.Router
}

// NewServer builds the router. auth is optional; when non-nil its
// Middleware gates the ingest route, reusing the same bearer-token scheme
// as the rest of the gateway surface. projector and dispatchers may be nil
// when only the read endpoints are needed (e.g. tests).
func NewServer(store storage.Store, projector *indexerd.Projector, dispatchers []*webhook.Dispatcher, auth *middleware.Authenticator, limiter *middleware.RateLimiter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: store, projector: projector, dispatchers: dispatchers, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.CORS(middleware.CORSConfig{}))
	r.Use(metricsMiddleware)
	if limiter != nil {
		r.Use(limiter.Middleware("public"))
	}

	r.Get("/markets", s.listMarkets)
	r.Get("/markets/{address}", s.getMarket)
	r.Get("/markets/{address}/swaps", s.listMarketSwaps)
	r.Get("/markets/{address}/ohlcv", s.getOHLCV)
	r.Get("/swaps", s.getSwapBySignature)
	r.Get("/positions/{address}", s.getPosition)
	r.Get("/protocol/stats/24h", s.getProtocolStats)

	ingest := func(next http.Handler) http.Handler { return next }
	if auth != nil {
		ingest = auth.Middleware("indexer:ingest")
	}
	r.With(ingest).Post("/ingest/accounts", s.ingestAccountUpdate)
	r.With(ingest).Post("/ingest/swaps", s.ingestSwapEvent)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records per-route request counts and latency through
// the shared module metrics registry. It reads the matched chi route
// pattern after the handler returns, since chi only populates it once
// routing has completed.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		observability.ModuleMetrics().Observe("indexerd", pattern, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func paginationFromQuery(r *http.Request) storage.PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return storage.PaginationParams{Limit: limit, Offset: offset}
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.Markets(r.Context(), paginationFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	market, err := s.store.Market(r.Context(), address)
	if err == storage.ErrNotFound {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *Server) listMarketSwaps(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	swaps, err := s.store.SwapsByMarket(r.Context(), address, paginationFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, swaps)
}

func (s *Server) getSwapBySignature(w http.ResponseWriter, r *http.Request) {
	signature := r.URL.Query().Get("signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "signature query parameter required")
		return
	}
	swap, err := s.store.SwapBySignature(r.Context(), signature)
	if err == storage.ErrNotFound {
		writeError(w, http.StatusNotFound, "swap not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, swap)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	position, err := s.store.Position(r.Context(), address)
	if err == storage.ErrNotFound {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (s *Server) getProtocolStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ProtocolStats24h(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getOHLCV(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	interval := storage.CandleInterval(r.URL.Query().Get("interval"))
	if _, ok := interval.Duration(); !ok {
		writeError(w, http.StatusBadRequest, "unsupported interval")
		return
	}
	start, err := parseUnixParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseUnixParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}
	candles, err := s.store.OHLCV(r.Context(), address, interval, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, candles)
}

// ingestAccountUpdate applies a pushed account record to the projector and
// fans a market-updated event out to registered webhooks. The stream
// transport and wire encoding are left to the caller; this endpoint only
// accepts the already-decoded record shape the projector understands.
func (s *Server) ingestAccountUpdate(w http.ResponseWriter, r *http.Request) {
	if s.projector == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest not configured")
		return
	}
	var update indexerd.AccountUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid account update payload")
		return
	}
	if err := s.projector.Apply(r.Context(), update); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if market, err := s.store.Market(r.Context(), update.Pubkey); err == nil {
		s.notifyMarketUpdate(market)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "applied"})
}

func (s *Server) ingestSwapEvent(w http.ResponseWriter, r *http.Request) {
	if s.projector == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest not configured")
		return
	}
	var ev indexerd.SwapEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid swap event payload")
		return
	}
	if err := s.projector.ApplySwap(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notifySwap(ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "applied"})
}

func (s *Server) notifyMarketUpdate(market storage.Market) {
	for _, d := range s.dispatchers {
		_ = d.EnqueueMarketUpdate(webhook.MarketUpdatedPayload{
			MarketAddr: market.Address,
			Tick:       market.CurrentTick,
			Liquidity:  market.Liquidity,
			Slot:       market.LastSlot,
		})
	}
}

func (s *Server) notifySwap(ev indexerd.SwapEvent) {
	for _, d := range s.dispatchers {
		_ = d.EnqueueSwap(webhook.SwapExecutedPayload{
			MarketAddr:     ev.MarketAddr,
			Signature:      ev.Signature,
			Trader:         ev.Trader,
			AmountIn:       ev.AmountIn,
			AmountOut:      ev.AmountOut,
			PriceImpactBps: ev.PriceImpactBps,
			ExecutedAt:     ev.ExecutedAt,
		})
	}
}

func parseUnixParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
