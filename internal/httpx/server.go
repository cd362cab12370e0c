package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swaymx/sway-api/internal/apperr"
	"github.com/swaymx/sway-api/internal/catalog"
	"github.com/swaymx/sway-api/internal/metrics"
	"github.com/swaymx/sway-api/internal/orders"
	"github.com/swaymx/sway-api/internal/principal"
	"github.com/swaymx/sway-api/internal/sightings"
	"github.com/swaymx/sway-api/internal/stats"
	"github.com/swaymx/sway-api/internal/users"
)

// Deps are the services behind the API. Metrics and Gatherer may be nil.
type Deps struct {
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Verifier *principal.Verifier
	Timeout  time.Duration
	Ping     func(ctx context.Context) error

	Sightings  *sightings.Service
	Orders     *orders.Service
	Catalog    *catalog.Service
	Newsletter *users.Newsletter
	Stats      *stats.Service
}

func NewRouter(d Deps) *chi.Mux {
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log, d.Metrics), middleware.Recoverer)
	r.Use(middleware.Timeout(d.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ping != nil {
			if err := d.Ping(r.Context()); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate(d.Verifier, d.Log))

		(&SightingsHandler{Svc: d.Sightings, Log: d.Log}).Register(r)
		(&OrdersHandler{Svc: d.Orders, Log: d.Log}).Register(r)
		(&CatalogHandler{Svc: d.Catalog, Log: d.Log}).Register(r)
		(&SiteHandler{Newsletter: d.Newsletter, Stats: d.Stats, Log: d.Log}).Register(r)
	})
	return r
}

// requestLogger logs one line per request and feeds the HTTP metrics,
// labelled by route pattern so ids do not explode cardinality.
func requestLogger(log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			if m != nil {
				m.RecordHTTPRequest(r.Method, route, status, elapsed)
			}
			log.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

// authenticate derives the caller from an optional bearer token. No token
// means a guest; a token that does not verify is rejected.
func authenticate(v *principal.Verifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || v == nil || !v.Enabled() {
				next.ServeHTTP(w, r.WithContext(principal.WithContext(r.Context(), principal.Anonymous)))
				return
			}
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok {
				fail(w, r, log, apperr.Unauthorized("authorization header must be a bearer token"))
				return
			}
			p, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				log.Debug("token rejected", "err", err)
				fail(w, r, log, apperr.Unauthorized("invalid credentials"))
				return
			}
			next.ServeHTTP(w, r.WithContext(principal.WithContext(r.Context(), p)))
		})
	}
}
