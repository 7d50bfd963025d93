package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bloxkit/experience-notify/internal/api/handler"
	apimw "github.com/bloxkit/experience-notify/internal/api/middleware"
	"github.com/bloxkit/experience-notify/internal/crypto"
	"github.com/bloxkit/experience-notify/internal/fingerprint"
	"github.com/bloxkit/experience-notify/internal/queue"
	"github.com/bloxkit/experience-notify/internal/ratelimiter"
)

// RouterDeps carries everything the HTTP surface needs. Explicit fields
// instead of a long positional parameter list.
type RouterDeps struct {
	Queue       *queue.NotificationQueue
	Cipher      *crypto.Cipher
	Fingerprint *fingerprint.Generator
	Limiters    *ratelimiter.KeyLimiters
	Registry    prometheus.Gatherer
	AccessToken string
	Logger      *zap.Logger

	// OnRateLimited fires for every request the limiter rejects;
	// OnSubmitted fires for every accepted submission. Either may be nil.
	OnRateLimited func()
	OnSubmitted   func()
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(deps.Logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(deps.Queue, deps.Cipher, deps.Logger, deps.OnSubmitted)
	mh := handler.NewMetricsHandler(deps.Queue, deps.Limiters)
	hh := handler.NewHealthHandler(deps.Queue)

	// --- routes ---
	// Root stays open: it is the liveness probe and service banner.
	r.Get("/", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RequireBearer(deps.AccessToken))
		r.Use(apimw.GzipRequestBody)

		// Only the submit route is rate limited. Status and cancel are
		// cheap reads / idempotent deletes and stay unthrottled so a
		// limited client can still observe and clean up its jobs.
		r.With(apimw.RateLimitByFingerprint(deps.Fingerprint, deps.Limiters, deps.OnRateLimited)).
			Post("/send-experience-notification", nh.Send)

		r.Get("/get-experience-notification-status", nh.Status)
		r.Post("/cancel-experience-notification", nh.Cancel)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
