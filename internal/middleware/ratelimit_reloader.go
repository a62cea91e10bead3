package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/sage-coach/internal/database"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

// DefaultRatelimitRate applies when neither the database nor the environment sets one
const DefaultRatelimitRate = "5-S"

// RateLimitReloader applies a per-IP ulule limiter whose rate is read from the database and reloaded periodically
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	repo        database.RatelimitConfigRepositoryInterface
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current http.Handler
	rate    string
}

// NewRateLimitReloader creates the reloader. store is usually a ulule Redis store.
func NewRateLimitReloader(store limiter.Store, repo database.RatelimitConfigRepositoryInterface, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware wraps next with the limiter and loads the initial rate
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the formatted rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) resolveRate(ctx context.Context) string {
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		return r.defaultRate
	case cfg != nil && cfg.Rate != "":
		return cfg.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
		return r.defaultRate
	}
}

func (r *RateLimitReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}

	rateStr := r.resolveRate(ctx)
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
			return
		}
	}

	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(r.limitReached),
		stdlibmw.WithErrorHandler(r.limiterFailed),
	)
	h := mw.Handler(r.next)

	r.mu.Lock()
	r.current = h
	r.rate = rateStr
	r.mu.Unlock()

	r.log.Info("ratelimit_applied", zap.String("rate", rateStr))
}

func (r *RateLimitReloader) limitReached(w http.ResponseWriter, req *http.Request) {
	respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", fmt.Sprintf("Rate limit %s exceeded", r.Rate()), r.log)
}

// limiterFailed fails open so a Redis outage does not take the API down
func (r *RateLimitReloader) limiterFailed(w http.ResponseWriter, req *http.Request, err error) {
	r.log.Warn("ratelimit_store_error", zap.Error(err))
	r.next.ServeHTTP(w, req)
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
