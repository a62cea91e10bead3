package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/sage-coach/internal/config"
	"github.com/benvon/sage-coach/internal/database"
	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/handlers"
	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/middleware"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/queue"
	"github.com/benvon/sage-coach/internal/services/ai"
	"github.com/benvon/sage-coach/internal/services/captures"
	"github.com/benvon/sage-coach/internal/services/oidc"
	"github.com/benvon/sage-coach/internal/services/sessions"
	"github.com/benvon/sage-coach/internal/services/sessionstate"
	"github.com/benvon/sage-coach/internal/telemetry"
	"github.com/gorilla/mux"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const (
	configReloadInterval = time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including LLM request previews")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(telemetry.ServiceAPI, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("classify_mode", cfg.ClassifyMode),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracerProvider := telemetry.Setup(context.Background(), telemetry.ServiceAPI, cfg.OTELEnabled, cfg.OTELEndpoint, zapLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx, tracerProvider); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisLimiter, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisLimiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	docStore, err := documents.NewFileStore(cfg.DocumentRoot)
	if err != nil {
		zapLogger.Fatal("failed_to_open_document_store", zap.Error(err))
	}

	userRepo := database.NewUserRepository(db)
	sessionRepo := database.NewSessionRepository(db)
	messageRepo := database.NewMessageRepository(db)
	captureRepo := database.NewCaptureRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	healthChecks := map[string]handlers.Check{
		"database":       db.PingContext,
		"redis":          redisLimiter.Ping,
		"document_store": docStore.HealthCheck,
	}

	var dispatcher captures.Dispatcher
	var inline *captures.InlineDispatcher
	switch cfg.ClassifyMode {
	case config.ClassifyModeQueue:
		jobQueue, err := queue.ConnectWithRetry(context.Background(), cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		healthChecks["queue"] = jobQueue.HealthCheck
		dispatcher = captures.NewQueueDispatcher(jobQueue, zapLogger)
	default:
		runner := captures.NewRunner(newClassifier(cfg, zapLogger, debugMode), docStore, captureRepo, zapLogger)
		inline = captures.NewInlineDispatcher(runner, zapLogger)
		dispatcher = inline
	}

	detector := sessionstate.NewDetector(userRepo, sessionRepo, messageRepo, sessionstate.WithLogger(zapLogger))
	captureService := captures.NewService(userRepo, docStore, captureRepo, dispatcher, captures.WithLogger(zapLogger))
	sessionService := sessions.NewService(sessionRepo, messageRepo, userRepo, time.Now, zapLogger)

	oidcConfig := models.OIDCConfig{
		Issuer:       cfg.OIDCIssuer,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURI:  cfg.OIDCRedirectURI,
		JWKSURL:      cfg.OIDCJWKSURL,
		AuthURL:      cfg.OIDCAuthURL,
		TokenURL:     cfg.OIDCTokenURL,
	}
	oidcProvider := oidc.NewProvider(oidcConfig)
	verifier := oidc.NewVerifier(oidc.NewJWKSManager(oidcConfig.JWKSURL, oidc.DefaultJWKSTTL), oidcConfig.Issuer)

	limiterStore, err := redisstore.NewStore(redisLimiter.Client())
	if err != nil {
		zapLogger.Fatal("failed_to_create_redis_store_for_rate_limiter", zap.Error(err))
	}
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, cfg.RateLimit, zapLogger, configReloadInterval)
	rateLimitMW := rateLimitReloader.Middleware()
	authMW := middleware.Auth(verifier, userRepo, zapLogger)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(telemetry.ServiceAPI))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType(zapLogger))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	healthChecker := handlers.NewHealthChecker(healthChecks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	loginRouter := apiRouter.PathPrefix("/auth").Subrouter()
	loginRouter.Use(rateLimitMW)
	handlers.NewAuthHandler(oidcProvider, zapLogger).RegisterRoutes(loginRouter)

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(rateLimitMW)
	protected.Use(authMW)
	handlers.NewStateHandler(detector, zapLogger).RegisterRoutes(protected.PathPrefix("/session").Subrouter())
	handlers.NewCaptureHandler(captureService, docStore, zapLogger).RegisterRoutes(protected.PathPrefix("/captures").Subrouter())
	handlers.NewSessionHandler(sessionService, zapLogger).RegisterRoutes(protected.PathPrefix("/sessions").Subrouter())
	handlers.NewProfileHandler(userRepo, zapLogger).RegisterRoutes(protected.PathPrefix("/me").Subrouter())

	// Preflight requests are answered by the CORS middleware; this only gives them a route to match
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go rateLimitReloader.Start(reloadCtx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	if inline != nil {
		waitForClassifications(ctx, inline, zapLogger)
	}

	zapLogger.Info("server_exited")
}

// newClassifier falls back to a failing classifier so captures still save when no key is configured
func newClassifier(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) ai.Classifier {
	classifier, err := ai.NewClassifier(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("capture_classification_disabled", zap.Error(err))
		return ai.Unavailable{Err: fmt.Errorf("classification disabled: %w", err)}
	}
	return classifier
}

// waitForClassifications lets in-flight inline classifications finish, bounded by ctx
func waitForClassifications(ctx context.Context, inline *captures.InlineDispatcher, zapLogger *zap.Logger) {
	done := make(chan struct{})
	go func() {
		inline.Wait()
		close(done)
	}()
	select {
	case <-done:
		zapLogger.Info("inline_classifications_drained")
	case <-ctx.Done():
		zapLogger.Warn("inline_classifications_abandoned_on_shutdown")
	}
}
