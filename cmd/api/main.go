package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	events := eventQueue(cfg, redisClient)
	limiter := rateLimiter(cfg, redisClient)

	health := map[string]handler.HealthCheck{"db": db.Healthy}
	if redisClient != nil {
		health["redis"] = redisClient.Healthy
	}
	h := handler.New(
		attendance.NewStudentRepository(db.Client),
		attendance.NewRecordRepository(db.Client),
		handler.Options{
			Events:            events,
			Log:               log,
			ExposeStoreErrors: cfg.ExposeStoreErrors,
			Health:            health,
		},
	)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.AccessLog(log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.NewMetrics(prometheus.DefaultRegisterer).Handler())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter, log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}

// openDatabase creates the application database when missing, connects to it
// and ensures the tables exist. Any failure aborts startup.
func openDatabase(ctx context.Context, cfg config.Database, log logrus.FieldLogger) (*store.DB, error) {
	retry := store.Retry{Attempts: cfg.ConnectAttempts, Delay: cfg.ConnectDelay}

	admin, err := store.Open(ctx, cfg.MaintenanceURL(), 1, retry, log)
	if err != nil {
		return nil, fmt.Errorf("connect to maintenance database: %w", err)
	}
	err = store.EnsureDatabase(ctx, admin.Client, cfg.Name, cfg.Charset, log)
	_ = admin.Close()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.URL(), cfg.MaxOpenConns, retry, log)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Name, err)
	}
	if err := store.EnsureTables(ctx, db.Client, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.WithField("database", cfg.Name).Info("database ready")
	return db, nil
}

func eventQueue(cfg config.App, redisClient *store.Redis) queue.Queue {
	switch cfg.QueueBackend {
	case "redis":
		return queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	case "memory":
		// Nothing consumes it in this process; messages are dropped once full.
		return queue.NewInMemory(256)
	default:
		return queue.Discard{}
	}
}

func rateLimiter(cfg config.App, redisClient *store.Redis) httpmiddleware.Limiter {
	if cfg.RateLimitBackend == "redis" {
		return httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
