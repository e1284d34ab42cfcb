package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/approachability-meter/internal/config"
	"github.com/ZanzyTHEbar/approachability-meter/internal/detector"
	apperrors "github.com/ZanzyTHEbar/approachability-meter/internal/errors"
	"github.com/ZanzyTHEbar/approachability-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/approachability-meter/internal/poller"
	"github.com/ZanzyTHEbar/approachability-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/approachability-meter/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger.Logger)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	redisClient, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting falls back to memory", "error", err)
	}

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.RateLimitPerMin,
		BurstMultiplier: cfg.RateLimitBurstMultiplier,
	}, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &server{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		gatherer: prometheus.DefaultGatherer,
		hub:      view.NewHub(),
		limiter:  limiter,
		redis:    redisClient,
	}

	if cfg.ClassifierURL != "" {
		s.classifier = detector.New(detector.Config{
			BaseURL: cfg.ClassifierURL,
			Timeout: cfg.ClassifierTimeout,
		}, logger, metrics)
	} else {
		logger.Warn("CLASSIFIER_URL is not set, /api/detect/ will answer 503")
	}

	if cfg.PollerEnabled() {
		s.poller = poller.New(poller.Config{
			Interval:   cfg.PollInterval,
			Source:     poller.NewDirFrameSource(cfg.FrameDir),
			Classifier: s.classifier,
			Observer:   s.hub,
			Logger:     logger,
			Metrics:    metrics,
		})
		if err := s.poller.Start(ctx); err != nil {
			logger.Error("Failed to start poller", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Ends open event streams so Shutdown does not wait on them
	cancel()
	if s.poller != nil {
		s.poller.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	limiter.Close()
	apperrors.SafeClose(redisClient, "redis")

	logger.Info("Server exited")
}
