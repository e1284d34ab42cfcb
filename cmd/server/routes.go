package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/approachability-meter/internal/analysis"
	"github.com/ZanzyTHEbar/approachability-meter/internal/config"
	"github.com/ZanzyTHEbar/approachability-meter/internal/detector"
	apperrors "github.com/ZanzyTHEbar/approachability-meter/internal/errors"
	"github.com/ZanzyTHEbar/approachability-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/approachability-meter/internal/poller"
	"github.com/ZanzyTHEbar/approachability-meter/internal/ratelimit"
	"github.com/ZanzyTHEbar/approachability-meter/internal/security"
	"github.com/ZanzyTHEbar/approachability-meter/internal/types"
	"github.com/ZanzyTHEbar/approachability-meter/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// JSON envelope around the data URL
const bodyOverhead = 1 << 10

// server holds the collaborators shared by the HTTP handlers.
// classifier and poller are nil when the service is not configured for them.
type server struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *monitoring.Logger
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer

	hub        *view.Hub
	classifier *detector.Client
	poller     *poller.Poller
	limiter    *ratelimit.RateLimiter
	redis      *ratelimit.RedisClient
}

func setupRouter(s *server) *gin.Engine {
	r := gin.New()

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	sec := securityConfig(s.cfg)
	r.Use(sec.Middleware()...)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Reading the limits must not spend a token.
	r.GET("/api/ratelimit/status", s.limiter.HandleRateLimitStatus())

	api := r.Group("/api")
	api.Use(s.limiter.IPRateLimitMiddleware())

	api.POST("/detect/", append(sec.BodyGuards(), s.handleDetect)...)
	api.POST("/evaluate",
		security.ValidateContentType(),
		security.BodyLimit(bodyOverhead*16),
		s.handleEvaluate,
	)

	api.GET("/feedback/latest", s.handleLatest)
	api.GET("/feedback/stream", s.handleStream)

	api.POST("/poller/start", s.handlePollerStart)
	api.POST("/poller/stop", s.handlePollerStop)

	return r
}

// securityConfig sizes the request guards for the detect route: a data URL of
// up to MaxImageBytes plus its JSON envelope, and a classifier round trip.
func securityConfig(cfg *config.Config) security.SecurityConfig {
	return security.SecurityConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		EnableHSTS:     cfg.EnableHSTS,
		MaxBodyBytes:   cfg.MaxImageBytes + bodyOverhead,
		RequestTimeout: cfg.ClassifierTimeout + 5*time.Second,
	}
}

func (s *server) handleHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	classifier := gin.H{"configured": s.classifier != nil}
	if s.classifier != nil {
		state := s.classifier.State()
		classifier["breaker"] = state
		if state == "open" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	redisStatus := "disabled"
	if s.redis.IsEnabled() {
		redisStatus = "ok"
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "unavailable"
		}
	}

	pollerStatus := gin.H{"configured": s.poller != nil}
	if s.poller != nil {
		pollerStatus["running"] = s.poller.Running()
	}

	c.JSON(code, gin.H{
		"status":        status,
		"timestamp":     time.Now().Format(time.RFC3339),
		"version":       version,
		"classifier":    classifier,
		"poller":        pollerStatus,
		"redis":         redisStatus,
		"rate_limiter":  s.limiter.GetStats(),
		"metrics":       s.metrics.GetStats(),
		"memory":        monitoring.ReadMemoryStats(),
		"subscribers":   s.hub.Subscribers(),
		"dropped_views": s.hub.Dropped(),
	})
}

// handleDetect forwards one browser frame to the classifier and scores it
func (s *server) handleDetect(c *gin.Context) {
	var req types.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	if req.Image == "" {
		_ = c.Error(apperrors.NewValidationError("No image provided"))
		return
	}
	if int64(len(req.Image)) > s.cfg.MaxImageBytes {
		_ = c.Error(apperrors.NewPayloadTooLargeError(s.cfg.MaxImageBytes))
		return
	}
	if _, err := detector.DecodeDataURL(req.Image); err != nil {
		_ = c.Error(apperrors.NewValidationError("Invalid image", err.Error()))
		return
	}

	if s.classifier == nil {
		_ = c.Error(apperrors.NewConfigurationError("CLASSIFIER_URL is not set", nil))
		return
	}

	resp, err := s.classifier.Detect(c.Request.Context(), req.Image)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result := s.evaluate("detect", resp.Snapshot())

	// With no poller the browser drives the session, so stream viewers follow it.
	if s.poller == nil {
		s.hub.Publish(view.View{
			State:           view.StateActive,
			Emotions:        resp.Emotions,
			DominantEmotion: resp.DominantEmotion,
			Feedback:        result,
			UpdatedAt:       time.Now(),
		})
	}

	c.JSON(http.StatusOK, types.FeedbackResponse{
		Emotions:        resp.Emotions,
		DominantEmotion: resp.DominantEmotion,
		Approachability: result,
	})
}

// handleEvaluate scores an emotion mapping without calling the classifier
func (s *server) handleEvaluate(c *gin.Context) {
	var req types.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	result := s.evaluate("evaluate", analysis.SnapshotFromMap(req.Emotions))

	c.JSON(http.StatusOK, types.FeedbackResponse{Approachability: result})
}

func (s *server) evaluate(source string, snap *analysis.EmotionSnapshot) *analysis.FeedbackResult {
	start := time.Now()
	result := analysis.Evaluate(snap)
	elapsed := time.Since(start)

	score := 0
	if result != nil {
		score = result.ApproachabilityScore
	}
	rules := result.RuleNames()

	s.metrics.RecordEvaluation(source, result != nil, score, rules, elapsed)
	s.logger.EvaluationLogger(source, score, rules, elapsed)

	return result
}

func (s *server) handleLatest(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Latest())
}

// handleStream sends every published view as a server-sent "view" event,
// starting with the latest one.
func (s *server) handleStream(c *gin.Context) {
	updates, cancel := s.hub.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case v, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("view", v)
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.ctx.Done():
			return false
		}
	})
}

func (s *server) handlePollerStart(c *gin.Context) {
	if s.poller == nil {
		_ = c.Error(apperrors.NewConfigurationError("FRAME_DIR is not set", nil))
		return
	}

	if err := s.poller.Start(s.ctx); err != nil {
		if errors.Is(err, poller.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, s.hub.Latest())
}

func (s *server) handlePollerStop(c *gin.Context) {
	if s.poller == nil {
		_ = c.Error(apperrors.NewConfigurationError("FRAME_DIR is not set", nil))
		return
	}

	s.poller.Stop()
	c.JSON(http.StatusOK, s.hub.Latest())
}

func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewPayloadTooLargeError(maxErr.Limit)
	}
	return apperrors.NewValidationError("Invalid request body", err.Error())
}
