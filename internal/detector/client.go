package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/approachability-meter/internal/errors"
	"github.com/ZanzyTHEbar/approachability-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/approachability-meter/internal/types"
	"github.com/sony/gobreaker"
)

const (
	apiName    = "classifier"
	detectPath = "/api/detect/"

	defaultTimeout          = 10 * time.Second
	defaultMaxResponseBytes = 64 << 10
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// Classifier outcome labels
const (
	OutcomeSuccess        = "success"
	OutcomeClassification = "classification_error"
	OutcomeFailure        = "failure"
	OutcomeRejected       = "rejected"
)

type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64

	// FailureThreshold consecutive upstream failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Client talks to the external emotion classification service
type Client struct {
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
	breaker          *gobreaker.CircuitBreaker
	logger           *monitoring.Logger
	metrics          *monitoring.Metrics
}

func New(cfg Config, logger *monitoring.Logger, metrics *monitoring.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}

	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       newHTTPClient(cfg.Timeout),
		maxResponseBytes: cfg.MaxResponseBytes,
		logger:           logger,
		metrics:          metrics,
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        apiName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Frames the service answered but could not classify are not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || !apperrors.IsRetryableError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			c.metrics.SetBreakerState(to.String(), stateValue(to))
		},
	})

	return c
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State reports the breaker state: closed, half-open or open
func (c *Client) State() string {
	return c.breaker.State().String()
}

// DetectFrame encodes the frame as a data URL and classifies it
func (c *Client) DetectFrame(ctx context.Context, f Frame) (*types.DetectResponse, error) {
	return c.Detect(ctx, EncodeDataURL(f))
}

// Detect sends one data URL image to the classification service. The returned
// response always carries emotions; a service-side failure becomes an error.
func (c *Client) Detect(ctx context.Context, image string) (*types.DetectResponse, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, image)
	})

	duration := time.Since(start)

	if err != nil {
		outcome := OutcomeFailure
		var appErr *apperrors.AppError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = OutcomeRejected
			err = apperrors.NewExternalAPIError(apiName, err)
		case errors.As(err, &appErr) && appErr.Category == apperrors.CategoryClassification:
			outcome = OutcomeClassification
		}
		c.metrics.RecordClassifierCall(outcome, duration)
		return nil, err
	}

	c.metrics.RecordClassifierCall(OutcomeSuccess, duration)
	return result.(*types.DetectResponse), nil
}

func (c *Client) post(ctx context.Context, image string) (*types.DetectResponse, error) {
	body, err := json.Marshal(types.DetectRequest{Image: image})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode detect request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+detectPath, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid classifier URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ExternalAPILogger(apiName, http.MethodPost, detectPath, 0, time.Since(start), false)
		return nil, classifyTransportError(err)
	}
	defer apperrors.SafeClose(resp.Body, "classifier response body")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	c.logger.ExternalAPILogger(apiName, http.MethodPost, detectPath, resp.StatusCode, time.Since(start), err == nil && resp.StatusCode == http.StatusOK)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if int64(len(raw)) > c.maxResponseBytes {
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("response exceeds %d bytes", c.maxResponseBytes))
	}

	var out types.DetectResponse
	decodeErr := json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode >= 500:
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("status %d: %s", resp.StatusCode, upstreamMessage(&out, raw)))
	case resp.StatusCode >= 400:
		return nil, apperrors.NewValidationError(upstreamMessage(&out, raw))
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if decodeErr != nil {
		return nil, apperrors.NewExternalAPIError(apiName, fmt.Errorf("failed to decode response: %w", decodeErr))
	}
	if out.Error != "" {
		return nil, apperrors.NewClassificationError(out.Error)
	}
	if out.Emotions == nil {
		return nil, apperrors.NewClassificationError("response carried no emotions")
	}

	return &out, nil
}

func upstreamMessage(resp *types.DetectResponse, raw []byte) string {
	if resp.Error != "" {
		return resp.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return "classifier rejected the request"
	}
	return msg
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("classifier request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("classifier request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("classifier request cancelled", err)
	}
	return apperrors.NewNetworkError("classifier unreachable", err)
}
