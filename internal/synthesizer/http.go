package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/bpforge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
)

// ErrRejected means the service refused the request; retrying will not help
var ErrRejected = errors.New("synthesizer rejected the request")

// HTTPConfig configures the remote synthesizer client
type HTTPConfig struct {
	Endpoint         string
	Token            string
	Timeout          time.Duration
	RateLimit        float64 // requests per second, 0 for unlimited
	Burst            int
	TransportRetries int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTP calls a remote code generation service
type HTTP struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	mu      sync.RWMutex
}

type synthesizeResponse struct {
	Source string `json:"source"`
	Model  string `json:"model,omitempty"`
}

// NewHTTP creates a remote synthesizer client
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.TransportRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetHeader("User-Agent", "bpforge-synthesizer/1.0").
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	breaker := resilience.New("synthesizer", resilience.Settings{
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      cfg.OpenTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTP{resty: client, limiter: limiter, breaker: breaker, logger: logger}
}

// SetRateLimit replaces the request rate limit
func (h *HTTP) SetRateLimit(rps float64, burst int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rps <= 0 {
		h.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	h.limiter = rate.NewLimiter(rate.Limit(rps), max(1, burst))
}

// Breaker exposes the circuit breaker for health reporting
func (h *HTTP) Breaker() *resilience.Breaker {
	return h.breaker
}

// Synthesize posts the request and returns the artifact source
func (h *HTTP) Synthesize(ctx context.Context, req Request) (string, error) {
	h.mu.RLock()
	limiter := h.limiter
	h.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return "", classify(ctx, fmt.Errorf("rate limit: %w", err))
	}

	source, err := resilience.Do(ctx, h.breaker, func(ctx context.Context) (string, error) {
		var out synthesizeResponse
		resp, err := h.resty.R().
			SetContext(ctx).
			SetHeader("X-Request-ID", req.ID.String()).
			SetHeaders(tracing.Headers(ctx)).
			SetBody(req).
			SetResult(&out).
			Post("/v1/synthesize")
		if err != nil {
			return "", classify(ctx, err)
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return "", fmt.Errorf("%w: status %d", ErrTimeout, code)
		case code == http.StatusTooManyRequests || code >= 500:
			return "", fmt.Errorf("%w: status %d", ErrUnavailable, code)
		case code >= 400:
			return "", fmt.Errorf("%w: status %d: %s", ErrRejected, code, strings.TrimSpace(resp.String()))
		}
		if strings.TrimSpace(out.Source) == "" {
			return "", ErrEmptyArtifact
		}
		h.logger.Debug("Artifact synthesized",
			zap.String("component", req.Contract.Component),
			zap.String("request_id", req.ID.String()),
			zap.String("model", out.Model),
			zap.Int("bytes", len(out.Source)))
		return out.Source, nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrProbeInFlight) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return source, err
}

// classify maps transport failures onto synthesis errors
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
