// Package provider is the HTTP client for the external emotion analysis
// service.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"diary-backend/application/ports"
	"diary-backend/domain/core/entities"
	"diary-backend/domain/core/valueobjects"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

const (
	opCreateSession = "create_session"
	opAnalyze       = "analyze"

	maxResponseBytes = 1 << 20
)

// errCallerGone marks a call the caller abandoned before the provider
// answered. The breaker does not count it against the provider.
var errCallerGone = errors.New("caller abandoned provider call")

// Config configures the provider client
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Breaker settings. The breaker trips once MinRequests calls inside
	// Interval fail at FailureThreshold or above, and stays open for OpenTimeout.
	BreakerMinRequests      uint32
	BreakerFailureThreshold float64
	BreakerInterval         time.Duration
	BreakerOpenTimeout      time.Duration
}

// DefaultConfig returns a config with a five second call timeout
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                 baseURL,
		Timeout:                 5 * time.Second,
		BreakerMinRequests:      5,
		BreakerFailureThreshold: 0.6,
		BreakerInterval:         30 * time.Second,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

type createSessionRequest struct {
	UserID int64 `json:"user_id"`
}

type createSessionResponse struct {
	AssistantID string `json:"assistant_id"`
	ThreadID    string `json:"thread_id"`
}

type analyzeRequest struct {
	AssistantID string `json:"assistant_id"`
	ThreadID    string `json:"thread_id"`
	Message     string `json:"message"`
}

type analyzeResponse struct {
	EmotionAnalysis string             `json:"emotion_analysis"`
	Summary         string             `json:"summary"`
	Advice          string             `json:"advice"`
	TotalScore      valueobjects.Score `json:"total_score"`
}

// Client calls the provider over JSON/HTTP behind a circuit breaker
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *zap.Logger
}

var _ ports.AnalysisProvider = (*Client)(nil)

// NewClient creates a new provider client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis-provider",
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		breaker:    breaker,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateSession asks the provider for the user's assistant and thread
func (c *Client) CreateSession(ctx context.Context, userID int64) (entities.SessionHandle, error) {
	var resp createSessionResponse
	if err := c.call(ctx, opCreateSession, "/get_or_create_assistant", createSessionRequest{UserID: userID}, &resp); err != nil {
		return entities.SessionHandle{}, err
	}

	handle := entities.SessionHandle{AssistantID: resp.AssistantID, ThreadID: resp.ThreadID}
	if !handle.IsComplete() {
		return entities.SessionHandle{}, pkgerrors.NewProviderUnavailableError(opCreateSession,
			fmt.Errorf("provider returned an incomplete session handle"))
	}
	return handle, nil
}

// Analyze sends the entry text to the user's provider thread
func (c *Client) Analyze(ctx context.Context, session entities.SessionHandle, text string) (*entities.AnalysisRecord, error) {
	req := analyzeRequest{
		AssistantID: session.AssistantID,
		ThreadID:    session.ThreadID,
		Message:     text,
	}
	var resp analyzeResponse
	if err := c.call(ctx, opAnalyze, "/analyze", req, &resp); err != nil {
		return nil, err
	}

	return &entities.AnalysisRecord{
		Summary:   resp.Summary,
		Sentiment: resp.EmotionAnalysis,
		Advice:    resp.Advice,
		Score:     resp.TotalScore,
	}, nil
}

func (c *Client) call(ctx context.Context, op, path string, body, out interface{}) error {
	ctx, span := observability.Tracer().Start(ctx, "provider."+op)
	defer span.End()
	span.SetAttributes(attribute.String("provider.path", path))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("analysis provider call '%s' not started: %w", op, err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		err := c.post(ctx, path, body, out)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
		}
		return nil, err
	})
	if c.metrics != nil {
		c.metrics.RecordProviderCall(op, time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, errCallerGone) {
		c.logger.Debug("Analysis provider call abandoned by caller",
			zap.String("operation", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("analysis provider call '%s' abandoned: %w", op, err)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn("Analysis provider call failed",
		zap.String("operation", op),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return pkgerrors.NewProviderUnavailableError(op, err)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider responded %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// State exposes the breaker state for readiness checks
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
