package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"StudyBuddy/internal/config"
)

const instrumentationName = "StudyBuddy/internal/backend"

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	usage      metric.Int64Counter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for outbound calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTelemetry sets the tracer and meter. Nil values keep the global providers.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
		if meter != nil {
			c.initInstruments(meter)
		}
	}
}

// NewClient creates a completion client from the completion config.
func NewClient(cfg config.CompletionConfig, opts ...Option) *Client {
	c := &Client{
		settings: Settings{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Persona:     cfg.Persona,
		},
		// Timeout 0 leaves the call unbounded.
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
	}
	c.initInstruments(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) initInstruments(meter metric.Meter) {
	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Completion request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	counter, err := meter.Int64Counter(
		"llm.usage.tokens",
		metric.WithDescription("Tokens reported by the completion service"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}
	c.duration = histogram
	c.usage = counter
}

// Settings returns the fixed request parameters.
func (c *Client) Settings() Settings {
	return c.settings
}

// Endpoint returns the chat completions URL.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.settings.BaseURL, "/") + "/chat/completions"
}

// Complete sends message upstream once. A non-nil error is either a
// *TransportError or a *StatusError; otherwise the reply is Recognized or
// Unrecognized.
func (c *Client) Complete(ctx context.Context, apiKey, message string) (Reply, error) {
	ctx, span := c.tracer.Start(ctx, "completion_call",
		trace.WithAttributes(attribute.String("llm.model", c.settings.Model)))
	defer span.End()

	start := time.Now()

	jsonData, err := json.Marshal(NewCompletionRequest(c.settings, message))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.recordDuration(ctx, time.Since(start), resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("completion response", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: UpstreamErrorMessage(body)}
	}

	reply := DecodeReply(body)
	if r, ok := reply.(Recognized); ok {
		c.recordUsage(ctx, r)
	}
	return reply, nil
}

func (c *Client) recordDuration(ctx context.Context, d time.Duration, status int) {
	if c.duration == nil {
		return
	}
	c.duration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(attribute.Int("http.response.status_code", status)))
}

// recordUsage records the usage block of a recognized reply
func (c *Client) recordUsage(ctx context.Context, r Recognized) {
	if c.usage == nil || r.Usage == nil {
		return
	}
	c.usage.Add(ctx, int64(r.Usage.PromptTokens), metric.WithAttributes(attribute.String("kind", "prompt")))
	c.usage.Add(ctx, int64(r.Usage.CompletionTokens), metric.WithAttributes(attribute.String("kind", "completion")))
}
