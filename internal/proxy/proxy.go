// Package proxy implements the chat proxy endpoint: one message in, one
// normalized reply or error envelope out.
package proxy

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"StudyBuddy/internal/backend"
	"StudyBuddy/internal/config"
)

const instrumentationName = "StudyBuddy/internal/proxy"

// Error messages returned in the envelope.
const (
	MsgInvalidBody    = "Invalid request body"
	MsgMissingMessage = "Missing message"
	MsgMissingAPIKey  = "Missing API key"
	MsgNoResponse     = "No response from AI."
	msgTransportFmt   = "Failed to reach AI service: %v"
	msgInternalFmt    = "Internal error: %v"
)

// Outcome labels used in logs and metrics.
const (
	OutcomeOK                = "ok"
	OutcomeBadRequest        = "bad_request"
	OutcomeMissingCredential = "missing_credential"
	OutcomeTransport         = "transport_error"
	OutcomeUpstreamStatus    = "upstream_error"
	OutcomeMalformedUpstream = "malformed_upstream"
	OutcomeInternal          = "internal_error"
)

// ChatRequest is the inbound body.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatResponse is the success body.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Debug any    `json:"debug,omitempty"`
}

// Completer sends one message to the completion service.
type Completer interface {
	Complete(ctx context.Context, apiKey, message string) (backend.Reply, error)
}

// Handler is the chat proxy. It keeps no state between requests.
type Handler struct {
	credential config.Credential
	completer  Completer
	logger     *slog.Logger
	tracer     trace.Tracer
	outcomes   metric.Int64Counter
	tokens     metric.Int64Histogram
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithTelemetry sets the tracer and meter. Nil values keep the global providers.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(h *Handler) {
		if tracer != nil {
			h.tracer = tracer
		}
		if meter != nil {
			h.initInstruments(meter)
		}
	}
}

// NewHandler returns a proxy handler using credential for every outbound call.
func NewHandler(credential config.Credential, completer Completer, opts ...Option) *Handler {
	h := &Handler{
		credential: credential,
		completer:  completer,
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
	}
	h.initInstruments(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) initInstruments(meter metric.Meter) {
	outcomes, err := meter.Int64Counter(
		"chat.proxy.outcomes",
		metric.WithDescription("Chat proxy responses by outcome"),
	)
	if err != nil {
		h.logger.Warn("failed to create counter", "error", err)
	}
	tokens, err := meter.Int64Histogram(
		"chat.prompt.tokens",
		metric.WithDescription("Token count of inbound chat messages"),
	)
	if err != nil {
		h.logger.Warn("failed to create histogram", "error", err)
	}
	h.outcomes = outcomes
	h.tokens = tokens
}

// ServeHTTP answers one chat request with a reply or the error envelope.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "chat_proxy")
	defer span.End()

	start := time.Now()
	logger := h.logger.With("request_id", RequestID(ctx))

	status, body, outcome := h.handle(ctx, r, logger)

	span.SetAttributes(attribute.String("chat.outcome", outcome), attribute.Int("http.response.status_code", status))
	if h.outcomes != nil {
		h.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	level := slog.LevelInfo
	if outcome != OutcomeOK {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "chat request handled",
		"outcome", outcome,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, status, body)
}

// handle runs the proxy steps and returns the status, body and outcome label.
func (h *Handler) handle(ctx context.Context, r *http.Request, logger *slog.Logger) (int, any, string) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("invalid request body", "error", err)
		return http.StatusInternalServerError, ErrorResponse{Error: MsgInvalidBody}, OutcomeBadRequest
	}
	if req.Message == nil {
		return http.StatusInternalServerError, ErrorResponse{Error: MsgMissingMessage}, OutcomeBadRequest
	}
	message := *req.Message

	apiKey, ok := h.credential.Lookup()
	if !ok {
		logger.Error("completion credential is not configured", "env", config.APIKeyEnv)
		return http.StatusInternalServerError, ErrorResponse{Error: MsgMissingAPIKey}, OutcomeMissingCredential
	}

	tokenCount := backend.CountTokens(message)
	if h.tokens != nil && tokenCount >= 0 {
		h.tokens.Record(ctx, int64(tokenCount))
	}
	logger.Info("forwarding chat message", "message_hash", MessageHash(message), "message_tokens", tokenCount)

	reply, err := h.completer.Complete(ctx, apiKey, message)
	if err != nil {
		var te *backend.TransportError
		var se *backend.StatusError
		switch {
		case errors.As(err, &te):
			logger.Error("completion service unreachable", "error", te.Err)
			return http.StatusInternalServerError,
				ErrorResponse{Error: fmt.Sprintf(msgTransportFmt, te.Err)}, OutcomeTransport
		case errors.As(err, &se):
			logger.Warn("completion service returned an error", "status", se.StatusCode, "message", se.Message)
			return http.StatusInternalServerError, ErrorResponse{Error: se.Message}, OutcomeUpstreamStatus
		default:
			logger.Error("completion call failed", "error", err)
			return http.StatusInternalServerError,
				ErrorResponse{Error: fmt.Sprintf(msgInternalFmt, err)}, OutcomeInternal
		}
	}

	switch rep := reply.(type) {
	case backend.Recognized:
		return http.StatusOK, ChatResponse{Reply: rep.Text}, OutcomeOK
	case backend.Unrecognized:
		logger.Warn("completion response had no reply text")
		return http.StatusInternalServerError, ErrorResponse{Error: MsgNoResponse, Debug: rep.Raw}, OutcomeMalformedUpstream
	}
	return http.StatusInternalServerError, ErrorResponse{Error: MsgNoResponse}, OutcomeMalformedUpstream
}

// MessageHash identifies a message in logs without recording its text.
func MessageHash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return fmt.Sprintf("%x", sum[:8])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope. Other transport layers use it so
// every failure has the same shape.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
