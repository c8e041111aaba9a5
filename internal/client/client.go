// Package client is the terminal transcript client. It owns the persisted
// transcript and theme and submits one message at a time to the chat proxy.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"StudyBuddy/internal/session"
	"StudyBuddy/internal/store"
)

// Assistant texts used when no real reply is available.
const (
	FallbackReply = "Sorry, I couldn't get a response."
	ErrorReply    = "Error contacting AI agent."
)

var (
	// ErrEmptyInput rejects blank submissions; nothing is recorded or sent.
	ErrEmptyInput = errors.New("empty message")
	// ErrAwaitingReply rejects a submission while another is in flight.
	ErrAwaitingReply = errors.New("still awaiting the previous reply")
)

// Caller sends one message to the chat proxy and returns its reply.
type Caller interface {
	Send(ctx context.Context, message string) (string, error)
}

// Client owns the transcript and theme.
type Client struct {
	store  store.Store
	caller Caller
	logger *slog.Logger
	tracer trace.Tracer

	onAwaiting func(bool)

	mu         sync.Mutex
	transcript session.Transcript
	theme      session.Theme
	awaiting   bool
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithAwaitingHook registers fn to be told when the awaiting-reply state
// is entered (true) and left (false).
func WithAwaitingHook(fn func(bool)) Option {
	return func(c *Client) { c.onAwaiting = fn }
}

// New loads the persisted transcript and theme from st.
func New(st store.Store, caller Caller, opts ...Option) (*Client, error) {
	c := &Client{
		store:  st,
		caller: caller,
		logger: slog.Default(),
		tracer: otel.Tracer("StudyBuddy/internal/client"),
		theme:  session.DefaultTheme,
	}
	for _, opt := range opts {
		opt(c)
	}

	data, ok, err := st.Get(store.TranscriptKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if ok {
		if c.transcript, err = session.UnmarshalTranscript(data); err != nil {
			return nil, fmt.Errorf("stored %s is invalid: %w", store.TranscriptKey, err)
		}
	}

	data, ok, err = st.Get(store.ThemeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}
	if ok {
		if c.theme, err = session.UnmarshalTheme(data); err != nil {
			return nil, fmt.Errorf("stored %s is invalid: %w", store.ThemeKey, err)
		}
	}

	c.logger.Info("transcript loaded", "messages", c.transcript.Len(), "theme", c.theme)
	return c, nil
}

// Submit records text as a user message, sends it, and records exactly one
// assistant message once the call settles. It returns that assistant
// message. Blank text returns ErrEmptyInput and a submission made while
// another is in flight returns ErrAwaitingReply; neither changes anything.
func (c *Client) Submit(ctx context.Context, text string) (session.Message, error) {
	if strings.TrimSpace(text) == "" {
		return session.Message{}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.awaiting {
		c.mu.Unlock()
		return session.Message{}, ErrAwaitingReply
	}
	c.transcript = c.transcript.Append(session.UserMessage(text))
	userErr := c.persistTranscriptLocked()
	c.awaiting = true
	c.mu.Unlock()

	c.notify(true)

	ctx, span := c.tracer.Start(ctx, "transcript_submit")
	reply, callErr := c.caller.Send(ctx, text)

	var answer session.Message
	switch {
	case callErr != nil:
		c.logger.Warn("chat proxy call failed", "error", callErr)
		span.RecordError(callErr)
		answer = session.AssistantMessage(ErrorReply)
	case reply == "":
		answer = session.AssistantMessage(FallbackReply)
	default:
		answer = session.AssistantMessage(reply)
	}
	span.SetAttributes(attribute.Bool("chat.call_failed", callErr != nil))
	span.End()

	c.mu.Lock()
	c.transcript = c.transcript.Append(answer)
	replyErr := c.persistTranscriptLocked()
	c.awaiting = false
	c.mu.Unlock()

	c.notify(false)

	if err := errors.Join(userErr, replyErr); err != nil {
		return answer, err
	}
	return answer, nil
}

// ToggleTheme flips the theme and persists it.
func (c *Client) ToggleTheme() (session.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.theme = c.theme.Toggle()
	data, err := session.MarshalTheme(c.theme)
	if err != nil {
		return c.theme, err
	}
	if err := c.store.Put(store.ThemeKey, data); err != nil {
		return c.theme, fmt.Errorf("failed to save theme: %w", err)
	}
	return c.theme, nil
}

// Clear empties the transcript and persists the empty value.
func (c *Client) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.awaiting {
		return ErrAwaitingReply
	}
	c.transcript = session.Transcript{}
	return c.persistTranscriptLocked()
}

// Transcript returns a snapshot of the transcript.
func (c *Client) Transcript() session.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Theme returns the current theme.
func (c *Client) Theme() session.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// Awaiting reports whether a submission is in flight.
func (c *Client) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

func (c *Client) persistTranscriptLocked() error {
	data, err := session.MarshalTranscript(c.transcript)
	if err != nil {
		return err
	}
	if err := c.store.Put(store.TranscriptKey, data); err != nil {
		c.logger.Error("failed to save transcript", "error", err)
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

func (c *Client) notify(awaiting bool) {
	if c.onAwaiting != nil {
		c.onAwaiting(awaiting)
	}
}
