package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"StudyBuddy/internal/proxy"
)

// StatusError is a non-success answer from the chat proxy.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat proxy returned %d", e.StatusCode)
	}
	return fmt.Sprintf("chat proxy returned %d: %s", e.StatusCode, e.Message)
}

// HTTPCaller posts messages to the chat proxy endpoint.
type HTTPCaller struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPCaller returns a caller for the proxy at url. No timeout is set.
func NewHTTPCaller(url string) *HTTPCaller {
	return &HTTPCaller{URL: url, HTTPClient: &http.Client{}}
}

// Send posts {"message": message} and returns the reply field.
func (h *HTTPCaller) Send(ctx context.Context, message string) (string, error) {
	jsonData, err := json.Marshal(proxy.ChatRequest{Message: &message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := h.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env proxy.ErrorResponse
		_ = json.Unmarshal(body, &env)
		return "", &StatusError{StatusCode: resp.StatusCode, Message: env.Error}
	}

	var out proxy.ChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return out.Reply, nil
}
