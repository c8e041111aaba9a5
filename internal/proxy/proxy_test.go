package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	. "github.com/stevegt/goadapt"

	"StudyBuddy/internal/backend"
	"StudyBuddy/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// upstream starts a fake completion service answering with status and body
// and counting the calls it receives.
func upstream(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newHandler(url string, cred config.Credential) *Handler {
	cfg := config.Default().Completion
	cfg.BaseURL = url
	client := backend.NewClient(cfg, backend.WithLogger(quiet))
	return NewHandler(cred, client, WithLogger(quiet))
}

// post sends body to h and decodes the JSON answer.
func post(t *testing.T, h http.Handler, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	Tassert(t, rec.Header().Get("Content-Type") == "application/json", "content type: %q", rec.Header().Get("Content-Type"))
	var out map[string]any
	err := json.Unmarshal(rec.Body.Bytes(), &out)
	Tassert(t, err == nil, "response is not JSON: %s", rec.Body.String())
	return rec.Code, out
}

func TestMissingCredential(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{"choices":[{"message":{"content":"x"}}]}`)
	h := newHandler(srv.URL, config.NoCredential())

	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	Tassert(t, out["error"] == MsgMissingAPIKey, "body %v", out)
	Tassert(t, atomic.LoadInt32(calls) == 0, "upstream must not be called without a credential")
}

func TestReply(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{"choices":[{"message":{"content":"Photosynthesis converts light to energy."}}]}`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":"What is photosynthesis?"}`)
	Tassert(t, code == http.StatusOK, "status %d", code)
	Tassert(t, reflect.DeepEqual(out, map[string]any{"reply": "Photosynthesis converts light to energy."}), "body %v", out)
	Tassert(t, atomic.LoadInt32(calls) == 1, "expected exactly one upstream call, got %d", *calls)
}

func TestUpstreamErrorStatus(t *testing.T) {
	srv, _ := upstream(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	Tassert(t, reflect.DeepEqual(out, map[string]any{"error": "rate limited"}), "body %v", out)
}

func TestUpstreamErrorFallback(t *testing.T) {
	srv, _ := upstream(t, http.StatusBadGateway, `upstream exploded`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	Tassert(t, out["error"] == backend.DefaultUpstreamError, "body %v", out)
}

func TestNoChoices(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{}`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	want := map[string]any{"error": MsgNoResponse, "debug": map[string]any{}}
	Tassert(t, reflect.DeepEqual(out, want), "body %v", out)
}

func TestTransportFailure(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()
	h := newHandler(url, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	msg, _ := out["error"].(string)
	Tassert(t, strings.HasPrefix(msg, "Failed to reach AI service: "), "error %q", msg)
	Tassert(t, len(msg) > len("Failed to reach AI service: "), "error should embed the cause: %q", msg)
}

func TestBadRequests(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{}`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `not json`)
	Tassert(t, code == http.StatusInternalServerError && out["error"] == MsgInvalidBody, "invalid body: %d %v", code, out)

	code, out = post(t, h, `{"text":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError && out["error"] == MsgMissingMessage, "missing message: %d %v", code, out)

	Tassert(t, atomic.LoadInt32(calls) == 0, "bad requests must not reach upstream")
}

func TestEmptyMessageIsForwarded(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{"choices":[{"message":{"content":""}}]}`)
	h := newHandler(srv.URL, config.NewCredential("sk"))

	code, out := post(t, h, `{"message":""}`)
	Tassert(t, code == http.StatusOK, "status %d", code)
	Tassert(t, reflect.DeepEqual(out, map[string]any{"reply": ""}), "body %v", out)
	Tassert(t, atomic.LoadInt32(calls) == 1, "present but empty message should be forwarded")
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, string, string) (backend.Reply, error) {
	return nil, errors.New("boom")
}

func TestInternalError(t *testing.T) {
	h := NewHandler(config.NewCredential("sk"), failingCompleter{}, WithLogger(quiet))
	code, out := post(t, h, `{"message":"hello"}`)
	Tassert(t, code == http.StatusInternalServerError, "status %d", code)
	Tassert(t, out["error"] == "Internal error: boom", "body %v", out)
}

func TestRequestIDAndHash(t *testing.T) {
	id := NewRequestID()
	Tassert(t, len(id) == 36, "uuid length: %q", id)
	ctx := WithRequestID(context.Background(), id)
	Tassert(t, RequestID(ctx) == id, "request id not stored")
	Tassert(t, RequestID(context.Background()) == "", "empty context should have no id")

	Tassert(t, MessageHash("a") == MessageHash("a"), "hash must be stable")
	Tassert(t, MessageHash("a") != MessageHash("b"), "hash must differ")
	Tassert(t, len(MessageHash("a")) == 16, "hash length: %q", MessageHash("a"))
}
