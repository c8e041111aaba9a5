package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/stevegt/goadapt"
)

func testStdio(in string, out *bytes.Buffer) Stdio {
	return Stdio{
		Stdin:  strings.NewReader(in),
		Stdout: out,
		Stderr: out,
		Exit:   func(int) {},
	}
}

func TestParseServe(t *testing.T) {
	var out bytes.Buffer
	cli, kctx, err := Parse([]string{"--debug", "serve", "--addr", ":4000"}, testStdio("", &out))
	Tassert(t, err == nil, "Parse: %v", err)
	Tassert(t, kctx.Command() == "serve", "command %q", kctx.Command())
	Tassert(t, cli.Debug, "debug flag not set")
	Tassert(t, cli.Serve.Addr == ":4000", "addr %q", cli.Serve.Addr)
}

func TestParseChat(t *testing.T) {
	var out bytes.Buffer
	cli, kctx, err := Parse([]string{"chat", "--store", "sqlite", "--proxy-url", "http://example.test/api/chat"}, testStdio("", &out))
	Tassert(t, err == nil, "Parse: %v", err)
	Tassert(t, kctx.Command() == "chat", "command %q", kctx.Command())
	Tassert(t, cli.Chat.Store == "sqlite", "store %q", cli.Chat.Store)
	Tassert(t, cli.Chat.ProxyURL == "http://example.test/api/chat", "proxy url %q", cli.Chat.ProxyURL)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	_, _, err := Parse([]string{"serve", "--bogus"}, testStdio("", &out))
	Tassert(t, err != nil, "unknown flag should fail")
}

func TestRunRejectsBadStore(t *testing.T) {
	var out bytes.Buffer
	code, err := Run([]string{"chat", "--store", "redis"}, testStdio("", &out))
	Tassert(t, err != nil, "bad store should fail")
	Tassert(t, code == 1, "exit code %d", code)
}

func TestRunChat(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": "Mitochondria make ATP."})
	}))
	defer proxy.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "studybuddy.yaml")
	yml := fmt.Sprintf("client:\n  proxy_url: %s\n  store: sqlite\n  store_path: %s\nlog:\n  dir: %s\n",
		proxy.URL, filepath.Join(dir, "chat.db"), filepath.Join(dir, "logs"))
	Tassert(t, os.WriteFile(cfgPath, []byte(yml), 0600) == nil, "write config")

	var out bytes.Buffer
	code, err := Run([]string{"--config", cfgPath, "chat"}, testStdio("What do mitochondria do?\n/quit\n", &out))
	Tassert(t, err == nil, "Run: %v", err)
	Tassert(t, code == 0, "exit code %d", code)
	Tassert(t, strings.Contains(out.String(), "Mitochondria make ATP."), "missing reply:\n%s", out.String())

	// the transcript survives into the next session
	out.Reset()
	code, err = Run([]string{"--config", cfgPath, "chat"}, testStdio("/history\n/quit\n", &out))
	Tassert(t, err == nil && code == 0, "second Run: %d %v", code, err)
	Tassert(t, strings.Contains(out.String(), "What do mitochondria do?"), "transcript not restored:\n%s", out.String())
}
