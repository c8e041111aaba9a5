package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/stevegt/goadapt"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load("")
	Tassert(t, err == nil, "Load failed: %v", err)
	Tassert(t, cfg.Completion.Model == DefaultModel, "model: %s", cfg.Completion.Model)
	Tassert(t, cfg.Completion.BaseURL == DefaultBaseURL, "base url: %s", cfg.Completion.BaseURL)
	Tassert(t, cfg.Completion.Timeout == 0, "timeout should default to none: %v", cfg.Completion.Timeout)
	Tassert(t, cfg.Client.Store == StoreBolt, "store: %s", cfg.Client.Store)

	_, ok := cfg.Credential.Lookup()
	Tassert(t, !ok, "empty %s should yield an absent credential", APIKeyEnv)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studybuddy.yaml")
	yml := `
server:
  addr: ":9090"
  rate_limit: 2
  rate_burst: 3
completion:
  model: test-model
  temperature: 0.2
  timeout: 30s
client:
  store: sqlite
log:
  level: debug
`
	err := os.WriteFile(path, []byte(yml), 0644)
	Tassert(t, err == nil, "write config: %v", err)

	t.Setenv(APIKeyEnv, "sk-test")
	t.Setenv("STUDYBUDDY_STORE_PATH", filepath.Join(dir, "chat.db"))

	cfg, err := Load(path)
	Tassert(t, err == nil, "Load failed: %v", err)
	Tassert(t, cfg.Server.Addr == ":9090", "addr: %s", cfg.Server.Addr)
	Tassert(t, cfg.Server.RateLimit == 2 && cfg.Server.RateBurst == 3, "rate: %v/%d", cfg.Server.RateLimit, cfg.Server.RateBurst)
	Tassert(t, cfg.Completion.Model == "test-model", "model: %s", cfg.Completion.Model)
	Tassert(t, cfg.Completion.MaxTokens == DefaultMaxTokens, "max tokens should keep default: %d", cfg.Completion.MaxTokens)
	Tassert(t, cfg.Completion.Timeout == 30*time.Second, "timeout: %v", cfg.Completion.Timeout)
	Tassert(t, cfg.Client.Store == StoreSQLite, "store: %s", cfg.Client.Store)
	Tassert(t, strings.HasSuffix(cfg.Client.StorePath, "chat.db"), "store path: %s", cfg.Client.StorePath)

	key, ok := cfg.Credential.Lookup()
	Tassert(t, ok && key == "sk-test", "credential not loaded from env")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"store", func(c *Config) { c.Client.Store = "redis" }, "unknown store"},
		{"temperature", func(c *Config) { c.Completion.Temperature = 3 }, "temperature"},
		{"burst", func(c *Config) { c.Server.RateLimit = 1; c.Server.RateBurst = 0 }, "rate_burst"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			Tassert(t, err != nil, "expected validation error")
			Tassert(t, strings.Contains(err.Error(), tc.want), "error %q does not mention %q", err, tc.want)
		})
	}
	Tassert(t, Default().Validate() == nil, "defaults must validate")
}

func TestCredential(t *testing.T) {
	lookup := func(m map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	c := CredentialFromEnv(lookup(map[string]string{}))
	_, ok := c.Lookup()
	Tassert(t, !ok, "unset variable should be absent")

	c = CredentialFromEnv(lookup(map[string]string{APIKeyEnv: "secret"}))
	v, ok := c.Lookup()
	Tassert(t, ok && v == "secret", "set variable should be present")
	Tassert(t, !strings.Contains(c.String(), "secret"), "String leaked the secret")
}
