package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			RequestTimeout: time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:      "http://backend:3000",
			PathPrefix:   "/api/backoffice",
			Prefix:       "gtestbet",
			Timeout:      time.Second,
			HistoryLimit: 5000,
		},
		Cache:   CacheConfig{TagListTTL: time.Second, SegmentListTTL: time.Second, SetupLockTTL: time.Second},
		Drafts:  DraftConfig{TTL: time.Hour, MaxGroups: 10, MaxRules: 20},
		Logging: LoggingConfig{Level: "info", Output: "stdout"},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ProductionConfig)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(cfg *ProductionConfig) {},
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *ProductionConfig) { cfg.Server.Port = 70000 },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "relative upstream url",
			mutate:  func(cfg *ProductionConfig) { cfg.Upstream.BaseURL = "backend:3000/api" },
			wantErr: "UPSTREAM_BASE_URL must be an absolute URL",
		},
		{
			name:    "missing prefix",
			mutate:  func(cfg *ProductionConfig) { cfg.Upstream.Prefix = "" },
			wantErr: "UPSTREAM_PREFIX",
		},
		{
			name: "short hmac secret",
			mutate: func(cfg *ProductionConfig) {
				cfg.JWT = JWTConfig{VerifySignature: true, Algorithm: "HS256", SecretKey: "short"}
			},
			wantErr: "JWT_SECRET_KEY",
		},
		{
			name: "rsa without public key",
			mutate: func(cfg *ProductionConfig) {
				cfg.JWT = JWTConfig{VerifySignature: true, Algorithm: "RS256"}
			},
			wantErr: "JWT_PUBLIC_KEY",
		},
		{
			name:    "database enabled without name",
			mutate:  func(cfg *ProductionConfig) { cfg.Database = DatabaseConfig{Enabled: true, Host: "db", Port: 5432, User: "postgres"} },
			wantErr: "DB_NAME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionConfigReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Upstream.Prefix = ""
	cfg.Upstream.HistoryLimit = 0

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	for _, want := range []string{"SERVER_PORT", "UPSTREAM_PREFIX", "UPSTREAM_HISTORY_LIMIT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestUpstreamURL(t *testing.T) {
	tests := []struct {
		base, prefix, want string
	}{
		{"http://backend:3000", "/api/backoffice", "http://backend:3000/api/backoffice"},
		{"http://backend:3000/", "api/backoffice/", "http://backend:3000/api/backoffice"},
	}
	for _, tt := range tests {
		got := UpstreamConfig{BaseURL: tt.base, PathPrefix: tt.prefix}.UpstreamURL()
		assert.Equal(t, tt.want, got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# backoffice",
		"BACKOFFICE_TEST_PREFIX=\"staging\"",
		"BACKOFFICE_TEST_KEPT=from-file",
		"export BACKOFFICE_TEST_EXPORTED='single quoted'",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("BACKOFFICE_TEST_PREFIX", "")
	t.Setenv("BACKOFFICE_TEST_KEPT", "from-env")
	t.Setenv("BACKOFFICE_TEST_EXPORTED", "")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "staging", os.Getenv("BACKOFFICE_TEST_PREFIX"))
	assert.Equal(t, "from-env", os.Getenv("BACKOFFICE_TEST_KEPT"))
	assert.Equal(t, "single quoted", os.Getenv("BACKOFFICE_TEST_EXPORTED"))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))

	broken := filepath.Join(dir, "broken.env")
	require.NoError(t, os.WriteFile(broken, []byte("BACKOFFICE_TEST_BROKEN=\"unterminated\n"), 0o600))
	assert.Error(t, loadEnvFile(broken))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BACKOFFICE_TEST_INT", "42")
	t.Setenv("BACKOFFICE_TEST_BAD_INT", "forty-two")
	t.Setenv("BACKOFFICE_TEST_DURATION", "90s")
	t.Setenv("BACKOFFICE_TEST_LIST", " a, ,b ,c")

	assert.Equal(t, 42, getEnvInt("BACKOFFICE_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("BACKOFFICE_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("BACKOFFICE_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvStringSlice("BACKOFFICE_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvStringSlice("BACKOFFICE_TEST_UNSET", []string{"x"}))
	assert.True(t, getEnvBool("BACKOFFICE_TEST_UNSET", true))
}
