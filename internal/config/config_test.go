package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: s3cret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Backend.Mode)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, "notifications", cfg.RabbitMQ.RoutingKey)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.False(t, cfg.Comments.RequireApproval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("FOUNDATION_JWT_SECRET", "from-env")
	t.Setenv("FOUNDATION_API_KEY", "service-key")
	path := writeConfig(t, `
backend:
  mode: rest
  base_url: https://backend.example.org
  api_key: ${FOUNDATION_API_KEY}
  timeout: 5s
auth:
  secret: ${FOUNDATION_JWT_SECRET}
comments:
  require_approval: true
http:
  allowed_origins:
    - https://admin.example.org
database:
  host: db
  user: site
  password: pw
  dbname: site
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "service-key", cfg.Backend.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.True(t, cfg.Comments.RequireApproval)
	assert.Equal(t, []string{"https://admin.example.org"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "host=db port=5432 user=site password=pw dbname=site sslmode=disable", cfg.Database.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing secret", "log_level: debug\n", "auth.secret"},
		{"rest without url", "backend:\n  mode: rest\nauth:\n  secret: x\n", "backend.base_url"},
		{"unknown mode", "backend:\n  mode: sqlite\nauth:\n  secret: x\n", "backend.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
