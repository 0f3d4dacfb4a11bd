package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Export.Days)
	assert.Equal(t, 20, cfg.Export.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Export.PollInterval)
	assert.Equal(t, 4, cfg.Export.RenewEvery)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestLoad_FileThenEnv(t *testing.T) {
	p := writeConfig(t, `
api:
  endpoint: https://file.example.com
  username: file-user
  timeout: 45s
export:
  days: 3
  maxAttempts: 10
  pollInterval: 5s
  renewEvery: 2
output:
  dir: out
  format: json
storage:
  minio:
    enabled: true
    endpoint: minio:9000
    bucketName: reports
`)

	cfg, err := Load(p, envMap(map[string]string{
		EnvUsername: "env-user",
		EnvPassword: "env-pass",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.API.Endpoint)
	assert.Equal(t, "env-user", cfg.API.Username, "environment wins over file")
	assert.Equal(t, "env-pass", cfg.API.Password)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Export.Days)
	assert.Equal(t, 10, cfg.Export.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Export.PollInterval)
	assert.Equal(t, 2, cfg.Export.RenewEvery)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Storage.Minio.Enabled)
	assert.Equal(t, "reports", cfg.Storage.Minio.Bucket)
	assert.Equal(t, "ccs-report", cfg.Storage.Minio.Prefix, "defaults survive partial files")
	require.NoError(t, cfg.Validate())
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", envMap(map[string]string{
		"PRISMA_API_URL":       "https://legacy",
		"PRISMA_ACCESS_KEY_ID": "legacy-key",
		"PRISMA_SECRET_KEY":    "legacy-secret",
		EnvUsername:            "primary-key",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://legacy", cfg.API.Endpoint)
	assert.Equal(t, "primary-key", cfg.API.Username)
	assert.Equal(t, "legacy-secret", cfg.API.Password)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	assert.ErrorIs(t, err, alerts.ErrConfiguration, "a named file must exist")

	p := writeConfig(t, "api: [not, a, map]\n")
	_, err = Load(p, envMap(nil))
	assert.ErrorIs(t, err, alerts.ErrConfiguration)

	_, err = Load("", envMap(map[string]string{EnvConfig: filepath.Join(t.TempDir(), "nope.yaml")}))
	assert.ErrorIs(t, err, alerts.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.API.Endpoint = "https://api"
		cfg.API.Username = "u"
		cfg.API.Password = "p"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "no credentials", mutate: func(c *Config) { *c = *Default() }, want: "API_ENDPOINT, API_USERNAME, API_PASSWORD"},
		{name: "no password", mutate: func(c *Config) { c.API.Password = "" }, want: "API_PASSWORD"},
		{name: "endpoint without scheme", mutate: func(c *Config) { c.API.Endpoint = "api.prismacloud.io" }, want: "scheme"},
		{name: "zero attempts", mutate: func(c *Config) { c.Export.MaxAttempts = 0 }, want: "maxAttempts"},
		{name: "zero days", mutate: func(c *Config) { c.Export.Days = 0 }, want: "days"},
		{name: "negative renew", mutate: func(c *Config) { c.Export.RenewEvery = -1 }, want: "renewEvery"},
		{name: "minio without bucket", mutate: func(c *Config) {
			c.Storage.Minio.Enabled = true
			c.Storage.Minio.Endpoint = "minio:9000"
		}, want: "bucketName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, alerts.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	for _, ok := range []string{"https://api.prismacloud.io", "http://127.0.0.1:8080/", "https://api2.eu.prismacloud.io/base"} {
		assert.NoError(t, ValidateEndpoint(ok), ok)
	}
	for _, bad := range []string{"", "ftp://api", "https://", "https://api?x=1", "https://api#frag", "://broken"} {
		assert.Error(t, ValidateEndpoint(bad), bad)
	}
}
