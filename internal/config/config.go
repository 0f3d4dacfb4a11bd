package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "ccs-report.yaml"

// Environment variables. The PRISMA_* names are accepted when the primary
// name is unset.
const (
	EnvEndpoint = "API_ENDPOINT"
	EnvUsername = "API_USERNAME"
	EnvPassword = "API_PASSWORD"
	EnvConfig   = "CONFIG_PATH"
)

var legacyEnv = map[string]string{
	EnvEndpoint: "PRISMA_API_URL",
	EnvUsername: "PRISMA_ACCESS_KEY_ID",
	EnvPassword: "PRISMA_SECRET_KEY",
}

type Config struct {
	API struct {
		Endpoint           string        `yaml:"endpoint"`
		Username           string        `yaml:"username"`
		Password           string        `yaml:"password"`
		Timeout            time.Duration `yaml:"timeout"`
		InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	} `yaml:"api"`

	Export struct {
		Days         int           `yaml:"days"`
		MaxAttempts  int           `yaml:"maxAttempts"`
		PollInterval time.Duration `yaml:"pollInterval"`
		RenewEvery   int           `yaml:"renewEvery"`
	} `yaml:"export"`

	Output struct {
		Dir    string `yaml:"dir"`
		Format string `yaml:"format"`
	} `yaml:"output"`

	Storage struct {
		Minio struct {
			Enabled   bool   `yaml:"enabled"`
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"accessKey"`
			SecretKey string `yaml:"secretKey"`
			Bucket    string `yaml:"bucketName"`
			Region    string `yaml:"region"`
			UseSSL    bool   `yaml:"useSSL"`
			Prefix    string `yaml:"prefix"`
		} `yaml:"minio"`
	} `yaml:"storage"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	cfg := &Config{}
	cfg.API.Timeout = 30 * time.Second
	cfg.Export.Days = 7
	cfg.Export.MaxAttempts = 20
	cfg.Export.PollInterval = 2 * time.Second
	cfg.Export.RenewEvery = 4
	cfg.Output.Dir = "."
	cfg.Output.Format = "text"
	cfg.Storage.Minio.Prefix = "ccs-report"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load baca file config (optional) lalu override dari environment. An empty
// path tries DefaultPath and silently skips it when absent.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", alerts.ErrConfiguration, path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("%w: read %s: %v", alerts.ErrConfiguration, path, err)
	}

	cfg.applyEnv(getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	lookup := func(name string) string {
		if v := getenv(name); v != "" {
			return v
		}
		return getenv(legacyEnv[name])
	}
	if v := lookup(EnvEndpoint); v != "" {
		c.API.Endpoint = v
	}
	if v := lookup(EnvUsername); v != "" {
		c.API.Username = v
	}
	if v := lookup(EnvPassword); v != "" {
		c.API.Password = v
	}
	if v := getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Storage.Minio.AccessKey = v
	}
	if v := getenv("MINIO_SECRET_KEY"); v != "" {
		c.Storage.Minio.SecretKey = v
	}
	if v := getenv("MINIO_ENDPOINT"); v != "" {
		c.Storage.Minio.Endpoint = v
	}
	if v := getenv("MINIO_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Storage.Minio.Enabled = b
		}
	}
}

// Validate checks required settings and bounds. All problems are reported
// together as one ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	var missing []string
	if strings.TrimSpace(c.API.Endpoint) == "" {
		missing = append(missing, EnvEndpoint)
	}
	if strings.TrimSpace(c.API.Username) == "" {
		missing = append(missing, EnvUsername)
	}
	if c.API.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		problems = append(problems, "missing environment variables: "+strings.Join(missing, ", "))
	}
	if c.API.Endpoint != "" {
		if err := ValidateEndpoint(c.API.Endpoint); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if c.Export.Days < 1 {
		problems = append(problems, "export.days must be > 0")
	}
	if c.Export.MaxAttempts < 1 {
		problems = append(problems, "export.maxAttempts must be > 0")
	}
	if c.Export.PollInterval < 0 {
		problems = append(problems, "export.pollInterval must not be negative")
	}
	if c.Export.RenewEvery < 0 {
		problems = append(problems, "export.renewEvery must not be negative")
	}
	if c.API.Timeout < 0 {
		problems = append(problems, "api.timeout must not be negative")
	}

	if m := c.Storage.Minio; m.Enabled && (m.Endpoint == "" || m.Bucket == "") {
		problems = append(problems, "storage.minio needs endpoint and bucketName when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", alerts.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
