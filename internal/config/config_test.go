package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "s3sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_YAMLAppliesDefaultsThenOverrides(t *testing.T) {
	path := writeTempConfig(t, `
bucket: my-bucket
endpoint: s3.example.com
initial_workers: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "s3.example.com", cfg.Endpoint)
	assert.Equal(t, 25, cfg.InitialWorkers)
	assert.Equal(t, 2, cfg.APIVersion, "unset api_version should keep its default")
	assert.Equal(t, 1.2, cfg.ScaleUpFactor, "unset scale_up_factor should keep its default")
}

func TestLoad_MissingBucketFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `endpoint: s3.example.com`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "bucket is required")
}

func TestLoad_JSONFailsSchemaValidationOnBadScaleFactor(t *testing.T) {
	path := writeTempConfig(t, `{"bucket": "b", "endpoint": "e", "scale_up_factor": 0.5}`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed schema validation")
}

func TestLoad_JSONValidConfigPasses(t *testing.T) {
	path := writeTempConfig(t, `{"bucket": "b", "endpoint": "e", "scale_down_factor": 0.5}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Bucket)
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := defaults()
		c.Bucket = "b"
		c.Endpoint = "e"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing bucket", func(c *Config) { c.Bucket = "" }, "bucket is required"},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"bad api version", func(c *Config) { c.APIVersion = 3 }, "api_version must be 1 or 2"},
		{"scale up too low", func(c *Config) { c.ScaleUpFactor = 1.0 }, "scale_up_factor must be > 1.0"},
		{"scale down at 1", func(c *Config) { c.ScaleDownFactor = 1.0 }, "scale_down_factor must be in"},
		{"scale down at 0", func(c *Config) { c.ScaleDownFactor = 0 }, "scale_down_factor must be in"},
		{"zero interval", func(c *Config) { c.ScalingIntervalS = 0 }, "scaling_interval_seconds must be > 0"},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }, "rate_limit must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("S3SWEEP_BUCKET", "env-bucket")
	t.Setenv("S3SWEEP_INITIAL_WORKERS", "42")

	cfg := defaults()
	cfg.Bucket = "file-bucket"
	ApplyEnvOverrides(&cfg)

	assert.Equal(t, "env-bucket", cfg.Bucket)
	assert.Equal(t, 42, cfg.InitialWorkers)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("S3SWEEP_TEST_VAR", "set")
	assert.Equal(t, "set", GetEnvOrDefault("S3SWEEP_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("S3SWEEP_TEST_VAR_UNSET", "fallback"))
}
