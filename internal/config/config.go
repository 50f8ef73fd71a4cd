// Package config loads and validates s3sweep's run configuration, and
// holds the subset of it ("tuning knobs") that is safe to hot-reload
// while a crawl is in flight.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config is the full set of settings a crawl is started with. Fields
// under TuningKnobs are also reachable through the hot-reloadable
// snapshot a Watcher publishes; everything else is fixed for the life
// of the process.
type Config struct {
	Bucket       string `yaml:"bucket"`
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region" default:"us-east-1"`
	APIVersion   int    `yaml:"api_version" default:"2"` // 1 or 2, selects ListObjects vs ListObjectsV2
	OutputFormat string `yaml:"output_format" default:"plain"`
	OutputPath   string `yaml:"output_path" default:"-"` // "-" means stdout

	InitialWorkers int `yaml:"initial_workers" default:"10"`
	MaxWorkers     int `yaml:"max_workers" default:"0"` // parsed but not read by the crawl; the worker count is never capped

	LogLevel      string `yaml:"log_level" default:"info"`
	MetricsListen string `yaml:"metrics_listen" default:":9090"`
	ControlListen string `yaml:"control_listen" default:":9091"`

	CheckpointPath string `yaml:"checkpoint_path"`
	Resume         bool   `yaml:"resume" default:"false"`
	PluginPath     string `yaml:"plugin_path"`

	TuningKnobs `yaml:",inline"`
}

// TuningKnobs is the slice of Config that a running crawl may safely
// pick up mid-flight: scale factors, the scaling interval, and the
// global request-rate cap. Bucket, endpoint, and credentials are never
// part of this set — changing them mid-crawl would invalidate every
// in-flight listing request and the resolved endpoint cache.
type TuningKnobs struct {
	ScaleUpFactor    float64 `yaml:"scale_up_factor" default:"1.2"`
	ScaleDownFactor  float64 `yaml:"scale_down_factor" default:"0.8"`
	ScalingIntervalS int     `yaml:"scaling_interval_seconds" default:"1"`
	RateLimit        int     `yaml:"rate_limit"` // requests/sec, 0 means unlimited
	RateBurst        int     `yaml:"rate_burst" default:"1"`
}

// Defaults returns the zero-file configuration: what a crawl runs with
// when no --config flag is given, relying entirely on flags/env for
// bucket and endpoint.
func Defaults() Config {
	return defaults()
}

// defaults mirrors the `default:"..."` struct tags above; applied
// before YAML unmarshalling overwrites whatever the file specifies,
// matching the teacher's ServerConfig/EngineConfig convention of
// defaulting through tags rather than a zero-value struct literal.
func defaults() Config {
	return Config{
		Region:         "us-east-1",
		APIVersion:     2,
		OutputFormat:   "plain",
		OutputPath:     "-",
		InitialWorkers: 10,
		LogLevel:       "info",
		MetricsListen:  ":9090",
		ControlListen:  ":9091",
		TuningKnobs: TuningKnobs{
			ScaleUpFactor:    1.2,
			ScaleDownFactor:  0.8,
			ScalingIntervalS: 1,
			RateBurst:        1,
		},
	}
}

// Load reads path, applies defaults, and unmarshals over them. JSON
// files (detected by a leading '{' after whitespace) are validated
// against configSchema with gojsonschema first, so a malformed tuning
// knob fails fast at startup instead of surfacing as a confusing
// scaling decision thirty seconds into a crawl. YAML files (the
// common case) skip schema validation — YAML's own decode errors
// already catch structural mistakes, and gojsonschema only understands
// JSON documents.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if looksLikeJSON(data) {
		if err := validateJSON(data); err != nil {
			return nil, fmt.Errorf("config: %s failed schema validation: %w", path, err)
		}
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "{")
}

func validateJSON(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Validate checks invariants Load's unmarshal step cannot, on its own,
// rule out (a YAML file can set ScaleUpFactor to -1 just as easily as
// a JSON one, and there is no YAML-schema equivalent in this stack).
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.APIVersion != 1 && c.APIVersion != 2 {
		return fmt.Errorf("api_version must be 1 or 2, got %d", c.APIVersion)
	}
	if c.ScaleUpFactor <= 1.0 {
		return fmt.Errorf("scale_up_factor must be > 1.0, got %f", c.ScaleUpFactor)
	}
	if c.ScaleDownFactor <= 0 || c.ScaleDownFactor >= 1.0 {
		return fmt.Errorf("scale_down_factor must be in (0, 1.0), got %f", c.ScaleDownFactor)
	}
	if c.ScalingIntervalS <= 0 {
		return fmt.Errorf("scaling_interval_seconds must be > 0, got %d", c.ScalingIntervalS)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0, got %d", c.RateLimit)
	}
	return nil
}

// configSchema validates the tuning-knob subset of a JSON config file.
// It deliberately does not require bucket/endpoint — those are
// structural fields any JSON object can carry, and Validate already
// catches their absence with a clearer message than a schema error
// would.
const configSchema = `{
  "type": "object",
  "properties": {
    "scale_up_factor":          {"type": "number", "exclusiveMinimum": 1.0},
    "scale_down_factor":        {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1.0},
    "scaling_interval_seconds": {"type": "integer", "minimum": 1},
    "rate_limit":               {"type": "integer", "minimum": 0},
    "rate_burst":               {"type": "integer", "minimum": 0},
    "api_version":              {"type": "integer", "enum": [1, 2]}
  }
}`
