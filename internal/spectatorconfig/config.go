// Package spectatorconfig validates and decodes the client's JSON
// configuration document (§6), grounded on internal/config.Validate's
// compile-then-validate-then-decode shape. Unlike that function, Load
// returns errors instead of calling a fatal logger — this is a library
// embedded in someone else's process, and only the embedding
// application gets to decide a bad config is fatal.
package spectatorconfig

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Defaults match the glossary's typical primary/publish steps and the
// registry's built-in meter TTL.
const (
	DefaultStep                  = 5 * time.Second
	DefaultPublishStep           = 60 * time.Second
	DefaultMeterTTL              = 15 * time.Minute
	DefaultBatchSize             = 10000
	DefaultGaugePollingFrequency = 10 * time.Second
)

// Config is the decoded, defaulted form of the §6 configuration
// document. Unknown JSON fields are accepted and ignored, per "unknown
// options are ignored."
type Config struct {
	Step                    string            `json:"step"`
	LwcStep                 string            `json:"lwc.step"`
	MeterTTL                string            `json:"meterTTL"`
	Enabled                 *bool             `json:"enabled"`
	LwcEnabled              *bool             `json:"lwcEnabled"`
	URI                     string            `json:"uri"`
	EvalURI                 string            `json:"evalUri"`
	ConfigURI               string            `json:"configUri"`
	BatchSize               int               `json:"batchSize"`
	GaugePollingFrequency   string            `json:"gaugePollingFrequency"`
	ValidTagCharacters      string            `json:"validTagCharacters"`
	ValidTagValueCharacters map[string]string `json:"validTagValueCharacters"`
	CommonTags              map[string]string `json:"commonTags"`
}

// Load validates raw against the configuration schema and decodes it,
// applying defaults for any option left unset.
func Load(raw []byte) (*Config, error) {
	sch, err := jsonschema.CompileString("spectator-config.json", schema)
	if err != nil {
		return nil, fmt.Errorf("spectatorconfig: compiling schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("spectatorconfig: parsing config: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("spectatorconfig: invalid config: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("spectatorconfig: decoding config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Step == "" {
		c.Step = DefaultStep.String()
	}
	if c.LwcStep == "" {
		c.LwcStep = DefaultPublishStep.String()
	}
	if c.MeterTTL == "" {
		c.MeterTTL = DefaultMeterTTL.String()
	}
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.LwcEnabled == nil {
		enabled := true
		c.LwcEnabled = &enabled
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.GaugePollingFrequency == "" {
		c.GaugePollingFrequency = DefaultGaugePollingFrequency.String()
	}
}

// StepDuration parses Step, falling back to DefaultStep on a malformed
// value (a malformed duration here is a programmer/operator error
// caught at startup by the embedding application, not a reason for this
// library to panic).
func (c *Config) StepDuration() time.Duration {
	return parseDurationOr(c.Step, DefaultStep)
}

// PublishStepDuration parses LwcStep.
func (c *Config) PublishStepDuration() time.Duration {
	return parseDurationOr(c.LwcStep, DefaultPublishStep)
}

// MeterTTLDuration parses MeterTTL.
func (c *Config) MeterTTLDuration() time.Duration {
	return parseDurationOr(c.MeterTTL, DefaultMeterTTL)
}

// GaugePollingFrequencyDuration parses GaugePollingFrequency.
func (c *Config) GaugePollingFrequencyDuration() time.Duration {
	return parseDurationOr(c.GaugePollingFrequency, DefaultGaugePollingFrequency)
}

// IsEnabled reports whether publishing is turned on.
func (c *Config) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// IsLwcEnabled reports whether the subscription/evaluator pipeline is
// turned on.
func (c *Config) IsLwcEnabled() bool { return c.LwcEnabled == nil || *c.LwcEnabled }

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
