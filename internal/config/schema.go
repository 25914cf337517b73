// Package config provides configuration loading and validation for cronrunner.
// It reads TOML configuration files (YAML or JSON when the file extension
// says so) with environment variable expansion, default values and
// validation.
//
// Configuration structure:
//   - [scheduler]: run store location, processing flag and its timeout, timezone
//   - [dispatch]: shell used to run job commands
//   - [logging]: logging level, format and output
//   - [jobs.<name>]: job definitions, in document order
//
// Environment variables:
// Paths can reference environment variables using ${VAR} or ${VAR:default}.
// For example: storePath = "${CRONRUNNER_HOME:/var/lib/cronrunner}"
package config

import (
	"path/filepath"
	"time"

	"github.com/aatumaykin/cronrunner/internal/schedule"
)

// Config represents the main application configuration.
type Config struct {
	Scheduler SchedulerConfig      `toml:"scheduler" yaml:"scheduler"`
	Dispatch  DispatchConfig       `toml:"dispatch" yaml:"dispatch"`
	Logging   LoggingConfig        `toml:"logging" yaml:"logging"`
	Jobs      map[string]JobConfig `toml:"jobs" yaml:"jobs"`

	// jobOrder lists Jobs keys in document order.
	jobOrder []string
}

// SchedulerConfig locates the run store and the processing flag.
type SchedulerConfig struct {
	StorePath          string `toml:"storePath" yaml:"storePath"`
	StoreFile          string `toml:"storeFile" yaml:"storeFile"`
	ProcessingFlagFile string `toml:"processingFlagFile" yaml:"processingFlagFile"`
	ProcessingTimeout  int    `toml:"processingTimeout" yaml:"processingTimeout"`
	Timezone           string `toml:"timezone" yaml:"timezone"`
	MetricsFile        string `toml:"metricsFile" yaml:"metricsFile"`
}

// StoreFilePath returns the full path of the run store.
func (s SchedulerConfig) StoreFilePath() string {
	return filepath.Join(s.StorePath, s.StoreFile)
}

// FlagPath returns the full path of the processing flag.
func (s SchedulerConfig) FlagPath() string {
	return filepath.Join(s.StorePath, s.ProcessingFlagFile)
}

// Timeout returns the processing flag staleness timeout.
func (s SchedulerConfig) Timeout() time.Duration {
	return time.Duration(s.ProcessingTimeout) * time.Second
}

// Location resolves Timezone. An empty timezone means the local zone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// DispatchConfig configures how job commands are run.
type DispatchConfig struct {
	Shell          string `toml:"shell" yaml:"shell"`
	WorkingDir     string `toml:"workingDir" yaml:"workingDir"`
	TimeoutSeconds int    `toml:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// Timeout returns the per-command timeout; zero means none.
func (d DispatchConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}

// JobConfig is one [jobs.<name>] table.
type JobConfig struct {
	Interval    string         `toml:"interval" yaml:"interval"`
	Command     string         `toml:"command" yaml:"command"`
	ExtraParams map[string]any `toml:"extraParams" yaml:"extraParams"`
	Enabled     *bool          `toml:"enabled" yaml:"enabled"`
}

// IsEnabled reports whether the job takes part in scheduling. Jobs are
// enabled unless explicitly disabled.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// JobNames returns every configured job name in document order, including
// disabled jobs.
func (c *Config) JobNames() []string {
	out := make([]string, len(c.jobOrder))
	copy(out, c.jobOrder)
	return out
}

// JobDefinitions returns the enabled jobs in document order.
func (c *Config) JobDefinitions() []schedule.JobDefinition {
	defs := make([]schedule.JobDefinition, 0, len(c.jobOrder))
	for _, name := range c.jobOrder {
		job := c.Jobs[name]
		if !job.IsEnabled() {
			continue
		}
		defs = append(defs, schedule.JobDefinition{
			Name:        name,
			Interval:    job.Interval,
			Command:     job.Command,
			ExtraParams: normalizeParams(job.ExtraParams),
		})
	}
	return defs
}

// normalizeParams converts decoder-specific nested maps into map[string]any
// so dispatch formatting and JSON encoding see one shape.
func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeParams(val)
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			if s, ok := k.(string); ok {
				m[s] = normalizeValue(item)
			}
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
