package config

import (
	"os"
	"path/filepath"
)

const (
	// DefaultStoreFile is the run store file name.
	DefaultStoreFile = "cron_scheduler.json"
	// DefaultProcessingFlagFile is the processing flag file name.
	DefaultProcessingFlagFile = ".cron_scheduler_processing_flag"
	// DefaultProcessingTimeout is the processing flag staleness timeout in seconds.
	DefaultProcessingTimeout = 600
	// DefaultShell runs job commands.
	DefaultShell = "sh"
)

// DefaultStorePath is the directory used when storePath is not configured.
func DefaultStorePath() string {
	return filepath.Join(os.TempDir(), "cronrunner")
}

// Default returns a configuration with every default applied and no jobs.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in unset values.
func applyDefaults(c *Config) {
	if c.Scheduler.StorePath == "" {
		c.Scheduler.StorePath = DefaultStorePath()
	}
	if c.Scheduler.StoreFile == "" {
		c.Scheduler.StoreFile = DefaultStoreFile
	}
	if c.Scheduler.ProcessingFlagFile == "" {
		c.Scheduler.ProcessingFlagFile = DefaultProcessingFlagFile
	}
	if c.Scheduler.ProcessingTimeout == 0 {
		c.Scheduler.ProcessingTimeout = DefaultProcessingTimeout
	}

	if c.Dispatch.Shell == "" {
		c.Dispatch.Shell = DefaultShell
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Jobs == nil {
		c.Jobs = map[string]JobConfig{}
	}
}
