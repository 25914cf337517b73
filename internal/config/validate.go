package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Validate checks the configuration and returns every problem found.
// Incomplete job definitions are not reported here; they are skipped per job
// when the schedule runs.
func (c *Config) Validate() []error {
	var errs []error

	if c.Scheduler.StorePath == "" {
		errs = append(errs, errors.New("scheduler.storePath is required"))
	} else if err := validatePath(c.Scheduler.StorePath, "scheduler.storePath"); err != nil {
		errs = append(errs, err)
	}

	if err := validateFileName(c.Scheduler.StoreFile, "scheduler.storeFile"); err != nil {
		errs = append(errs, err)
	}
	if err := validateFileName(c.Scheduler.ProcessingFlagFile, "scheduler.processingFlagFile"); err != nil {
		errs = append(errs, err)
	}
	if c.Scheduler.StoreFile != "" && c.Scheduler.StoreFile == c.Scheduler.ProcessingFlagFile {
		errs = append(errs, errors.New("scheduler.storeFile and scheduler.processingFlagFile must differ"))
	}

	if c.Scheduler.ProcessingTimeout <= 0 {
		errs = append(errs, errors.Newf("scheduler.processingTimeout must be > 0 (got %d)", c.Scheduler.ProcessingTimeout))
	}
	if _, err := c.Scheduler.Location(); err != nil {
		errs = append(errs, errors.Wrapf(err, "invalid scheduler.timezone %q", c.Scheduler.Timezone))
	}

	if c.Dispatch.TimeoutSeconds < 0 {
		errs = append(errs, errors.Newf("dispatch.timeoutSeconds must be >= 0 (got %d)", c.Dispatch.TimeoutSeconds))
	}
	if c.Dispatch.WorkingDir != "" {
		if err := validatePath(c.Dispatch.WorkingDir, "dispatch.workingDir"); err != nil {
			errs = append(errs, err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.Newf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.Newf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	return errs
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return errors.Newf("%s cannot be empty", fieldName)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return errors.Newf("%s contains a path traversal sequence", fieldName)
		}
	}
	return nil
}

func validateFileName(name, fieldName string) error {
	if name == "" {
		return errors.Newf("%s is required", fieldName)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) || name == "." || name == ".." {
		return errors.Newf("%s must be a file name, not a path (got %q)", fieldName, name)
	}
	return nil
}
