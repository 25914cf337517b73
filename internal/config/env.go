package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// LoadEnv sets environment variables from a KEY=VALUE file. Blank lines and
// lines starting with # are ignored, as are lines without "=".
func LoadEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read env file")
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key != "" {
			if err := os.Setenv(key, value); err != nil {
				return errors.Wrapf(err, "set %s", key)
			}
		}
	}

	return nil
}

// LoadEnvOptional calls LoadEnv when path exists and does nothing otherwise.
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to stat env file")
	}

	return LoadEnv(path)
}
