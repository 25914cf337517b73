package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/cronrunner/internal/schedule"
)

// Load reads the configuration file at path. The format follows the file
// extension: .yaml/.yml and .json are read as YAML, anything else as TOML.
func Load(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	expandEnvVars(cfg)

	return cfg, nil
}

// LoadJobsFile reads extra job definitions from a file shaped like the
// [jobs] section of a configuration file. Disabled jobs are left out.
func LoadJobsFile(path string) ([]schedule.JobDefinition, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return cfg.JobDefinitions(), nil
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		cfg, err = decodeYAML(data)
	default:
		cfg, err = decodeTOML(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	cfg.jobOrder = completeOrder(cfg.jobOrder, cfg.Jobs)
	return cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	if err != nil {
		return nil, err
	}
	for _, key := range md.Keys() {
		if len(key) >= 2 && key[0] == "jobs" {
			cfg.jobOrder = appendUnique(cfg.jobOrder, key[1])
		}
	}
	return &cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &cfg, nil
	}

	root := doc.Content[0]
	if err := root.Decode(&cfg); err != nil {
		return nil, err
	}
	if jobs := mappingValue(root, "jobs"); jobs != nil && jobs.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(jobs.Content); i += 2 {
			cfg.jobOrder = appendUnique(cfg.jobOrder, jobs.Content[i].Value)
		}
	}
	return &cfg, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// completeOrder drops names that did not decode into a job and appends any
// decoded job the order missed, sorted.
func completeOrder(order []string, jobs map[string]JobConfig) []string {
	out := make([]string, 0, len(jobs))
	seen := make(map[string]bool, len(jobs))
	for _, name := range order {
		if _, ok := jobs[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var rest []string
	for name := range jobs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// expandEnvVars expands ${VAR} references and ~ in path settings.
func expandEnvVars(c *Config) {
	c.Scheduler.StorePath = expandHome(expandEnv(c.Scheduler.StorePath))
	c.Scheduler.MetricsFile = expandHome(expandEnv(c.Scheduler.MetricsFile))
	c.Dispatch.WorkingDir = expandHome(expandEnv(c.Dispatch.WorkingDir))
	c.Logging.Output = expandEnv(c.Logging.Output)
}

// expandEnv expands a value of the form ${VAR} or ${VAR:default}. Text after
// the closing brace is kept.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content, rest := s[2:end], s[end+1:]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val + rest
		}
		return defaultVal + rest
	}

	return os.Getenv(content) + rest
}

// expandHome expands a leading ~ in path.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
