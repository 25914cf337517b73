package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const tomlConfig = `
[scheduler]
storePath = "/var/lib/cronrunner"
processingTimeout = 120
timezone = "Europe/Berlin"

[dispatch]
timeoutSeconds = 30

[jobs.Newsletter]
interval = "P1D"
command = "app:newsletter:send"
extraParams = { limit = 100, to = ["a", "b"] }

[jobs.CleanUp]
interval = "tomorrow 3am"
command = "app:cleanup"

[jobs.Archive]
interval = "P1W"
command = "app:archive"
enabled = false
`

func TestConfigDefaults(t *testing.T) {
	cfg := Default()

	tests := []struct {
		field string
		want  string
		got   string
	}{
		{"scheduler.storePath", filepath.Join(os.TempDir(), "cronrunner"), cfg.Scheduler.StorePath},
		{"scheduler.storeFile", "cron_scheduler.json", cfg.Scheduler.StoreFile},
		{"scheduler.processingFlagFile", ".cron_scheduler_processing_flag", cfg.Scheduler.ProcessingFlagFile},
		{"dispatch.shell", "sh", cfg.Dispatch.Shell},
		{"logging.level", "info", cfg.Logging.Level},
		{"logging.format", "text", cfg.Logging.Format},
		{"logging.output", "stderr", cfg.Logging.Output},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.Equal(t, 600*time.Second, cfg.Scheduler.Timeout())
	assert.Zero(t, cfg.Dispatch.Timeout())
	assert.Empty(t, cfg.Validate())
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "cronrunner.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cronrunner/cron_scheduler.json", cfg.Scheduler.StoreFilePath())
	assert.Equal(t, "/var/lib/cronrunner/.cron_scheduler_processing_flag", cfg.Scheduler.FlagPath())
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Dispatch.Timeout())

	loc, err := cfg.Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	assert.Equal(t, []string{"Newsletter", "CleanUp", "Archive"}, cfg.JobNames())

	defs := cfg.JobDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "Newsletter", defs[0].Name)
	assert.Equal(t, "P1D", defs[0].Interval)
	assert.Equal(t, "app:newsletter:send", defs[0].Command)
	assert.EqualValues(t, 100, defs[0].ExtraParams["limit"])
	assert.Equal(t, []any{"a", "b"}, defs[0].ExtraParams["to"])
	assert.Equal(t, "CleanUp", defs[1].Name)
	assert.Nil(t, defs[1].ExtraParams)

	assert.Empty(t, cfg.Validate())
}

func TestLoad_TOMLOrderFollowsDocument(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.toml", `
[jobs.zeta]
interval = "P1D"
command = "z"

[jobs.alpha]
interval = "P1D"
command = "a"

[jobs.mid]
interval = "P1D"
command = "m"
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.JobNames())
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "cronrunner.yaml", `
scheduler:
  storePath: /srv/cron
  storeFile: runs.json
logging:
  level: debug
  format: json
jobs:
  zeta:
    interval: PT1H
    command: z
    extraParams:
      verbose: true
      nested:
        key: value
  alpha:
    interval: "cron:0 3 * * *"
    command: a
    enabled: false
  mid:
    interval: next monday 9am
    command: m
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/cron/runs.json", cfg.Scheduler.StoreFilePath())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, cfg.JobNames())

	defs := cfg.JobDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, true, defs[0].ExtraParams["verbose"])
	assert.Equal(t, map[string]any{"key": "value"}, defs[0].ExtraParams["nested"])
	assert.Equal(t, "mid", defs[1].Name)
}

func TestLoad_JSONViaYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "cronrunner.json", `{
  "jobs": {
    "b": {"interval": "P1D", "command": "b"},
    "a": {"interval": "P2D", "command": "a"}
  }
}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, cfg.JobNames())
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Empty(t, cfg.JobDefinitions())
	assert.Equal(t, DefaultStoreFile, cfg.Scheduler.StoreFile)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "[scheduler\nstorePath = 1"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "jobs: [unterminated"))
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvAndHome(t *testing.T) {
	t.Setenv("CRONRUNNER_TEST_DIR", "/data/cron")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(writeFile(t, "c.toml", `
[scheduler]
storePath = "${CRONRUNNER_TEST_DIR}"
metricsFile = "${CRONRUNNER_TEST_UNSET:/tmp}/cron.prom"

[dispatch]
workingDir = "~/jobs"
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/cron", cfg.Scheduler.StorePath)
	assert.Equal(t, "/tmp/cron.prom", cfg.Scheduler.MetricsFile)
	assert.Equal(t, filepath.Join(home, "jobs"), cfg.Dispatch.WorkingDir)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CRONRUNNER_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${CRONRUNNER_SET}", "value"},
		{"${CRONRUNNER_SET:fallback}", "value"},
		{"${CRONRUNNER_UNSET:fallback}", "fallback"},
		{"${CRONRUNNER_UNSET}", ""},
		{"${CRONRUNNER_SET}/sub", "value/sub"},
		{"${broken", "${broken"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnv(tt.in), tt.in)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr int
	}{
		{"valid", func(*Config) {}, 0},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, 1},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, 1},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, 1},
		{"negative dispatch timeout", func(c *Config) { c.Dispatch.TimeoutSeconds = -1 }, 1},
		{"negative processing timeout", func(c *Config) { c.Scheduler.ProcessingTimeout = -5 }, 1},
		{"store file is a path", func(c *Config) { c.Scheduler.StoreFile = "a/b.json" }, 1},
		{"same file names", func(c *Config) { c.Scheduler.ProcessingFlagFile = c.Scheduler.StoreFile }, 1},
		{"traversal", func(c *Config) { c.Scheduler.StorePath = "/srv/../etc" }, 1},
		{"several", func(c *Config) {
			c.Logging.Level = "x"
			c.Logging.Format = "y"
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Len(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_IgnoresIncompleteJobs(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.toml", `
[jobs.broken]
command = "x"
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())
	require.Len(t, cfg.JobDefinitions(), 1)
	assert.Error(t, cfg.JobDefinitions()[0].Validate())
}

func TestLoadJobsFile(t *testing.T) {
	defs, err := LoadJobsFile(writeFile(t, "extra.yaml", `
jobs:
  Report:
    interval: P1D
    command: app:report
  Skip:
    interval: P1D
    command: app:skip
    enabled: false
`))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Report", defs[0].Name)

	_, err = LoadJobsFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
