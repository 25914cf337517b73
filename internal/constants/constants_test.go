package constants

import (
	"fmt"
	"strings"
	"testing"
)

func TestMessageFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		args   []any
		want   string
	}{
		{"lock busy", MsgLockBusy, []any{"1m0s"}, "Scheduler is already running (lock held for 1m0s), skipping this invocation"},
		{"running", MsgRunningJob, []any{"CleanUp"}, "Running job CleanUp"},
		{"skipping", MsgSkippingJob, []any{"CleanUp", "2024-01-02T03:00:00Z"}, "Skipping job CleanUp, next run at 2024-01-02T03:00:00Z"},
		{"done", MsgDone, []any{1, 2, 0}, "Done: 1 dispatched, 2 skipped, 0 invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprintf(tt.format, tt.args...)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusHeader(t *testing.T) {
	if got := len(strings.Split(MsgStatusHeader, "|")); got != 5 {
		t.Errorf("MsgStatusHeader has %d columns, want 5", got)
	}
}

func TestPaths(t *testing.T) {
	if !strings.HasSuffix(DefaultConfigPath, ".toml") {
		t.Errorf("DefaultConfigPath = %s, want a .toml file", DefaultConfigPath)
	}
	if EnvJobName == "" {
		t.Error("EnvJobName should not be empty")
	}
}
