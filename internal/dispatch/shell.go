package dispatch

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cronrunner/internal/constants"
	"github.com/aatumaykin/cronrunner/internal/logger"
)

// DefaultMaxOutput is the default cap on captured output kept in a result.
const DefaultMaxOutput = 64 * 1024

// ShellConfig configures ShellDispatcher.
type ShellConfig struct {
	Shell      string        // interpreter invoked as "<shell> -c <line>", default "sh"
	WorkingDir string        // empty means the current directory
	Timeout    time.Duration // zero means wait for the command indefinitely
	MaxOutput  int           // bytes of output kept; the tail is kept
	Env        []string      // extra KEY=VALUE entries appended to the environment
}

// ShellDispatcher runs commands through a shell and captures combined output.
type ShellDispatcher struct {
	cfg    ShellConfig
	logger *logger.Logger
	now    func() time.Time
}

// NewShellDispatcher returns a dispatcher for cfg.
func NewShellDispatcher(cfg ShellConfig, log *logger.Logger) *ShellDispatcher {
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = DefaultMaxOutput
	}
	if log == nil {
		log = logger.Discard()
	}
	return &ShellDispatcher{cfg: cfg, logger: log, now: time.Now}
}

// Dispatch runs req and blocks until the command exits.
func (d *ShellDispatcher) Dispatch(ctx context.Context, req Request) Result {
	line := CommandLine(req.Command, req.ExtraParams)
	res := Result{CommandLine: line, Started: d.now()}

	if line == "" {
		res.ExitCode = -1
		res.Err = errors.New("empty command")
		res.Finished = d.now()
		return res
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	d.logger.Debug("executing command",
		logger.Field{Key: "job", Value: req.Job},
		logger.Field{Key: "command", Value: line})

	cmd := exec.CommandContext(ctx, d.cfg.Shell, "-c", line)
	cmd.Dir = d.cfg.WorkingDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), d.cfg.Env...)
	cmd.Env = append(cmd.Env, constants.EnvJobName+"="+req.Job)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res.Finished = d.now()
	res.Output = tail(out.String(), d.cfg.MaxOutput)
	res.ExitCode = exitCode(err)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Wrapf(ctx.Err(), "command %q", line)
		}
		res.Err = err
		d.logger.Warn("command failed",
			logger.Field{Key: "job", Value: req.Job},
			logger.Field{Key: "exit_code", Value: res.ExitCode},
			logger.Field{Key: "error", Value: err.Error()})
	}
	return res
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	start := len(s) - max
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "...(truncated)\n" + s[start:]
}
