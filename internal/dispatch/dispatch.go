// Package dispatch runs a job's command. The scheduler treats the outcome as
// opaque text; this package decides what that text looks like.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Request is one job execution.
type Request struct {
	Job         string
	Command     string
	ExtraParams map[string]any
}

// Result is the outcome of a dispatch.
type Result struct {
	CommandLine string
	ExitCode    int
	Output      string
	Err         error
	Started     time.Time
	Finished    time.Time
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Duration is the wall time the dispatch took.
func (r Result) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// String renders the result as stored in the run record.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Command: %s\n", r.CommandLine)
	fmt.Fprintf(&b, "# Exit code: %d\n", r.ExitCode)
	b.WriteString("# Output:\n")
	b.WriteString(r.Output)
	if r.Err != nil {
		if r.Output != "" && !strings.HasSuffix(r.Output, "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# Error: %v", r.Err)
	}
	return b.String()
}

// Dispatcher executes job commands. Dispatch must not panic on command
// failure; failures are reported through Result.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) Result
}

// Func adapts a function to Dispatcher.
type Func func(ctx context.Context, req Request) Result

// Dispatch implements Dispatcher.
func (f Func) Dispatch(ctx context.Context, req Request) Result { return f(ctx, req) }

// CommandLine appends extraParams to command as shell-quoted options in
// sorted key order. Keys without a leading dash become "--key". A true or nil
// value yields a bare flag, false omits the option, and a slice repeats it.
func CommandLine(command string, params map[string]any) string {
	command = strings.TrimSpace(command)
	if len(params) == 0 {
		return command
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		flag := k
		if !strings.HasPrefix(flag, "-") {
			flag = "--" + flag
		}
		args = append(args, formatParam(flag, params[k])...)
	}
	if len(args) == 0 {
		return command
	}
	return command + " " + shellquote.Join(args...)
}

func formatParam(flag string, v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{flag}
	case bool:
		if val {
			return []string{flag}
		}
		return nil
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, formatParam(flag, item)...)
		}
		return out
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, flag+"="+item)
		}
		return out
	default:
		return []string{fmt.Sprintf("%s=%v", flag, val)}
	}
}
