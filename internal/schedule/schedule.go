// Package schedule holds the job definitions assembled for one invocation.
// A Schedule is built once from configuration plus any extra definitions
// given on the command line and is never mutated afterwards.
package schedule

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cronrunner/internal/interval"
)

// JobDefinition describes a recurring job.
type JobDefinition struct {
	Name        string         // unique key; carries no meaning beyond identity
	Interval    string         // ISO-8601 duration, cron expression or relative phrase
	Command     string         // passed to the dispatcher unexamined
	ExtraParams map[string]any // passed to the dispatcher unexamined
}

// ConfigError reports a job definition that cannot run in this invocation.
type ConfigError struct {
	Job string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job %q: %v", e.Job, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks the required fields and parses the interval.
func (d JobDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ConfigError{Job: d.Name, Err: errors.New("name is required")}
	}
	if strings.TrimSpace(d.Interval) == "" {
		return &ConfigError{Job: d.Name, Err: errors.New("interval is required")}
	}
	if strings.TrimSpace(d.Command) == "" {
		return &ConfigError{Job: d.Name, Err: errors.New("command is required")}
	}
	if _, err := interval.Parse(d.Interval); err != nil {
		return &ConfigError{Job: d.Name, Err: err}
	}
	return nil
}

// Clone returns a copy whose ExtraParams map is not shared.
func (d JobDefinition) Clone() JobDefinition {
	out := d
	if d.ExtraParams != nil {
		out.ExtraParams = make(map[string]any, len(d.ExtraParams))
		for k, v := range d.ExtraParams {
			out.ExtraParams[k] = v
		}
	}
	return out
}

// Schedule is an ordered, immutable list of job definitions.
type Schedule struct {
	jobs  []JobDefinition
	index map[string]int
}

// Build assembles a schedule from the configured definitions followed by
// extras. An extra with the same name as a configured job replaces it in
// place; later duplicates replace earlier ones.
func Build(configured []JobDefinition, extras ...JobDefinition) Schedule {
	s := Schedule{index: make(map[string]int, len(configured)+len(extras))}
	for _, group := range [][]JobDefinition{configured, extras} {
		for _, def := range group {
			def = def.Clone()
			if i, ok := s.index[def.Name]; ok {
				s.jobs[i] = def
				continue
			}
			s.index[def.Name] = len(s.jobs)
			s.jobs = append(s.jobs, def)
		}
	}
	return s
}

// Jobs returns the definitions in schedule order.
func (s Schedule) Jobs() []JobDefinition {
	out := make([]JobDefinition, len(s.jobs))
	for i, def := range s.jobs {
		out[i] = def.Clone()
	}
	return out
}

// Len returns the number of jobs.
func (s Schedule) Len() int { return len(s.jobs) }

// Lookup returns the definition named name.
func (s Schedule) Lookup(name string) (JobDefinition, bool) {
	i, ok := s.index[name]
	if !ok {
		return JobDefinition{}, false
	}
	return s.jobs[i].Clone(), true
}

// Names returns job names in schedule order.
func (s Schedule) Names() []string {
	names := make([]string, len(s.jobs))
	for i, def := range s.jobs {
		names[i] = def.Name
	}
	return names
}

// ParseInline parses a command-line job of the form "name|interval|command".
// The command may itself contain "|".
func ParseInline(s string) (JobDefinition, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return JobDefinition{}, errors.Newf("inline job %q: expected name|interval|command", s)
	}
	def := JobDefinition{
		Name:     strings.TrimSpace(parts[0]),
		Interval: strings.TrimSpace(parts[1]),
		Command:  strings.TrimSpace(parts[2]),
	}
	if err := def.Validate(); err != nil {
		return JobDefinition{}, err
	}
	return def, nil
}
