// Package runner performs one scheduler invocation: take the run lock, load
// and merge the run store, dispatch every due job in schedule order, save
// the store and release the lock.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aatumaykin/cronrunner/internal/constants"
	"github.com/aatumaykin/cronrunner/internal/dispatch"
	"github.com/aatumaykin/cronrunner/internal/interval"
	"github.com/aatumaykin/cronrunner/internal/lock"
	"github.com/aatumaykin/cronrunner/internal/logger"
	"github.com/aatumaykin/cronrunner/internal/metrics"
	"github.com/aatumaykin/cronrunner/internal/schedule"
	"github.com/aatumaykin/cronrunner/internal/store"
)

var (
	// ErrLockBusy means another invocation holds a fresh run lock.
	ErrLockBusy = errors.New("scheduler is already running")
	// ErrStoreCorrupt means the run store could not be parsed.
	ErrStoreCorrupt = store.ErrCorrupt
	// ErrIO marks a filesystem failure that aborted the invocation.
	ErrIO = errors.New("scheduler i/o failure")
)

// Exit codes returned by ExitCode.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitLockBusy = 2
)

// ExitCode maps the error returned by Run to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrLockBusy):
		return ExitLockBusy
	default:
		return ExitFatal
	}
}

// Options wires a Runner.
type Options struct {
	Lock        *lock.Lock
	Store       *store.Store
	Dispatcher  dispatch.Dispatcher
	Calculator  *interval.Calculator
	Logger      *logger.Logger
	Progress    io.Writer         // human-readable progress lines; io.Discard when nil
	Metrics     *metrics.Recorder // optional
	MetricsFile string            // textfile written after the invocation when Metrics is set
	Now         func() time.Time
	DryRun      bool // evaluate due-ness only; no lock, dispatch or save
}

// Runner executes scheduler invocations.
type Runner struct {
	lock        *lock.Lock
	store       *store.Store
	dispatcher  dispatch.Dispatcher
	calc        *interval.Calculator
	logger      *logger.Logger
	progress    io.Writer
	metrics     *metrics.Recorder
	metricsFile string
	now         func() time.Time
	dryRun      bool
}

// New returns a runner for opts. Lock, Store and Dispatcher are required.
func New(opts Options) *Runner {
	r := &Runner{
		lock:        opts.Lock,
		store:       opts.Store,
		dispatcher:  opts.Dispatcher,
		calc:        opts.Calculator,
		logger:      opts.Logger,
		progress:    opts.Progress,
		metrics:     opts.Metrics,
		metricsFile: opts.MetricsFile,
		now:         opts.Now,
		dryRun:      opts.DryRun,
	}
	if r.calc == nil {
		r.calc = interval.NewCalculator(nil)
	}
	if r.logger == nil {
		r.logger = logger.Discard()
	}
	if r.progress == nil {
		r.progress = io.Discard
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// JobOutcome is a dispatched job.
type JobOutcome struct {
	Name   string
	Due    time.Time
	Result dispatch.Result
}

// Report summarizes one invocation.
type Report struct {
	InvocationID string
	Added        []string                // records created by merge
	Dispatched   []JobOutcome            // in schedule order
	WouldRun     []string                // due jobs in dry-run mode
	Skipped      []string                // not due
	Invalid      []*schedule.ConfigError // skipped because of their definition
}

// Run performs one invocation over sched. The returned error is nil, wraps
// ErrLockBusy, or is fatal (ErrStoreCorrupt, ErrIO). The report is never nil.
func (r *Runner) Run(ctx context.Context, sched schedule.Schedule) (report *Report, err error) {
	started := r.now()
	report = &Report{InvocationID: uuid.NewString()}
	log := r.logger.With(logger.Field{Key: "invocation_id", Value: report.InvocationID})

	log.Info("invocation started",
		logger.Field{Key: "jobs", Value: sched.Len()},
		logger.Field{Key: "dry_run", Value: r.dryRun})

	defer func() {
		r.finish(log, report, err, r.now().Sub(started))
	}()

	if !r.dryRun {
		status, lockErr := r.lock.Acquire()
		if lockErr != nil {
			return report, errors.Mark(lockErr, ErrIO)
		}
		if status == lock.AlreadyRunning {
			age, _, _ := r.lock.Age()
			r.printf(constants.MsgLockBusy, age.Truncate(time.Second))
			return report, errors.Wrapf(ErrLockBusy, "lock %s held for %s", r.lock.Path(), age.Truncate(time.Second))
		}
		defer func() {
			if relErr := r.lock.Release(); relErr != nil {
				log.Error("failed to release lock", relErr)
				if err == nil {
					err = errors.Mark(relErr, ErrIO)
				}
			}
		}()
	}

	records, err := r.store.Load()
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return report, err
		}
		return report, errors.Mark(err, ErrIO)
	}

	report.Added = store.Merge(sched, records)
	if len(report.Added) > 0 {
		log.Info("new jobs added to run store", logger.Field{Key: "jobs", Value: report.Added})
	}

	for _, def := range sched.Jobs() {
		if ctx.Err() != nil {
			log.Warn("invocation interrupted, remaining jobs left for the next run",
				logger.Field{Key: "error", Value: ctx.Err().Error()})
			break
		}
		r.runJob(ctx, log, report, def, records[def.Name])
	}

	if r.metrics != nil {
		for _, name := range records.Names() {
			r.metrics.ObserveRecord(name, records[name].LastRun.Time)
		}
	}

	if r.dryRun {
		return report, nil
	}

	if saveErr := r.store.Save(records); saveErr != nil {
		return report, errors.Mark(saveErr, ErrIO)
	}
	return report, nil
}

func (r *Runner) runJob(ctx context.Context, log *logger.Logger, report *Report, def schedule.JobDefinition, rec *store.Record) {
	jobLog := log.With(logger.Field{Key: "job", Value: def.Name})

	if err := def.Validate(); err != nil {
		var cfgErr *schedule.ConfigError
		if !errors.As(err, &cfgErr) {
			cfgErr = &schedule.ConfigError{Job: def.Name, Err: err}
		}
		report.Invalid = append(report.Invalid, cfgErr)
		r.printf(constants.MsgInvalidJob, def.Name, cfgErr.Err)
		jobLog.Warn("job skipped: invalid definition", logger.Field{Key: "error", Value: cfgErr.Err.Error()})
		if r.metrics != nil {
			r.metrics.JobConfigError()
		}
		return
	}

	now := r.now()
	due, next, err := r.calc.IsDue(rec.LastRun.Time, def.Interval, now)
	if err != nil {
		cfgErr := &schedule.ConfigError{Job: def.Name, Err: err}
		report.Invalid = append(report.Invalid, cfgErr)
		r.printf(constants.MsgInvalidJob, def.Name, err)
		jobLog.Warn("job skipped: interval cannot be evaluated", logger.Field{Key: "error", Value: err.Error()})
		if r.metrics != nil {
			r.metrics.JobConfigError()
		}
		return
	}

	if !due {
		report.Skipped = append(report.Skipped, def.Name)
		r.printf(constants.MsgSkippingJob, def.Name, next.In(r.calc.Location()).Format(time.RFC3339))
		jobLog.Debug("job not due", logger.Field{Key: "next_due", Value: next})
		if r.metrics != nil {
			r.metrics.JobSkipped()
		}
		return
	}

	if r.dryRun {
		report.WouldRun = append(report.WouldRun, def.Name)
		r.printf(constants.MsgWouldRun, def.Name, dispatch.CommandLine(def.Command, def.ExtraParams))
		return
	}

	rec.Refresh(def)
	r.printf(constants.MsgRunningJob, def.Name)
	jobLog.Info("dispatching job", logger.Field{Key: "due", Value: next})

	res := r.dispatch(ctx, def)
	finished := r.now().Truncate(time.Second)
	rec.Finish(finished, res.String())

	report.Dispatched = append(report.Dispatched, JobOutcome{Name: def.Name, Due: next, Result: res})
	r.printf(constants.MsgJobFinished, def.Name, res.ExitCode, res.Duration().Round(time.Millisecond))
	if res.OK() {
		jobLog.Info("job finished",
			logger.Field{Key: "duration", Value: res.Duration().String()})
	} else {
		jobLog.Warn("job failed",
			logger.Field{Key: "exit_code", Value: res.ExitCode},
			logger.Field{Key: "error", Value: fmt.Sprint(res.Err)})
	}
	if r.metrics != nil {
		r.metrics.JobDispatched(def.Name, finished, res.OK())
	}
}

// dispatch calls the dispatcher and turns a panic into a failed result.
func (r *Runner) dispatch(ctx context.Context, def schedule.JobDefinition) (res dispatch.Result) {
	started := r.now()
	defer func() {
		if p := recover(); p != nil {
			res = dispatch.Result{
				CommandLine: dispatch.CommandLine(def.Command, def.ExtraParams),
				ExitCode:    -1,
				Err:         errors.Newf("dispatcher panic: %v", p),
				Started:     started,
				Finished:    r.now(),
			}
		}
	}()

	// A started dispatch runs to completion; cancellation only stops later jobs.
	return r.dispatcher.Dispatch(context.WithoutCancel(ctx), dispatch.Request{
		Job:         def.Name,
		Command:     def.Command,
		ExtraParams: def.ExtraParams,
	})
}

func (r *Runner) finish(log *logger.Logger, report *Report, err error, elapsed time.Duration) {
	if !errors.Is(err, ErrLockBusy) {
		r.printf(constants.MsgDone, len(report.Dispatched), len(report.Skipped), len(report.Invalid))
	}

	switch {
	case err == nil:
		log.Info("invocation finished",
			logger.Field{Key: "dispatched", Value: len(report.Dispatched)},
			logger.Field{Key: "skipped", Value: len(report.Skipped)},
			logger.Field{Key: "invalid", Value: len(report.Invalid)},
			logger.Field{Key: "duration", Value: elapsed.String()})
	case errors.Is(err, ErrLockBusy):
		log.Info("invocation skipped: lock held", logger.Field{Key: "reason", Value: err.Error()})
	default:
		log.Error("invocation failed", err)
	}

	if r.metrics == nil {
		return
	}
	if errors.Is(err, ErrLockBusy) {
		r.metrics.LockBusy()
	}
	r.metrics.InvocationDuration(elapsed)
	if r.metricsFile == "" || r.dryRun {
		return
	}
	if werr := r.metrics.WriteTextfile(r.metricsFile); werr != nil {
		log.Warn("failed to write metrics", logger.Field{Key: "error", Value: werr.Error()})
	}
}

func (r *Runner) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.progress, format+"\n", args...)
}
