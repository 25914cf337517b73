package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/cronrunner/internal/config"
	"github.com/aatumaykin/cronrunner/internal/constants"
	"github.com/aatumaykin/cronrunner/internal/dispatch"
	"github.com/aatumaykin/cronrunner/internal/interval"
	"github.com/aatumaykin/cronrunner/internal/lock"
	"github.com/aatumaykin/cronrunner/internal/logger"
	"github.com/aatumaykin/cronrunner/internal/metrics"
	"github.com/aatumaykin/cronrunner/internal/runner"
	"github.com/aatumaykin/cronrunner/internal/schedule"
	"github.com/aatumaykin/cronrunner/internal/store"
	"github.com/aatumaykin/cronrunner/internal/version"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envPath    string
	jobsFile   string
	inlineJobs []string
	dryRun     bool
}

// newRootCmd builds the command tree. The root command itself performs one
// scheduler invocation.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cronrunner",
		Short: "cronrunner - run due recurring jobs once per invocation",
		Long: `cronrunner is meant to be triggered every minute by cron or a systemd
timer. Each invocation takes a file lock, runs the configured jobs that are
due, records when they ran and exits.

Exit status: 0 ran normally, 2 skipped because another run holds the lock,
1 fatal error (unreadable or corrupt run store, I/O failure, bad config).`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvocation(cmd.Context(), cmd, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", constants.DefaultConfigPath, "configuration file (TOML, YAML or JSON)")
	flags.StringVar(&opts.envPath, "env", constants.DefaultEnvPath, "optional .env file loaded before the configuration")
	flags.StringVar(&opts.jobsFile, "jobs", "", "file with extra job definitions for this run only")
	flags.StringArrayVar(&opts.inlineJobs, "job", nil, `extra job "name|interval|command" for this run only (repeatable)`)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show which jobs are due without taking the lock, running or saving")

	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the configuration. A missing file at the default path
// yields the defaults with no configured jobs.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if err := config.LoadEnvOptional(opts.envPath); err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(opts.configPath); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, errors.Newf("invalid configuration %s: %s", opts.configPath, strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// buildSchedule combines configured jobs with the --jobs file and --job flags.
func buildSchedule(cfg *config.Config, opts *rootOptions) (schedule.Schedule, error) {
	var extras []schedule.JobDefinition
	if opts.jobsFile != "" {
		defs, err := config.LoadJobsFile(opts.jobsFile)
		if err != nil {
			return schedule.Schedule{}, err
		}
		extras = append(extras, defs...)
	}
	for _, raw := range opts.inlineJobs {
		def, err := schedule.ParseInline(raw)
		if err != nil {
			return schedule.Schedule{}, err
		}
		extras = append(extras, def)
	}
	return schedule.Build(cfg.JobDefinitions(), extras...), nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

func runInvocation(ctx context.Context, cmd *cobra.Command, opts *rootOptions, out io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	sched, err := buildSchedule(cfg, opts)
	if err != nil {
		return err
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return err
	}

	var recorder *metrics.Recorder
	if cfg.Scheduler.MetricsFile != "" {
		recorder = metrics.New(metrics.DefaultNamespace)
	}

	r := runner.New(runner.Options{
		Lock:  lock.New(cfg.Scheduler.FlagPath(), cfg.Scheduler.Timeout(), log),
		Store: store.New(cfg.Scheduler.StorePath, cfg.Scheduler.StoreFile, log),
		Dispatcher: dispatch.NewShellDispatcher(dispatch.ShellConfig{
			Shell:      cfg.Dispatch.Shell,
			WorkingDir: cfg.Dispatch.WorkingDir,
			Timeout:    cfg.Dispatch.Timeout(),
		}, log),
		Calculator:  interval.NewCalculator(loc),
		Logger:      log,
		Progress:    out,
		Metrics:     recorder,
		MetricsFile: cfg.Scheduler.MetricsFile,
		DryRun:      opts.dryRun,
	})

	_, err = r.Run(ctx, sched)
	return err
}
