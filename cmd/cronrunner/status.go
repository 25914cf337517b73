package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/cronrunner/internal/constants"
	"github.com/aatumaykin/cronrunner/internal/interval"
	"github.com/aatumaykin/cronrunner/internal/schedule"
	"github.com/aatumaykin/cronrunner/internal/store"
)

// newStatusCmd prints every run record with its next due instant. It reads
// the store without taking the lock and never writes it.
func newStatusCmd(opts *rootOptions) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when each job last ran and when it is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				pterm.DisableColor()
			}

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			sched, err := buildSchedule(cfg, opts)
			if err != nil {
				return err
			}
			loc, err := cfg.Scheduler.Location()
			if err != nil {
				return err
			}

			st := store.New(cfg.Scheduler.StorePath, cfg.Scheduler.StoreFile, nil)
			records, err := st.Load()
			if err != nil {
				return err
			}
			store.Merge(sched, records)

			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), constants.MsgStatusEmpty+"\n", st.Path())
				return nil
			}
			return renderStatus(cmd.OutOrStdout(), sched, records, interval.NewCalculator(loc), time.Now())
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

// renderStatus writes scheduled jobs in schedule order followed by retired
// records sorted by name.
func renderStatus(w io.Writer, sched schedule.Schedule, records store.Records, calc *interval.Calculator, now time.Time) error {
	data := pterm.TableData{strings.Split(constants.MsgStatusHeader, "|")}

	names := sched.Names()
	for _, name := range records.Names() {
		if _, ok := sched.Lookup(name); !ok {
			names = append(names, name)
		}
	}

	for _, name := range names {
		rec, ok := records[name]
		if !ok {
			continue
		}
		data = append(data, statusRow(rec, sched, calc, now))
	}

	return pterm.DefaultTable.
		WithHasHeader().
		WithData(data).
		WithWriter(w).
		Render()
}

func statusRow(rec *store.Record, sched schedule.Schedule, calc *interval.Calculator, now time.Time) []string {
	intervalText := rec.Interval
	if def, ok := sched.Lookup(rec.Name); ok {
		intervalText = def.Interval
	}

	lastRun := constants.MsgNever
	if !rec.LastRun.IsNever() {
		lastRun = rec.LastRun.In(calc.Location()).Format(time.RFC3339)
	}

	if _, scheduled := sched.Lookup(rec.Name); !scheduled {
		return []string{rec.Name, intervalText, lastRun, "-", pterm.Gray(constants.MsgStatusRetired)}
	}

	due, next, err := calc.IsDue(rec.LastRun.Time, intervalText, now)
	if err != nil {
		return []string{rec.Name, intervalText, lastRun, "-", pterm.Red("invalid")}
	}

	nextText := next.In(calc.Location()).Format(time.RFC3339)
	if rec.LastRun.IsNever() {
		nextText = "now"
	}
	dueText := pterm.Gray("no")
	if due {
		dueText = pterm.Green("yes")
	}
	return []string{rec.Name, intervalText, lastRun, nextText, dueText}
}
