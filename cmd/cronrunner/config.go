package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/cronrunner/internal/config"
	"github.com/aatumaykin/cronrunner/internal/constants"
)

// newConfigCmd groups configuration commands.
func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(opts))
	return cmd
}

// newConfigValidateCmd checks the settings and every job definition.
func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate configuration file",
		Long: `Validate the configuration file. Unlike a scheduler run, which skips
jobs with a bad definition, validation reports them as errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) > 0 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			if err := config.LoadEnvOptional(opts.envPath); err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			problems := cfg.Validate()
			defs := cfg.JobDefinitions()
			for _, def := range defs {
				if err := def.Validate(); err != nil {
					problems = append(problems, err)
				}
			}

			if len(problems) > 0 {
				fmt.Fprintln(out, pterm.Red(fmt.Sprintf(constants.MsgConfigInvalid, path, len(problems))))
				for _, p := range problems {
					fmt.Fprintf(out, "  - %v\n", p)
				}
				return errors.Newf("configuration %s is invalid", path)
			}

			fmt.Fprintln(out, pterm.Green(fmt.Sprintf(constants.MsgConfigValid, path, len(defs))))
			fmt.Fprintf(out, constants.MsgConfigStore+"\n", cfg.Scheduler.StoreFilePath())
			enabled := make(map[string]bool, len(defs))
			for _, def := range defs {
				enabled[def.Name] = true
			}
			for _, name := range cfg.JobNames() {
				if !enabled[name] {
					fmt.Fprintln(out, pterm.Gray(fmt.Sprintf(constants.MsgConfigDisabled, name)))
				}
			}
			return nil
		},
	}
}
