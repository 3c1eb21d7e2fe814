package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/todo-stack/devops/internal/envfile"
	"github.com/todo-stack/devops/internal/setup"
	"github.com/todo-stack/devops/internal/ui"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start all services in detached mode",
	Long: `Start the application stack using docker compose.

Images are rebuilt when needed and every service runs detached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.console.Info("Starting all services...")
		if err := a.compose.Start(cmd.Context()); err != nil {
			return a.fail(err)
		}

		a.console.Done("Services started successfully.")
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the latest service images",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.console.Info("→ Pulling latest images...")
		if err := a.compose.Pull(cmd.Context()); err != nil {
			return a.fail(err)
		}

		a.console.Done("Images pulled.")
		return nil
	},
}

var startDevCmd = &cobra.Command{
	Use:   "start-dev",
	Short: "Guided first-time setup for developers",
	Long: `Run the guided first-time setup:

  1. purge any existing containers and data
  2. create new .env files
  3. start all services
  4. wait for the database
  5. create the root user
  6. create the end user

The purge asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		assumeYes, _ := cmd.Flags().GetBool("yes")

		a.console.Rule("Developer First-Time Setup")
		a.warnPurge()

		seq := setup.New(setup.Deps{
			Compose: a.compose,
			Confirm: a.confirmer(assumeYes),
			Env: &envfile.Creator{
				Path:     a.settings.Path(),
				Defaults: a.cfg.EnvDefaults,
			},
			Readiness: a.prober(),
			Runner:    a.runner,
			Settings:  a.settings,
			Hooks:     a.cfg.Hooks,
		}, &consoleReporter{console: a.console, command: a.compose.Command})

		res, err := seq.Run(cmd.Context())
		if err != nil {
			var stepErr *setup.StepError
			if errors.As(err, &stepErr) {
				a.console.Error(stepErr.Err)
				a.console.Alert("Setup stopped at step %d (%s). Please check the error above.", stepErr.Index, stepErr.Label)
				return errors.Mark(err, errReported)
			}
			return a.fail(err)
		}

		a.console.Plain("")
		a.console.Done("🎉 Setup Complete! 🎉")
		a.console.Panel("Application Ready", "You can now access the web UI at:\n\n"+res.URL)
		return nil
	},
}

// consoleReporter prints setup progress.
type consoleReporter struct {
	console *ui.Console
	command []string
}

func (r *consoleReporter) StepStarted(index, total int, step setup.Step) {
	r.console.Plain("")
	r.console.Info("Step %d/%d: %s...", index, total, step.Label)
	if step.Busy {
		r.console.Busy(fmt.Sprintf("Running '%s up -d --build'...", strings.Join(r.command, " ")))
	}
}

func (r *consoleReporter) StepDone(_, _ int, step setup.Step) {
	r.console.Success("%s", step.Done)
}

func init() {
	startDevCmd.Flags().BoolP("yes", "y", false, "Skip the purge confirmation")
}
