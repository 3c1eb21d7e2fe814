// Package setup runs the guided first-time developer setup.
//
// The setup is a fixed sequence of steps. Each step must succeed before the
// next one starts; the first failure ends the run and is returned as a
// *StepError naming the step.
package setup

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/todo-stack/devops/internal/config"
	"github.com/todo-stack/devops/internal/docker"
	"github.com/todo-stack/devops/internal/runner"
)

// Step is one unit of the sequence.
type Step struct {
	Label string
	Done  string
	// Busy steps get a busy indicator while they run.
	Busy bool
	Run  func(ctx context.Context) error
}

// StepError reports which step stopped the sequence.
type StepError struct {
	Index int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Label, e.Err)
}

// Unwrap returns the step's own error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Reporter receives progress events.
type Reporter interface {
	StepStarted(index, total int, step Step)
	StepDone(index, total int, step Step)
}

// Result is returned once every step succeeded.
type Result struct {
	URL string
}

// Orchestrator is the part of docker.Compose the setup uses.
type Orchestrator interface {
	Purge(ctx context.Context, confirm docker.Confirmer) (bool, error)
	Start(ctx context.Context) error
}

// EnvCreator writes the env file.
type EnvCreator interface {
	Create(force bool) error
}

// ReadinessWaiter blocks until the database answers.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

// SettingsSource provides the settings, reloadable after env creation.
type SettingsSource interface {
	Get() (*config.Settings, error)
	Reset()
}

// Deps are the collaborators of the guided setup.
type Deps struct {
	Compose   Orchestrator
	Confirm   docker.Confirmer
	Env       EnvCreator
	Readiness ReadinessWaiter
	Runner    runner.Runner
	Settings  SettingsSource
	Hooks     config.HookConfig
}

// Sequencer runs steps in order.
type Sequencer struct {
	Steps    []Step
	Settings SettingsSource
	Reporter Reporter
}

// New returns the developer first-time setup sequence.
func New(d Deps, reporter Reporter) *Sequencer {
	hook := func(args []string, msg string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			_, err := d.Runner.Run(ctx, runner.Invocation{Args: args, ErrorMessage: msg, Check: true})
			return err
		}
	}

	return &Sequencer{
		Settings: d.Settings,
		Reporter: reporter,
		Steps: []Step{
			{
				Label: "Purging any existing setup (containers & data)",
				Done:  "Environment purged.",
				Run: func(ctx context.Context) error {
					purged, err := d.Compose.Purge(ctx, d.Confirm)
					if err != nil {
						return err
					}
					if !purged {
						return errors.Wrap(docker.ErrDeclined, "setup aborted")
					}
					return nil
				},
			},
			{
				Label: "Creating new .env files",
				Done:  "Environment files created.",
				Run: func(context.Context) error {
					if err := d.Env.Create(true); err != nil {
						return errors.Wrap(err, "Failed to create .env files")
					}
					d.Settings.Reset()
					return nil
				},
			},
			{
				Label: "Starting all Docker services",
				Done:  "Services started.",
				Busy:  true,
				Run:   d.Compose.Start,
			},
			{
				Label: "Waiting for the database to initialize",
				Done:  "Database connection successful!",
				Run:   d.Readiness.WaitReady,
			},
			{
				Label: "Creating root user",
				Done:  "Root user check/creation complete.",
				Run:   hook(d.Hooks.RootUser, "Failed to create root user"),
			},
			{
				Label: "Creating end user",
				Done:  "End user check/creation complete.",
				Run:   hook(d.Hooks.EndUser, "Failed to create end user"),
			},
		},
	}
}

// Run executes every step in order and stops at the first failure.
func (s *Sequencer) Run(ctx context.Context) (*Result, error) {
	total := len(s.Steps)
	for i, step := range s.Steps {
		index := i + 1
		if s.Reporter != nil {
			s.Reporter.StepStarted(index, total, step)
		}
		if err := step.Run(ctx); err != nil {
			return nil, &StepError{Index: index, Label: step.Label, Err: err}
		}
		if s.Reporter != nil {
			s.Reporter.StepDone(index, total, step)
		}
	}

	settings, err := s.Settings.Get()
	if err != nil {
		return nil, errors.Wrap(err, "setup finished but settings could not be loaded")
	}
	return &Result{URL: settings.AppURL()}, nil
}
