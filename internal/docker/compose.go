// Package docker drives the application stack through the compose CLI.
package docker

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/todo-stack/devops/internal/runner"
)

// ErrDeclined is returned by callers that treat a declined purge as an abort.
var ErrDeclined = errors.New("purge declined")

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// AutoConfirm approves every prompt.
type AutoConfirm struct{}

// Confirm always returns true.
func (AutoConfirm) Confirm(string) (bool, error) { return true, nil }

// Compose runs compose subcommands against one manifest.
type Compose struct {
	Runner  runner.Runner
	Command []string
	File    string
}

// NewCompose returns a Compose using command (e.g. docker compose) and file.
func NewCompose(r runner.Runner, command []string, file string) *Compose {
	return &Compose{Runner: r, Command: command, File: file}
}

// PurgePrompt is shown before volumes are deleted.
const PurgePrompt = "Are you sure you want to continue?"

func (c *Compose) args(sub ...string) []string {
	args := make([]string, 0, len(c.Command)+2+len(sub))
	args = append(args, c.Command...)
	args = append(args, "-f", c.File)
	return append(args, sub...)
}

func (c *Compose) run(ctx context.Context, msg string, sub ...string) error {
	_, err := c.Runner.Run(ctx, runner.Invocation{
		Args:         c.args(sub...),
		ErrorMessage: msg,
		Check:        true,
	})
	return err
}

// Start brings every service up detached, rebuilding images if needed
func (c *Compose) Start(ctx context.Context) error {
	return c.run(ctx, "Failed to start services.", "up", "-d", "--build")
}

// Stop stops running containers without removing them
func (c *Compose) Stop(ctx context.Context) error {
	return c.run(ctx, "Failed to stop services.", "stop")
}

// Down stops and removes containers, keeping volumes
func (c *Compose) Down(ctx context.Context) error {
	return c.run(ctx, "Failed to bring services down.", "down")
}

// Purge removes containers and volumes once confirm approves. A declined
// prompt returns false and runs nothing.
func (c *Compose) Purge(ctx context.Context, confirm Confirmer) (bool, error) {
	ok, err := confirm.Confirm(PurgePrompt)
	if err != nil {
		return false, errors.Wrap(err, "confirmation failed")
	}
	if !ok {
		return false, nil
	}
	if err := c.run(ctx, "Failed to purge services and volumes.", "down", "-v"); err != nil {
		return false, err
	}
	return true, nil
}

// Pull pulls the latest images
func (c *Compose) Pull(ctx context.Context) error {
	return c.run(ctx, "Failed to pull images.", "pull")
}

// Logs prints the logs of one service, or all services when service is empty
func (c *Compose) Logs(ctx context.Context, service string, follow bool) error {
	sub := []string{"logs"}
	if follow {
		sub = append(sub, "--follow")
	}
	if service != "" {
		sub = append(sub, service)
	}
	return c.run(ctx, "Failed to read service logs.", sub...)
}

// LogsHint is the command a user can run to inspect a service's logs
func (c *Compose) LogsHint(service string) string {
	return strings.Join(append(append([]string{}, c.Command...), "logs", service), " ")
}
