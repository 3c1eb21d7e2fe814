// Package cli defines the devops command tree.
//
// Commands print human-readable status through ui.Console and return an
// error on failure so the process exits non-zero. Errors are printed where
// they happen, so cobra's own error printing is silenced; errors cobra raises
// itself (unknown flags or commands, bad argument counts) are printed by
// Execute.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/todo-stack/devops/internal/config"
	"github.com/todo-stack/devops/internal/database"
	"github.com/todo-stack/devops/internal/docker"
	"github.com/todo-stack/devops/internal/logger"
	"github.com/todo-stack/devops/internal/manifest"
	"github.com/todo-stack/devops/internal/retry"
	"github.com/todo-stack/devops/internal/runner"
	"github.com/todo-stack/devops/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "devops",
	Short: "Manage the todo application stack",
	Long: `devops orchestrates the todo application stack (Gel database and web app)
with docker compose.

First time here? Run 'devops service start-dev'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx)
}

// errReported marks errors a command has already printed.
var errReported = errors.New("reported")

func execute(ctx context.Context) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil || errors.Is(err, errReported) {
		return err
	}

	if cmd == nil {
		cmd = rootCmd
	}
	console := ui.New()
	console.Out = rootCmd.ErrOrStderr()
	console.Error(errors.WithHintf(err, "Run '%s --help' for usage.", cmd.CommandPath()))
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("project-dir", "", "Directory holding the compose manifest (commands run from here)")
	flags.String("compose-file", "", "Compose manifest, relative to the project dir")
	flags.String("env-file", "", "Env file with connection settings, relative to the project dir")
	flags.String("log-level", "", "Diagnostic log level (debug|info|warn|error)")

	// Bind flags to viper
	for _, name := range []string{"project-dir", "compose-file", "env-file", "log-level"} {
		_ = config.BindFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(serviceCmd, envCmd, configCmd, versionCmd)
}

// app holds the collaborators a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	console  *ui.Console
	runner   *runner.Exec
	compose  *docker.Compose
	settings *config.SettingsSource
	manifest *manifest.Manifest
}

func newApp() (*app, error) {
	console := ui.New()

	// Load configuration (Viper resolves behind the scenes)
	cfg, err := config.Load()
	if err != nil {
		return nil, report(console, err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, report(console, err)
	}

	r := runner.New(cfg.ProjectDir, log)
	a := &app{
		cfg:      cfg,
		log:      log,
		console:  console,
		runner:   r,
		compose:  docker.NewCompose(r, cfg.ComposeCommand, cfg.ComposeFile),
		settings: config.NewSettingsSource(config.ResolvePath(cfg.ProjectDir, cfg.EnvFile)),
	}

	m, err := manifest.Load(config.ResolvePath(cfg.ProjectDir, cfg.ComposeFile))
	if err != nil {
		log.Debug("Compose manifest unavailable", zap.Error(err))
	} else {
		if result := m.Validate(); !result.Valid {
			log.Warn("Compose manifest looks incomplete", zap.Strings("problems", result.Errors))
		}
		a.manifest = m
	}

	return a, nil
}

// dbService is the compose service running the database.
func (a *app) dbService() string {
	if a.cfg.DBService != "" {
		return a.cfg.DBService
	}
	if a.manifest != nil {
		if name := a.manifest.DatabaseService(); name != "" {
			return name
		}
	}
	return config.DefaultDBService
}

// prober builds the readiness prober, reporting each failed attempt.
func (a *app) prober() *database.Prober {
	policy := retry.Fixed(a.cfg.Probe.Attempts, a.cfg.Probe.Delay)
	p := database.NewProber(a.settings, policy, a.cfg.Probe.ConnectTimeout, a.log)
	p.LogsHint = a.compose.LogsHint(a.dbService())
	p.OnAttempt = func(attempt, max int, err error) {
		if attempt < max {
			a.console.Warn("Attempt %d/%d failed. Retrying in %s... (Error: %v)", attempt, max, a.cfg.Probe.Delay, err)
			return
		}
		a.console.Warn("Attempt %d/%d failed. (Error: %v)", attempt, max, err)
	}
	return p
}

// confirmer returns the console prompt, or auto-confirmation for --yes.
func (a *app) confirmer(assumeYes bool) docker.Confirmer {
	if assumeYes {
		return docker.AutoConfirm{}
	}
	return a.console
}

// fail prints err and hands it back for cobra to turn into a non-zero exit.
func (a *app) fail(err error) error {
	return report(a.console, err)
}

func report(console *ui.Console, err error) error {
	console.Error(err)
	return errors.Mark(err, errReported)
}
