package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todo-stack/devops/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	if err := config.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeCompose installs a compose command that records its arguments and
// exits with code.
func fakeCompose(t *testing.T, code int) (dir, log string) {
	t.Helper()
	dir = t.TempDir()
	log = filepath.Join(dir, "calls.log")
	script := filepath.Join(dir, "fake-compose")
	body := "#!/bin/sh\necho \"$@\" >> " + log + "\nexit " + strconv.Itoa(code) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	t.Setenv("DEVOPS_COMPOSE_COMMAND", script)
	t.Setenv("DEVOPS_LOG_LEVEL", "error")
	return dir, log
}

func calls(t *testing.T, log string) []string {
	t.Helper()
	data, err := os.ReadFile(log)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func run(args ...string) error {
	rootCmd.SetArgs(args)
	return execute(context.Background())
}

func TestServiceCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "start", args: []string{"service", "start"}, want: "-f docker-compose.yml up -d --build"},
		{name: "stop", args: []string{"service", "stop"}, want: "-f docker-compose.yml stop"},
		{name: "down", args: []string{"service", "down"}, want: "-f docker-compose.yml down"},
		{name: "purge", args: []string{"service", "purge", "--yes"}, want: "-f docker-compose.yml down -v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, log := fakeCompose(t, 0)

			require.NoError(t, run(append(tt.args, "--project-dir", dir)...))
			assert.Equal(t, []string{tt.want}, calls(t, log))
		})
	}
}

func TestServiceCommandFailureIsReported(t *testing.T) {
	dir, log := fakeCompose(t, 1)

	err := run("service", "stop", "--project-dir", dir)

	require.Error(t, err)
	assert.Equal(t, "Failed to stop services.", err.Error())
	assert.Len(t, calls(t, log), 1)
}

func TestUsageErrorsArePrinted(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown flag", args: []string{"service", "stop", "--no-such-flag"}, want: "unknown flag: --no-such-flag"},
		{name: "unknown command", args: []string{"bogus"}, want: `unknown command "bogus"`},
		{name: "too many args", args: []string{"service", "logs", "a", "b"}, want: "accepts at most 1 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, log := fakeCompose(t, 0)
			var stderr bytes.Buffer
			rootCmd.SetErr(&stderr)
			t.Cleanup(func() { rootCmd.SetErr(nil) })

			err := run(tt.args...)

			require.Error(t, err)
			assert.Contains(t, stderr.String(), "✗ Error: "+tt.want)
			assert.Contains(t, stderr.String(), "--help' for usage.")
			assert.Empty(t, calls(t, log))
		})
	}
}

func TestCommandErrorsAreNotPrintedTwice(t *testing.T) {
	dir, _ := fakeCompose(t, 1)
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() { rootCmd.SetErr(nil) })

	err := run("service", "down", "--project-dir", dir)

	require.Error(t, err)
	assert.Equal(t, "Failed to bring services down.", err.Error())
	assert.Empty(t, stderr.String())
}

func TestPurgeWithoutTerminalRunsNothing(t *testing.T) {
	dir, log := fakeCompose(t, 0)

	err := run("service", "purge", "--yes=false", "--project-dir", dir)

	require.Error(t, err)
	assert.Empty(t, calls(t, log))
}

func TestStartDevStopsWhenDatabaseNeverAnswers(t *testing.T) {
	dir, log := fakeCompose(t, 0)
	t.Setenv("DEVOPS_PROBE_ATTEMPTS", "2")
	t.Setenv("DEVOPS_PROBE_DELAY", "10ms")
	t.Setenv("DEVOPS_ENV_DB_PORT", "1")
	t.Setenv("DEVOPS_HOOKS_ROOT_USER", filepath.Join(dir, "must-not-run"))

	err := run("service", "start-dev", "--yes", "--project-dir", dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 4")
	assert.Equal(t, []string{
		"-f docker-compose.yml down -v",
		"-f docker-compose.yml up -d --build",
	}, calls(t, log))

	s, loadErr := config.LoadSettings(filepath.Join(dir, "envs", "cli.env"))
	require.NoError(t, loadErr)
	assert.Equal(t, 1, s.DBPort)
}

func TestCommandTree(t *testing.T) {
	var names []string
	for _, c := range serviceCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"start", "stop", "down", "purge", "start-dev"} {
		assert.Contains(t, names, want)
	}
}
