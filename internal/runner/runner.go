// Package runner executes external processes for the devops CLI.
//
// Every process runs synchronously from a fixed working directory so that
// relative paths such as the compose manifest resolve the same way no matter
// where the CLI was started. Failures are returned as values, never panics.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	// ErrCommandNotFound marks failures where the executable is not on PATH.
	ErrCommandNotFound = errors.New("command not found")

	// ErrProcessFailed marks failures where the process exited non-zero.
	ErrProcessFailed = errors.New("process failed")
)

// Invocation describes one external process to run.
type Invocation struct {
	// Args is the argument vector; Args[0] is the program.
	Args []string

	// ErrorMessage is the human-readable message reported on failure.
	ErrorMessage string

	// Capture returns stdout in the Result instead of streaming it.
	Capture bool

	// Check turns a non-zero exit into an error. When false the exit
	// status is reported through Result.OK only.
	Check bool
}

// Result is the outcome of a completed process.
type Result struct {
	Output   string
	OK       bool
	ExitCode int
}

// CommandError is returned when a checked process exits non-zero. Stderr is
// only set for captured invocations.
type CommandError struct {
	Message  string
	Args     []string
	Stderr   string
	ExitCode int
	cause    error
}

func (e *CommandError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.cause
}

// Runner runs invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Exec is the os/exec backed Runner.
type Exec struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// New returns an Exec runner rooted at dir.
func New(dir string, logger *zap.Logger) *Exec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{
		Dir:    dir,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	}
}

// Run executes inv and waits for it to finish.
func (r *Exec) Run(ctx context.Context, inv Invocation) (Result, error) {
	if len(inv.Args) == 0 {
		return Result{}, errors.New("empty command")
	}

	cmdStr := strings.Join(inv.Args, " ")
	log := r.Logger.With(zap.String("command", cmdStr), zap.String("dir", r.Dir))
	log.Debug("Starting execution")

	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	if inv.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		// the user already saw stderr, so a failure does not quote it
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
	}

	err := cmd.Run()
	if err == nil {
		log.Debug("Execution succeeded")
		res := Result{OK: true}
		if inv.Capture {
			res.Output = strings.TrimSpace(stdout.String())
		}
		return res, nil
	}

	if errors.Is(err, exec.ErrNotFound) || isNotExist(err) {
		log.Debug("Executable not found", zap.Error(err))
		return Result{}, errors.WithHintf(
			errors.Mark(errors.Wrapf(err, "%s: '%s'", ErrCommandNotFound, inv.Args[0]), ErrCommandNotFound),
			"Please ensure '%s' is installed and in your PATH.", inv.Args[0])
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// context cancellation or a failure to start
		return Result{}, errors.Wrapf(err, "running %s", inv.Args[0])
	}

	code := exitErr.ExitCode()
	log.Debug("Execution failed", zap.Int("exit_code", code), zap.Error(err))
	if !inv.Check {
		return Result{OK: false, ExitCode: code, Output: strings.TrimSpace(stdout.String())}, nil
	}

	msg := inv.ErrorMessage
	if msg == "" {
		msg = "command failed: " + cmdStr
	}
	return Result{ExitCode: code}, errors.Mark(&CommandError{
		Message:  msg,
		Args:     inv.Args,
		Stderr:   strings.TrimSpace(stderr.String()),
		ExitCode: code,
		cause:    err,
	}, ErrProcessFailed)
}

func isNotExist(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && pathErr.Op != "chdir" && os.IsNotExist(pathErr.Err)
}

// Details returns the captured stderr of a failed process, if any.
func Details(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Stderr
	}
	return ""
}
