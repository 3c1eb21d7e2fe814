package runner

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) (*Exec, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	r := New(t.TempDir(), nil)
	var stdout, stderr bytes.Buffer
	r.Stdout = &stdout
	r.Stderr = &stderr
	return r, &stdout, &stderr
}

func TestRunCaptureTrimsOutput(t *testing.T) {
	r, _, _ := newTestRunner(t)

	res, err := r.Run(context.Background(), Invocation{
		Args:    []string{"sh", "-c", "printf '  hello world \\n\\n'"},
		Capture: true,
		Check:   true,
	})

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "hello world", res.Output)
}

func TestRunWithoutCaptureStreams(t *testing.T) {
	r, stdout, _ := newTestRunner(t)

	res, err := r.Run(context.Background(), Invocation{
		Args:  []string{"sh", "-c", "echo streamed"},
		Check: true,
	})

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Output)
	assert.Equal(t, "streamed\n", stdout.String())
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	r, _, _ := newTestRunner(t)

	res, err := r.Run(context.Background(), Invocation{
		Args:    []string{"pwd"},
		Capture: true,
		Check:   true,
	})

	require.NoError(t, err)
	assert.Contains(t, res.Output, r.Dir)
}

func TestRunNonZeroExit(t *testing.T) {
	tests := []struct {
		name        string
		capture     bool
		wantDetails string
		wantStderr  string
	}{
		{name: "captured", capture: true, wantDetails: "broken"},
		{name: "streamed", capture: false, wantStderr: "broken\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, stderr := newTestRunner(t)

			res, err := r.Run(context.Background(), Invocation{
				Args:         []string{"sh", "-c", "echo broken >&2; exit 3"},
				ErrorMessage: "Failed to start services.",
				Capture:      tt.capture,
				Check:        true,
			})

			require.Error(t, err)
			assert.False(t, res.OK)
			assert.True(t, errors.Is(err, ErrProcessFailed))
			assert.Equal(t, "Failed to start services.", err.Error())
			assert.Equal(t, tt.wantDetails, Details(err))
			assert.Equal(t, tt.wantStderr, stderr.String())

			var ce *CommandError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, 3, ce.ExitCode)
		})
	}
}

func TestRunUncheckedFailureIsNotAnError(t *testing.T) {
	r, _, _ := newTestRunner(t)

	res, err := r.Run(context.Background(), Invocation{
		Args: []string{"sh", "-c", "exit 1"},
	})

	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunCommandNotFound(t *testing.T) {
	r, _, _ := newTestRunner(t)

	_, err := r.Run(context.Background(), Invocation{
		Args:  []string{"definitely-not-a-real-binary-xyz"},
		Check: true,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandNotFound))
	assert.False(t, errors.Is(err, ErrProcessFailed))
	assert.Contains(t, err.Error(), "definitely-not-a-real-binary-xyz")
	assert.Contains(t, errors.FlattenHints(err), "installed and in your PATH")
}

func TestRunEmptyCommand(t *testing.T) {
	r, _, _ := newTestRunner(t)

	_, err := r.Run(context.Background(), Invocation{})
	assert.Error(t, err)
}
