package docker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todo-stack/devops/internal/runner"
)

type recordingRunner struct {
	calls []runner.Invocation
	err   error
}

func (r *recordingRunner) Run(_ context.Context, inv runner.Invocation) (runner.Result, error) {
	r.calls = append(r.calls, inv)
	if r.err != nil {
		return runner.Result{}, r.err
	}
	return runner.Result{OK: true}, nil
}

type scriptedConfirm struct {
	answer bool
	err    error
	asked  int
}

func (c *scriptedConfirm) Confirm(string) (bool, error) {
	c.asked++
	return c.answer, c.err
}

func newTestCompose() (*Compose, *recordingRunner) {
	r := &recordingRunner{}
	return NewCompose(r, []string{"docker", "compose"}, "docker-compose.yml"), r
}

func TestComposeOperations(t *testing.T) {
	tests := []struct {
		name string
		op   func(c *Compose) error
		want []string
		msg  string
	}{
		{
			name: "start",
			op:   func(c *Compose) error { return c.Start(context.Background()) },
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "up", "-d", "--build"},
			msg:  "Failed to start services.",
		},
		{
			name: "stop",
			op:   func(c *Compose) error { return c.Stop(context.Background()) },
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "stop"},
			msg:  "Failed to stop services.",
		},
		{
			name: "down",
			op:   func(c *Compose) error { return c.Down(context.Background()) },
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "down"},
			msg:  "Failed to bring services down.",
		},
		{
			name: "purge",
			op: func(c *Compose) error {
				_, err := c.Purge(context.Background(), AutoConfirm{})
				return err
			},
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "down", "-v"},
			msg:  "Failed to purge services and volumes.",
		},
		{
			name: "pull",
			op:   func(c *Compose) error { return c.Pull(context.Background()) },
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "pull"},
			msg:  "Failed to pull images.",
		},
		{
			name: "logs",
			op:   func(c *Compose) error { return c.Logs(context.Background(), "todo_db", false) },
			want: []string{"docker", "compose", "-f", "docker-compose.yml", "logs", "todo_db"},
			msg:  "Failed to read service logs.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := newTestCompose()

			require.NoError(t, tt.op(c))
			require.Len(t, r.calls, 1)
			assert.Equal(t, tt.want, r.calls[0].Args)
			assert.Equal(t, tt.msg, r.calls[0].ErrorMessage)
			assert.True(t, r.calls[0].Check)
		})
	}
}

func TestComposeFailureIsNotRetried(t *testing.T) {
	c, r := newTestCompose()
	r.err = errors.New("Failed to start services.")

	err := c.Start(context.Background())

	require.Error(t, err)
	assert.Len(t, r.calls, 1)
}

func TestPurgeDeclined(t *testing.T) {
	c, r := newTestCompose()
	confirm := &scriptedConfirm{answer: false}

	purged, err := c.Purge(context.Background(), confirm)

	require.NoError(t, err)
	assert.False(t, purged)
	assert.Equal(t, 1, confirm.asked)
	assert.Empty(t, r.calls)
}

func TestPurgeConfirmed(t *testing.T) {
	c, r := newTestCompose()
	confirm := &scriptedConfirm{answer: true}

	purged, err := c.Purge(context.Background(), confirm)

	require.NoError(t, err)
	assert.True(t, purged)
	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"docker", "compose", "-f", "docker-compose.yml", "down", "-v"}, r.calls[0].Args)
}

func TestPurgeConfirmationError(t *testing.T) {
	c, r := newTestCompose()

	purged, err := c.Purge(context.Background(), &scriptedConfirm{err: errors.New("no tty")})

	require.Error(t, err)
	assert.False(t, purged)
	assert.Empty(t, r.calls)
}

func TestLogsHint(t *testing.T) {
	c, _ := newTestCompose()
	assert.Equal(t, "docker compose logs todo_db", c.LogsHint("todo_db"))
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up := Status(context.Background(), pingFunc(func(context.Context) error { return nil }), srv.URL)
	assert.Equal(t, ServiceUp, up.Database)
	assert.Equal(t, ServiceUp, up.App)

	down := Status(context.Background(), pingFunc(func(context.Context) error { return errors.New("refused") }), "http://127.0.0.1:1")
	assert.Equal(t, ServiceDown, down.Database)
	assert.EqualError(t, down.DBError, "refused")
	assert.Equal(t, ServiceDown, down.App)
}
