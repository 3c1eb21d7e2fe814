package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const composeYAML = `
name: todo
services:
  todo_db:
    image: geldata/gel:6
    container_name: todo_db
    ports:
      - "5656:5656"
    volumes:
      - gel_data:/var/lib/gel/data
  todo_app:
    build: ../app
    ports:
      - target: 5000
        published: 5000
    depends_on:
      todo_db:
        condition: service_healthy
volumes:
  gel_data:
  shared_cache:
    external: true
  app_uploads: {}
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte(composeYAML), 0o644))

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "todo", m.Name)
	assert.Equal(t, []string{"todo_app", "todo_db"}, m.ServiceNames())
	assert.Equal(t, "todo_db", m.DatabaseService())
	assert.Equal(t, []string{"app_uploads", "gel_data"}, m.NamedVolumes())
	assert.True(t, m.Validate().Valid)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("services: [unterminated"))
	assert.Error(t, err)
}

func TestDatabaseService(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  string
	}{
		{name: "gel", image: "geldata/gel:latest", want: "db"},
		{name: "edgedb", image: "edgedb/edgedb", want: "db"},
		{name: "postgres with registry port", image: "localhost:5000/postgres:16", want: "db"},
		{name: "digest", image: "geldata/gel@sha256:abcd", want: "db"},
		{name: "variant", image: "postgres-alpine:16", want: "db"},
		{name: "unrelated", image: "redis:7", want: ""},
		{name: "gel in namespace", image: "nigel/api", want: ""},
		{name: "gel inside name", image: "angel-web:1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{Services: map[string]Service{
				"web": {Image: "nginx:1.27"},
				"db":  {Image: tt.image},
			}}
			assert.Equal(t, tt.want, m.DatabaseService())
		})
	}
}

func TestValidate(t *testing.T) {
	result := (&Manifest{}).Validate()

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2)
}
