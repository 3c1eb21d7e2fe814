// Package manifest reads the compose manifest that describes the stack.
//
// Only the parts the CLI reports on are decoded: service names, images,
// container names and the named volumes a purge would delete.
package manifest

import (
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Manifest represents the compose file structure
type Manifest struct {
	Name     string             `yaml:"name"`
	Services map[string]Service `yaml:"services"`
	Volumes  map[string]*Volume `yaml:"volumes"`
}

// Service represents one compose service
type Service struct {
	Image         string `yaml:"image"`
	ContainerName string `yaml:"container_name"`
}

// Volume represents a top-level named volume. Compose allows an empty entry.
type Volume struct {
	External bool   `yaml:"external"`
	Name     string `yaml:"name"`
}

// ValidationResult collects manifest problems
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r *ValidationResult) addError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

// databaseImages are the image repository names that identify the database
// service, most specific first.
var databaseImages = []string{"gel", "edgedb", "postgres"}

// Load loads and parses a compose manifest (.yml, .yaml; JSON is valid YAML)
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read compose manifest")
	}

	return Parse(data)
}

// Parse decodes manifest bytes
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse compose manifest YAML")
	}
	return &m, nil
}

// Validate checks the manifest has something to orchestrate
func (m *Manifest) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(m.Services) == 0 {
		result.addError("no services defined")
	}

	for name := range m.Services {
		if strings.TrimSpace(name) == "" {
			result.addError("service with empty name")
		}
	}

	if m.DatabaseService() == "" {
		result.addError("no database service found (expected a gel, edgedb or postgres image)")
	}

	return result
}

// ServiceNames returns the service names in sorted order
func (m *Manifest) ServiceNames() []string {
	names := make([]string, 0, len(m.Services))
	for name := range m.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabaseService returns the name of the service running the database, or
// "" when none is recognisable.
func (m *Manifest) DatabaseService() string {
	for _, repo := range databaseImages {
		for _, name := range m.ServiceNames() {
			if matchesRepo(imageName(m.Services[name].Image), repo) {
				return name
			}
		}
	}
	return ""
}

// matchesRepo reports whether the last path segment of image is repo or a
// dash-suffixed variant such as "postgres-alpine".
func matchesRepo(image, repo string) bool {
	last := image[strings.LastIndex(image, "/")+1:]
	return last == repo || strings.HasPrefix(last, repo+"-")
}

// NamedVolumes returns the volumes removed by `down -v`. External volumes
// are never removed by compose and are left out.
func (m *Manifest) NamedVolumes() []string {
	var names []string
	for name, vol := range m.Volumes {
		if vol != nil && vol.External {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// imageName strips registry tag and digest so "geldata/gel:6" matches "geldata/gel".
func imageName(image string) string {
	image = strings.ToLower(image)
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndex(image, ":"); i > strings.LastIndex(image, "/") {
		image = image[:i]
	}
	return image
}
