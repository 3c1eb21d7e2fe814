package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// ErrSettingsMissing marks a missing env file or an unresolved key.
var ErrSettingsMissing = errors.New("settings unavailable")

// Env file keys.
const (
	KeyDBHost        = "GEL_HOST"
	KeyDBPort        = "GEL_SERVER_PORT"
	KeyDBUser        = "GEL_SERVER_USER"
	KeyInstanceName  = "GEL_SERVER_INSTANCE_NAME"
	KeyBranchName    = "GEL_SERVER_DEFAULT_BRANCH"
	KeyTLSSecurity   = "GEL_CLIENT_TLS_SECURITY"
	KeyTLSCertData   = "GEL_SERVER_TLS_CERT"
	KeyTLSCertMode   = "GEL_SERVER_TLS_CERT_MODE"
	KeyPassword      = "GEL_SERVER_PASSWORD"
	KeyTLSPrivateKey = "GEL_SERVER_TLS_KEY"
	KeyAppHost       = "FLASK_HOST"
	KeyAppPort       = "FLASK_PORT"
)

// RequiredKeys lists every key an env file must resolve.
var RequiredKeys = []string{
	KeyDBHost,
	KeyDBPort,
	KeyDBUser,
	KeyInstanceName,
	KeyBranchName,
	KeyTLSSecurity,
	KeyTLSCertData,
	KeyTLSCertMode,
	KeyPassword,
	KeyTLSPrivateKey,
	KeyAppHost,
	KeyAppPort,
}

// TLS security modes understood by the database client.
const (
	TLSSecurityDefault            = "default"
	TLSSecurityStrict             = "strict"
	TLSSecurityNoHostVerification = "no_host_verification"
	TLSSecurityInsecure           = "insecure"
)

// Settings is the connection snapshot loaded from the env file.
// It is read-only after LoadSettings returns.
type Settings struct {
	DBHost        string
	DBPort        int
	DBUser        string
	InstanceName  string
	BranchName    string
	TLSSecurity   string
	TLSCertData   string
	TLSCertMode   string
	Password      string
	TLSPrivateKey string
	AppHost       string
	AppPort       int
}

// LoadSettings reads the env file at path. Process environment variables
// override values from the file. A missing file or any unresolved required
// key fails the whole load.
func LoadSettings(path string) (*Settings, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.Mark(errors.Newf("missing env file %s", path), ErrSettingsMissing),
				"Run: `devops env create` first.")
		}
		return nil, errors.Wrapf(err, "failed to stat env file %s", path)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse env file %s", path)
	}

	for _, key := range RequiredKeys {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}

	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("env file %s is missing required keys: %s", path, strings.Join(missing, ", ")), ErrSettingsMissing),
			"Regenerate it with: `devops env create --force`.")
	}

	dbPort, err := parsePort(KeyDBPort, values[KeyDBPort])
	if err != nil {
		return nil, err
	}
	appPort, err := parsePort(KeyAppPort, values[KeyAppPort])
	if err != nil {
		return nil, err
	}

	s := &Settings{
		DBHost:        values[KeyDBHost],
		DBPort:        dbPort,
		DBUser:        values[KeyDBUser],
		InstanceName:  values[KeyInstanceName],
		BranchName:    values[KeyBranchName],
		TLSSecurity:   values[KeyTLSSecurity],
		TLSCertData:   values[KeyTLSCertData],
		TLSCertMode:   values[KeyTLSCertMode],
		Password:      values[KeyPassword],
		TLSPrivateKey: values[KeyTLSPrivateKey],
		AppHost:       values[KeyAppHost],
		AppPort:       appPort,
	}
	if err := validTLSSecurity(s.TLSSecurity); err != nil {
		return nil, err
	}
	return s, nil
}

func parsePort(key, raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if port < 1 || port > 65535 {
		return 0, errors.Newf("invalid %s: %d", key, port)
	}
	return port, nil
}

func validTLSSecurity(mode string) error {
	switch mode {
	case TLSSecurityDefault, TLSSecurityStrict, TLSSecurityNoHostVerification, TLSSecurityInsecure:
		return nil
	}
	return errors.Newf("invalid tls security mode: %q (must be default, strict, no_host_verification or insecure)", mode)
}

// DisplayHost is the host a browser should use to reach the app. A bind-all
// host is rewritten to localhost; the bind address itself is untouched.
func (s *Settings) DisplayHost() string {
	switch s.AppHost {
	case "", "0.0.0.0", "::", "[::]":
		return "localhost"
	}
	return s.AppHost
}

// AppURL is the URL of the web application.
func (s *Settings) AppURL() string {
	return "http://" + net.JoinHostPort(s.DisplayHost(), strconv.Itoa(s.AppPort))
}

// Masked renders the settings for display with secrets hidden.
func (s *Settings) Masked() string {
	return fmt.Sprintf(`Settings:
  database:           %s:%d
  user:               %s
  instance:           %s
  branch:             %s
  password:           %s
  tls-security:       %s
  tls-cert-mode:      %s
  tls-cert:           %s
  app:                %s:%d
`,
		s.DBHost, s.DBPort,
		s.DBUser,
		s.InstanceName,
		s.BranchName,
		mask(s.Password),
		s.TLSSecurity,
		s.TLSCertMode,
		presence(s.TLSCertData),
		s.AppHost, s.AppPort,
	)
}

func mask(v string) string {
	if v == "" {
		return "(empty)"
	}
	return "********"
}

func presence(v string) string {
	if v == "" {
		return "(none)"
	}
	return "(set)"
}

// SettingsSource loads Settings on first use and caches a successful load.
// A failed load is not cached, so the env file can be created afterwards.
type SettingsSource struct {
	path string

	mu       sync.Mutex
	settings *Settings
}

// NewSettingsSource returns a lazy loader for the env file at path.
func NewSettingsSource(path string) *SettingsSource {
	return &SettingsSource{path: path}
}

// Path is the env file location.
func (src *SettingsSource) Path() string {
	return src.path
}

// Get returns the loaded settings, loading them if needed.
func (src *SettingsSource) Get() (*Settings, error) {
	src.mu.Lock()
	defer src.mu.Unlock()

	if src.settings != nil {
		return src.settings, nil
	}
	s, err := LoadSettings(src.path)
	if err != nil {
		return nil, err
	}
	src.settings = s
	return s, nil
}

// Reset drops the cached settings so the next Get reloads the file.
func (src *SettingsSource) Reset() {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.settings = nil
}

// ResolvePath joins p to dir unless p is absolute.
func ResolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
