// Package envfile generates the env file that holds the stack's connection
// settings.
package envfile

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/todo-stack/devops/internal/config"
)

// ErrExists is returned when the file exists and overwriting was not requested.
var ErrExists = errors.New("env file already exists")

const passwordBytes = 24

// Creator writes env files from a set of defaults.
type Creator struct {
	Path     string
	Defaults config.EnvDefaults

	// Password overrides the generated database password.
	Password string
}

// Values returns the key/value pairs that Create writes.
func (c *Creator) Values() (map[string]string, error) {
	password := c.Password
	if password == "" {
		var err error
		if password, err = randomPassword(); err != nil {
			return nil, err
		}
	}

	d := c.Defaults
	return map[string]string{
		config.KeyDBHost:        d.DBHost,
		config.KeyDBPort:        strconv.Itoa(d.DBPort),
		config.KeyDBUser:        d.DBUser,
		config.KeyInstanceName:  d.Instance,
		config.KeyBranchName:    d.Branch,
		config.KeyTLSSecurity:   d.TLSSecurity,
		config.KeyTLSCertData:   "",
		config.KeyTLSCertMode:   d.TLSCertMode,
		config.KeyPassword:      password,
		config.KeyTLSPrivateKey: "",
		config.KeyAppHost:       d.AppHost,
		config.KeyAppPort:       strconv.Itoa(d.AppPort),
	}, nil
}

// Create writes the env file. An existing file is left alone unless force
// is set.
func (c *Creator) Create(force bool) error {
	if _, err := os.Stat(c.Path); err == nil && !force {
		return errors.WithHint(
			errors.Mark(errors.Newf("%s already exists", c.Path), ErrExists),
			"Use --force to overwrite it.")
	}

	values, err := c.Values()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(c.Path))
	}
	if err := godotenv.Write(values, c.Path); err != nil {
		return errors.Wrapf(err, "failed to write %s", c.Path)
	}
	// the file carries the database password
	if err := os.Chmod(c.Path, 0o600); err != nil {
		return errors.Wrapf(err, "failed to restrict permissions on %s", c.Path)
	}
	return nil
}

func randomPassword() (string, error) {
	buf := make([]byte, passwordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate password")
	}
	return hex.EncodeToString(buf), nil
}
