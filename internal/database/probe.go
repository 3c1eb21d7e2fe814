// Package database checks that the stack's Gel database accepts queries.
//
// Gel serves a Postgres-protocol SQL endpoint on its main port, so the
// probe connects with pgx, using the branch name as the database name.
package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/todo-stack/devops/internal/config"
	"github.com/todo-stack/devops/internal/retry"
)

// ErrNotReady marks a readiness wait that spent its whole budget.
var ErrNotReady = errors.New("database not ready")

// ReadinessQuery is the trivial query issued on each attempt.
const ReadinessQuery = "SELECT 1"

// SettingsGetter resolves connection settings on demand.
type SettingsGetter interface {
	Get() (*config.Settings, error)
}

// Checker performs one readiness check against the database.
type Checker interface {
	Check(ctx context.Context, s *config.Settings) error
}

// Prober waits for the database to become ready.
type Prober struct {
	Settings SettingsGetter
	Checker  Checker
	Policy   retry.Policy

	// OnAttempt is called after every failed attempt, before the wait.
	OnAttempt func(attempt, max int, err error)

	// LogsHint is the command suggested when the budget runs out.
	LogsHint string

	Logger *zap.Logger
}

// NewProber returns a Prober using pgx with the given policy.
func NewProber(settings SettingsGetter, policy retry.Policy, connectTimeout time.Duration, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		Settings: settings,
		Checker:  &PGChecker{ConnectTimeout: connectTimeout},
		Policy:   policy,
		Logger:   logger,
	}
}

// Ping runs a single check.
func (p *Prober) Ping(ctx context.Context) error {
	s, err := p.Settings.Get()
	if err != nil {
		return err
	}
	return p.Checker.Check(ctx, s)
}

// WaitReady retries the check until it succeeds or the policy is spent.
// Settings errors are returned at once; they do not fix themselves.
func (p *Prober) WaitReady(ctx context.Context) error {
	s, err := p.Settings.Get()
	if err != nil {
		return err
	}

	log := p.logger().With(
		zap.String("host", s.DBHost),
		zap.Int("port", s.DBPort),
		zap.String("branch", s.BranchName),
	)

	err = retry.Do(ctx, p.Policy, func(ctx context.Context, attempt int) error {
		log.Debug("Probing database", zap.Int("attempt", attempt))
		return p.Checker.Check(ctx, s)
	}, func(attempt int, err error) {
		log.Debug("Database not ready", zap.Int("attempt", attempt), zap.Error(err))
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, p.Policy.MaxAttempts, err)
		}
	})
	if err == nil {
		log.Info("Database ready")
		return nil
	}
	if !errors.Is(err, retry.ErrExhausted) {
		return err
	}

	err = errors.Mark(errors.Wrapf(err, "could not connect to the database after %s", p.Policy.Budget()), ErrNotReady)
	if p.LogsHint != "" {
		err = errors.WithHintf(err, "Please check the database container logs: '%s'", p.LogsHint)
	}
	return err
}

func (p *Prober) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// PGChecker opens a pgx connection, runs ReadinessQuery and closes it.
type PGChecker struct {
	ConnectTimeout time.Duration
}

// Check implements Checker.
func (c *PGChecker) Check(ctx context.Context, s *config.Settings) error {
	cfg, err := ConnConfig(s)
	if err != nil {
		return err
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer conn.Close(context.WithoutCancel(ctx))

	var one int
	if err := conn.QueryRow(ctx, ReadinessQuery).Scan(&one); err != nil {
		return errors.Wrap(err, "readiness query")
	}
	return nil
}

// ConnConfig builds the pgx connection config for s.
func ConnConfig(s *config.Settings) (*pgx.ConnConfig, error) {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.DBUser, s.Password),
		Host:     net.JoinHostPort(s.DBHost, strconv.Itoa(s.DBPort)),
		Path:     "/" + s.BranchName,
		RawQuery: "sslmode=disable",
	}
	cfg, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, errors.Wrap(err, "invalid database settings")
	}

	tlsCfg, err := TLSConfig(s)
	if err != nil {
		return nil, err
	}
	// sslmode=disable leaves no fallbacks, so this is the only attempt made
	cfg.TLSConfig = tlsCfg
	cfg.Fallbacks = nil
	return cfg, nil
}

// TLSConfig maps the Gel client TLS security mode onto crypto/tls.
// default behaves as no_host_verification when a CA is supplied and as
// strict otherwise.
func TLSConfig(s *config.Settings) (*tls.Config, error) {
	var roots *x509.CertPool
	if s.TLSCertData != "" {
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM([]byte(s.TLSCertData)) {
			return nil, errors.Newf("%s does not contain a PEM certificate", config.KeyTLSCertData)
		}
	}

	mode := s.TLSSecurity
	if mode == config.TLSSecurityDefault || mode == "" {
		mode = config.TLSSecurityStrict
		if roots != nil {
			mode = config.TLSSecurityNoHostVerification
		}
	}

	switch mode {
	case config.TLSSecurityInsecure:
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // explicit dev mode
	case config.TLSSecurityNoHostVerification:
		return &tls.Config{
			InsecureSkipVerify:    true, //nolint:gosec // chain verified below
			VerifyPeerCertificate: verifyChain(roots),
		}, nil
	case config.TLSSecurityStrict:
		return &tls.Config{RootCAs: roots, ServerName: s.DBHost}, nil
	}
	return nil, errors.Newf("unsupported tls security mode %q", s.TLSSecurity)
}

// verifyChain checks the server chain against roots without matching the hostname.
func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("server sent no certificate")
		}
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return errors.Wrap(err, "parse server certificate")
			}
			certs = append(certs, cert)
		}
		opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}
