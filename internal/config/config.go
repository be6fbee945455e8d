// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON file and environment
// variables.
//
// Precedence, lowest first: built-in defaults, the JSON file, environment
// variables, explicitly set flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/spf13/pflag"
)

// envRefPrefix marks a credential value that names an environment variable.
const envRefPrefix = "env:"

// Defaults.
const (
	DefaultArtifactPrefix = "vault-backup"
	DefaultPassphraseFile = "/etc/vaultkeeper/passphrase"
	DefaultListenAddr     = "localhost:8443"
	DefaultCertDir        = "certs"
	DefaultRequestTimeout = 30 * time.Second
	DefaultCleanInterval  = time.Hour
	DefaultLogLevel       = "info"
	DefaultConfigPath     = "vaultkeeper.json"
)

// Duration is a time.Duration that reads "30s" style strings from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Options holds the configuration values for the application.
type Options struct {
	// ArtifactPrefix starts every artifact name.
	ArtifactPrefix string `json:"artifact_prefix"`

	// PassphraseFile holds the single-line backup passphrase.
	PassphraseFile string `json:"passphrase_file"`

	// StoreDir selects the file object store rooted at this directory.
	StoreDir string `json:"store_dir"`

	// DatabaseDSN selects the postgres object store; it wins over StoreDir.
	DatabaseDSN string `json:"database_dsn"`

	// ListenAddr is the serve mode listening address (ip:port).
	ListenAddr string `json:"listen_addr"`

	// CertDir holds ca.crt, server.crt and server.key for serve mode.
	CertDir string `json:"cert_dir"`

	// RequestTimeout bounds every call to a secret store.
	RequestTimeout Duration `json:"request_timeout"`

	// RetryMax is the retry count for secret store calls; negative disables retries.
	RetryMax int `json:"retry_max"`

	// CACert is an optional PEM bundle used to verify secret store servers.
	CACert string `json:"ca_cert"`

	// Concurrency bounds how many entries are backed up at once.
	Concurrency int `json:"concurrency"`

	// Retention is the artifact age after which serve mode prunes it; zero keeps forever.
	Retention Duration `json:"retention"`

	// CleanInterval is how often serve mode looks for expired artifacts.
	CleanInterval Duration `json:"clean_interval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// Entries are the (server, root path) pairs to back up.
	Entries []models.Entry `json:"entries"`

	// Config is the path to the config file.
	Config string `json:"-"`
}

// Default returns Options filled with built-in defaults.
func Default() *Options {
	return &Options{
		ArtifactPrefix: DefaultArtifactPrefix,
		PassphraseFile: DefaultPassphraseFile,
		ListenAddr:     DefaultListenAddr,
		CertDir:        DefaultCertDir,
		RequestTimeout: Duration{DefaultRequestTimeout},
		CleanInterval:  Duration{DefaultCleanInterval},
		Concurrency:    1,
		LogLevel:       DefaultLogLevel,
		Config:         DefaultConfigPath,
	}
}

// RegisterFlags binds the scalar options to fs. Entries come from the file only.
func RegisterFlags(fs *pflag.FlagSet, o *Options) {
	fs.StringVarP(&o.Config, "config", "c", o.Config, "path to config file")
	fs.StringVar(&o.ArtifactPrefix, "prefix", o.ArtifactPrefix, "artifact name prefix")
	fs.StringVar(&o.PassphraseFile, "passphrase-file", o.PassphraseFile, "file holding the backup passphrase")
	fs.StringVar(&o.StoreDir, "store-dir", o.StoreDir, "directory of the file artifact store")
	fs.StringVarP(&o.DatabaseDSN, "dsn", "d", o.DatabaseDSN, "postgres artifact store DSN")
	fs.StringVarP(&o.ListenAddr, "addr", "a", o.ListenAddr, "serve on ip:port")
	fs.StringVar(&o.CertDir, "cert-dir", o.CertDir, "directory with ca.crt, server.crt, server.key")
	fs.DurationVar(&o.RequestTimeout.Duration, "timeout", o.RequestTimeout.Duration, "per-request secret store timeout")
	fs.IntVar(&o.RetryMax, "retries", o.RetryMax, "secret store retries, negative disables")
	fs.StringVar(&o.CACert, "vault-ca", o.CACert, "PEM file to verify secret store servers")
	fs.IntVarP(&o.Concurrency, "concurrency", "j", o.Concurrency, "entries backed up in parallel")
	fs.DurationVar(&o.Retention.Duration, "retention", o.Retention.Duration, "prune artifacts older than this while serving, 0 keeps all")
	fs.DurationVar(&o.CleanInterval.Duration, "clean-interval", o.CleanInterval.Duration, "retention sweep interval")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "debug, info, warn or error")
}

// Load merges the config file and environment into o. Options whose flag
// was set explicitly on fs keep the flag's value. Flags not registered by
// RegisterFlags are left alone. fs may be nil.
func Load(o *Options, fs *pflag.FlagSet) error {
	if path := os.Getenv("CONFIG"); path != "" && !changed(fs, "config") {
		o.Config = path
	}

	flagged := *o

	if o.Config != "" {
		data, err := os.ReadFile(o.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if changed(fs, "config") {
				return fmt.Errorf("config file: %w", err)
			}
		case err != nil:
			return fmt.Errorf("error while reading config file: %w", err)
		default:
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.DisallowUnknownFields()
			if err := dec.Decode(o); err != nil {
				return fmt.Errorf("error while parsing config file %s: %w", o.Config, err)
			}
		}
	}

	applyEnv(o)

	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			if keep, ok := flagFields[f.Name]; ok {
				keep(o, &flagged)
			}
		})
	}

	for i := range o.Entries {
		if err := resolveCredentials(&o.Entries[i].Credentials); err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, o.Entries[i].Label(), err)
		}
	}
	return nil
}

// flagFields copies one flag-bound field from src to dst, keyed by the flag
// name RegisterFlags uses.
var flagFields = map[string]func(dst, src *Options){
	"prefix":          func(d, s *Options) { d.ArtifactPrefix = s.ArtifactPrefix },
	"passphrase-file": func(d, s *Options) { d.PassphraseFile = s.PassphraseFile },
	"store-dir":       func(d, s *Options) { d.StoreDir = s.StoreDir },
	"dsn":             func(d, s *Options) { d.DatabaseDSN = s.DatabaseDSN },
	"addr":            func(d, s *Options) { d.ListenAddr = s.ListenAddr },
	"cert-dir":        func(d, s *Options) { d.CertDir = s.CertDir },
	"timeout":         func(d, s *Options) { d.RequestTimeout = s.RequestTimeout },
	"retries":         func(d, s *Options) { d.RetryMax = s.RetryMax },
	"vault-ca":        func(d, s *Options) { d.CACert = s.CACert },
	"concurrency":     func(d, s *Options) { d.Concurrency = s.Concurrency },
	"retention":       func(d, s *Options) { d.Retention = s.Retention },
	"clean-interval":  func(d, s *Options) { d.CleanInterval = s.CleanInterval },
	"log-level":       func(d, s *Options) { d.LogLevel = s.LogLevel },
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs != nil && fs.Changed(name)
}

func applyEnv(o *Options) {
	for env, dst := range map[string]*string{
		"VAULTKEEPER_PASSPHRASE_FILE": &o.PassphraseFile,
		"VAULTKEEPER_STORE_DIR":       &o.StoreDir,
		"DATABASE_DSN":                &o.DatabaseDSN,
		"SERVER_ADDRESS":              &o.ListenAddr,
		"VAULTKEEPER_LOG_LEVEL":       &o.LogLevel,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func resolveCredentials(c *models.Credentials) error {
	for _, field := range []*string{&c.RoleID, &c.SecretID, &c.Token} {
		name, ok := strings.CutPrefix(*field, envRefPrefix)
		if !ok {
			continue
		}
		v, set := os.LookupEnv(name)
		if !set || v == "" {
			return fmt.Errorf("credential references unset environment variable %s", name)
		}
		*field = v
	}
	return nil
}

// Validate checks the options needed by every command.
func (o *Options) Validate() error {
	if o.ArtifactPrefix == "" {
		return errors.New("artifact prefix must not be empty")
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", o.RequestTimeout)
	}
	if o.DatabaseDSN == "" && o.StoreDir == "" {
		return errors.New("no artifact store configured: set database_dsn or store_dir")
	}
	for i, e := range o.Entries {
		if e.Server == "" {
			return fmt.Errorf("entry %d: server is required", i)
		}
		if e.KVVersion != 0 && e.KVVersion != 1 && e.KVVersion != 2 {
			return fmt.Errorf("entry %d (%s): kv_version must be 1 or 2", i, e.Label())
		}
	}
	return nil
}

// ReadPassphrase returns the first line of path, trimmed. A missing file or
// an empty line is ErrPassphraseMissing.
func ReadPassphrase(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", berrors.ErrPassphraseMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("read passphrase file: %w", err)
	}
	line, _, _ := bytes.Cut(data, []byte("\n"))
	pass := strings.TrimSpace(string(line))
	if pass == "" {
		return "", fmt.Errorf("%w: %s is empty", berrors.ErrPassphraseMissing, path)
	}
	return pass, nil
}
