// Package config defines AUDITOR's recognized configuration surface
// (§6.4): a typed Config loaded from a YAML file with command-line flag
// overrides, grounded on the teacher's cobra/pflag-driven
// ActivityServerOptions (cmd/activity/main.go) — AddFlags/Complete/Validate
// replacing RecommendedOptions' Kubernetes generic-apiserver surface with
// AUDITOR's own keys.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Application is application.* (§6.4).
type Application struct {
	Addr       string `yaml:"addr"`
	Port       int    `yaml:"port"`
	WebWorkers int    `yaml:"web_workers"`
}

// Database is database.* (§6.4): the PostgreSQL connection AUDITOR's
// relational Store opens.
type Database struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DatabaseName string `yaml:"database_name"`
	RequireSSL   bool   `yaml:"require_ssl"`
}

// DSN builds a libpq-style connection string for pgx from the configured
// fields.
func (d Database) DSN() string {
	sslmode := "disable"
	if d.RequireSSL {
		sslmode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DatabaseName, sslmode,
	)
}

// MetricsDatabase is the periodic record-count reporter's configuration
// (internal/dbmetrics). It is read from the flat top-level YAML key
// metrics_database; a nested metrics: database: block is not recognized.
type MetricsDatabase struct {
	FrequencySeconds int      `yaml:"frequency_seconds"`
	Metrics          []string `yaml:"metrics"` // RecordCount, RecordCountPerSite, RecordCountPerGroup, RecordCountPerUser
	MetaKeySite      string   `yaml:"meta_key_site"`
	MetaKeyGroup     string   `yaml:"meta_key_group"`
	MetaKeyUser      string   `yaml:"meta_key_user"`
}

func (m MetricsDatabase) enables(name string) bool {
	for _, v := range m.Metrics {
		if v == name {
			return true
		}
	}
	return false
}

// ReportTotal reports whether RecordCount is enabled.
func (m MetricsDatabase) ReportTotal() bool { return m.enables("RecordCount") }

// Frequency returns FrequencySeconds as a time.Duration, defaulting to 60s.
func (m MetricsDatabase) Frequency() time.Duration {
	if m.FrequencySeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(m.FrequencySeconds) * time.Second
}

// TLS is tls.* (§6.4).
type TLS struct {
	UseTLS         bool   `yaml:"use_tls"`
	HTTPSAddr      string `yaml:"https_addr"`
	HTTPSPort      int    `yaml:"https_port"`
	CACertPath     string `yaml:"ca_cert_path"`
	ServerCertPath string `yaml:"server_cert_path"`
	ServerKeyPath  string `yaml:"server_key_path"`
}

// RBAC is rbac.* (§6.4). It is carried as configuration surface only: policy
// evaluation is out of scope (§1 non-goals), so nothing in AUDITOR reads
// these fields to make an authorization decision. They exist so a
// configuration file written for a policy-enforcing deployment still
// parses here without alteration.
type RBAC struct {
	EnforceRBAC      bool              `yaml:"enforce_rbac"`
	BasePolicies     []string          `yaml:"base_policies"`
	MonitoringRoleCN string            `yaml:"monitoring_role_cn"`
	WriteAccessCN    string            `yaml:"write_access_cn"`
	ReadAccessCN     string            `yaml:"read_access_cn"`
	DataAccessRules  map[string]string `yaml:"data_access_rules"`
}

// Archival is archival.* (§6.4, §4.5).
type Archival struct {
	CronSchedule          string `yaml:"cron_schedule"`
	ArchiveOlderThanMonths int   `yaml:"archive_older_than_months"`
	ArchivePath           string `yaml:"archive_path"`
	ArchiveFilePrefix     string `yaml:"archive_file_prefix"`
	CompressionType       string `yaml:"compression_type"`
}

// ClientTLS is the queued-client's tls.* block (§6.4): distinct from the
// server's TLS struct since the client presents a client certificate rather
// than a server one.
type ClientTLS struct {
	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	CACertPath     string `yaml:"ca_cert_path"`
}

// ClientConfig is the queued-client configuration block (§6.4): "address,
// port | connection_string; timeout_seconds; send_interval_seconds;
// database_path; tls.{...}".
type ClientConfig struct {
	Address          string    `yaml:"address"`
	Port             int       `yaml:"port"`
	ConnectionString string    `yaml:"connection_string"`
	TimeoutSeconds   int       `yaml:"timeout_seconds"`
	SendIntervalSec  int       `yaml:"send_interval_seconds"`
	DatabasePath     string    `yaml:"database_path"`
	TLS              ClientTLS `yaml:"tls"`
}

// ServerURL resolves the address the queued client dials: ConnectionString
// verbatim if set, otherwise "http(s)://address:port" built from Address
// and Port.
func (c ClientConfig) ServerURL() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	scheme := "http"
	if c.TLS.ClientCertPath != "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Address, c.Port)
}

// Timeout returns TimeoutSeconds as a time.Duration, defaulting to 30s.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SendInterval returns SendIntervalSec as a time.Duration, defaulting to
// 60s.
func (c ClientConfig) SendInterval() time.Duration {
	if c.SendIntervalSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SendIntervalSec) * time.Second
}

// LoadClientConfig reads path as YAML into a ClientConfig.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// AddFlags binds command-line overrides for the queued client.
func (c *ClientConfig) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Address, "server-address", c.Address, "AUDITOR server host")
	fs.IntVar(&c.Port, "server-port", c.Port, "AUDITOR server port")
	fs.StringVar(&c.ConnectionString, "server-url", c.ConnectionString, "AUDITOR server base URL (overrides server-address/server-port)")
	fs.IntVar(&c.TimeoutSeconds, "timeout-seconds", c.TimeoutSeconds, "Per-request timeout in seconds")
	fs.IntVar(&c.SendIntervalSec, "send-interval-seconds", c.SendIntervalSec, "Drainer tick interval in seconds")
	fs.StringVar(&c.DatabasePath, "database-path", c.DatabasePath, "Path to the embedded local queue database")
}

// Config is AUDITOR's complete recognized configuration (§6.4).
type Config struct {
	Application Application     `yaml:"application"`
	Database    Database        `yaml:"database"`
	Metrics     MetricsDatabase `yaml:"metrics_database"`
	TLS         TLS             `yaml:"tls"`
	RBAC        RBAC            `yaml:"rbac"`
	Archival    Archival        `yaml:"archival"`

	LogLevel                string `yaml:"log_level"`
	IgnoreRecordExistsError bool   `yaml:"ignore_record_exists_error"`

	// EventsURL, when set, enables ingest-notification publishing
	// (internal/events). Not part of spec.md §6.4's recognized keys; an
	// AUDITOR-specific addition threaded through the same loader.
	EventsURL string `yaml:"events_url"`
}

// Default returns a Config with the same baseline values
// NewActivityServerOptions establishes for its teacher counterpart.
func Default() *Config {
	return &Config{
		Application: Application{
			Addr:       "0.0.0.0",
			Port:       8080,
			WebWorkers: 4,
		},
		Database: Database{
			Host:         "localhost",
			Port:         5432,
			Username:     "auditor",
			DatabaseName: "auditor",
		},
		Metrics: MetricsDatabase{
			FrequencySeconds: 60,
		},
		Archival: Archival{
			CronSchedule:           "0 0 1 * *",
			ArchiveOlderThanMonths: 6,
			ArchivePath:            "./archive",
			ArchiveFilePrefix:      "auditor",
			CompressionType:        "snappy",
		},
		LogLevel: "info",
	}
}

// Load reads path as YAML into a Config seeded with Default() values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// AddFlags binds command-line overrides for the most commonly tuned keys,
// following the teacher's AddFlags(fs *pflag.FlagSet) convention.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Application.Addr, "addr", c.Application.Addr, "HTTP listen address")
	fs.IntVar(&c.Application.Port, "port", c.Application.Port, "HTTP listen port")

	fs.StringVar(&c.Database.Host, "database-host", c.Database.Host, "PostgreSQL host")
	fs.IntVar(&c.Database.Port, "database-port", c.Database.Port, "PostgreSQL port")
	fs.StringVar(&c.Database.Username, "database-username", c.Database.Username, "PostgreSQL username")
	fs.StringVar(&c.Database.Password, "database-password", c.Database.Password, "PostgreSQL password")
	fs.StringVar(&c.Database.DatabaseName, "database-name", c.Database.DatabaseName, "PostgreSQL database name")
	fs.BoolVar(&c.Database.RequireSSL, "database-require-ssl", c.Database.RequireSSL, "Require TLS for the database connection")

	fs.StringVar(&c.Archival.ArchivePath, "archive-path", c.Archival.ArchivePath, "Directory archive files are written under")
	fs.StringVar(&c.Archival.CronSchedule, "archive-cron-schedule", c.Archival.CronSchedule, "Cron schedule for archival runs")
	fs.IntVar(&c.Archival.ArchiveOlderThanMonths, "archive-older-than-months", c.Archival.ArchiveOlderThanMonths, "Months of age before a calendar month becomes archival-eligible")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Logging verbosity")
	fs.BoolVar(&c.IgnoreRecordExistsError, "ignore-record-exists-error", c.IgnoreRecordExistsError, "Treat a RecordExists conflict on ingest as a plain success")
	fs.StringVar(&c.EventsURL, "events-url", c.EventsURL, "NATS server URL for ingest-notification events (empty disables publishing)")
}

// Validate ensures the fields the server cannot run without are present,
// following the teacher's Validate() convention.
func (c *Config) Validate() error {
	var errs []error

	if c.Application.Port <= 0 {
		errs = append(errs, fmt.Errorf("application.port must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.DatabaseName == "" {
		errs = append(errs, fmt.Errorf("database.database_name is required"))
	}
	if c.TLS.UseTLS {
		if c.TLS.ServerCertPath == "" || c.TLS.ServerKeyPath == "" {
			errs = append(errs, fmt.Errorf("tls.server_cert_path and tls.server_key_path are required when tls.use_tls is set"))
		}
	}
	switch c.Archival.CompressionType {
	case "", "gzip", "snappy":
	default:
		errs = append(errs, fmt.Errorf("archival.compression_type %q is not recognized", c.Archival.CompressionType))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation errors: %v", errs)
	}
	return nil
}
