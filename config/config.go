package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/utils"
)

type Config struct {
	Artifact ArtifactConfig `json:"artifact" yaml:"artifact"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
	MCP      MCPConfig      `json:"mcp" yaml:"mcp"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Event    EventConfig    `json:"event" yaml:"event"`
}

// ArtifactConfig locates the fitted pipeline document. URL is a filesystem path,
// a file:// URL or an s3://bucket/key URL.
type ArtifactConfig struct {
	URL    string `json:"url" yaml:"url"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

type HTTPConfig struct {
	Host            string `json:"host" yaml:"host"`
	Port            int    `json:"port" yaml:"port"`
	MaxBodyBytes    int64  `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`
	ShutdownSeconds int    `json:"shutdown_seconds,omitempty" yaml:"shutdown_seconds,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// Options converts the log section for utils.ConfigureLogging.
func (l LogConfig) Options() utils.LogOptions {
	return utils.LogOptions{
		Level:      l.Level,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// TracingConfig selects the OpenTelemetry exporter: "" (disabled), "stdout" or "otlp".
type TracingConfig struct {
	Exporter    string `json:"exporter" yaml:"exporter"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
}

type MCPConfig struct {
	Addr  string `json:"addr" yaml:"addr"`
	Stdio bool   `json:"stdio" yaml:"stdio"`
}

// StorageConfig selects where decisions are audited: "" (disabled), "memory",
// "sqlite" or "postgres".
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// EventConfig selects where decision events are published: "" (disabled),
// "memory" or "nats" (NATS Streaming).
type EventConfig struct {
	Driver    string `json:"driver" yaml:"driver"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	ClusterID string `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
	ClientID  string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Topic     string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// LoadConfig reads a JSON config file, or YAML when the extension is .yaml/.yml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Load reads path if it exists, falls back to an empty config when it does not,
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnv overrides file values with LOANSCORE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(constants.EnvArtifact)); v != "" {
		c.Artifact.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvAWSRegion)); v != "" && c.Artifact.Region == "" {
		c.Artifact.Region = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvAddr)); v != "" {
		host, port := SplitAddr(v)
		c.HTTP.Host = host
		if port > 0 {
			c.HTTP.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvLogFile)); v != "" {
		c.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvDatabaseURL)); v != "" {
		c.Storage.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Storage.Driver = constants.StorageDriverPostgres
		} else {
			c.Storage.Driver = constants.StorageDriverSQLite
		}
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvStorage)); v != "" {
		c.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvEventDriver)); v != "" {
		c.Event.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvEventURL)); v != "" {
		c.Event.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvTracing)); v != "" {
		c.Tracing.Exporter = v
	}
	if v := strings.TrimSpace(os.Getenv(constants.EnvOTLPEndpoint)); v != "" && c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = v
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Artifact.URL == "" {
		c.Artifact.URL = constants.DefaultArtifactPath
	}
	if c.HTTP.Port == 0 {
		_, c.HTTP.Port = SplitAddr(constants.DefaultAddr)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if c.HTTP.ShutdownSeconds <= 0 {
		c.HTTP.ShutdownSeconds = constants.DefaultShutdownSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = constants.DefaultServiceName
	}
	if c.MCP.Addr == "" {
		c.MCP.Addr = constants.DefaultMCPAddr
	}
	if c.Storage.Driver == constants.StorageDriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = constants.DefaultSQLiteDSN
	}
	if c.Event.Driver == constants.EventDriverNATS {
		if c.Event.ClusterID == "" {
			c.Event.ClusterID = constants.DefaultNATSClusterID
		}
		if c.Event.ClientID == "" {
			c.Event.ClientID = constants.DefaultNATSClientID
		}
	}
	if c.Event.Topic == "" {
		c.Event.Topic = constants.TopicDecisions
	}
}

// Addr returns the host:port listen address.
func (h HTTPConfig) Addr() string {
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// SplitAddr splits "host:port" or ":port"; an unparsable port yields 0.
func SplitAddr(addr string) (string, int) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return addr[:idx], 0
	}
	return addr[:idx], port
}
