package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/user/courier/pkg/secrets"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config file is given.
const DefaultPath = "courier.yaml"

type Config struct {
	Submission SubmissionConfig  `json:"submission" yaml:"submission"`
	Progress   ProgressConfig    `json:"progress" yaml:"progress"`
	Storage    FileStorageConfig `json:"storage" yaml:"storage"`
	Log        LogConfig         `json:"log" yaml:"log"`
	Telemetry  OTLPConfig        `json:"telemetry" yaml:"telemetry"`
	Secrets    secrets.Config    `json:"secrets" yaml:"secrets"`
	Channels   []ChannelConfig   `json:"channels" yaml:"channels"`
}

type SubmissionConfig struct {
	// AttemptTimeout bounds each channel attempt.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout"`
}

type ProgressConfig struct {
	Step     int           `json:"step" yaml:"step"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	Ceiling  int           `json:"ceiling" yaml:"ceiling"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// OTLPConfig enables trace and metric export. Export is off when Endpoint is empty.
type OTLPConfig struct {
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Protocol    string            `json:"protocol" yaml:"protocol"` // grpc, http
	ServiceName string            `json:"service_name" yaml:"service_name"`
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	Headers     map[string]string `json:"headers" yaml:"headers"`
}

type FileStorageConfig struct {
	Type     string   `json:"type" yaml:"type"` // local, s3
	LocalDir string   `json:"local_dir" yaml:"local_dir"`
	S3       S3Config `json:"s3" yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
}

// ChannelConfig describes one registry entry. Which fields apply depends on Type.
type ChannelConfig struct {
	Type  string `json:"type" yaml:"type"`
	Label string `json:"label" yaml:"label"`

	// direct, local_proxy, function_proxy, cors
	URL          string            `json:"url" yaml:"url"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	LocatorPaths []string          `json:"locator_paths" yaml:"locator_paths"`
	Compression  string            `json:"compression" yaml:"compression"`

	// cors
	Relay  string `json:"relay" yaml:"relay"`
	Origin string `json:"origin" yaml:"origin"`

	// notify
	Provider       string     `json:"provider" yaml:"provider"`
	TelegramToken  string     `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID string     `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	TelegramAPI    string     `json:"telegram_api" yaml:"telegram_api"`
	SMTP           SMTPConfig `json:"smtp" yaml:"smtp"`

	// object_store, local
	Prefix string `json:"prefix" yaml:"prefix"`
	// Mirror keeps a copy of locally retained files in the configured file storage.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

type SMTPConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	SSL      bool   `json:"ssl" yaml:"ssl"`
}

// Channel types understood by the registry factory.
const (
	ChannelDirect        = "direct"
	ChannelLocalProxy    = "local_proxy"
	ChannelFunctionProxy = "function_proxy"
	ChannelCors          = "cors"
	ChannelNotify        = "notify"
	ChannelLocal         = "local"
	ChannelObjectStore   = "object_store"
)

// LoadConfig reads a YAML (or JSON) file, substitutes ${VAR} references,
// applies COURIER_* environment overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes config content. See LoadConfig.
func Parse(data []byte) (*Config, error) {
	content := []byte(SubstituteEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		// Try JSON if YAML fails
		dec := json.NewDecoder(bytes.NewReader(content))
		if jerr := dec.Decode(&cfg); jerr != nil {
			return nil, fmt.Errorf("failed to decode config file (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func SubstituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envVarPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
}

// Environment variable overrides (highest precedence)
func (c *Config) applyEnv() error {
	if v := os.Getenv("COURIER_ATTEMPT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COURIER_ATTEMPT_TIMEOUT: %w", err)
		}
		c.Submission.AttemptTimeout = d
	}
	if v := os.Getenv("COURIER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COURIER_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("COURIER_STORAGE_DIR"); v != "" {
		c.Storage.LocalDir = v
	}
	if v := os.Getenv("COURIER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	return nil
}

// ApplyDefaults fills unset values with the defaults of the upload form.
func (c *Config) ApplyDefaults() {
	if c.Submission.AttemptTimeout <= 0 {
		c.Submission.AttemptTimeout = 30 * time.Second
	}
	if c.Progress.Step <= 0 {
		c.Progress.Step = 10
	}
	if c.Progress.Interval <= 0 {
		c.Progress.Interval = 500 * time.Millisecond
	}
	if c.Progress.Ceiling <= 0 {
		c.Progress.Ceiling = 90
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "courier"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.Type == "local" && c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "uploads"
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		ch.Type = strings.ToLower(strings.TrimSpace(ch.Type))
		if ch.Label == "" {
			ch.Label = defaultLabel(*ch)
		}
	}
}

func defaultLabel(ch ChannelConfig) string {
	switch ch.Type {
	case ChannelCors:
		return "cors:" + ch.Relay
	case ChannelNotify:
		return "notify:" + ch.Provider
	default:
		return ch.Type
	}
}

// Validate checks the parts of the config the factory cannot recover from.
func (c *Config) Validate() error {
	if c.Progress.Ceiling >= 100 {
		return fmt.Errorf("progress ceiling must be below 100, got %d", c.Progress.Ceiling)
	}
	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		switch ch.Type {
		case ChannelDirect, ChannelLocalProxy, ChannelFunctionProxy:
			if ch.URL == "" {
				return fmt.Errorf("channel %d (%s): url is required", i, ch.Type)
			}
		case ChannelCors:
			if ch.URL == "" || ch.Relay == "" {
				return fmt.Errorf("channel %d (cors): url and relay are required", i)
			}
		case ChannelNotify:
			if ch.Provider == "" {
				return fmt.Errorf("channel %d (notify): provider is required", i)
			}
		case ChannelLocal, ChannelObjectStore:
		default:
			return fmt.Errorf("channel %d: unknown type %q", i, ch.Type)
		}
		if seen[ch.Label] {
			return fmt.Errorf("duplicate channel label %q", ch.Label)
		}
		seen[ch.Label] = true
	}
	return nil
}

// ResolveSecrets replaces "secret:" references in credential fields with the
// values held by mgr. Nothing is fetched when the config has no references.
func (c *Config) ResolveSecrets(ctx context.Context, mgr secrets.Manager) error {
	var fields []*string
	fields = append(fields, &c.Storage.S3.AccessKeyID, &c.Storage.S3.SecretAccessKey)
	for i := range c.Channels {
		ch := &c.Channels[i]
		fields = append(fields, &ch.URL, &ch.TelegramToken, &ch.TelegramChatID, &ch.SMTP.User, &ch.SMTP.Password)
		for k, v := range ch.Headers {
			if !secrets.IsReference(v) {
				continue
			}
			resolved, err := secrets.Resolve(ctx, mgr, v)
			if err != nil {
				return fmt.Errorf("channel %q header %s: %w", ch.Label, k, err)
			}
			ch.Headers[k] = resolved
		}
	}

	for _, f := range fields {
		if !secrets.IsReference(*f) {
			continue
		}
		resolved, err := secrets.Resolve(ctx, mgr, *f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

