package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/mblarsen/clin/internal/ipc"
	"github.com/mblarsen/clin/internal/xdgpath"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the config file and flags are silent.
const (
	EnvConfig     = "CLIN_CONFIG"
	EnvSend       = "CLIN_SEND"
	EnvSendHost   = "CLIN_SEND_HOST"
	EnvSendPort   = "CLIN_SEND_PORT"
	EnvListenPort = "CLIN_LISTEN_PORT"
	EnvOrigin     = "CLIN_ORIGIN"
	EnvLogLevel   = "CLIN_LOG_LEVEL"
)

// Config represents the structure of the clin config.toml file.
type Config struct {
	Host           string `toml:"host" yaml:"host" json:"host" validate:"required"`
	Port           int    `toml:"port" yaml:"port" json:"port" validate:"min=1,max=65535"`
	ListenPort     int    `toml:"listen_port" yaml:"listen_port" json:"listen_port" validate:"min=1,max=65535"`
	Send           bool   `toml:"send" yaml:"send" json:"send"`
	Public         bool   `toml:"public" yaml:"public" json:"public"`
	Origin         string `toml:"origin" yaml:"origin" json:"origin"`
	ConnectTimeout string `toml:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout" validate:"required"`
	ReadTimeout    string `toml:"read_timeout" yaml:"read_timeout" json:"read_timeout" validate:"required"`
	LogFile        string `toml:"log_file" yaml:"log_file" json:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           ipc.DefaultPort,
		ListenPort:     ipc.DefaultPort,
		ConnectTimeout: ipc.DefaultConnectTimeout.String(),
		ReadTimeout:    ipc.DefaultReadTimeout.String(),
	}
}

// ResolvePath returns the config file location: $CLIN_CONFIG if set,
// otherwise config.toml in the clin XDG config directory.
func ResolvePath() (string, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return path, nil
	}
	return xdgpath.ConfigPath("config.toml")
}

// Load builds the configuration from the defaults, the TOML file at path (a
// missing file is not an error) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		if err == nil {
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return nil, fmt.Errorf("unknown key %q in config %s", undecoded[0].String(), path)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSend); ok && v != "" {
		send, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSend, v, err)
		}
		c.Send = send
	}
	if v, ok := lookup(EnvSendHost); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup(EnvSendPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSendPort, v, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvListenPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvListenPort, v, err)
		}
		c.ListenPort = port
	}
	if v, ok := lookup(EnvOrigin); ok && v != "" {
		c.Origin = v
	}
	return nil
}

// Validate checks field ranges and that the timeouts parse.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	for name, value := range map[string]string{
		"connect_timeout": c.ConnectTimeout,
		"read_timeout":    c.ReadTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got '%s'", name, value)
		}
	}
	return nil
}

// ConnectTimeoutDuration returns the parsed connect timeout. The config must
// have been validated.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	return d
}

// ReadTimeoutDuration returns the parsed read timeout. The config must have
// been validated.
func (c *Config) ReadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	return d
}

// ResolvedOrigin returns the configured origin, falling back to the hostname.
func (c *Config) ResolvedOrigin() string {
	if c.Origin != "" {
		return c.Origin
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// Marshal renders the config as toml, yaml or json.
func (c *Config) Marshal(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "yaml", "yml":
		return yaml.Marshal(c)
	case "json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown format '%s', expected toml, yaml or json", format)
	}
}
