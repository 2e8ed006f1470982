package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server reads at startup.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Rooms struct {
		CodeLength int `yaml:"code_length"`
	} `yaml:"rooms"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Events Events `yaml:"events"`
}

// Events configures where room lifecycle notifications go.
type Events struct {
	Backend string `yaml:"backend"` // none, redis or nats
	Buffer  int    `yaml:"buffer"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
}

const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendNATS  = "nats"
)

func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "3030"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Rooms.CodeLength = 4
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Events.Backend = BackendNone
	cfg.Events.Buffer = 256
	cfg.Events.Redis.Addr = "localhost:6379"
	cfg.Events.Redis.Channel = "rooms.events"
	cfg.Events.NATS.URL = "nats://127.0.0.1:4222"
	cfg.Events.NATS.Subject = "rooms.events"
	return cfg
}

// Load builds a Config from defaults, the optional YAML file at path, and
// the environment, in that order of precedence (later wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ROOM_CODE_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ROOM_CODE_LENGTH: %w", err)
		}
		c.Rooms.CodeLength = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("EVENTS_BACKEND"); v != "" {
		c.Events.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Events.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Events.Redis.Password = v
	}
	if v := os.Getenv("REDIS_CHANNEL"); v != "" {
		c.Events.Redis.Channel = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.NATS.URL = v
	}
	if v := os.Getenv("NATS_SUBJECT"); v != "" {
		c.Events.NATS.Subject = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Rooms.CodeLength < 1 || c.Rooms.CodeLength > 12 {
		errs = append(errs, fmt.Errorf("rooms.code_length must be between 1 and 12, got %d", c.Rooms.CodeLength))
	}
	if c.Events.Buffer < 1 {
		errs = append(errs, fmt.Errorf("events.buffer must be positive, got %d", c.Events.Buffer))
	}
	switch c.Events.Backend {
	case BackendNone, BackendRedis, BackendNATS:
	default:
		errs = append(errs, fmt.Errorf("events.backend %q is not one of none, redis, nats", c.Events.Backend))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
