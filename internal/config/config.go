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

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	SendBuffer      int           `yaml:"sendBuffer"`
	ReadLimit       int64         `yaml:"readLimit"`
	PingInterval    time.Duration `yaml:"pingInterval"`
	ReadIdleTimeout time.Duration `yaml:"readIdleTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LoggingConfig struct {
	Directory string `yaml:"directory"`
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
}

type SecurityConfig struct {
	JWTSecret    string `yaml:"jwtSecret"`
	JWTPublicKey string `yaml:"jwtPublicKey"`
	// RequireToken rejects upgrades that carry no valid token.
	RequireToken bool `yaml:"requireToken"`
}

// KafkaConfig binds Kafka topics (keys) to runtime topics (values).
type KafkaConfig struct {
	Brokers  []string          `yaml:"brokers"`
	GroupID  string            `yaml:"groupId"`
	Bindings map[string]string `yaml:"bindings"`
}

// AMQPConfig binds queues (keys) to runtime topics (values).
type AMQPConfig struct {
	URL          string            `yaml:"url"`
	Bindings     map[string]string `yaml:"bindings"`
	DialAttempts int               `yaml:"dialAttempts"`
	DialWait     time.Duration     `yaml:"dialWait"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			SendBuffer:      256,
			ReadLimit:       1 << 16,
			PingInterval:    30 * time.Second,
			ReadIdleTimeout: 60 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Directory: "./logs",
			Level:     "info",
			Format:    "text",
		},
		Kafka: KafkaConfig{
			GroupID:  "reactws",
			Bindings: map[string]string{},
		},
		AMQP: AMQPConfig{
			Bindings:     map[string]string{},
			DialAttempts: 5,
			DialWait:     5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by CONFIG_FILE (if any)
// and then environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
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

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	var errs []error
	setString := func(dst *string, key string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setInt64 := func(dst *int64, key string) {
		if v, ok := env(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(dst *bool, key string) {
		if v, ok := env(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v, ok := env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setBindings := func(dst *map[string]string, key string) {
		if v, ok := env(key); ok {
			b, err := ParseBindings(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setString(&c.Server.Port, "PORT")
	setInt(&c.Server.SendBuffer, "WS_SEND_BUFFER")
	setInt64(&c.Server.ReadLimit, "WS_READ_LIMIT")
	setDuration(&c.Server.PingInterval, "WS_PING_INTERVAL")
	setDuration(&c.Server.ReadIdleTimeout, "WS_READ_IDLE_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "WS_WRITE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	setString(&c.Logging.Directory, "LOG_DIR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	setString(&c.Security.JWTSecret, "JWT_SECRET")
	setString(&c.Security.JWTPublicKey, "JWT_PUBLIC_KEY")
	setBool(&c.Security.RequireToken, "JWT_REQUIRED")

	// KAFKA_BROKER is the older single-broker spelling
	if v, ok := env("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	} else if v, ok := env("KAFKA_BROKER"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.GroupID, "KAFKA_GROUP_ID")
	setBindings(&c.Kafka.Bindings, "KAFKA_TOPICS")

	setString(&c.AMQP.URL, "AMQP_URL")
	setBindings(&c.AMQP.Bindings, "AMQP_QUEUES")
	setInt(&c.AMQP.DialAttempts, "AMQP_DIAL_ATTEMPTS")
	setDuration(&c.AMQP.DialWait, "AMQP_DIAL_WAIT")

	setBool(&c.Metrics.Enabled, "METRICS_ENABLED")
	setString(&c.Metrics.Path, "METRICS_PATH")

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server port %q is not a number", c.Server.Port))
	}
	if c.Server.SendBuffer <= 0 {
		errs = append(errs, errors.New("send buffer must be positive"))
	}
	if c.Server.ReadLimit <= 0 {
		errs = append(errs, errors.New("read limit must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write timeout must be positive"))
	}
	if c.Server.PingInterval > 0 && c.Server.ReadIdleTimeout > 0 && c.Server.PingInterval >= c.Server.ReadIdleTimeout {
		errs = append(errs, fmt.Errorf("ping interval %s must be shorter than read idle timeout %s", c.Server.PingInterval, c.Server.ReadIdleTimeout))
	}
	if c.Security.RequireToken && c.Security.JWTSecret == "" && c.Security.JWTPublicKey == "" {
		errs = append(errs, errors.New("tokens are required but no jwt secret or public key is set"))
	}
	if len(c.Kafka.Bindings) > 0 && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka bindings configured without brokers"))
	}
	if len(c.AMQP.Bindings) > 0 && c.AMQP.URL == "" {
		errs = append(errs, errors.New("amqp bindings configured without url"))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}

// ParseBindings reads "source=topic" pairs separated by commas. A bare source binds to a
// topic of the same name.
func ParseBindings(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(raw) {
		source, topic, found := strings.Cut(item, "=")
		source = strings.TrimSpace(source)
		topic = strings.TrimSpace(topic)
		if !found {
			topic = source
		}
		if source == "" || topic == "" {
			return nil, fmt.Errorf("invalid binding %q", item)
		}
		out[source] = topic
	}
	return out, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
