package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/gaspardpetit/wspush/modules/common/config"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the wspush server.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	ClientKey      string        `yaml:"client_key"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ConfigFile     string        `yaml:"-"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	RedisAddr      string        `yaml:"redis_addr"`
	FileRoot       string        `yaml:"file_root"`

	// SendQueue is the number of frames buffered per connection.
	SendQueue     int           `yaml:"send_queue"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	FileChunkSize int           `yaml:"file_chunk_size"`
	// PushRate limits pushes per second and connection; 0 disables the limit.
	PushRate  float64 `yaml:"push_rate"`
	PushBurst int     `yaml:"push_burst"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.FileRoot == "" {
		c.FileRoot = "."
	}
	if c.SendQueue == 0 {
		c.SendQueue = 64
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.FileChunkSize == 0 {
		c.FileChunkSize = 64 << 10
	}
	if c.PushRate > 0 && c.PushBurst == 0 {
		c.PushBurst = int(c.PushRate)
		if c.PushBurst < 1 {
			c.PushBurst = 1
		}
	}
	if c.ConfigFile == "" {
		c.ConfigFile = commoncfg.DefaultConfigPath("server.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := commoncfg.GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := commoncfg.GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := commoncfg.GetEnv("LOG_FORMAT", ""); v != "" {
		c.LogFormat = v
	}
	if v := commoncfg.GetEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := commoncfg.GetEnv("METRICS_PORT", ""); v != "" {
		c.MetricsAddr = metricsAddr(v)
	} else if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if v := commoncfg.GetEnv("CLIENT_KEY", ""); v != "" {
		c.ClientKey = v
	}
	if v := commoncfg.GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := commoncfg.GetEnv("FILE_ROOT", ""); v != "" {
		c.FileRoot = v
	}
	if v := commoncfg.GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
	if v := commoncfg.GetEnv("WRITE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WriteTimeout = d
		}
	}
	if v := commoncfg.GetEnv("SEND_QUEUE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SendQueue = n
		}
	}
	if v := commoncfg.GetEnv("FILE_CHUNK_SIZE", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FileChunkSize = n
		}
	}
	if v := commoncfg.GetEnv("PUSH_RATE", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.PushRate = f
		}
	}
	if v := commoncfg.GetEnv("PUSH_BURST", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PushBurst = n
		}
	}
	if v := commoncfg.GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
}

// BindFlagsFromCurrent binds command line flags using the current config values as defaults.
func (c *ServerConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log output format (console, json)")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port for websocket clients")
	fs.Func("metrics-port", "Prometheus metrics listen address or port; defaults to the value of --port", func(v string) error {
		c.MetricsAddr = metricsAddr(v)
		return nil
	})
	fs.StringVar(&c.ClientKey, "client-key", c.ClientKey, "bearer key clients must present when connecting; leave empty to disable auth")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for server state")
	fs.StringVar(&c.FileRoot, "file-root", c.FileRoot, "directory served to clients by the file handler")
	fs.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to wait for connections to close on shutdown (-1 to wait indefinitely, 0 to exit immediately)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "timeout for a single frame write")
	fs.IntVar(&c.SendQueue, "send-queue", c.SendQueue, "frames buffered per connection before pushes fail")
	fs.IntVar(&c.FileChunkSize, "file-chunk-size", c.FileChunkSize, "fragment size used when streaming files")
	fs.Float64Var(&c.PushRate, "push-rate", c.PushRate, "pushes per second allowed per connection (0 for unlimited)")
	fs.IntVar(&c.PushBurst, "push-burst", c.PushBurst, "burst size of the per connection push limit")
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
}

func metricsAddr(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFile populates the config from a YAML file.
func (c *ServerConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
