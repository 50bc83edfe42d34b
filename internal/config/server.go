package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ModeOverride replaces the upstream base address of one interaction mode.
type ModeOverride struct {
	Base string `yaml:"base"`
}

// ServerConfig holds configuration for the gateway.
type ServerConfig struct {
	Host           string                  `yaml:"host"`
	Port           int                     `yaml:"port"`
	MetricsAddr    string                  `yaml:"metrics_addr"`
	UpstreamHost   string                  `yaml:"upstream_host"`
	OllamaURL      string                  `yaml:"ollama_url"`
	HealthURL      string                  `yaml:"health_url"`
	IdleTimeout    time.Duration           `yaml:"idle_timeout"`
	MaxBodyBytes   int64                   `yaml:"max_body_bytes"`
	AllowedOrigins []string                `yaml:"allowed_origins"`
	LogLevel       string                  `yaml:"log_level"`
	RedisAddr      string                  `yaml:"redis_addr"`
	DrainTimeout   time.Duration           `yaml:"drain_timeout"`
	PDFFontDir     string                  `yaml:"pdf_font_dir"`
	APIKey         string                  `yaml:"api_key"`
	Modes          map[string]ModeOverride `yaml:"modes"`

	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`
}

// SetDefaults initializes c with built-in defaults. Addresses derived from
// other settings are filled in later by Finalize.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.UpstreamHost == "" {
		c.UpstreamHost = "localhost"
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("server.yaml")
	}
	if c.EnvFile == "" {
		c.EnvFile = ".env"
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("ENV_FILE", ""); v != "" {
		c.EnvFile = v
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := GetEnv("HOST", ""); v != "" {
		c.Host = v
	}
	if v := GetEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := GetEnv("METRICS_PORT", ""); v != "" {
		c.MetricsAddr = normalizeAddr(v)
	}
	if v := GetEnv("UPSTREAM_HOST", ""); v != "" {
		c.UpstreamHost = v
	}
	if v := GetEnv("OLLAMA_URL", ""); v != "" {
		c.OllamaURL = v
	}
	if v := GetEnv("HEALTH_URL", ""); v != "" {
		c.HealthURL = v
	}
	if v := GetEnv("IDLE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.IdleTimeout = d
		}
	}
	if v := GetEnv("MAX_BODY_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxBodyBytes = n
		}
	}
	if v := GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
	if v := GetEnv("PDF_FONT_DIR", ""); v != "" {
		c.PDFFontDir = v
	}
	if v := GetEnv("API_KEY", ""); v != "" {
		c.APIKey = v
	}
}

// BindFlagsFromCurrent binds command line flags on fs using the current config
// values as defaults.
func (c *ServerConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "dotenv file loaded into the environment before startup")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.Host, "host", c.Host, "interface to listen on; empty listens on all interfaces")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port for the public API")
	fs.Func("metrics-port", "Prometheus metrics listen address or port; defaults to the value of --port", func(v string) error {
		c.MetricsAddr = normalizeAddr(v)
		return nil
	})
	fs.StringVar(&c.UpstreamHost, "upstream-host", c.UpstreamHost, "host running the query backends")
	fs.StringVar(&c.OllamaURL, "ollama-url", c.OllamaURL, "base URL of the Ollama API used by the direct mode")
	fs.StringVar(&c.HealthURL, "health-url", c.HealthURL, "upstream health endpoint republished under /health")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", c.IdleTimeout, "abort an upstream call after this long without data")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", c.MaxBodyBytes, "maximum accepted request body size")
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for server state")
	fs.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to wait for in-flight relays on shutdown (-1 to wait indefinitely, 0 to exit immediately)")
	fs.StringVar(&c.PDFFontDir, "pdf-font-dir", c.PDFFontDir, "directory holding DejaVuSans.ttf and DejaVuSans-Bold.ttf for PDF exports")
	fs.StringVar(&c.APIKey, "api-key", c.APIKey, "bearer key required on /api routes; empty disables auth")
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

// Finalize fills in addresses derived from other settings.
func (c *ServerConfig) Finalize() {
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.OllamaURL == "" {
		c.OllamaURL = "http://" + net.JoinHostPort(c.UpstreamHost, "11434")
	}
	if c.HealthURL == "" {
		c.HealthURL = "http://" + net.JoinHostPort(c.UpstreamHost, "5000") + "/health"
	}
}

// ListenAddr is the address the public API binds to.
func (c ServerConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SharesMetricsPort reports whether /metrics is served by the public listener.
func (c ServerConfig) SharesMetricsPort() bool {
	return c.MetricsAddr == fmt.Sprintf(":%d", c.Port) || c.MetricsAddr == c.ListenAddr()
}

// ModeBases returns the per-mode base address overrides.
func (c ServerConfig) ModeBases() map[string]string {
	out := make(map[string]string, len(c.Modes))
	for mode, o := range c.Modes {
		if o.Base != "" {
			out[mode] = o.Base
		}
	}
	return out
}

func normalizeAddr(v string) string {
	if strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}
