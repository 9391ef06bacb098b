package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"relaybot/internal/hours"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/config.yaml"
	PathEnv     = "RELAYBOT_CONFIG"
)

var (
	ErrMissingToken   = errors.New("config: telegram.bot_token is not set")
	ErrMissingAdminID = errors.New("config: telegram.admin_id is not set")
)

// Config is the bot configuration file.
type Config struct {
	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		AdminID       int64  `yaml:"admin_id"`
		WebhookURL    string `yaml:"webhook_url"`
		WebhookPath   string `yaml:"webhook_path"`
		WebhookSecret string `yaml:"webhook_secret"`
		Debug         bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Gateway struct {
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int     `yaml:"burst"`
	} `yaml:"gateway"`

	Dispatcher struct {
		Workers          int `yaml:"workers"`
		QueueSize        int `yaml:"queue_size"`
		AcquireTimeoutMS int `yaml:"acquire_timeout_ms"`
	} `yaml:"dispatcher"`

	Session struct {
		Shards int `yaml:"shards"`
	} `yaml:"session"`

	Hours struct {
		Timezone string            `yaml:"timezone"`
		Days     map[string]string `yaml:"days"`
	} `yaml:"hours"`

	Idle struct {
		Enabled            bool `yaml:"enabled"`
		MinSeconds         int  `yaml:"min_seconds"`
		MaxSeconds         int  `yaml:"max_seconds"`
		JoinTimeoutSeconds int  `yaml:"join_timeout_seconds"`
	} `yaml:"idle"`

	RateLimit struct {
		Limit         int `yaml:"limit"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"ratelimit"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Commlog struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"commlog"`

	Report struct {
		Cron string `yaml:"cron"`
	} `yaml:"report"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Path resolves the config file location: explicit flag, then env, then default.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML file at path. A .env file in the working directory is
// loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML with ${ENV_VAR} placeholders expanded, applies defaults
// and validates required fields.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return nil, ErrMissingToken
	}
	if cfg.Telegram.AdminID == 0 {
		return nil, ErrMissingAdminID
	}
	if _, err := cfg.Schedule(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.WebhookPath == "" {
		c.Telegram.WebhookPath = "/webhook"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 10
	}
	if c.Gateway.RatePerSecond <= 0 {
		c.Gateway.RatePerSecond = 25
	}
	if c.Gateway.Burst <= 0 {
		c.Gateway.Burst = 5
	}
	if c.Dispatcher.Workers <= 0 {
		c.Dispatcher.Workers = 16
	}
	if c.Dispatcher.QueueSize <= 0 {
		c.Dispatcher.QueueSize = 256
	}
	if c.Dispatcher.AcquireTimeoutMS <= 0 {
		c.Dispatcher.AcquireTimeoutMS = 200
	}
	if c.Hours.Timezone == "" {
		c.Hours.Timezone = "Europe/Kyiv"
	}
	if c.Idle.MinSeconds <= 0 {
		c.Idle.MinSeconds = 300
	}
	if c.Idle.MaxSeconds < c.Idle.MinSeconds {
		c.Idle.MaxSeconds = c.Idle.MinSeconds * 3
	}
	if c.Idle.JoinTimeoutSeconds <= 0 {
		c.Idle.JoinTimeoutSeconds = 2
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.Commlog.Driver == "" {
		c.Commlog.Driver = "csv"
	}
	if c.Commlog.Path == "" {
		switch c.Commlog.Driver {
		case "sqlite", "sqlite3":
			c.Commlog.Path = "data/communications.db"
		default:
			c.Commlog.Path = "data/communications.csv"
		}
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Schedule builds the operator working hours. No days configured means always open.
func (c *Config) Schedule() (*hours.Schedule, error) {
	if len(c.Hours.Days) == 0 {
		return nil, nil
	}
	return hours.ParseSchedule(c.Hours.Timezone, c.Hours.Days)
}

func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Dispatcher.AcquireTimeoutMS) * time.Millisecond
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) IdleMin() time.Duration {
	return time.Duration(c.Idle.MinSeconds) * time.Second
}

func (c *Config) IdleMax() time.Duration {
	return time.Duration(c.Idle.MaxSeconds) * time.Second
}

func (c *Config) IdleJoinTimeout() time.Duration {
	return time.Duration(c.Idle.JoinTimeoutSeconds) * time.Second
}
