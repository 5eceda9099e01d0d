// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// MaxFailureThreshold is the highest accepted webhooks.failureThreshold.
const MaxFailureThreshold = 10

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	DBMigrate   bool   `yaml:"dbMigrate"`
	RedisURL    string `yaml:"redisUrl"`
	NATSURL     string `yaml:"natsUrl"`
	NATSSubject string `yaml:"natsSubject"`
	LogLevel    string `yaml:"logLevel"`

	Webhooks Webhooks `yaml:"webhooks"`
	Rate     Rate     `yaml:"rate"`
}

type Webhooks struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxInFlight      int           `yaml:"maxInFlight"`
	FailureThreshold int           `yaml:"failureThreshold"`
	LogRetention     int           `yaml:"logRetention"`
}

// Rate limits the admin API per client address. RPS <= 0 disables it.
type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Default() Config {
	return Config{
		Port:        "8080",
		DBMigrate:   true,
		NATSSubject: "hookrelay.events.>",
		LogLevel:    "info",
		Webhooks: Webhooks{
			Timeout:          10 * time.Second,
			MaxInFlight:      16,
			FailureThreshold: 10,
			LogRetention:     100,
		},
		Rate: Rate{Burst: 20},
	}
}

// Load reads HOOKRELAY_CONFIG (if set) and then applies environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("HOOKRELAY_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("NATS_URL", &c.NATSURL)
	str("NATS_SUBJECT", &c.NATSSubject)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("DB_MIGRATE"); ok {
		c.DBMigrate = v != "false"
	}
	ints := map[string]*int{
		"WEBHOOK_MAX_IN_FLIGHT":     &c.Webhooks.MaxInFlight,
		"WEBHOOK_FAILURE_THRESHOLD": &c.Webhooks.FailureThreshold,
		"WEBHOOK_LOG_RETENTION":     &c.Webhooks.LogRetention,
		"RATE_BURST":                &c.Rate.Burst,
	}
	for k, dst := range ints {
		if v, ok := lookup(k); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup("WEBHOOK_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_TIMEOUT: %w", err)
		}
		c.Webhooks.Timeout = d
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Rate.RPS = f
	}
	return nil
}

func (c Config) Validate() error {
	if c.Webhooks.Timeout <= 0 {
		return fmt.Errorf("webhooks.timeout must be > 0")
	}
	if c.Webhooks.MaxInFlight <= 0 {
		return fmt.Errorf("webhooks.maxInFlight must be > 0")
	}
	// A subscription at 10 consecutive failures is always inactive; a lower
	// threshold keeps that true, a higher one would not.
	if c.Webhooks.FailureThreshold <= 0 || c.Webhooks.FailureThreshold > MaxFailureThreshold {
		return fmt.Errorf("webhooks.failureThreshold must be between 1 and %d", MaxFailureThreshold)
	}
	if c.Webhooks.LogRetention <= 0 {
		return fmt.Errorf("webhooks.logRetention must be > 0")
	}
	return nil
}

func (c Config) Addr() string { return ":" + c.Port }
