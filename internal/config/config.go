// Package config holds service configuration loaded from a YAML file with
// environment variable overrides in a predictable priority order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root service configuration. Value sources, in descending
// priority: explicit path argument, CONFIG_PATH, ./local.yaml, environment.
type Config struct {
	Env      string         `yaml:"env" env:"REELHUB_ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Policies PoliciesConfig `yaml:"policies"`
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Host string `yaml:"host" env:"REELHUB_HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"REELHUB_HTTP_PORT" env-default:"8080"`
}

// Addr returns the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token issuance and validation parameters.
type AuthConfig struct {
	Secret     string        `yaml:"secret" env:"REELHUB_AUTH_SECRET" env-required:"true"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"REELHUB_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"REELHUB_REFRESH_TTL" env-default:"168h"`
	Issuer     string        `yaml:"issuer" env:"REELHUB_ISSUER" env-default:"reelhub"`
}

// DBConfig holds the relational store connection settings.
type DBConfig struct {
	DSN string `yaml:"dsn" env:"REELHUB_PG_DSN" env-default:""`
}

// RedisConfig holds the shared quota store connection settings.
type RedisConfig struct {
	URL     string        `yaml:"url" env:"REELHUB_REDIS_URL" env-default:""`
	Timeout time.Duration `yaml:"timeout" env:"REELHUB_REDIS_TIMEOUT" env-default:"500ms"`
}

// PolicyConfig is one named bandwidth policy: a bucket holds up to Capacity
// tokens and earns RefillQuantity tokens per RefillInterval.
type PolicyConfig struct {
	Capacity       int64         `yaml:"capacity" env:"CAPACITY"`
	RefillQuantity int64         `yaml:"refill_quantity" env:"REFILL_QUANTITY"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"REFILL_INTERVAL"`
	FailMode       string        `yaml:"fail_mode" env:"FAIL_MODE"`
}

// PoliciesConfig enumerates the five named bandwidth policies.
type PoliciesConfig struct {
	Anonymous      PolicyConfig `yaml:"anonymous" env-prefix:"REELHUB_POLICY_ANON_"`
	Authenticated  PolicyConfig `yaml:"authenticated" env-prefix:"REELHUB_POLICY_AUTH_"`
	WriteOperation PolicyConfig `yaml:"write_operation" env-prefix:"REELHUB_POLICY_WRITE_"`
	ReviewCreation PolicyConfig `yaml:"review_creation" env-prefix:"REELHUB_POLICY_REVIEW_"`
	LoginAttempt   PolicyConfig `yaml:"login_attempt" env-prefix:"REELHUB_POLICY_LOGIN_"`
}

// Defaults mirror the reference deployment; overridable per policy.
var defaultPolicies = PoliciesConfig{
	Anonymous:      PolicyConfig{Capacity: 60, RefillQuantity: 60, RefillInterval: time.Minute, FailMode: "open"},
	Authenticated:  PolicyConfig{Capacity: 300, RefillQuantity: 300, RefillInterval: time.Minute, FailMode: "open"},
	WriteOperation: PolicyConfig{Capacity: 30, RefillQuantity: 30, RefillInterval: time.Minute, FailMode: "closed"},
	ReviewCreation: PolicyConfig{Capacity: 10, RefillQuantity: 10, RefillInterval: time.Hour, FailMode: "closed"},
	LoginAttempt:   PolicyConfig{Capacity: 5, RefillQuantity: 5, RefillInterval: 15 * time.Minute, FailMode: "closed"},
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration by priority: explicit path, CONFIG_PATH,
// ./local.yaml, then environment variables on top of file values.
func Load(path string) (*Config, error) {
	cfg := Config{Policies: defaultPolicies}

	candidate := strings.TrimSpace(path)
	if candidate == "" {
		candidate = strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	}
	if candidate == "" {
		if _, err := os.Stat("local.yaml"); err == nil {
			candidate = "local.yaml"
		}
	}

	if candidate != "" {
		if err := cleanenv.ReadConfig(candidate, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", candidate, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth secret is required")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	for name, p := range map[string]PolicyConfig{
		"anonymous":       c.Policies.Anonymous,
		"authenticated":   c.Policies.Authenticated,
		"write_operation": c.Policies.WriteOperation,
		"review_creation": c.Policies.ReviewCreation,
		"login_attempt":   c.Policies.LoginAttempt,
	} {
		if p.Capacity <= 0 || p.RefillQuantity <= 0 || p.RefillInterval <= 0 {
			return fmt.Errorf("policy %s: capacity, refill_quantity and refill_interval must be positive", name)
		}
		switch strings.ToLower(strings.TrimSpace(p.FailMode)) {
		case "open", "closed":
		default:
			return fmt.Errorf("policy %s: fail_mode must be open or closed", name)
		}
	}
	return nil
}
