package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pesapal  PesapalConfig  `yaml:"pesapal"`
	Amadeus  AmadeusConfig  `yaml:"amadeus"`
	Payments PaymentsConfig `yaml:"payments"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	LookupTTLSecond int    `yaml:"lookup_ttl_seconds"`
}

func (r RedisConfig) LookupTTL() time.Duration {
	return time.Duration(r.LookupTTLSecond) * time.Second
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type PesapalConfig struct {
	BaseURL        string `yaml:"base_url"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	IPNID          string `yaml:"ipn_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AmadeusConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PaymentsConfig struct {
	FrontendURL   string `yaml:"frontend_url"`
	TerminalGuard bool   `yaml:"terminal_guard"`
}

type WorkerConfig struct {
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	PendingAgeMinutes    int `yaml:"pending_age_minutes"`
}

// LoadConfig reads a yaml file, expanding ${VAR} references from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.LookupTTLSecond == 0 {
		c.Redis.LookupTTLSecond = 300
	}
	if c.Pesapal.TimeoutSeconds == 0 {
		c.Pesapal.TimeoutSeconds = 30
	}
	if c.Amadeus.TimeoutSeconds == 0 {
		c.Amadeus.TimeoutSeconds = 30
	}
	if c.Payments.FrontendURL == "" {
		c.Payments.FrontendURL = "http://localhost:3000"
	}
	if c.Worker.SweepIntervalMinutes == 0 {
		c.Worker.SweepIntervalMinutes = 5
	}
	if c.Worker.PendingAgeMinutes == 0 {
		c.Worker.PendingAgeMinutes = 15
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Pesapal.BaseURL == "" {
		return errors.New("pesapal.base_url is required")
	}
	if c.Amadeus.BaseURL == "" {
		return errors.New("amadeus.base_url is required")
	}
	return nil
}
