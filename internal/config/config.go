package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration passed into constructors at
// startup. No component performs ambient environment lookups on its own.
type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		RequestTimeout int      `yaml:"requestTimeoutSeconds"`
		APIKeys        []string `yaml:"apiKeys"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Scanner struct {
		Bin         string `yaml:"bin"`
		Org         string `yaml:"org"`
		Timeout     int    `yaml:"timeoutSeconds"`
		Concurrency int    `yaml:"concurrency"`
		Retry       struct {
			Attempts  uint `yaml:"attempts"`
			BaseDelay int  `yaml:"baseDelaySeconds"`
			MaxDelay  int  `yaml:"maxDelaySeconds"`
		} `yaml:"retry"`
	} `yaml:"scanner"`

	Reporter struct {
		URL     string `yaml:"url"`
		Timeout int    `yaml:"timeoutSeconds"`
	} `yaml:"reporter"`

	AI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"ai"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 600
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Scanner.Bin == "" {
		c.Scanner.Bin = "snyk"
	}
	if c.Scanner.Timeout <= 0 {
		c.Scanner.Timeout = 300
	}
	if c.Scanner.Concurrency <= 0 {
		// the scanning tool supports one concurrent scan per host
		c.Scanner.Concurrency = 1
	}
	if c.Scanner.Retry.Attempts == 0 {
		c.Scanner.Retry.Attempts = 3
	}
	if c.Scanner.Retry.BaseDelay <= 0 {
		c.Scanner.Retry.BaseDelay = 1
	}
	if c.Scanner.Retry.MaxDelay <= 0 {
		c.Scanner.Retry.MaxDelay = 60
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillRate <= 0 {
		c.RateLimit.RefillRate = 1
	}
}

// RequestTimeoutDuration is the hard deadline for one batch request
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// ScanTimeoutDuration is the per-scan timeout
func (c *Config) ScanTimeoutDuration() time.Duration {
	return time.Duration(c.Scanner.Timeout) * time.Second
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
