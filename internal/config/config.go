package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"imageshelf/internal/pkg/validator"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"

	DatabaseSQL    = "sql"
	DatabaseBadger = "badger"

	DefaultMaxUploadSize int64 = 10 * 1024 * 1024
)

type (
	// Config is assembled once in main and handed to constructors by pointer.
	Config struct {
		AppEnv   string `env:"APP_ENV" envDefault:"dev"`
		LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

		HTTP     HTTPConfig     `envPrefix:"HTTP_"`
		Upload   UploadConfig   `envPrefix:"UPLOAD_"`
		Storage  StorageConfig  `envPrefix:"STORAGE_"`
		S3       S3Config       `envPrefix:"S3_"`
		Database DatabaseConfig `envPrefix:"DB_"`
		CORS     CORSConfig     `envPrefix:"CORS_"`
		Identity IdentityConfig `envPrefix:"IDENTITY_"`
	}

	HTTPConfig struct {
		Port            string        `env:"PORT" envDefault:"8080" validate:"required,numeric"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s" validate:"gt=0"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s" validate:"gt=0"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	}

	UploadConfig struct {
		Dir           string `env:"DIR" envDefault:"./uploads" validate:"required"`
		MaxSize       int64  `env:"MAX_SIZE" envDefault:"10485760" validate:"gt=0"`
		PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	}

	StorageConfig struct {
		Driver string `env:"DRIVER" envDefault:"local" validate:"oneof=local minio"`
	}

	S3Config struct {
		Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"uploads"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	}

	DatabaseConfig struct {
		Driver    string `env:"DRIVER" envDefault:"sql" validate:"oneof=sql badger"`
		DSN       string `env:"DSN" envDefault:"imageshelf.db"`
		BadgerDir string `env:"BADGER_DIR" envDefault:"./data/badger"`
	}

	CORSConfig struct {
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	}

	IdentityConfig struct {
		DemoKey string `env:"DEMO_KEY" envDefault:"demo@imageshelf.local" validate:"required"`
	}
)

// Load reads the environment (after any .env has been loaded by the caller)
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.Upload.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Upload.PublicBaseURL), "/")

	origins := c.CORS.AllowedOrigins[:0]
	for _, o := range c.CORS.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORS.AllowedOrigins = origins
}

func (c *Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return err
	}

	if c.Storage.Driver == StorageMinio {
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return errors.New("S3_ENDPOINT and S3_BUCKET are required when STORAGE_DRIVER=minio")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_DRIVER=minio")
		}
	}
	if c.Database.Driver == DatabaseSQL && strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("DB_DSN must not be empty when DB_DRIVER=sql")
	}
	if c.Database.Driver == DatabaseBadger && strings.TrimSpace(c.Database.BadgerDir) == "" {
		return errors.New("DB_BADGER_DIR must not be empty when DB_DRIVER=badger")
	}

	if c.IsProdLike() {
		for _, o := range c.CORS.AllowedOrigins {
			if o == "*" {
				return errors.New("in prod/release CORS_ALLOWED_ORIGINS must not contain *")
			}
		}
	}
	return nil
}

func (c *Config) IsProdLike() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production" || c.AppEnv == "release"
}
