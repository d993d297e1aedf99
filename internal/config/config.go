package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppPort  string `validate:"required"`
	LogLevel string

	DatabaseDriver string `validate:"oneof=sqlite postgres"`
	DatabaseDSN    string `validate:"required"`

	Storage StorageConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	CacheTTL      time.Duration `validate:"gte=0"`

	RabbitMQURL string
	OrphanQueue string `validate:"required"`

	ReplaceOrder      string `validate:"omitempty,oneof=delete-then-upload upload-then-delete"`
	UploadConcurrency int    `validate:"gte=0"`
	MaxPageSize       int    `validate:"gt=0"`
	MaxUploadBytes    int64  `validate:"gt=0"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Driver    string `validate:"oneof=memory minio s3 gcs"`
	Bucket    string `validate:"required"`
	PublicURL string
	Prefix    string

	MinioEndpoint  string `validate:"required_if=Driver minio"`
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	S3Region          string `validate:"required_if=Driver s3"`
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:katalog.db?cache=shared")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("STORAGE_BUCKET", "products")
	v.SetDefault("STORAGE_PREFIX", "products")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "1m")
	v.SetDefault("ORPHAN_QUEUE", "asset_orphan_queue")
	v.SetDefault("REPLACE_ORDER", "delete-then-upload")
	v.SetDefault("UPLOAD_CONCURRENCY", 4)
	v.SetDefault("MAX_PAGE_SIZE", 100)
	v.SetDefault("MAX_UPLOAD_BYTES", 5<<20)
}

// Load reads an optional dotenv file, then the environment, and validates the result.
// A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		Storage: StorageConfig{
			Driver:            v.GetString("STORAGE_DRIVER"),
			Bucket:            v.GetString("STORAGE_BUCKET"),
			PublicURL:         v.GetString("STORAGE_PUBLIC_URL"),
			Prefix:            v.GetString("STORAGE_PREFIX"),
			MinioEndpoint:     v.GetString("MINIO_ENDPOINT"),
			MinioAccessKey:    v.GetString("MINIO_ACCESS_KEY"),
			MinioSecretKey:    v.GetString("MINIO_SECRET_KEY"),
			MinioUseSSL:       v.GetBool("MINIO_USE_SSL"),
			S3Region:          v.GetString("S3_REGION"),
			S3Endpoint:        v.GetString("S3_ENDPOINT"),
			S3AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			S3SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			S3UsePathStyle:    v.GetBool("S3_USE_PATH_STYLE"),
		},
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		CacheTTL:          v.GetDuration("CACHE_TTL"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		OrphanQueue:       v.GetString("ORPHAN_QUEUE"),
		ReplaceOrder:      v.GetString("REPLACE_ORDER"),
		UploadConcurrency: v.GetInt("UPLOAD_CONCURRENCY"),
		MaxPageSize:       v.GetInt("MAX_PAGE_SIZE"),
		MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
