package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every deployment-time decision, loaded once at startup.
// Backend selection follows from field presence: a non-empty DatabaseURL
// selects the Postgres store, complete S3 credentials select the cloud blob
// backend; otherwise both fall back to the local data file.
type Config struct {
	Port        string `envconfig:"PORT" default:"8083"`
	Environment string `envconfig:"ENVIRONMENT" default:"dev"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DataFile    string `envconfig:"DATA_FILE" default:"data.json"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"studygroups-uploads"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"studygroups.events"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`

	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"5s"`
	UploadTimeout  time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"30s"`

	DebugRoutes bool `envconfig:"DEBUG_ROUTES" default:"false"`
}

// Load reads .env when present and resolves the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsePostgres reports whether the durable store backend is selected.
func (c Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// UseS3 reports whether the cloud blob backend is selected.
func (c Config) UseS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}
