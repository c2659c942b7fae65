package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting, populated from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`

	// Model artifacts. The base directory always exists; retrained
	// snapshots (model_YYYYMMDD_HHMMSS) live under the retrain root and
	// win over the base artifact when present.
	ModelBasePath    string `envconfig:"MODEL_BASE_PATH" default:"ai_models"`
	RetrainModelRoot string `envconfig:"RETRAIN_MODEL_ROOT" default:"ai_models_retrained"`

	// Scoring worker subprocess.
	WorkerCommand         string `envconfig:"WORKER_COMMAND" default:"scoreworker"`
	ScoringTimeoutSeconds int    `envconfig:"SCORING_TIMEOUT_SECONDS" default:"300"`

	// Per-review labeling thresholds on the 0-100 trust score. Two
	// threshold sets exist historically (80/40 in an older revision);
	// 76/36 is the canonical pair.
	LabelHighThreshold float64 `envconfig:"LABEL_HIGH_THRESHOLD" default:"76"`
	LabelLowThreshold  float64 `envconfig:"LABEL_LOW_THRESHOLD" default:"36"`

	// Crawler.
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"musinsa"`
	MusinsaBaseURL   string `envconfig:"MUSINSA_BASE_URL" default:"https://goods.musinsa.com"`
	CrawlMaxReviews  int    `envconfig:"CRAWL_MAX_REVIEWS" default:"500"`

	// External text-generation service for summaries and per-review
	// reasons. Empty base URL means template fallback only.
	SummarizerBaseURL    string `envconfig:"SUMMARIZER_BASE_URL"`
	SummarizerAPIKey     string `envconfig:"SUMMARIZER_API_KEY"`
	SummarizerMaxReviews int    `envconfig:"SUMMARIZER_MAX_REVIEWS" default:"50"`

	// Retraining batch job.
	RetrainCron    string `envconfig:"RETRAIN_CRON" default:"0 3 * * *"`
	TrainerCommand string `envconfig:"TRAINER_COMMAND"`

	// Optional S3 artifact store. When the bucket is empty the local
	// filesystem is the only artifact source.
	ModelS3Bucket   string `envconfig:"MODEL_S3_BUCKET"`
	ModelS3Endpoint string `envconfig:"MODEL_S3_ENDPOINT"`
	ModelS3Key      string `envconfig:"MODEL_S3_KEY"`
	ModelS3Secret   string `envconfig:"MODEL_S3_SECRET"`
	ModelS3Region   string `envconfig:"MODEL_S3_REGION" default:"us-east-1"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
