package model

import "time"

// ================ Config ================
type APIConfig struct {
	BaseURL        string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:5000"`
	ReviewsBaseURL string        `envconfig:"REVIEWS_BASE_URL"`
	Timeout        time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
}

type StorageConfig struct {
	Driver    string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	Path      string `envconfig:"STORAGE_PATH"`
	Namespace string `envconfig:"STORAGE_NAMESPACE" default:"shortlist"`
}

type ReviewsConfig struct {
	RetryInitial     time.Duration `envconfig:"REVIEWS_RETRY_INITIAL" default:"3s"`
	RetryMaxInterval time.Duration `envconfig:"REVIEWS_RETRY_MAX_INTERVAL" default:"30s"`
	RetryMaxTries    uint          `envconfig:"REVIEWS_RETRY_MAX_TRIES" default:"10"`
	CacheTTL         time.Duration `envconfig:"REVIEWS_CACHE_TTL" default:"10m"`
}

type TracingConfig struct {
	Enabled     bool   `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"shortlist-client"`
}
