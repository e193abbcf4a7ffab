package main

import (
	"chat-guard/internal"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	DebugPort      int    `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`

	ClassifierMode           string        `env:"CLASSIFIER_MODE,default=http" validate:"oneof=http lexicon"`
	ClassifierURL            string        `env:"CLASSIFIER_URL" validate:"omitempty,url"`
	ClassifierAttemptTimeout time.Duration `env:"CLASSIFIER_ATTEMPT_TIMEOUT,default=2s" validate:"gt=0"`
	ClassifierMaxAttempts    int           `env:"CLASSIFIER_MAX_ATTEMPTS,default=3" validate:"min=1,max=10"`
	ClassifierBaseBackoff    time.Duration `env:"CLASSIFIER_BASE_BACKOFF,default=100ms" validate:"gte=0"`
	ClassifierMaxBackoff     time.Duration `env:"CLASSIFIER_MAX_BACKOFF,default=1s" validate:"gte=0"`
	// Comma separated, empty keeps the classifier defaults
	ClassifierFlaggedLabels string `env:"CLASSIFIER_FLAGGED_LABELS"`

	FallbackPolicy            string        `env:"FALLBACK_POLICY,default=fail-open"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	AuthorQueueDepth          int           `env:"AUTHOR_QUEUE_DEPTH,default=8" validate:"min=1"`
	MaxContentLength          int           `env:"MAX_CONTENT_LENGTH,default=2000" validate:"min=1"`
	SubscriberBufferSize      int           `env:"SUBSCRIBER_BUFFER_SIZE,default=256" validate:"min=1"`
	SlowSubscriberTimeout     time.Duration `env:"SLOW_SUBSCRIBER_TIMEOUT,default=5s" validate:"gt=0"`
	OutboxBufferSize          int           `env:"OUTBOX_BUFFER_SIZE,default=1024" validate:"min=1"`
	SinkTimeout               time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	HistoryLimit              int           `env:"HISTORY_LIMIT,default=200" validate:"min=1"`
	MetricInterval            time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gte=0"`
	LowCapacityThreshold      int           `env:"LOW_CAPACITY_THRESHOLD,default=10" validate:"min=0"`
	LatencyThreshold          time.Duration `env:"LATENCY_THRESHOLD,default=500ms" validate:"gt=0"`
	HealthInterval            time.Duration `env:"HEALTH_INTERVAL,default=15s" validate:"gt=0"`

	// Empty disables the operator methods (audit search, remediation)
	OperatorSecret string `env:"OPERATOR_SECRET" validate:"omitempty,min=32"`
	// OTLP/HTTP collector, empty disables tracing
	OtelEndpoint string `env:"OTEL_ENDPOINT" validate:"omitempty,url"`
}

// loadConfig decodes and checks the configuration held by environ.
func loadConfig(environ []string) (Config, error) {
	var config Config
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, err
	}
	if err := env.Unmarshal(es, &config); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(config); err != nil {
		return Config{}, err
	}
	if config.ClassifierMode == "http" && config.ClassifierURL == "" {
		return Config{}, fmt.Errorf("CLASSIFIER_URL is required when CLASSIFIER_MODE is http")
	}
	if _, err := internal.ParseFallbackPolicy(config.FallbackPolicy); err != nil {
		return Config{}, err
	}
	if _, err := internal.CharacterRune(config.ModerationCharReplacement); err != nil {
		return Config{}, err
	}
	return config, nil
}
