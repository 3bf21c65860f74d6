package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	TransportFCM  = "fcm"
	TransportAPNS = "apns"

	DefaultClickAction = ".ChatActivity"
	DefaultRedisTTL    = time.Minute
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// FirestoreConfig names the collections. Empty values use the store defaults.
type FirestoreConfig struct {
	UsersCollection     string
	ChatroomsCollection string
	TokensCollection    string
}

type APNSConfig struct {
	KeyID     string
	TeamID    string
	BundleID  string
	P8KeyFile string
}

type PushConfig struct {
	Transport           string
	ClickAction         string
	IncludeLegacyTokens bool
	// CredentialsFile is a service account JSON for Firebase. Empty means ADC.
	CredentialsFile string
	APNS            APNSConfig
}

// MessagesConfig overrides the user-facing notification texts.
type MessagesConfig struct {
	Title          string
	UnknownSender  string
	Emoticon       string
	UnknownMessage string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	IdentityServiceURL     string

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Firestore  FirestoreConfig
	Push       PushConfig
	Messages   MessagesConfig

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	overrideString("PROJECT_ID", &cfg.ProjectID, logger)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	overrideString("TOPIC_ID", &cfg.TopicID, logger)
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	overrideString("SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID, logger)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	overrideString("IDENTITY_SERVICE_URL", &cfg.IdentityServiceURL, logger)

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_TTL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Redis.TTL = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Push Overrides
	overrideString("PUSH_TRANSPORT", &cfg.Push.Transport, logger)
	overrideString("PUSH_CLICK_ACTION", &cfg.Push.ClickAction, logger)
	overrideString("PUSH_CREDENTIALS_FILE", &cfg.Push.CredentialsFile, logger)
	if val := os.Getenv("PUSH_INCLUDE_LEGACY_TOKENS"); val != "" {
		if include, err := strconv.ParseBool(val); err == nil {
			cfg.Push.IncludeLegacyTokens = include
		}
	}
	overrideString("APNS_KEY_ID", &cfg.Push.APNS.KeyID, logger)
	overrideString("APNS_TEAM_ID", &cfg.Push.APNS.TeamID, logger)
	overrideString("APNS_BUNDLE_ID", &cfg.Push.APNS.BundleID, logger)
	overrideString("APNS_P8_KEY_FILE", &cfg.Push.APNS.P8KeyFile, logger)

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Push.ClickAction == "" {
		cfg.Push.ClickAction = DefaultClickAction
	}

	cfg.Push.Transport = strings.ToLower(cfg.Push.Transport)
	switch cfg.Push.Transport {
	case "":
		cfg.Push.Transport = TransportFCM
	case TransportFCM:
	case TransportAPNS:
		a := cfg.Push.APNS
		if a.KeyID == "" || a.TeamID == "" || a.BundleID == "" || a.P8KeyFile == "" {
			return nil, fmt.Errorf("apns transport requires key_id, team_id, bundle_id and p8_key_file")
		}
	default:
		return nil, fmt.Errorf("unknown push transport %q (want %q or %q)", cfg.Push.Transport, TransportFCM, TransportAPNS)
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func overrideString(key string, dst *string, logger *slog.Logger) {
	if val := os.Getenv(key); val != "" {
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = val
	}
}
