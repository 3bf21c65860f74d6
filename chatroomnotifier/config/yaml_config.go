package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type YamlFirestoreConfig struct {
	UsersCollection     string `yaml:"users_collection"`
	ChatroomsCollection string `yaml:"chatrooms_collection"`
	TokensCollection    string `yaml:"tokens_collection"`
}

type YamlAPNSConfig struct {
	KeyID     string `yaml:"key_id"`
	TeamID    string `yaml:"team_id"`
	BundleID  string `yaml:"bundle_id"`
	P8KeyFile string `yaml:"p8_key_file"`
}

type YamlPushConfig struct {
	Transport           string         `yaml:"transport"`
	ClickAction         string         `yaml:"click_action"`
	IncludeLegacyTokens bool           `yaml:"include_legacy_tokens"`
	CredentialsFile     string         `yaml:"credentials_file"`
	APNS                YamlAPNSConfig `yaml:"apns"`
}

type YamlMessagesConfig struct {
	Title          string `yaml:"title"`
	UnknownSender  string `yaml:"unknown_sender"`
	Emoticon       string `yaml:"emoticon"`
	UnknownMessage string `yaml:"unknown_message"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string              `yaml:"project_id"`
	ListenAddr             string              `yaml:"listen_addr"`
	TopicID                string              `yaml:"topic_id"`
	SubscriptionID         string              `yaml:"subscription_id"`
	SubscriptionDLQTopicID string              `yaml:"subscription_dlq_topic_id"`
	IdentityServiceURL     string              `yaml:"identity_service_url"`
	CorsConfig             YamlCorsConfig      `yaml:"cors"`
	RedisConfig            YamlRedisConfig     `yaml:"redis"`
	FirestoreConfig        YamlFirestoreConfig `yaml:"firestore"`
	PushConfig             YamlPushConfig      `yaml:"push"`
	MessagesConfig         YamlMessagesConfig  `yaml:"messages"`
	NumPipelineWorkers     int                 `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		TopicID:            baseCfg.TopicID,
		SubscriptionID:     baseCfg.SubscriptionID,
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      time.Duration(baseCfg.RedisConfig.TTLSeconds) * time.Second,
		},
		Firestore: FirestoreConfig{
			UsersCollection:     baseCfg.FirestoreConfig.UsersCollection,
			ChatroomsCollection: baseCfg.FirestoreConfig.ChatroomsCollection,
			TokensCollection:    baseCfg.FirestoreConfig.TokensCollection,
		},
		Push: PushConfig{
			Transport:           baseCfg.PushConfig.Transport,
			ClickAction:         baseCfg.PushConfig.ClickAction,
			IncludeLegacyTokens: baseCfg.PushConfig.IncludeLegacyTokens,
			CredentialsFile:     baseCfg.PushConfig.CredentialsFile,
			APNS: APNSConfig{
				KeyID:     baseCfg.PushConfig.APNS.KeyID,
				TeamID:    baseCfg.PushConfig.APNS.TeamID,
				BundleID:  baseCfg.PushConfig.APNS.BundleID,
				P8KeyFile: baseCfg.PushConfig.APNS.P8KeyFile,
			},
		},
		Messages: MessagesConfig{
			Title:          baseCfg.MessagesConfig.Title,
			UnknownSender:  baseCfg.MessagesConfig.UnknownSender,
			Emoticon:       baseCfg.MessagesConfig.Emoticon,
			UnknownMessage: baseCfg.MessagesConfig.UnknownMessage,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"push_transport", cfg.Push.Transport,
	)

	return cfg, nil
}
