package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/dealflow/mailsync/internal/logger"
	"github.com/dealflow/mailsync/internal/tracing"
)

type Config struct {
	AppConfig              *AppConfig
	Logger                 *logger.Config
	Tracing                *tracing.JaegerConfig
	MailsyncDatabaseConfig *MailsyncDatabaseConfig
	ProviderConfig         *ProviderConfig
	AIConfig               *AIConfig
	R2StorageConfig        *R2StorageConfig
	EventsConfig           *EventsConfig
	SyncConfig             *SyncConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:              &AppConfig{},
		Logger:                 &logger.Config{},
		Tracing:                &tracing.JaegerConfig{},
		MailsyncDatabaseConfig: &MailsyncDatabaseConfig{},
		ProviderConfig:         &ProviderConfig{},
		AIConfig:               &AIConfig{},
		R2StorageConfig:        &R2StorageConfig{},
		EventsConfig:           &EventsConfig{},
		SyncConfig:             &SyncConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailsync config: %v", err)
	}

	return config, nil
}
