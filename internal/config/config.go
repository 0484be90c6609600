// Package config содержит логику чтения конфигурации сервиса Kuriftu Rewards.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса Kuriftu Rewards.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	ChatAPIAddress string `env:"CHAT_API_ADDRESS"`
	ChatAPIKey     string `env:"CHAT_API_KEY"`
	AuthSecret     string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envChatAddress := cfg.ChatAPIAddress
	envChatKey := cfg.ChatAPIKey
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", ":3000", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ChatAPIAddress, "c", "", "generative chat API address")
	flag.StringVar(&cfg.ChatAPIKey, "k", "", "generative chat API key")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envChatAddress != "" {
		cfg.ChatAPIAddress = envChatAddress
	}
	if envChatKey != "" {
		cfg.ChatAPIKey = envChatKey
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = ":3000"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "kuriftu-rewards-secret"
	}

	return cfg, nil
}
