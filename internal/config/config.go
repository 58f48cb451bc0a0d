package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	MondayAPIToken   string
	MondayBoardID    int64
	MondayAPIURL     string
	MondayAccountURL string

	ProxyType     string
	ProxyHost     string
	ProxyPort     string
	ProxyUsername string
	ProxyPassword string

	APIKey  string
	DBPath  string
	GinMode string
	Port    string
}

func Load() (*Config, error) {
	cfg := &Config{
		MondayAPIToken:   os.Getenv("MONDAY_API_TOKEN"),
		MondayAPIURL:     getEnv("MONDAY_API_URL", "https://api.monday.com/v2"),
		MondayAccountURL: getEnv("MONDAY_ACCOUNT_URL", "https://your-account.monday.com"),
		ProxyType:        getEnv("SOCKS_PROXY_TYPE", "socks5"),
		ProxyHost:        os.Getenv("SOCKS_PROXY_HOST"),
		ProxyPort:        os.Getenv("SOCKS_PROXY_PORT"),
		ProxyUsername:    os.Getenv("SOCKS_PROXY_USERNAME"),
		ProxyPassword:    os.Getenv("SOCKS_PROXY_PASSWORD"),
		APIKey:           os.Getenv("GATEWAY_API_KEY"),
		DBPath:           getEnv("DB_PATH", "gateway.db"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		Port:             getEnv("PORT", "8080"),
	}

	if cfg.MondayAPIToken == "" {
		return nil, fmt.Errorf("missing required environment variable: MONDAY_API_TOKEN")
	}

	rawBoardID := os.Getenv("MONDAY_BOARD_ID")
	if rawBoardID == "" {
		return nil, fmt.Errorf("missing required environment variable: MONDAY_BOARD_ID")
	}
	boardID, err := strconv.ParseInt(rawBoardID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MONDAY_BOARD_ID %q: %w", rawBoardID, err)
	}
	cfg.MondayBoardID = boardID

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
