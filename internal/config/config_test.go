package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("MONDAY_API_TOKEN", "")
	t.Setenv("MONDAY_BOARD_ID", "123")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONDAY_API_TOKEN")
}

func TestLoadRequiresBoardID(t *testing.T) {
	t.Setenv("MONDAY_API_TOKEN", "tok")
	t.Setenv("MONDAY_BOARD_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONDAY_BOARD_ID")
}

func TestLoadRejectsNonNumericBoardID(t *testing.T) {
	t.Setenv("MONDAY_API_TOKEN", "tok")
	t.Setenv("MONDAY_BOARD_ID", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONDAY_BOARD_ID")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONDAY_API_TOKEN", "tok")
	t.Setenv("MONDAY_BOARD_ID", "123")
	t.Setenv("MONDAY_API_URL", "")
	t.Setenv("SOCKS_PROXY_TYPE", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(123), cfg.MondayBoardID)
	assert.Equal(t, "https://api.monday.com/v2", cfg.MondayAPIURL)
	assert.Equal(t, "socks5", cfg.ProxyType)
	assert.Equal(t, "gateway.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadReadsProxySettings(t *testing.T) {
	t.Setenv("MONDAY_API_TOKEN", "tok")
	t.Setenv("MONDAY_BOARD_ID", "123")
	t.Setenv("SOCKS_PROXY_TYPE", "socks4")
	t.Setenv("SOCKS_PROXY_HOST", "proxy.local")
	t.Setenv("SOCKS_PROXY_PORT", "1080")
	t.Setenv("SOCKS_PROXY_USERNAME", "u")
	t.Setenv("SOCKS_PROXY_PASSWORD", "p")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "socks4", cfg.ProxyType)
	assert.Equal(t, "proxy.local", cfg.ProxyHost)
	assert.Equal(t, "1080", cfg.ProxyPort)
	assert.Equal(t, "u", cfg.ProxyUsername)
	assert.Equal(t, "p", cfg.ProxyPassword)
}
