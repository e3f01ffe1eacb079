package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/bot")
	t.Setenv("ADMINS", "1, 2,3")
	t.Setenv("MAX_FILE_SIZE_MB", "50")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.BotToken)
	require.Equal(t, []int64{1, 2, 3}, cfg.Admins)
	require.Equal(t, 50, cfg.MaxFileSizeMB)
	require.Equal(t, 1, cfg.DailySeparationLimit)
	require.Equal(t, "user_data", cfg.BaseDir)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/bot")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_BadAdminID(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/bot")
	t.Setenv("ADMINS", "1,notanumber")

	_, err := Load()
	require.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{Admins: []int64{10, 20}}
	require.True(t, cfg.IsAdmin(10))
	require.False(t, cfg.IsAdmin(30))
}
