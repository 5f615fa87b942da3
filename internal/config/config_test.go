package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vetcare/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadChannels_Defaults(t *testing.T) {
	cfg, err := LoadChannels()
	require.NoError(t, err)

	assert.False(t, cfg.Chat.Enabled)
	assert.False(t, cfg.SMTP.Enabled)
	assert.Equal(t, "https://graph.facebook.com/v19.0", cfg.Chat.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Chat.Timeout)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadChannels_Enabled(t *testing.T) {
	t.Setenv("CHAT_ENABLED", "true")
	t.Setenv("CHAT_API_URL", "https://chat.example.com/v1")
	t.Setenv("CHAT_PHONE_NUMBER_ID", "1234567890")
	t.Setenv("CHAT_ACCESS_TOKEN", "secret-token")
	t.Setenv("CHAT_RPS", "2.5")
	t.Setenv("SMTP_ENABLED", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_FROM", "clinic@example.com")

	cfg, err := LoadChannels()
	require.NoError(t, err)

	chat := cfg.Chat.ClientConfig()
	assert.Equal(t, "https://chat.example.com/v1", chat.APIURL)
	assert.Equal(t, "1234567890", chat.PhoneNumberID)
	assert.Equal(t, "secret-token", chat.AccessToken)
	assert.Equal(t, "en", chat.LanguageCode)
	assert.InDelta(t, 2.5, chat.RequestsPerSecond, 0.0001)

	mailer := cfg.SMTP.MailerConfig()
	assert.Equal(t, "smtp.example.com", mailer.Host)
	assert.Equal(t, 2525, mailer.Port)
	assert.Equal(t, "clinic@example.com", mailer.From)
	assert.Equal(t, 15*time.Second, mailer.Timeout)
}

func TestLoadChannels_MissingCredentials(t *testing.T) {
	t.Setenv("CHAT_ENABLED", "true")
	t.Setenv("SMTP_ENABLED", "true")

	_, err := LoadChannels()
	require.Error(t, err)
	for _, key := range []string{"CHAT_PHONE_NUMBER_ID", "CHAT_ACCESS_TOKEN", "SMTP_HOST", "SMTP_FROM"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadChannels_BadValue(t *testing.T) {
	t.Setenv("SMTP_PORT", "smtp")

	_, err := LoadChannels()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp")
}

func TestLoadFeedingTable(t *testing.T) {
	t.Run("empty path uses built-in table", func(t *testing.T) {
		table, err := LoadFeedingTable("")
		require.NoError(t, err)
		assert.Equal(t, reminder.DefaultFeedingTable, table)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "feeding.yaml")
		content := "feeding_table:\n  - {weight_kg: 10, grams: 175}\n  - {weight_kg: 5, grams: 100}\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		table, err := LoadFeedingTable(path)
		require.NoError(t, err)
		require.Len(t, table, 2)
		assert.Equal(t, 5.0, table[0].WeightKg)
		assert.InDelta(t, 137.5, table.DailyGrams(7.5), 0.001)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFeedingTable(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "feeding.yaml")
		require.NoError(t, os.WriteFile(path, []byte("feeding_table: []\n"), 0o600))

		_, err := LoadFeedingTable(path)
		require.Error(t, err)
	})
}
