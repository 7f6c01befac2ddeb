package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campuscnr/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.Load(v)

	require.NoError(t, err)
	assert.Equal(t, config.DefaultBaseURL, cfg.URLs.Base)
	assert.Equal(t, config.DefaultNoticeURL, cfg.URLs.Notice)
	assert.Empty(t, cfg.URLs.NoticeAPI)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, 180*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 600*time.Millisecond, cfg.Delays.Notice)
	assert.Equal(t, 2*time.Second, cfg.Delays.Cooldown)
	assert.Equal(t, "@every 6h", cfg.Schedule)
	assert.Equal(t, filepath.Join("data", "data.db"), cfg.DBPath())
}

func TestLoad_Overrides(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("storage.data_dir", "/var/lib/campuscnr")
	v.Set("http.max_retries", 5)
	v.Set("delays.notice", "1s")

	cfg, err := config.Load(v)

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/campuscnr", cfg.Storage.DataDir)
	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.Equal(t, time.Second, cfg.Delays.Notice)
	assert.Equal(t, filepath.Join("/var/lib/campuscnr", "calendars"), cfg.CalendarDir())
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "missing base URL", key: "urls.base", value: ""},
		{name: "missing notice URL", key: "urls.notice", value: ""},
		{name: "missing data dir", key: "storage.data_dir", value: ""},
		{name: "negative retries", key: "http.max_retries", value: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			config.SetDefaults(v)
			v.Set(tt.key, tt.value)

			_, err := config.Load(v)

			assert.Error(t, err)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("storage.data_dir", filepath.Join(t.TempDir(), "data"))

	cfg, err := config.Load(v)
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{
		cfg.CalendarDir(),
		cfg.NoticeDir(),
		filepath.Join(cfg.ExamDir(), "day"),
		filepath.Join(cfg.ExamDir(), "evn"),
		filepath.Join(cfg.SuppExamDir(), "day"),
		filepath.Join(cfg.SuppExamDir(), "evn"),
	} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}

	// Idempotent.
	assert.NoError(t, cfg.EnsureDirs())
}
