package clipring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqkv/clipring/store"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(22_500_000), cfg.ArenaCapacity())
	assert.Equal(t, 900, cfg.MetaSlots())
	assert.Equal(t, store.PolicyReject, cfg.Policy())
	assert.Equal(t, 15*time.Second, cfg.MaxRecord())
	assert.Equal(t, time.Second/15, cfg.FrameInterval())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero bit rate", func(c *Config) { c.BitRate = 0 }},
		{"negative frame rate", func(c *Config) { c.FrameRate = -1 }},
		{"span shorter than two gops", func(c *Config) { c.DesiredSpanSec, c.KeyframeIntervalSec = 3, 2 }},
		{"negative width", func(c *Config) { c.Width = -1 }},
		{"unknown policy", func(c *Config) { c.OverflowPolicy = "drop-newest" }},
		{"arena too big", func(c *Config) { c.BitRate, c.DesiredSpanSec = 1 << 30, 3600 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}

	cfg := DefaultConfig()
	cfg.DesiredSpanSec, cfg.KeyframeIntervalSec = 4, 2
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clipring.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
bit_rate = 2000000
desired_span_sec = 10
overflow_policy = "evict"
output_dir = "/var/clips"
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2_000_000, cfg.BitRate)
	assert.Equal(t, 10, cfg.DesiredSpanSec)
	assert.Equal(t, store.PolicyEvictOldest, cfg.Policy())
	assert.Equal(t, "/var/clips", cfg.OutputDir)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultFrameRate, cfg.FrameRate)
	assert.Equal(t, DefaultWidth, cfg.Width)
	assert.Equal(t, uint32(2_500_000), cfg.ArenaCapacity())

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("bit_rate = ["), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("desired_span_sec = 1\n"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLoadConfig_ExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipring.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_record_sec = 0\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxRecordSec)
	assert.Equal(t, time.Duration(0), cfg.MaxRecord())
	assert.Equal(t, DefaultBitRate, cfg.BitRate)

	require.NoError(t, os.WriteFile(path, []byte("frame_rate = 0\n"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrConfig)
}
