package clipring

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/cqkv/clipring/store"
)

const (
	DefaultBitRate             = 6_000_000
	DefaultFrameRate           = 15
	DefaultDesiredSpanSec      = 30
	DefaultKeyframeIntervalSec = 1
	DefaultWidth               = 1280
	DefaultHeight              = 720
	DefaultMaxRecordSec        = 15
)

// Config sizes the buffer for a target bit rate and span. Keys missing from a
// config file keep their defaults.
type Config struct {
	BitRate             int    `toml:"bit_rate"`
	FrameRate           int    `toml:"frame_rate"`
	DesiredSpanSec      int    `toml:"desired_span_sec"`
	KeyframeIntervalSec int    `toml:"keyframe_interval_sec"`
	Width               int    `toml:"width"`
	Height              int    `toml:"height"`
	OverflowPolicy      string `toml:"overflow_policy"`
	MaxRecordSec        int    `toml:"max_record_sec"`
	OutputDir           string `toml:"output_dir"`
}

func DefaultConfig() Config {
	return Config{
		BitRate:             DefaultBitRate,
		FrameRate:           DefaultFrameRate,
		DesiredSpanSec:      DefaultDesiredSpanSec,
		KeyframeIntervalSec: DefaultKeyframeIntervalSec,
		Width:               DefaultWidth,
		Height:              DefaultHeight,
		OverflowPolicy:      store.PolicyReject.String(),
		MaxRecordSec:        DefaultMaxRecordSec,
		OutputDir:           os.TempDir(),
	}
}

// fileConfig tells keys set in a file apart from keys left out, so an
// explicit zero such as max_record_sec = 0 survives.
type fileConfig struct {
	BitRate             *int    `toml:"bit_rate"`
	FrameRate           *int    `toml:"frame_rate"`
	DesiredSpanSec      *int    `toml:"desired_span_sec"`
	KeyframeIntervalSec *int    `toml:"keyframe_interval_sec"`
	Width               *int    `toml:"width"`
	Height              *int    `toml:"height"`
	OverflowPolicy      *string `toml:"overflow_policy"`
	MaxRecordSec        *int    `toml:"max_record_sec"`
	OutputDir           *string `toml:"output_dir"`
}

// LoadConfig reads a TOML file. Missing keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	cfg := DefaultConfig()
	fc.applyTo(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) applyTo(c *Config) {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&c.BitRate, fc.BitRate)
	setInt(&c.FrameRate, fc.FrameRate)
	setInt(&c.DesiredSpanSec, fc.DesiredSpanSec)
	setInt(&c.KeyframeIntervalSec, fc.KeyframeIntervalSec)
	setInt(&c.Width, fc.Width)
	setInt(&c.Height, fc.Height)
	setString(&c.OverflowPolicy, fc.OverflowPolicy)
	setInt(&c.MaxRecordSec, fc.MaxRecordSec)
	setString(&c.OutputDir, fc.OutputDir)
}

// Validate checks that the buffer can hold at least two full GOPs.
func (c Config) Validate() error {
	switch {
	case c.BitRate <= 0 || c.FrameRate <= 0 || c.DesiredSpanSec <= 0 || c.KeyframeIntervalSec <= 0:
		return fmt.Errorf("%w: bit rate, frame rate, span and keyframe interval must be positive", ErrConfig)
	case c.Width < 0 || c.Height < 0 || c.MaxRecordSec < 0:
		return fmt.Errorf("%w: negative size or record limit", ErrConfig)
	case c.DesiredSpanSec < 2*c.KeyframeIntervalSec:
		return fmt.Errorf("%w: span %ds is shorter than two GOPs of %ds", ErrConfig, c.DesiredSpanSec, c.KeyframeIntervalSec)
	}
	if _, ok := store.ParseOverflowPolicy(c.OverflowPolicy); !ok {
		return fmt.Errorf("%w: unknown overflow policy %q", ErrConfig, c.OverflowPolicy)
	}
	if int64(c.BitRate)*int64(c.DesiredSpanSec)/8 > math.MaxUint32 {
		return fmt.Errorf("%w: arena over 4GiB", ErrConfig)
	}
	return nil
}

// ArenaCapacity is the number of payload bytes the span needs at BitRate.
func (c Config) ArenaCapacity() uint32 {
	return uint32(int64(c.BitRate) * int64(c.DesiredSpanSec) / 8)
}

// MetaSlots over-provisions descriptors twice over the expected frame count.
func (c Config) MetaSlots() int {
	return c.FrameRate * c.DesiredSpanSec * 2
}

func (c Config) Policy() store.OverflowPolicy {
	p, _ := store.ParseOverflowPolicy(c.OverflowPolicy)
	return p
}

func (c Config) MaxRecord() time.Duration {
	return time.Duration(c.MaxRecordSec) * time.Second
}

func (c Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
