// Package config loads the bus geometry for the Prism router.
//
// The geometry is fixed for the lifetime of the process: the ring buffer is
// never resized and channel counts never change while clients are attached.
// Editing the config file therefore requires a daemon restart; Watch exists
// so the daemon can tell the operator that.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

const configFileName = "prism.json"

// Config is the bus geometry and timing configuration.
type Config struct {
	// SampleRate is the nominal sample rate of the virtual device in Hz.
	SampleRate float64 `json:"sample_rate"`
	// BusChannels is the number of interleaved channels on the shared bus.
	// Channels 0-1 are reserved for the system mix.
	BusChannels int `json:"bus_channels"`
	// RingFrames is the capacity of the shared ring buffer in frames.
	RingFrames int `json:"ring_frames"`
	// FrameSize is the preferred host buffer size in frames per cycle.
	FrameSize int `json:"buffer_frame_size"`
	// SafetyOffset is the presentation latency reported to the host, in frames.
	SafetyOffset int `json:"safety_offset"`
	// ZeroTimestampPeriod is the zero-timestamp interval in frames.
	ZeroTimestampPeriod int `json:"zero_timestamp_period"`
}

// Default returns the stock geometry: a 64-channel bus backed by a 65536
// frame ring at 48 kHz.
func Default() Config {
	return Config{
		SampleRate:          48000,
		BusChannels:         64,
		RingFrames:          65536,
		FrameSize:           1024,
		SafetyOffset:        256,
		ZeroTimestampPeriod: 1024,
	}
}

// Path returns the config file path inside dir.
func Path(dir string) string { return filepath.Join(dir, configFileName) }

// Load reads the config from dir. Missing file yields defaults; a corrupt
// file is logged and also yields defaults, so a bad edit can never keep the
// daemon from starting.
func Load(dir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config: corrupt JSON config, using defaults", "path", Path(dir), "err", err)
		return Default(), nil
	}

	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", Path(dir), err)
	}
	return cfg, nil
}

// Validate checks the geometry invariants the engine depends on.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate)
	}
	if c.BusChannels < 4 || c.BusChannels%2 != 0 {
		return fmt.Errorf("bus_channels must be an even number >= 4, got %d", c.BusChannels)
	}
	if c.RingFrames <= 0 {
		return fmt.Errorf("ring_frames must be positive, got %d", c.RingFrames)
	}
	if c.FrameSize <= 0 || c.FrameSize > c.RingFrames {
		return fmt.Errorf("buffer_frame_size must be in 1..%d, got %d", c.RingFrames, c.FrameSize)
	}
	if c.ZeroTimestampPeriod <= 0 {
		return fmt.Errorf("zero_timestamp_period must be positive, got %d", c.ZeroTimestampPeriod)
	}
	return nil
}

// Watch blocks until ctx is done, logging a warning whenever the config file
// changes on disk. Geometry cannot be applied to a live engine, so the only
// action is to tell the operator a restart is needed.
func Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != configFileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				slog.Warn("config: file changed on disk; restart prismd to apply", "path", ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watch error", "err", err)
		case <-ctx.Done():
			return nil
		}
	}
}
