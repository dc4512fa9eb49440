// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the TOML configuration shared by the emg binaries.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Device selects and tunes the acquisition transport.
type Device struct {
	Port     string `toml:"port"` // serial device, e.g. /dev/ttyUSB0
	Baud     int    `toml:"baud"`
	Simulate bool   `toml:"simulate"` // built-in signal simulator instead of hardware
}

// Signal tunes the per-channel baseline/noise tracker.
type Signal struct {
	SampleRate      int     `toml:"sample_rate"` // Hz
	SeedSamples     int     `toml:"seed_samples"`
	SeedAlpha       float64 `toml:"seed_alpha"`
	Alpha           float64 `toml:"alpha"`
	NoiseAlpha      float64 `toml:"noise_alpha"`
	GateRatio       float64 `toml:"gate_ratio"`
	MinNoiseUV      float64 `toml:"min_noise_uv"` // 0 disables the sensor-noise prior
	BufferSecs      float64 `toml:"buffer_secs"`
	Recalibrate     bool    `toml:"recalibrate"`
	RecalIntervalMS int     `toml:"recal_interval_ms"`
}

// Thresholds are the classifier bands in multiples of channel noise.
type Thresholds struct {
	Weak      float64 `toml:"weak"`
	Good      float64 `toml:"good"`
	Strong    float64 `toml:"strong"`
	Optimal   float64 `toml:"optimal"`
	Crosstalk float64 `toml:"crosstalk"` // advisory band below Weak
}

// MQTT names the broker and the topics the binaries meet on.
type MQTT struct {
	Broker            string `toml:"broker"`
	TopicSamples      string `toml:"topic_samples"`
	TopicStatus       string `toml:"topic_status"`
	TopicIMU          string `toml:"topic_imu"`
	TopicRecording    string `toml:"topic_recording"`
	TopicRecordingCmd string `toml:"topic_recording_cmd"`
}

// Stream sets the publication cadences.
type Stream struct {
	SampleEvery  int `toml:"sample_every"`  // publish every Nth sample, in ticks
	StatusEvery  int `toml:"status_every"`  // status snapshot cadence, in ticks
	ConsoleEvery int `toml:"console_every"` // console line every Nth status message
}

// Recording configures session persistence.
type Recording struct {
	Dir        string `toml:"dir"`
	MaxImages  int    `toml:"max_images"`
	CatalogDir string `toml:"catalog_dir"` // session index directory, empty disables the catalog
}

// Camera configures the vision pipeline.
type Camera struct {
	Enabled       bool `toml:"enabled"`
	FPS           int  `toml:"fps"`
	Width         int  `toml:"width"`
	Height        int  `toml:"height"`
	DetectPresent int  `toml:"detect_present"` // run detector every Nth frame with a hand
	DetectAbsent  int  `toml:"detect_absent"`  // and every Nth without one
	LoadDelayMS   int  `toml:"load_delay_ms"`  // simulated model load time
}

// Web configures the browser monitor.
type Web struct {
	Bind string `toml:"bind"`
}

// Display configures the SSD1306 status panel.
type Display struct {
	I2CBus    string `toml:"i2c_bus"` // empty selects the first bus
	I2CAddr   uint16 `toml:"i2c_addr"`
	RefreshMS int    `toml:"refresh_ms"`
}

// Config holds all application configuration values.
type Config struct {
	Device     Device     `toml:"device"`
	Signal     Signal     `toml:"signal"`
	Thresholds Thresholds `toml:"thresholds"`
	MQTT       MQTT       `toml:"mqtt"`
	Stream     Stream     `toml:"stream"`
	Recording  Recording  `toml:"recording"`
	Camera     Camera     `toml:"camera"`
	Web        Web        `toml:"web"`
	Display    Display    `toml:"display"`
}

// Default returns the documented defaults for a 200 Hz, 8-channel device.
func Default() Config {
	return Config{
		Device: Device{
			Port: "/dev/ttyUSB0",
			Baud: 921600,
		},
		Signal: Signal{
			SampleRate:      200,
			SeedSamples:     500,
			SeedAlpha:       0.1,
			Alpha:           0.01,
			NoiseAlpha:      0.01,
			GateRatio:       1.5,
			MinNoiseUV:      0,
			BufferSecs:      5,
			Recalibrate:     true,
			RecalIntervalMS: 30000,
		},
		Thresholds: Thresholds{
			Weak:      3,
			Good:      5,
			Strong:    8,
			Optimal:   12,
			Crosstalk: 2.5,
		},
		MQTT: MQTT{
			Broker:            "tcp://localhost:1883",
			TopicSamples:      "emg/samples",
			TopicStatus:       "emg/status",
			TopicIMU:          "emg/imu",
			TopicRecording:    "emg/recording",
			TopicRecordingCmd: "emg/recording/cmd",
		},
		Stream: Stream{
			SampleEvery:  13,
			StatusEvery:  20,
			ConsoleEvery: 5,
		},
		Recording: Recording{
			Dir:        "recordings",
			MaxImages:  100,
			CatalogDir: "recordings",
		},
		Camera: Camera{
			Enabled:       true,
			FPS:           15,
			Width:         160,
			Height:        120,
			DetectPresent: 3,
			DetectAbsent:  6,
			LoadDelayMS:   1500,
		},
		Web: Web{
			Bind: ":8080",
		},
		Display: Display{
			I2CAddr:   0x3C,
			RefreshMS: 250,
		},
	}
}

// Load parses the TOML file at path on top of the defaults. A missing
// file is not an error; the defaults then apply as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks that all tunable values are inside their working ranges.
func (c *Config) validate() error {
	if c.Device.Baud <= 0 {
		return fmt.Errorf("device.baud must be positive, got %d", c.Device.Baud)
	}
	if !c.Device.Simulate && c.Device.Port == "" {
		return fmt.Errorf("device.port is required unless device.simulate is set")
	}
	if c.Signal.SampleRate <= 0 {
		return fmt.Errorf("signal.sample_rate must be positive, got %d", c.Signal.SampleRate)
	}
	if c.Signal.SeedSamples < 1 {
		return fmt.Errorf("signal.seed_samples must be at least 1, got %d", c.Signal.SeedSamples)
	}
	if c.Signal.SeedAlpha <= 0 || c.Signal.SeedAlpha > 1 {
		return fmt.Errorf("signal.seed_alpha must be in (0,1], got %g", c.Signal.SeedAlpha)
	}
	if c.Signal.Alpha <= 0 || c.Signal.Alpha > 1 {
		return fmt.Errorf("signal.alpha must be in (0,1], got %g", c.Signal.Alpha)
	}
	if c.Signal.NoiseAlpha <= 0 || c.Signal.NoiseAlpha > 1 {
		return fmt.Errorf("signal.noise_alpha must be in (0,1], got %g", c.Signal.NoiseAlpha)
	}
	if c.Signal.GateRatio <= 0 {
		return fmt.Errorf("signal.gate_ratio must be positive, got %g", c.Signal.GateRatio)
	}
	if c.Signal.MinNoiseUV < 0 {
		return fmt.Errorf("signal.min_noise_uv must not be negative, got %g", c.Signal.MinNoiseUV)
	}
	if c.Signal.BufferSecs <= 0 {
		return fmt.Errorf("signal.buffer_secs must be positive, got %g", c.Signal.BufferSecs)
	}
	if c.Thresholds.Weak <= 0 {
		return fmt.Errorf("thresholds.weak must be positive, got %g", c.Thresholds.Weak)
	}
	if c.Thresholds.Weak >= c.Thresholds.Good ||
		c.Thresholds.Good >= c.Thresholds.Strong ||
		c.Thresholds.Strong >= c.Thresholds.Optimal {
		return fmt.Errorf("thresholds must increase: weak < good < strong < optimal")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Stream.SampleEvery < 1 || c.Stream.StatusEvery < 1 || c.Stream.ConsoleEvery < 1 {
		return fmt.Errorf("stream cadences must be at least 1")
	}
	if c.Recording.Dir == "" {
		return fmt.Errorf("recording.dir is required")
	}
	if c.Recording.MaxImages < 1 {
		return fmt.Errorf("recording.max_images must be at least 1, got %d", c.Recording.MaxImages)
	}
	if c.Camera.FPS < 1 || c.Camera.FPS > 120 {
		return fmt.Errorf("camera.fps must be 1-120, got %d", c.Camera.FPS)
	}
	if c.Camera.DetectPresent < 1 || c.Camera.DetectAbsent < 1 {
		return fmt.Errorf("camera detector cadences must be at least 1")
	}
	return nil
}

// RecalIntervalTicks converts the recalibration interval to ticks.
func (c *Config) RecalIntervalTicks() int {
	return c.Signal.RecalIntervalMS * c.Signal.SampleRate / 1000
}
