// Package config loads and republishes the kernel *process* configuration
// (log level, scan defaults, storage backend, watchdog thresholds). This is
// distinct from the card configuration envelope handled by the commit
// pipeline in package kernel (commit.go, config_lifecycle.go); that
// payload is operator-authored and is read from the kernel's storage
// slots, not from this settings file.
package config

import (
	"context"
	"fmt"
	"os"

	"advancedtimer/bus"
	"advancedtimer/x/klog"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const topicPrefix = "config"

// Settings is the process-level configuration document.
type Settings struct {
	LogLevel string `yaml:"log_level"`

	Scan struct {
		IntervalMs      uint32 `yaml:"interval_ms"`
		JitterBudgetUs  uint32 `yaml:"jitter_budget_us"`
		OverrunBudgetUs uint32 `yaml:"overrun_budget_us"`
	} `yaml:"scan"`

	Storage struct {
		Driver string `yaml:"driver"` // "memory" | "file"
		Dir    string `yaml:"dir"`
	} `yaml:"storage"`

	Watchdog WatchdogSettings `yaml:"watchdog"`

	Bus struct {
		QueueLen int `yaml:"queue_len"`
	} `yaml:"bus"`
}

// WatchdogSettings is named (rather than an anonymous nested struct) so
// the heartbeat/watchdog service can type-assert the bus payload it
// receives on config/watchdog without importing an anonymous type.
type WatchdogSettings struct {
	PeriodMs         uint32 `yaml:"period_ms"`
	OverrunThreshold uint32 `yaml:"overrun_threshold"`
}

// Default returns the settings a freshly-installed kernel starts with.
func Default() Settings {
	var s Settings
	s.LogLevel = "info"
	s.Scan.IntervalMs = 100
	s.Scan.JitterBudgetUs = 2000
	s.Scan.OverrunBudgetUs = 20000
	s.Storage.Driver = "memory"
	s.Storage.Dir = "./data"
	s.Watchdog.PeriodMs = 1000
	s.Watchdog.OverrunThreshold = 5
	s.Bus.QueueLen = 32
	return s
}

// Load reads YAML settings from path, falling back to Default() for any
// field the file omits (the zero-value fields of a freshly-decoded
// Settings are indistinguishable from "absent", so we decode onto a
// Default() base).
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return s, nil
}

// Service loads process settings once and republishes each top-level
// section as a retained bus message under "config/<section>", then
// optionally watches the source file for changes and republishes on
// write.
type Service struct {
	Path   string
	Logger *klog.Logger
}

// Publish decodes s into its top-level sections and publishes each as a
// retained message, grounded in the teacher's per-key retained-publish
// convention.
func Publish(conn *bus.Connection, s Settings) {
	conn.Publish(conn.NewMessage(bus.T(topicPrefix, "log_level"), s.LogLevel, true))
	conn.Publish(conn.NewMessage(bus.T(topicPrefix, "scan"), s.Scan, true))
	conn.Publish(conn.NewMessage(bus.T(topicPrefix, "storage"), s.Storage, true))
	conn.Publish(conn.NewMessage(bus.T(topicPrefix, "watchdog"), s.Watchdog, true))
	conn.Publish(conn.NewMessage(bus.T(topicPrefix, "bus"), s.Bus, true))
}

// Start loads the settings at s.Path, publishes them, and if watch is
// true, reloads and republishes on every filesystem write event until
// ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection, watch bool) (Settings, error) {
	settings, err := Load(s.Path)
	if err != nil {
		return settings, err
	}
	Publish(conn, settings)

	if !watch || s.Path == "" {
		return settings, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return settings, fmt.Errorf("config: watcher: %w", err)
	}
	if err := watcher.Add(s.Path); err != nil {
		watcher.Close()
		return settings, fmt.Errorf("config: watch %s: %w", s.Path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(s.Path)
				if err != nil {
					if s.Logger != nil {
						s.Logger.Error("config reload failed", "err", err)
					}
					continue
				}
				Publish(conn, reloaded)
				if s.Logger != nil {
					s.Logger.Info("config reloaded", "path", s.Path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if s.Logger != nil {
					s.Logger.Error("config watch error", "err", err)
				}
			}
		}
	}()

	return settings, nil
}
