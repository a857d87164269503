/*
Copyright 2025 The Kioskline Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the resolver's on-disk TOML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// File is the on-disk shape of the resolver's configuration file.
type File struct {
	SchedulePath              string `toml:"schedule_path"`
	TickIntervalSeconds       int    `toml:"tick_interval_seconds"`
	ScreenshotIntervalSeconds int    `toml:"screenshot_interval_seconds"`
	ExpireModifiedLayouts     bool   `toml:"expire_modified_layouts"`
	AdExchangeEnabled         bool   `toml:"ad_exchange_enabled"`
	MetricsAddress            string `toml:"metrics_address"`
	LogLevel                  string `toml:"log_level"`
}

// Default returns the configuration used when no file is present: a 10
// second tick, no screenshots, the running layout never expires.
func Default() File {
	return File{
		SchedulePath:   "schedule.xml",
		TickIntervalSeconds: 10,
		MetricsAddress: ":9090",
		LogLevel:       "info",
	}
}

// Load decodes path into a File layered over Default(). A missing file is
// not an error: the defaults are returned as-is.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return File{}, fmt.Errorf("decoding config file %q: %w", path, err)
	}
	return cfg, nil
}

// TickInterval returns the configured tick interval as a time.Duration,
// falling back to 10 seconds for a non-positive value.
func (f File) TickInterval() time.Duration {
	if f.TickIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TickIntervalSeconds) * time.Second
}

// ScreenshotInterval returns the configured screenshot interval, or zero
// (disabled) when not set.
func (f File) ScreenshotInterval() time.Duration {
	if f.ScreenshotIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(f.ScreenshotIntervalSeconds) * time.Second
}
