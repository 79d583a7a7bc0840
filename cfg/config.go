// Copyright 2025 The pagecache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg holds the library configuration: logging, frame-pool
// sizing, and flush-worker tuning. Configuration is plain YAML; there
// is no flag or environment surface.
package cfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`

	FramePool FramePoolConfig `yaml:"frame-pool"`

	Flusher FlusherConfig `yaml:"flusher"`

	Debug DebugConfig `yaml:"debug"`
}

type LoggingConfig struct {
	// One of TRACE, DEBUG, INFO, WARNING, ERROR, OFF.
	Severity string `yaml:"severity"`

	// "text" or "json".
	Format string `yaml:"format"`

	// Path of the log file. Empty means stderr.
	FilePath string `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

type FramePoolConfig struct {
	// Maximum number of frames the allocator hands out before failing
	// allocations.
	MaxFrames int64 `yaml:"max-frames"`
}

type FlusherConfig struct {
	// Writeback bandwidth cap in bytes per second. Zero means unlimited.
	MaxBytesPerSec int64 `yaml:"max-bytes-per-sec"`

	// Interval between periodic backend flushes. Zero disables the
	// periodic flush; dirty pages are still flushed as they arrive.
	SyncInterval Duration `yaml:"sync-interval"`
}

type DebugConfig struct {
	// Loaded from the config file, but no component reads it: a pin
	// count underflow is always clamped at zero and logged, never a panic.
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
}

// Load reads and parses a YAML config file, applying defaults for
// fields the file leaves unset.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}
