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

package cfg

import "fmt"

const (
	UnsupportedSeverityError    = "logging severity must be one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF"
	UnsupportedLogFormatError   = "logging format must be text or json"
	MaxFramesInvalidValueError  = "the value of max-frames for frame-pool must be positive"
	MaxBytesPerSecNegativeError = "the value of max-bytes-per-sec for flusher can't be negative"
	SyncIntervalNegativeError   = "the value of sync-interval for flusher can't be negative"
)

func isValidSeverity(severity string) bool {
	switch severity {
	case "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF":
		return true
	}
	return false
}

func isValidLoggingConfig(c *LoggingConfig) error {
	if !isValidSeverity(c.Severity) {
		return fmt.Errorf(UnsupportedSeverityError)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf(UnsupportedLogFormatError)
	}
	if c.FilePath != "" {
		if c.LogRotate.MaxFileSizeMb <= 0 {
			return fmt.Errorf("max-file-size-mb should be atleast 1")
		}
		if c.LogRotate.BackupFileCount < 0 {
			return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
		}
	}
	return nil
}

func isValidFramePoolConfig(c *FramePoolConfig) error {
	if c.MaxFrames <= 0 {
		return fmt.Errorf(MaxFramesInvalidValueError)
	}
	return nil
}

func isValidFlusherConfig(c *FlusherConfig) error {
	if c.MaxBytesPerSec < 0 {
		return fmt.Errorf(MaxBytesPerSecNegativeError)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf(SyncIntervalNegativeError)
	}
	return nil
}

// Validate returns a non-nil error if the config is invalid.
func Validate(config *Config) error {
	var err error

	if err = isValidLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err = isValidFramePoolConfig(&config.FramePool); err != nil {
		return fmt.Errorf("error parsing frame-pool config: %w", err)
	}

	if err = isValidFlusherConfig(&config.Flusher); err != nil {
		return fmt.Errorf("error parsing flusher config: %w", err)
	}

	return nil
}
