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

// DefaultConfig returns the configuration used when no file overrides
// it: stderr text logging at INFO, a 4096-frame pool, and unthrottled
// writeback.
func DefaultConfig() *Config {
	return &Config{
		Logging:   GetDefaultLoggingConfig(),
		FramePool: FramePoolConfig{MaxFrames: 4096},
	}
}

// GetDefaultLoggingConfig returns the logging configuration used during
// startup, before any provided configuration has been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: "INFO",
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			MaxFileSizeMb:   512,
			BackupFileCount: 10,
			Compress:        true,
		},
	}
}
