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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Severity(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		wantErr  bool
	}{
		{"trace", "TRACE", false},
		{"debug", "DEBUG", false},
		{"info", "INFO", false},
		{"warning", "WARNING", false},
		{"error", "ERROR", false},
		{"off", "OFF", false},
		{"lowercase", "info", true},
		{"unknown", "VERBOSE", true},
		{"empty", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			c.Logging.Severity = tc.severity

			err := Validate(c)

			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_LogFormat(t *testing.T) {
	c := DefaultConfig()
	c.Logging.Format = "xml"

	err := Validate(c)

	assert.ErrorContains(t, err, UnsupportedLogFormatError)
}

func TestValidate_MaxFrames(t *testing.T) {
	tests := []struct {
		name      string
		maxFrames int64
		wantErr   bool
	}{
		{"positive", 1, false},
		{"zero", 0, true},
		{"negative", -5, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			c.FramePool.MaxFrames = tc.maxFrames

			err := Validate(c)

			if tc.wantErr {
				assert.ErrorContains(t, err, MaxFramesInvalidValueError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_Flusher(t *testing.T) {
	c := DefaultConfig()
	c.Flusher.MaxBytesPerSec = -1
	assert.ErrorContains(t, Validate(c), MaxBytesPerSecNegativeError)

	c = DefaultConfig()
	c.Flusher.SyncInterval = Duration(-time.Second)
	assert.ErrorContains(t, Validate(c), SyncIntervalNegativeError)
}

func TestValidate_LogRotateCheckedOnlyWithFilePath(t *testing.T) {
	c := DefaultConfig()
	c.Logging.LogRotate.MaxFileSizeMb = 0

	// No file path: rotation settings are irrelevant.
	assert.NoError(t, Validate(c))

	c.Logging.FilePath = "/var/log/pagecache.log"
	assert.Error(t, Validate(c))
}
