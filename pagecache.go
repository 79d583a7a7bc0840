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

// Package pagecache wires the library configuration into its
// components. Embedding programs call Apply once at startup, then
// create Phys containers via the phys package.
package pagecache

import (
	"fmt"

	"github.com/kernmem/pagecache/cfg"
	"github.com/kernmem/pagecache/frame"
	"github.com/kernmem/pagecache/internal/logger"
	"github.com/kernmem/pagecache/phys"
)

// Apply validates the configuration and installs it: logging goes to
// the configured sink at the configured severity, and the default frame
// allocator is sized from the frame-pool settings.
func Apply(c *cfg.Config) error {
	if err := cfg.Validate(c); err != nil {
		return err
	}

	if err := logger.InitLogFile(c.Logging); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	alloc, err := frame.NewAllocator(c.FramePool.MaxFrames)
	if err != nil {
		return fmt.Errorf("creating frame allocator: %w", err)
	}
	frame.SetDefault(alloc)

	return nil
}

// PhysOptions derives phys.Options from the configuration. The
// allocator is left nil so containers pick up the default installed by
// Apply.
func PhysOptions(c *cfg.Config) phys.Options {
	return phys.Options{Flusher: c.Flusher}
}
