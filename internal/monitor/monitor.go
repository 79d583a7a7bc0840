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

// Package monitor registers the module's OpenTelemetry instruments.
// Instruments are created against the global meter provider; unless the
// embedding program installs one, they are no-ops.
package monitor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CommitSourceKey annotates a page commit with where the page came
	// from: "hit", "parent", "backend", "zero", or "new".
	CommitSourceKey = "commit_source"
)

var (
	pageCacheMeter = otel.Meter("page_cache")

	commitSourceAttributeSet sync.Map
)

var (
	frameAllocCount   metric.Int64Counter
	frameReleaseCount metric.Int64Counter
	pageCommitCount   metric.Int64Counter
	flushPageCount    metric.Int64Counter
	flushErrorCount   metric.Int64Counter
)

func init() {
	frameAllocCount, _ = pageCacheMeter.Int64Counter("frame_allocations",
		metric.WithDescription("Number of physical frames handed out by the allocator."))
	frameReleaseCount, _ = pageCacheMeter.Int64Counter("frame_releases",
		metric.WithDescription("Number of physical frames returned to the allocator."))
	pageCommitCount, _ = pageCacheMeter.Int64Counter("page_commits",
		metric.WithDescription("Number of page commits, annotated with the commit source."))
	flushPageCount, _ = pageCacheMeter.Int64Counter("flush_pages",
		metric.WithDescription("Number of dirty pages written back to the backend."))
	flushErrorCount, _ = pageCacheMeter.Int64Counter("flush_errors",
		metric.WithDescription("Number of writeback failures (swallowed; flushing is best effort)."))
}

func getCommitSourceAttributeSet(source string) metric.MeasurementOption {
	attrSet, ok := commitSourceAttributeSet.Load(source)
	if ok {
		return attrSet.(metric.MeasurementOption)
	}
	v, _ := commitSourceAttributeSet.LoadOrStore(source,
		metric.WithAttributeSet(attribute.NewSet(attribute.String(CommitSourceKey, source))))
	return v.(metric.MeasurementOption)
}

// FrameAllocated records one frame handed out by the allocator.
func FrameAllocated(ctx context.Context) {
	frameAllocCount.Add(ctx, 1)
}

// FrameReleased records one frame returned to the allocator.
func FrameReleased(ctx context.Context) {
	frameReleaseCount.Add(ctx, 1)
}

// PageCommitted records a page commit and its source.
func PageCommitted(ctx context.Context, source string) {
	pageCommitCount.Add(ctx, 1, getCommitSourceAttributeSet(source))
}

// PagesFlushed records pages written back to the backend.
func PagesFlushed(ctx context.Context, n int64) {
	flushPageCount.Add(ctx, n)
}

// FlushError records a swallowed writeback failure.
func FlushError(ctx context.Context) {
	flushErrorCount.Add(ctx, 1)
}
