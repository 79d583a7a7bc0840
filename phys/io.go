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

package phys

import (
	"context"
	"fmt"
	"io"

	"github.com/kernmem/pagecache/frame"
)

// Seek moves the stream cursor, with io.SeekStart / io.SeekCurrent /
// io.SeekEnd semantics. Seeking from the end resolves the underlying
// length as the larger of the cursor and the parent chain's length.
func (p *Phys) Seek(ctx context.Context, offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset

	case io.SeekCurrent:
		pos = p.pos.Load() + offset

	case io.SeekEnd:
		length := p.pos.Load()
		p.mu.Lock()
		par := p.parent
		p.mu.Unlock()
		if par != nil {
			parentLen, err := par.streamLen(ctx)
			if err != nil {
				return 0, fmt.Errorf("resolving length: %w", err)
			}
			if parentLen > length {
				length = parentLen
			}
		}
		pos = length + offset

	default:
		return 0, fmt.Errorf("seeking with whence %d: %w", whence, ErrInvalidOffset)
	}

	if pos < 0 {
		return 0, fmt.Errorf("seeking to %d: %w", pos, ErrInvalidOffset)
	}
	p.pos.Store(pos)
	return pos, nil
}

// StreamLen returns the container's length: the larger of the cursor
// and the parent chain's length. Like Seek from the end, it leaves the
// cursor there.
func (p *Phys) StreamLen(ctx context.Context) (int64, error) {
	return p.Seek(ctx, 0, io.SeekEnd)
}

// ReadAt reads into buf starting at the given byte offset. The count
// returned stops at the first page whose valid length falls short of a
// full page; an uncommitted page of an anonymous Phys has valid length
// zero, so a read reaching it returns no bytes from it onwards.
func (p *Phys) ReadAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	n, err := p.ReadVecAt(ctx, [][]byte{buf}, offset)
	return int(n), err
}

// WriteAt writes buf starting at the given byte offset, committing and
// dirtying every touched page.
func (p *Phys) WriteAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	n, err := p.WriteVecAt(ctx, [][]byte{buf}, offset)
	return int(n), err
}

// Read reads from the cursor and advances it.
func (p *Phys) Read(ctx context.Context, buf []byte) (int, error) {
	pos := p.pos.Load()
	n, err := p.ReadAt(ctx, buf, pos)
	p.pos.Store(pos + int64(n))
	return n, err
}

// Write writes at the cursor and advances it.
func (p *Phys) Write(ctx context.Context, buf []byte) (int, error) {
	pos := p.pos.Load()
	n, err := p.WriteAt(ctx, buf, pos)
	p.pos.Store(pos + int64(n))
	return n, err
}

// Flush enqueues every dirty page for writeback; the streaming façade's
// flush is FlushAll.
func (p *Phys) Flush(ctx context.Context) error {
	return p.FlushAll(ctx)
}

// ReadVecAt is ReadAt with a scatter list. Reading short-circuits at
// the first page whose valid length falls short of a full page.
func (p *Phys) ReadVecAt(ctx context.Context, bufs [][]byte, offset int64) (int64, error) {
	total := vecLen(bufs)
	start, end, err := byteRange(offset, total)
	if err != nil {
		return 0, err
	}
	if start == end {
		return 0, nil
	}

	startPage, startOff, endPage, endOff := pageSpan(start, end)
	cur := sgCursor{bufs: bufs}

	if startPage == endPage {
		f, validLen, err := p.Commit(ctx, startPage, NoWrite, false)
		if err != nil {
			return 0, err
		}
		defer f.Release()
		return cur.copyFrom(f, startOff, minInt64(endOff, validLen)), nil
	}

	var readLen int64
	{
		f, validLen, err := p.Commit(ctx, startPage, NoWrite, false)
		if err != nil {
			return 0, err
		}
		readLen += cur.copyFrom(f, startOff, validLen)
		f.Release()
		if validLen < frame.PageSize || cur.empty() {
			return readLen, nil
		}
	}
	for index := startPage + 1; index < endPage; index++ {
		f, validLen, err := p.Commit(ctx, index, NoWrite, false)
		if err != nil {
			return readLen, err
		}
		readLen += cur.copyFrom(f, 0, validLen)
		f.Release()
		if validLen < frame.PageSize || cur.empty() {
			return readLen, nil
		}
	}
	{
		f, validLen, err := p.Commit(ctx, endPage, NoWrite, false)
		if err != nil {
			return readLen, err
		}
		readLen += cur.copyFrom(f, 0, minInt64(endOff, validLen))
		f.Release()
	}
	return readLen, nil
}

// WriteVecAt is WriteAt with a scatter list. Writing never
// short-circuits until the buffers are drained.
func (p *Phys) WriteVecAt(ctx context.Context, bufs [][]byte, offset int64) (int64, error) {
	total := vecLen(bufs)
	start, end, err := byteRange(offset, total)
	if err != nil {
		return 0, err
	}
	if start == end {
		return 0, nil
	}

	startPage, startOff, endPage, endOff := pageSpan(start, end)
	cur := sgCursor{bufs: bufs}

	if startPage == endPage {
		f, _, err := p.Commit(ctx, startPage, endOff, false)
		if err != nil {
			return 0, err
		}
		defer f.Release()
		return cur.copyTo(f, startOff, endOff), nil
	}

	var writtenLen int64
	{
		f, _, err := p.Commit(ctx, startPage, frame.PageSize, false)
		if err != nil {
			return 0, err
		}
		writtenLen += cur.copyTo(f, startOff, frame.PageSize)
		f.Release()
		if cur.empty() {
			return writtenLen, nil
		}
	}
	for index := startPage + 1; index < endPage; index++ {
		f, _, err := p.Commit(ctx, index, frame.PageSize, false)
		if err != nil {
			return writtenLen, err
		}
		writtenLen += cur.copyTo(f, 0, frame.PageSize)
		f.Release()
		if cur.empty() {
			return writtenLen, nil
		}
	}
	{
		f, _, err := p.Commit(ctx, endPage, endOff, false)
		if err != nil {
			return writtenLen, err
		}
		writtenLen += cur.copyTo(f, 0, endOff)
		f.Release()
	}
	return writtenLen, nil
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func vecLen(bufs [][]byte) int64 {
	var n int64
	for _, b := range bufs {
		n += int64(len(b))
	}
	return n
}

func byteRange(offset, length int64) (int64, int64, error) {
	if offset < 0 {
		return 0, 0, fmt.Errorf("range at %d: %w", offset, ErrInvalidOffset)
	}
	end := offset + length
	if end < offset {
		return 0, 0, fmt.Errorf("range at %d overflows: %w", offset, ErrInvalidOffset)
	}
	return offset, end, nil
}

// pageSpan decomposes [start, end) into inclusive page bounds with
// intra-page offsets. An exact page boundary at the end normalizes to
// (endPage-1, PageSize) so the last page is always partially covered.
func pageSpan(start, end int64) (startPage, startOff, endPage, endOff int64) {
	startPage = start >> frame.PageShift
	startOff = start - startPage<<frame.PageShift

	endPage = end >> frame.PageShift
	endOff = end - endPage<<frame.PageShift
	if endOff == 0 {
		endPage--
		endOff = frame.PageSize
	}
	return
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// sgCursor walks a scatter-gather list, skipping exhausted buffers.
type sgCursor struct {
	bufs [][]byte
}

func (c *sgCursor) empty() bool {
	for len(c.bufs) > 0 {
		if len(c.bufs[0]) > 0 {
			return false
		}
		c.bufs = c.bufs[1:]
	}
	return true
}

// copyFrom copies frame bytes [start, end) into the buffers, advancing
// the cursor. Returns the number of bytes copied.
func (c *sgCursor) copyFrom(f *frame.Frame, start, end int64) int64 {
	var copied int64
	for start < end && !c.empty() {
		n := copy(c.bufs[0], f.Bytes()[start:end])
		c.bufs[0] = c.bufs[0][n:]
		start += int64(n)
		copied += int64(n)
	}
	return copied
}

// copyTo copies buffer bytes into frame range [start, end), advancing
// the cursor. Returns the number of bytes copied.
func (c *sgCursor) copyTo(f *frame.Frame, start, end int64) int64 {
	var copied int64
	for start < end && !c.empty() {
		n := copy(f.Bytes()[start:end], c.bufs[0])
		c.bufs[0] = c.bufs[0][n:]
		start += int64(n)
		copied += int64(n)
	}
	return copied
}
