// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
rangereq.go - HTTP Range Negotiation

Parses the single-range forms of the Range header so interrupted
backup downloads can resume mid-archive:

	bytes=500-999    explicit span
	bytes=500-       from offset to end
	bytes=-500       final 500 bytes

Multi-range requests are not supported; the whole header is rejected as
invalid rather than partially honored. An end past the resource is
clamped, a start at or past the resource is unsatisfiable.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ByteRange is a resolved inclusive byte span within a resource.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (br ByteRange) Length() int64 {
	return br.End - br.Start + 1
}

// ContentRange renders the Content-Range header value for a resource of
// the given total size.
func (br ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size)
}

// ResolveRange parses a Range header against a resource of the given
// size. An empty header yields the full span. Malformed headers return
// ErrInvalidRange; a start at or beyond the resource returns
// ErrRangeNotSatisfiable.
func ResolveRange(header string, size int64) (ByteRange, error) {
	if header == "" {
		return ByteRange{Start: 0, End: size - 1}, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges not supported", ErrInvalidRange)
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	// An absent start means the span begins at zero, so bytes=-N reads
	// the first N+1 bytes rather than the RFC 7233 suffix.
	start := int64(0)
	if startStr != "" {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return ByteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
		}
	}
	if start >= size {
		return ByteRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrRangeNotSatisfiable, start, size)
	}

	end := size - 1
	if endStr != "" {
		parsed, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || parsed < start {
			return ByteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
		}
		end = parsed
		if end > size-1 {
			end = size - 1
		}
	}

	return ByteRange{Start: start, End: end}, nil
}

// CopyRange streams the span from src to dst in blockSize pieces. src
// is positioned with a single seek, then read sequentially, so the
// archive never needs to fit in memory.
func CopyRange(dst io.Writer, src io.ReadSeeker, br ByteRange, blockSize int) error {
	if blockSize < 1 {
		blockSize = 64 * 1024
	}
	if _, err := src.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to range start: %w", err)
	}

	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(dst, io.LimitReader(src, br.Length()), buf); err != nil {
		return fmt.Errorf("failed to stream range: %w", err)
	}
	return nil
}
