// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bcm

type writerOpts struct {
	blockSize  int
	level      int
	progressCh chan<- Progress
}

// WriterOption represents an option to NewWriter.
type WriterOption func(*writerOpts)

// CompressionLevel selects the block size from the level table used by
// the bcm command line tool, 1 (1 MiB blocks) through 9 (~2 GiB blocks).
// The default is level 4.
func CompressionLevel(level int) WriterOption {
	return func(o *writerOpts) {
		o.level = level
		o.blockSize = 0
	}
}

// BlockSize sets an explicit block size in bytes, overriding the level
// table. Callers that know the input size ahead of time can clamp the
// block to it and avoid overallocating.
func BlockSize(n int) WriterOption {
	return func(o *writerOpts) {
		o.blockSize = n
		o.level = 0
	}
}

// CompressProgress sets a channel on which the Writer reports each
// completed block.
func CompressProgress(ch chan<- Progress) WriterOption {
	return func(o *writerOpts) {
		o.progressCh = ch
	}
}

type readerOpts struct {
	progressCh chan<- Progress
}

// ReaderOption represents an option to NewReader.
type ReaderOption func(*readerOpts)

// DecompressProgress sets a channel on which the Reader reports each
// decoded block.
func DecompressProgress(ch chan<- Progress) ReaderOption {
	return func(o *readerOpts) {
		o.progressCh = ch
	}
}
