// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bcm

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/cosnicolaou/bcm/internal/bwt"
	"github.com/cosnicolaou/bcm/internal/cm"
	"github.com/cosnicolaou/bcm/internal/rangecoder"
)

// countingByteWriter counts the bytes the range coder emits so that
// per-block compressed sizes can be reported.
type countingByteWriter struct {
	w *bufio.Writer
	n int64
}

func (cw *countingByteWriter) WriteByte(b byte) error {
	cw.n++
	return cw.w.WriteByte(b)
}

// Writer is an io.WriteCloser that bcm-compresses everything written to
// it. Each full block is transformed and coded before further input is
// accepted; Close terminates the stream and must be called to produce a
// decodable file.
type Writer struct {
	bw    *bufio.Writer
	cw    *countingByteWriter
	enc   *rangecoder.Encoder
	model *cm.Model
	fwd   *bwt.Forward

	buf         []byte // current block, filled by Write
	transformed []byte // BWT of the current block
	n           int    // bytes buffered in buf

	blockSize  int
	crc        uint32
	block      uint64
	reported   int64
	progressCh chan<- Progress

	headerDone bool
	closed     bool
	err        error
}

// NewWriter returns a Writer compressing to w. The block buffers are
// allocated on first use; a Writer holds roughly six bytes of state per
// block byte while compressing.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	o := writerOpts{blockSize: DefaultBlockSize}
	for _, fn := range opts {
		fn(&o)
	}
	if o.level != 0 {
		size, err := LevelBlockSize(o.level)
		if err != nil {
			return nil, err
		}
		o.blockSize = size
	}
	if o.blockSize < 1 || o.blockSize > MaxBlockSize {
		return nil, fmt.Errorf("invalid block size: %v", o.blockSize)
	}
	fwd, err := bwt.NewForward()
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(w)
	cw := &countingByteWriter{w: bw}
	return &Writer{
		bw:         bw,
		cw:         cw,
		enc:        rangecoder.NewEncoder(cw),
		model:      cm.NewModel(),
		fwd:        fwd,
		blockSize:  o.blockSize,
		progressCh: o.progressCh,
	}, nil
}

func (zw *Writer) header() error {
	if zw.headerDone {
		return nil
	}
	if _, err := zw.bw.Write(fileMagic[:]); err != nil {
		return err
	}
	zw.headerDone = true
	return nil
}

// Write implements io.Writer.
func (zw *Writer) Write(p []byte) (int, error) {
	if zw.err != nil {
		return 0, zw.err
	}
	if zw.closed {
		return 0, fmt.Errorf("write to closed bcm writer")
	}
	if err := zw.header(); err != nil {
		zw.err = err
		return 0, err
	}
	written := 0
	for len(p) > 0 {
		if zw.buf == nil {
			zw.buf = make([]byte, zw.blockSize)
			zw.transformed = make([]byte, zw.blockSize)
		}
		n := copy(zw.buf[zw.n:], p)
		zw.n += n
		written += n
		p = p[n:]
		if zw.n == len(zw.buf) {
			if err := zw.writeBlock(); err != nil {
				zw.err = err
				return written, err
			}
		}
	}
	return written, nil
}

func (zw *Writer) writeBlock() error {
	b := zw.buf[:zw.n]
	zw.crc = crc32.Update(zw.crc, crc32.IEEETable, b)

	idx, err := zw.fwd.Transform(b, zw.transformed)
	if err != nil {
		return err
	}

	zw.enc.EncodeDirect(uint32(len(b)), 32)
	zw.enc.EncodeDirect(uint32(idx), 32)
	for _, c := range zw.transformed[:len(b)] {
		zw.model.Encode(zw.enc, c)
	}
	if err := zw.enc.Err(); err != nil {
		return err
	}

	zw.block++
	if zw.progressCh != nil {
		zw.progressCh <- Progress{
			Block:      zw.block,
			Size:       len(b),
			Compressed: int(zw.cw.n - zw.reported),
		}
		zw.reported = zw.cw.n
	}
	zw.n = 0
	return nil
}

// Close flushes any buffered block, writes the end-of-stream sentinel and
// the CRC of everything written, and flushes the coder and the underlying
// writer. It does not close the underlying writer.
func (zw *Writer) Close() error {
	if zw.closed || zw.err != nil {
		return zw.err
	}
	zw.closed = true
	if err := zw.header(); err != nil {
		zw.err = err
		return err
	}
	if zw.n > 0 {
		if err := zw.writeBlock(); err != nil {
			zw.err = err
			return err
		}
	}
	zw.enc.EncodeDirect(0, 32)
	zw.enc.EncodeDirect(zw.crc, 32)
	zw.enc.Flush()
	if err := zw.enc.Err(); err != nil {
		zw.err = err
		return err
	}
	if err := zw.bw.Flush(); err != nil {
		zw.err = err
		return err
	}
	return nil
}
