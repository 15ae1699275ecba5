// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bcm

import (
	"bufio"
	"hash/crc32"
	"io"

	"github.com/cosnicolaou/bcm/internal/bwt"
	"github.com/cosnicolaou/bcm/internal/cm"
	"github.com/cosnicolaou/bcm/internal/rangecoder"
)

// countingByteReader counts the bytes the range coder consumes so that
// per-block compressed sizes can be reported.
type countingByteReader struct {
	r *bufio.Reader
	n int64
}

func (cr *countingByteReader) ReadByte() (byte, error) {
	b, err := cr.r.ReadByte()
	if err == nil {
		cr.n++
	}
	return b, err
}

// reader decompresses a bcm stream block by block as it is read from.
type reader struct {
	br    *bufio.Reader
	cr    *countingByteReader
	dec   *rangecoder.Decoder
	model *cm.Model

	// The first block fixes blockSize and the buffer capacities for the
	// rest of the stream.
	blockSize int
	buf       []byte    // large-block BWT symbols
	slots     bwt.Slots // successors, and packed symbol+successor pairs
	inv       *bwt.Inverse

	crc        uint32
	block      uint64
	reported   int64
	progressCh chan<- Progress

	setupDone bool
	eof       bool
	err       error
}

// NewReader returns an io.Reader that decompresses the bcm stream in rd.
// The stream's trailing CRC is verified when the end of stream is
// reached; a mismatch is reported as a StructuralError before io.EOF is
// ever returned.
func NewReader(rd io.Reader, opts ...ReaderOption) io.Reader {
	o := readerOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	br := bufio.NewReader(rd)
	return &reader{
		br:         br,
		progressCh: o.progressCh,
	}
}

// setup validates the file magic and primes the range coder.
func (zr *reader) setup() error {
	var magic [4]byte
	if _, err := io.ReadFull(zr.br, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return StructuralError("not in BCM format")
		}
		return err
	}
	if magic != fileMagic {
		return StructuralError("not in BCM format")
	}
	zr.cr = &countingByteReader{r: zr.br}
	zr.dec = rangecoder.NewDecoder(zr.cr)
	zr.model = cm.NewModel()
	return zr.dec.Err()
}

// nextBlock decodes one block record: its length and primary index, the
// coded BWT symbols, and the successor table for the inverse transform.
// On the end-of-stream sentinel it verifies the trailing CRC and sets
// eof.
func (zr *reader) nextBlock() error {
	n := int(zr.dec.DecodeDirect(32))
	if err := zr.dec.Err(); err != nil {
		return err
	}
	if n == 0 {
		want := zr.dec.DecodeDirect(32)
		if err := zr.dec.Err(); err != nil {
			return err
		}
		if want != zr.crc {
			return StructuralError("CRC mismatch")
		}
		zr.eof = true
		return nil
	}
	if n < 0 || n > MaxBlockSize {
		return StructuralError("block length out of range")
	}
	if zr.blockSize == 0 {
		zr.blockSize = n
		if n >= bwt.PackedLimit {
			zr.buf = make([]byte, n)
		}
		zr.slots = make(bwt.Slots, n)
	}
	idx := int(zr.dec.DecodeDirect(32))
	if err := zr.dec.Err(); err != nil {
		return err
	}
	if n > zr.blockSize || idx < 1 || idx > n {
		return StructuralError("corrupt block header")
	}

	if n >= bwt.PackedLimit {
		b := zr.buf[:n]
		for i := range b {
			b[i] = zr.model.Decode(zr.dec)
		}
		if err := zr.dec.Err(); err != nil {
			return err
		}
		zr.inv = bwt.NewInverse(b, zr.slots[:n], idx)
	} else {
		s := zr.slots[:n]
		for i := 0; i < n; i++ {
			s.SetSymbol(i, zr.model.Decode(zr.dec))
		}
		if err := zr.dec.Err(); err != nil {
			return err
		}
		zr.inv = bwt.NewInversePacked(s, idx)
	}

	zr.block++
	if zr.progressCh != nil {
		zr.progressCh <- Progress{
			Block:      zr.block,
			Size:       n,
			Compressed: int(zr.cr.n - zr.reported),
		}
		zr.reported = zr.cr.n
	}
	return nil
}

// Read implements io.Reader.
func (zr *reader) Read(p []byte) (int, error) {
	if zr.err != nil {
		return 0, zr.err
	}
	if !zr.setupDone {
		if err := zr.setup(); err != nil {
			zr.err = err
			return 0, err
		}
		zr.setupDone = true
	}
	for {
		if zr.inv != nil {
			n := zr.inv.Read(p)
			if n > 0 {
				zr.crc = crc32.Update(zr.crc, crc32.IEEETable, p[:n])
				if zr.inv.Done() {
					zr.inv = nil
				}
				return n, nil
			}
			if len(p) == 0 {
				return 0, nil
			}
			zr.inv = nil
		}
		if zr.eof {
			return 0, io.EOF
		}
		if err := zr.nextBlock(); err != nil {
			zr.err = err
			return 0, err
		}
	}
}
