// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bwt provides the forward Burrows-Wheeler transform, backed by
// the kanzi suffix sorter, and a streaming inverse with two memory
// layouts: separate symbol/successor arrays for large blocks and a packed
// single-array layout for blocks that fit a 24-bit index.
package bwt

import (
	"fmt"

	"github.com/flanglet/kanzi-go/v2/transform"
)

// PackedLimit is the smallest block length that cannot use the packed
// inverse layout: a packed slot keeps the successor index in 24 bits.
const PackedLimit = 1 << 24

// Forward wraps the suffix-sort oracle. The scratch suffix array is
// reused across blocks.
type Forward struct {
	dss     *transform.DivSufSort
	sa      []int32
	indexes [8]uint
}

// NewForward returns a forward transformer.
func NewForward() (*Forward, error) {
	dss, err := transform.NewDivSufSort()
	if err != nil {
		return nil, err
	}
	return &Forward{dss: dss}, nil
}

// Transform writes the BWT of src to dst and returns the 1-based primary
// index. src and dst must not overlap and dst must hold len(src) bytes.
func (f *Forward) Transform(src, dst []byte) (int, error) {
	n := len(src)
	if n == 0 {
		return 0, fmt.Errorf("bwt: empty block")
	}
	if n == 1 {
		dst[0] = src[0]
		return 1, nil
	}
	if len(f.sa) < n {
		f.sa = make([]int32, n)
	}
	f.dss.ComputeBWT(src, dst[:n], f.sa[:n], f.indexes[:], 1)
	idx := int(f.indexes[0])
	if idx < 1 || idx > n {
		return 0, fmt.Errorf("bwt: suffix sorter returned primary index %v for block of %v", idx, n)
	}
	return idx, nil
}

// Slots is the packed inverse-BWT representation: each 32-bit slot carries
// a symbol in its low 8 bits and, once linked, the successor index in the
// upper 24 bits. The accessors exist so that no byte view is ever aliased
// over the slot array.
type Slots []uint32

// SetSymbol stores the block's i-th BWT symbol; the successor is filled in
// by setNext.
func (s Slots) SetSymbol(i int, c byte) {
	s[i] = uint32(c)
}

// Symbol returns the symbol stored at slot i.
func (s Slots) Symbol(i uint32) byte {
	return byte(s[i])
}

// Next returns the successor index stored at slot i.
func (s Slots) Next(i uint32) uint32 {
	return s[i] >> 8
}

func (s Slots) setNext(i int, next uint32) {
	s[i] |= next << 8
}

// Inverse reconstructs a block from its BWT, emitting bytes on demand via
// Read so the caller never needs a second block-sized output buffer.
type Inverse struct {
	// Large-block layout: symbols in bwt, successors in next.
	bwt  []byte
	next []uint32
	// Packed layout.
	slots Slots

	pidx      uint32
	pos       uint32
	remaining int
}

// NewInverse prepares the large-block inverse of bwt with primary index
// pidx, building the successor table in next (len(next) >= len(bwt)).
func NewInverse(bwt []byte, next []uint32, pidx int) *Inverse {
	var cnt [257]int
	for _, c := range bwt {
		cnt[int(c)+1]++
	}
	for i := 1; i < 256; i++ {
		cnt[i] += cnt[i-1]
	}
	for i, c := range bwt {
		v := uint32(i)
		if i >= pidx {
			v++
		}
		next[cnt[c]] = v
		cnt[c]++
	}
	return &Inverse{
		bwt:       bwt,
		next:      next,
		pidx:      uint32(pidx),
		pos:       uint32(pidx),
		remaining: len(bwt),
	}
}

// NewInversePacked prepares the packed inverse: slots must already hold
// the BWT symbols (via SetSymbol) and len(slots) must be below
// PackedLimit. The successor links are threaded through the same array.
func NewInversePacked(slots Slots, pidx int) *Inverse {
	var cnt [257]int
	for i := range slots {
		cnt[int(byte(slots[i]))+1]++
	}
	for i := 1; i < 256; i++ {
		cnt[i] += cnt[i-1]
	}
	for i := range slots {
		c := byte(slots[i])
		v := uint32(i)
		if i >= pidx {
			v++
		}
		slots.setNext(cnt[c], v)
		cnt[c]++
	}
	return &Inverse{
		slots:     slots,
		pidx:      uint32(pidx),
		pos:       uint32(pidx),
		remaining: len(slots),
	}
}

// Read fills buf with reconstructed bytes and reports how many were
// produced; zero means the block is exhausted.
func (iv *Inverse) Read(buf []byte) int {
	n := 0
	if iv.slots != nil {
		for n < len(buf) && iv.remaining > 0 {
			p := iv.slots.Next(iv.pos - 1)
			iv.pos = p
			if p >= iv.pidx {
				p--
			}
			buf[n] = iv.slots.Symbol(p)
			n++
			iv.remaining--
		}
		return n
	}
	for n < len(buf) && iv.remaining > 0 {
		p := iv.next[iv.pos-1]
		iv.pos = p
		if p >= iv.pidx {
			p--
		}
		buf[n] = iv.bwt[p]
		n++
		iv.remaining--
	}
	return n
}

// Done reports whether every byte of the block has been emitted.
func (iv *Inverse) Done() bool {
	return iv.remaining == 0
}
