// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cm implements the adaptive context-mixing model that drives the
// range coder: an order-0 table, an order-1 table consulted under both of
// the two previous byte values, and a run-gated SSE stage that remaps the
// mixed prediction through a 17-entry piecewise-linear table.
package cm

import "github.com/cosnicolaou/bcm/internal/rangecoder"

// Counter adaptation rates; smaller is faster.
const (
	fastRate   = 2 // order-0
	mediumRate = 4 // order-1
	slowRate   = 6 // SSE
)

// counter is a 16-bit probability of the next bit being 1, in 1/65536
// units. Updates move p toward 0 or 65536 by 2^-rate of the distance and
// cannot leave [0, 65535].
type counter uint16

func (c *counter) update1(rate uint) {
	*c += (*c ^ 0xFFFF) >> rate
}

func (c *counter) update0(rate uint) {
	*c -= *c >> rate
}

// Model holds the counter tables and inter-byte context. One Model drives
// one compression or decompression stream; encoder and decoder mutate an
// identical Model in lockstep, which is what keeps the stream decodable.
type Model struct {
	counter0 [256]counter
	counter1 [256][256]counter
	// The 2x256x17 SSE table, contiguous, indexed via sseIndex.
	sse [2 * 256 * 17]counter

	c1  int // previous byte
	c2  int // byte before that
	run int // length of the current c1 run
}

func sseIndex(f, ctx, j int) int {
	return (f*256+ctx)*17 + j
}

// NewModel returns a model in the initial state shared by encoder and
// decoder: every counter at 1/2, except the SSE table which starts out as
// an identity mapping of the mixed prediction.
func NewModel() *Model {
	m := &Model{}
	for i := range m.counter0 {
		m.counter0[i] = 1 << 15
	}
	for i := range m.counter1 {
		for j := range m.counter1[i] {
			m.counter1[i][j] = 1 << 15
		}
	}
	for f := 0; f < 2; f++ {
		for ctx := 0; ctx < 256; ctx++ {
			for j := 0; j <= 16; j++ {
				v := j << 12
				if j == 16 {
					v--
				}
				m.sse[sseIndex(f, ctx, j)] = counter(v)
			}
		}
	}
	return m
}

// mix returns the SSE-adjusted probability for the next bit under the
// intra-byte context ctx and run flag f, along with the two SSE cells that
// participated so the caller can update them.
func (m *Model) mix(ctx, f int) (p uint32, s1, s2 *counter) {
	p0 := int(m.counter0[ctx])
	p1 := int(m.counter1[m.c1][ctx])
	p2 := int(m.counter1[m.c2][ctx])
	mixed := ((p0+p1)*7 + p2 + p2) >> 4

	j := mixed >> 12
	s1 = &m.sse[sseIndex(f, ctx, j)]
	s2 = &m.sse[sseIndex(f, ctx, j+1)]
	ssep := int(*s1) + ((int(*s2)-int(*s1))*(mixed&4095))>>12

	return uint32(mixed + ssep*3), s1, s2
}

// advance folds the just-coded symbol into the inter-byte context. The run
// flag derived from run applies to the next byte only; it is fixed for all
// eight bits of a byte.
func (m *Model) advance(ctx int) int {
	s := ctx - 256
	if s == m.c1 {
		m.run++
	} else {
		m.run = 0
	}
	m.c2 = m.c1
	m.c1 = s
	return s
}

func (m *Model) runFlag() int {
	if m.run > 2 {
		return 1
	}
	return 0
}

// Encode codes one byte, most significant bit first, through enc.
func (m *Model) Encode(enc *rangecoder.Encoder, c byte) {
	f := m.runFlag()
	cc := int(c)
	ctx := 1
	for ctx < 256 {
		p, s1, s2 := m.mix(ctx, f)
		if cc&128 != 0 {
			enc.EncodeBit(1, p)
			m.counter0[ctx].update1(fastRate)
			m.counter1[m.c1][ctx].update1(mediumRate)
			s1.update1(slowRate)
			s2.update1(slowRate)
			ctx = ctx + ctx + 1
		} else {
			enc.EncodeBit(0, p)
			m.counter0[ctx].update0(fastRate)
			m.counter1[m.c1][ctx].update0(mediumRate)
			s1.update0(slowRate)
			s2.update0(slowRate)
			ctx = ctx + ctx
		}
		cc += cc
	}
	m.advance(ctx)
}

// Decode returns the next byte coded by Encode.
func (m *Model) Decode(dec *rangecoder.Decoder) byte {
	f := m.runFlag()
	ctx := 1
	for ctx < 256 {
		p, s1, s2 := m.mix(ctx, f)
		if dec.DecodeBit(p) != 0 {
			m.counter0[ctx].update1(fastRate)
			m.counter1[m.c1][ctx].update1(mediumRate)
			s1.update1(slowRate)
			s2.update1(slowRate)
			ctx = ctx + ctx + 1
		} else {
			m.counter0[ctx].update0(fastRate)
			m.counter1[m.c1][ctx].update0(mediumRate)
			s1.update0(slowRate)
			s2.update0(slowRate)
			ctx = ctx + ctx
		}
	}
	return byte(m.advance(ctx))
}
