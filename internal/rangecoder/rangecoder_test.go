// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rangecoder

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
)

func TestDirectRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 0xFF, 0x1234, 0xDEADBEEF, 0x00FFFFFF, 0x7FFFFFFF, 0xFFFFFFFF}

	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	for _, v := range values {
		enc.EncodeDirect(v, 32)
	}
	for _, v := range values {
		enc.EncodeDirect(v&0xFF, 8)
	}
	enc.Flush()
	if err := enc.Err(); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	for i, v := range values {
		if got, want := dec.DecodeDirect(32), v; got != want {
			t.Errorf("value %v: got %#x, want %#x", i, got, want)
		}
	}
	for i, v := range values {
		if got, want := dec.DecodeDirect(8), v&0xFF; got != want {
			t.Errorf("byte %v: got %#x, want %#x", i, got, want)
		}
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestBitRoundTrip(t *testing.T) {
	gen := rand.New(rand.NewSource(0x1234))

	// A mix of skewed and even probabilities; all strictly inside the
	// [0, 1<<ModelBits) scale as the model guarantees.
	probs := []uint32{1 << 17, 1000, 260000, 1 << 12, 1<<18 - 4}

	bits := make([]int, 4096)
	ps := make([]uint32, len(bits))
	for i := range bits {
		ps[i] = probs[gen.Intn(len(probs))]
		if uint32(gen.Intn(1 << 18)) < ps[i] {
			bits[i] = 1
		}
	}

	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	for i, b := range bits {
		enc.EncodeBit(b, ps[i])
	}
	enc.Flush()
	if err := enc.Err(); err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	for i := range bits {
		if got, want := dec.DecodeBit(ps[i]), bits[i]; got != want {
			t.Fatalf("bit %v: got %v, want %v", i, got, want)
		}
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestRenormInvariants(t *testing.T) {
	gen := rand.New(rand.NewSource(99))
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	for i := 0; i < 10000; i++ {
		p := uint32(gen.Intn(1 << 18))
		bit := 0
		if gen.Intn(2) == 1 {
			bit = 1
		}
		enc.EncodeBit(bit, p)
		if enc.low > enc.high {
			t.Fatalf("op %v: low %#x > high %#x", i, enc.low, enc.high)
		}
		if enc.low^enc.high < renormLimit {
			t.Fatalf("op %v: unrenormalized range %#x..%#x", i, enc.low, enc.high)
		}
	}
	enc.Flush()

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	gen = rand.New(rand.NewSource(99))
	for i := 0; i < 10000; i++ {
		p := uint32(gen.Intn(1 << 18))
		gen.Intn(2)
		dec.DecodeBit(p)
		if dec.low > dec.high {
			t.Fatalf("op %v: low %#x > high %#x", i, dec.low, dec.high)
		}
		if dec.err == nil && (dec.code < dec.low || dec.code > dec.high) {
			t.Fatalf("op %v: code %#x outside %#x..%#x", i, dec.code, dec.low, dec.high)
		}
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestExactStreamConsumption(t *testing.T) {
	// The decoder must consume exactly the emitted bytes: the coded
	// symbols plus the 4 tail bytes from Flush.
	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	for i := 0; i < 100; i++ {
		enc.EncodeDirect(uint32(i)*2654435761, 32)
	}
	enc.Flush()

	rd := bytes.NewReader(buf.Bytes())
	dec := NewDecoder(rd)
	for i := 0; i < 100; i++ {
		if got, want := dec.DecodeDirect(32), uint32(i)*2654435761; got != want {
			t.Fatalf("value %v: got %#x, want %#x", i, got, want)
		}
	}
	if err := dec.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := rd.Len(), 0; got != want {
		t.Errorf("unread bytes: got %v, want %v", got, want)
	}
}

func TestTruncatedStream(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0x01, 0x02}))
	if got, want := dec.Err(), io.ErrUnexpectedEOF; got != want {
		t.Errorf("got %v, want %v", got, want)
	}

	buf := &bytes.Buffer{}
	enc := NewEncoder(buf)
	for i := 0; i < 64; i++ {
		enc.EncodeDirect(0xA5A5A5A5, 32)
	}
	enc.Flush()

	truncated := buf.Bytes()[:buf.Len()-5]
	dec = NewDecoder(bytes.NewReader(truncated))
	for i := 0; i < 64; i++ {
		dec.DecodeDirect(32)
	}
	if got, want := dec.Err(), io.ErrUnexpectedEOF; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
