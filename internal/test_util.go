// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"math/rand"
)

// Seed for the pseudorandom generator, shared by the package tests so
// that failures reproduce.
const fixedRandSeed = 0x1234

// GenPredictableRandomData generates random data starting with a fixed
// known seed.
func GenPredictableRandomData(size int) []byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// GenRepetitiveData repeats pattern until size bytes are filled; highly
// compressible input that exercises the run-handling paths.
func GenRepetitiveData(size int, pattern []byte) []byte {
	return bytes.Repeat(pattern, (size+len(pattern)-1)/len(pattern))[:size]
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
