//go:build ignore
// +build ignore

package main

import (
	"log"
	"os"

	"github.com/cosnicolaou/bcm"
	"github.com/cosnicolaou/bcm/internal"
)

// Writes sample .bcm files for manual testing of the command line tool
// and for cross-checking against other decoder implementations.
func main() {
	for _, tc := range []struct {
		name string
		data []byte
		opts []bcm.WriterOption
	}{
		{"empty.bcm", nil, nil},
		{"hello.bcm", []byte("hello world\n"), nil},
		{"100KB1.bcm", internal.GenPredictableRandomData(100 * 1024), []bcm.WriterOption{bcm.CompressionLevel(1)}},
		{"zeros.bcm", make([]byte, 1<<20), []bcm.WriterOption{bcm.CompressionLevel(4)}},
		{"blocks.bcm", internal.GenPredictableRandomData(100 * 1024), []bcm.WriterOption{bcm.BlockSize(16 * 1024)}},
	} {
		f, err := os.Create(tc.name)
		if err != nil {
			log.Fatalf("create %v: %v", tc.name, err)
		}
		wr, err := bcm.NewWriter(f, tc.opts...)
		if err != nil {
			log.Fatalf("%v: %v", tc.name, err)
		}
		if _, err := wr.Write(tc.data); err != nil {
			log.Fatalf("%v: %v", tc.name, err)
		}
		if err := wr.Close(); err != nil {
			log.Fatalf("%v: %v", tc.name, err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("%v: %v", tc.name, err)
		}
		log.Printf("wrote %v (%v bytes in)", tc.name, len(tc.data))
	}
}
