// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build ignore
// +build ignore

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/cosnicolaou/bcm"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/must"
	"v.io/x/lib/cmd/flagvar"
)

var commandline struct {
	InputFile string `cmd:"input,,'input file, s3 path, or url'"`
}

func init() {
	must.Nil(flagvar.RegisterFlagsInStruct(flag.CommandLine, "cmd", &commandline,
		nil, nil))
}

func main() {
	ctx := context.Background()
	flag.Parse()

	f, err := file.Open(ctx, commandline.InputFile)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close(ctx)

	ch := make(chan bcm.Progress, 4)
	done := make(chan struct{})
	go func() {
		var compressed, size int64
		for p := range ch {
			compressed += int64(p.Compressed)
			size += int64(p.Size)
			fmt.Printf("block %v: %v -> %v bytes\n", p.Block, p.Compressed, p.Size)
		}
		fmt.Printf("total: %v -> %v bytes\n", compressed, size)
		close(done)
	}()

	rd := bcm.NewReader(f.Reader(ctx), bcm.DecompressProgress(ch))
	if _, err := io.Copy(io.Discard, rd); err != nil {
		log.Fatalf("decode: %v", err)
	}
	close(ch)
	<-done
}
