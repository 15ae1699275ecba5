// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cosnicolaou/bcm"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"
)

type compressFlags struct {
	Level       int    `subcmd:"level,4,'compression level 1..9, selects the block size (1MB..2GB)'"`
	Force       bool   `subcmd:"force,false,'overwrite the output file if it exists'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
	OutputFile  string `subcmd:"output,,'output file or s3 path, defaults to the input with a .bcm suffix'"`
}

type decompressFlags struct {
	Force       bool   `subcmd:"force,false,'overwrite the output file if it exists'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
	OutputFile  string `subcmd:"output,,'output file or s3 path, defaults to the input with its .bcm suffix removed'"`
}

type noFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	compressCmd := subcmd.NewCommand("compress",
		subcmd.MustRegisterFlagStruct(&compressFlags{}, nil, nil),
		compress, subcmd.ExactlyNumArguments(1))
	compressCmd.Document(`compress a file to the bcm format. Files may be local, on S3 or a URL.`)

	decompressCmd := subcmd.NewCommand("decompress",
		subcmd.MustRegisterFlagStruct(&decompressFlags{}, nil, nil),
		decompress, subcmd.ExactlyNumArguments(1))
	decompressCmd.Document(`decompress a bcm file.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&noFlags{}, nil, nil),
		inspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`decode bcm files without writing output, printing the per-block structure and verifying the stream CRC.`)

	cmdSet = subcmd.NewCommandSet(compressCmd, decompressCmd, inspectCmd)
	cmdSet.Document(`compress, decompress and inspect bcm files. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body,
			resp.ContentLength,
			func(context.Context) error {
				resp.Body.Close()
				return nil
			},
			err
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

// refuseOverwrite mirrors the historical bcm prompt as a hard error so
// that the tool stays usable in pipelines.
func refuseOverwrite(ctx context.Context, name string, force bool) error {
	if force {
		return nil
	}
	if _, err := file.Stat(ctx, name); err == nil {
		return fmt.Errorf("%v already exists, use --force to overwrite", name)
	}
	return nil
}

func isLocal(name string) bool {
	return !strings.Contains(name, "://")
}

// mirrorTimestamps carries the input's modification time over to the
// output, for local files only.
func mirrorTimestamps(input, output string) error {
	if !isLocal(input) || !isLocal(output) {
		return nil
	}
	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	return os.Chtimes(output, info.ModTime(), info.ModTime())
}

func defaultOutputName(input string, decompressing bool) string {
	if !decompressing {
		return input + ".bcm"
	}
	if out := strings.TrimSuffix(input, ".bcm"); out != input && len(out) > 0 {
		return out
	}
	return input + ".out"
}

// progressBar renders per-block updates until the channel is closed. The
// add function selects which side of the pipeline drives the bar.
func progressBar(ctx context.Context, wr io.Writer, ch chan bcm.Progress, size int64, add func(bcm.Progress) int) {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(wr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				fmt.Fprintf(wr, "\n")
				return
			}
			bar.Add(add(p))
		case <-ctx.Done():
			return
		}
	}
}

func startProgressBar(ctx context.Context, enabled bool, size int64, add func(bcm.Progress) int) (chan bcm.Progress, func()) {
	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	if !enabled || !isTTY || size <= 0 {
		return nil, func() {}
	}
	ch := make(chan bcm.Progress, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		progressBar(ctx, os.Stderr, ch, size, add)
		wg.Done()
	}()
	return ch, func() {
		close(ch)
		wg.Wait()
	}
}

func compress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	cl := values.(*compressFlags)

	input := args[0]
	output := cl.OutputFile
	if len(output) == 0 {
		output = defaultOutputName(input, false)
	}
	if err := refuseOverwrite(ctx, output, cl.Force); err != nil {
		return err
	}

	rd, size, readerCleanup, err := openFileOrURL(ctx, input)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	blockSize, err := bcm.LevelBlockSize(cl.Level)
	if err != nil {
		return err
	}
	if size > 0 && size < int64(blockSize) {
		blockSize = int(size)
	}

	wr, writerCleanup, err := createFile(ctx, output)
	if err != nil {
		return err
	}

	opts := []bcm.WriterOption{bcm.BlockSize(blockSize)}
	ch, stopBar := startProgressBar(ctx, cl.ProgressBar, size,
		func(p bcm.Progress) int { return p.Size })
	if ch != nil {
		opts = append(opts, bcm.CompressProgress(ch))
	}

	errs := &errors.M{}
	zw, err := bcm.NewWriter(wr, opts...)
	if err == nil {
		_, err = io.Copy(zw, rd)
		errs.Append(err)
		errs.Append(zw.Close())
	} else {
		errs.Append(err)
	}
	errs.Append(writerCleanup(ctx))
	stopBar()

	if errs.Err() == nil {
		errs.Append(mirrorTimestamps(input, output))
	}
	return errs.Err()
}

func decompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	cl := values.(*decompressFlags)

	input := args[0]
	output := cl.OutputFile
	if len(output) == 0 {
		output = defaultOutputName(input, true)
	}
	if err := refuseOverwrite(ctx, output, cl.Force); err != nil {
		return err
	}

	rd, size, readerCleanup, err := openFileOrURL(ctx, input)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	wr, writerCleanup, err := createFile(ctx, output)
	if err != nil {
		return err
	}

	var opts []bcm.ReaderOption
	ch, stopBar := startProgressBar(ctx, cl.ProgressBar, size,
		func(p bcm.Progress) int { return p.Compressed })
	if ch != nil {
		opts = append(opts, bcm.DecompressProgress(ch))
	}

	errs := &errors.M{}
	_, err = io.Copy(wr, bcm.NewReader(rd, opts...))
	errs.Append(err)
	errs.Append(writerCleanup(ctx))
	stopBar()

	if errs.Err() == nil {
		errs.Append(mirrorTimestamps(input, output))
	}
	return errs.Err()
}

func inspectFile(ctx context.Context, name string) error {
	rd, _, readerCleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	ch := make(chan bcm.Progress, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		for p := range ch {
			fmt.Printf("%v: block %v: %v -> %v bytes\n", name, p.Block, p.Compressed, p.Size)
		}
		wg.Done()
	}()

	n, err := io.Copy(io.Discard, bcm.NewReader(rd, bcm.DecompressProgress(ch)))
	close(ch)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("%v: %v", name, err)
	}
	fmt.Printf("%v: %v bytes, CRC OK\n", name, n)
	return nil
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cmdutil.HandleSignals(cancel, os.Interrupt)
	errs := errors.M{}
	for _, arg := range args {
		errs.Append(inspectFile(ctx, arg))
	}
	return errs.Err()
}
