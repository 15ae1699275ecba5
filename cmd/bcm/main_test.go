// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package main_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cosnicolaou/bcm/internal"
)

func bcmCmd(args ...string) (string, error) {
	cmd := exec.Command("go", append([]string{"run", "."}, args...)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func TestCmd(t *testing.T) {
	tmpdir := t.TempDir()
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"hello", []byte("hello world\n")},
		{"200KB1", internal.GenPredictableRandomData(200 * 1024)},
	} {
		raw := filepath.Join(tmpdir, tc.name)
		if err := os.WriteFile(raw, tc.data, 0600); err != nil {
			t.Fatalf("%v: %v", tc.name, err)
		}
		if out, err := bcmCmd("compress", "--level=1", "--progress=false", raw); err != nil {
			t.Fatalf("%v: %v: %v", tc.name, out, err)
		}
		restored := raw + ".restored"
		if out, err := bcmCmd("decompress", "--progress=false", "--output="+restored, raw+".bcm"); err != nil {
			t.Fatalf("%v: %v: %v", tc.name, out, err)
		}
		data, err := os.ReadFile(restored)
		if err != nil {
			t.Fatalf("%v: %v", tc.name, err)
		}
		if got, want := data, tc.data; !bytes.Equal(got, want) {
			t.Errorf("%v: got %v, want %v", tc.name, internal.FirstN(20, got), internal.FirstN(20, want))
		}
		if out, err := bcmCmd("inspect", raw+".bcm"); err != nil || !strings.Contains(out, "CRC OK") {
			t.Errorf("%v: inspect: %v: %v", tc.name, out, err)
		}
	}
}

func TestCmdErrors(t *testing.T) {
	tmpdir := t.TempDir()

	notbcm := filepath.Join(tmpdir, "notbcm.bcm")
	if err := os.WriteFile(notbcm, []byte("this is not compressed"), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := bcmCmd("decompress", "--progress=false", notbcm)
	if err == nil || !strings.Contains(out, "not in BCM format") {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}

	raw := filepath.Join(tmpdir, "hello")
	if err := os.WriteFile(raw, []byte("hello world\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if out, err := bcmCmd("compress", "--progress=false", raw); err != nil {
		t.Fatalf("%v: %v", out, err)
	}

	// Refuses to overwrite without --force.
	out, err = bcmCmd("compress", "--progress=false", raw)
	if err == nil || !strings.Contains(out, "already exists") {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}
	if out, err = bcmCmd("compress", "--progress=false", "--force", raw); err != nil {
		t.Fatalf("%v: %v", out, err)
	}

	// A corrupted tail must surface as a CRC/format error or an
	// unexpected EOF.
	data, err := os.ReadFile(raw + ".bcm")
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-6] ^= 0x10
	corrupt := filepath.Join(tmpdir, "corrupt.bcm")
	if err := os.WriteFile(corrupt, data, 0600); err != nil {
		t.Fatal(err)
	}
	out, err = bcmCmd("decompress", "--progress=false", corrupt)
	if err == nil || !(strings.Contains(out, "bcm data invalid") || strings.Contains(out, "unexpected EOF")) {
		t.Fatalf("missing or wrong error message: %v: %v", out, err)
	}
}
