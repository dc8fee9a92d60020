package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestID(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"id"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "manufacturer=0xc2") {
		t.Error("unexpected output", out.String())
	}
}

func TestSFDP(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"sfdp"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.Contains(s, "size: 8388608 bytes") || !strings.Contains(s, "fast read 1-4-4: opcode=0xeb") {
		t.Error("unexpected output", s)
	}
}

func TestImageRoundTrip(t *testing.T) {
	image := filepath.Join(t.TempDir(), "flash.bin")
	var out bytes.Buffer
	err := run([]string{"-image", image, "-size", "8192", "-proto", "1-1-4", "write", "0x1000", "deadbeef01"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(image)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 8192 || !bytes.Equal(b[0x1000:0x1008], []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0xff, 0xff, 0xff}) {
		t.Fatalf("bad image contents % x", b[0x1000:0x1008])
	}
	out.Reset()
	err = run([]string{"-image", image, "-proto", "1-4-4", "read", "0x1000", "5"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "de ad be ef 01") {
		t.Error("unexpected read output", out.String())
	}
	err = run([]string{"-image", image, "erase", "0x1000"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(image)
	if b[0x1000] != 0xff {
		t.Error("sector not erased")
	}
}

func TestBadProtocol(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-proto", "1-2-2", "write", "0", "00000000"}, &out); err == nil {
		t.Error("expected 1-2-2 write to fail")
	}
	if err := run([]string{"-proto", "4-4-4", "read", "0", "4"}, &out); err == nil {
		t.Error("expected unknown protocol error")
	}
	if err := run([]string{"bogus"}, &out); err == nil {
		t.Error("expected unknown command error")
	}
}
