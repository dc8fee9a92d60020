package qspi

import (
	"bytes"
	"testing"
)

func TestSFDPEmulatorWindows(t *testing.T) {
	e := NewSFDPEmulator(sfdpMX25R6435F[:])
	if e.ParamTableLen() != 64 {
		t.Fatal("param table length", e.ParamTableLen())
	}
	var buf [8]byte
	for _, want := range []int{0, 8, 16, 24, 0, 8} {
		if e.Offset() > sfdpWrapAt && want != 0 {
			t.Fatal("cursor did not wrap")
		}
		e.Read(buf[:])
		if !bytes.Equal(buf[:], sfdpMX25R6435F[want:want+8]) {
			t.Errorf("window at %d: got %x", want, buf)
		}
	}
	if e.Offset() != 16 {
		t.Error("offset after six reads", e.Offset())
	}
	// A 4 byte read still advances by a full window.
	e.Read(buf[:4])
	if e.Offset() != 24 || !bytes.Equal(buf[:4], sfdpMX25R6435F[16:20]) {
		t.Errorf("short read: offset %d data %x", e.Offset(), buf[:4])
	}
	e.Reset()
	if e.Offset() != 0 {
		t.Error("reset")
	}
}

func TestSFDPEmulatorParamTable(t *testing.T) {
	e := NewSFDPEmulator(sfdpMX25R6435F[:])
	e.Read(make([]byte, 8))
	dst := make([]byte, 64)
	e.Read(dst)
	if !bytes.Equal(dst, sfdpMX25R6435F[0x30:0x70]) {
		t.Errorf("param table %x", dst)
	}
	if e.Offset() != 8 {
		t.Error("param table read moved the cursor")
	}
	big := bytes.Repeat([]byte{0xAA}, 68)
	e.Read(big)
	if !bytes.Equal(big, bytes.Repeat([]byte{0xAA}, 68)) {
		t.Error("oversized read copied data")
	}
}

func TestSFDPEmulatorBadTable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewSFDPEmulator(make([]byte, 10))
}

func TestValidSFDPTable(t *testing.T) {
	if !ValidSFDPTable(sfdpMX25R6435F[:]) || !ValidSFDPTable(SFDPCustomBoard[:]) {
		t.Fatal("captured tables must be valid")
	}
	tbl := sfdpMX25R6435F
	tbl[sfdpParamPtrIdx] = SFDPTableLen - tbl[sfdpParamLenIdx]*4
	if !ValidSFDPTable(tbl[:]) {
		t.Error("table ending at the last byte should be valid")
	}
	tbl[sfdpParamPtrIdx]++
	if ValidSFDPTable(tbl[:]) {
		t.Error("table past the end should be invalid")
	}
	if ValidSFDPTable(sfdpMX25R6435F[:SFDPTableLen-1]) {
		t.Error("short table should be invalid")
	}
}
