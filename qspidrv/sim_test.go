package qspidrv

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrequency(t *testing.T) {
	if Freq32MDiv1.Hz() != 32_000_000 || Freq32MDiv16.Hz() != 2_000_000 || Freq32MDiv2.Hz() != 16_000_000 {
		t.Error("bad frequency conversion")
	}
	if Freq32MDiv3.String() != "32MDIV3" {
		t.Error("bad string", Freq32MDiv3.String())
	}
}

func TestOpcodes(t *testing.T) {
	if ReadOCRead4IO.Opcode() != 0xEB || ReadOCRead2O.Opcode() != 0x3B || WriteOCPP4O.Opcode() != 0x32 || WriteOCPP2O.Opcode() != 0xA2 {
		t.Error("bad opcode mapping")
	}
	if AddrMode24.AddrBytes() != 3 || AddrMode32.AddrBytes() != 4 {
		t.Error("bad address width")
	}
}

func TestValidate(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatal("zero config should be valid:", err)
	}
	bad := cfg
	bad.Phy.SCKFreq = 16
	if !errors.Is(bad.Validate(), ErrInvalidParam) {
		t.Error("expected invalid frequency")
	}
	bad = cfg
	bad.Pins.CSN = PinNotConnected
	if !errors.Is(bad.Validate(), ErrInvalidParam) {
		t.Error("expected invalid pins")
	}
}

func TestSimLifecycle(t *testing.T) {
	s := NewSim(8192, [3]byte{1, 2, 3})
	if err := s.Read(make([]byte, 4), 0); !errors.Is(err, ErrInvalidState) {
		t.Error("read on disabled peripheral:", err)
	}
	cfg := Config{}
	if err := s.Init(&cfg); err != nil {
		t.Fatal(err)
	}
	if err := s.Init(&cfg); !errors.Is(err, ErrInvalidState) {
		t.Error("init while active:", err)
	}
	s.Uninit()
	quad := cfg
	quad.Prot.ReadOC = ReadOCRead4IO
	quad.Pins.IO3 = PinNotConnected
	if err := s.Init(&quad); !errors.Is(err, ErrInvalidParam) {
		t.Error("quad without IO3:", err)
	}
	if s.InitCalls != 3 || s.UninitCalls != 1 {
		t.Errorf("bad call counts %d %d", s.InitCalls, s.UninitCalls)
	}
}

func TestSimFlash(t *testing.T) {
	s := NewSim(2*SimSectorSize, [3]byte{0xC2, 0x28, 0x17})
	cfg := Config{}
	if err := s.Init(&cfg); err != nil {
		t.Fatal(err)
	}
	if err := s.Write([]byte{0x0f, 0xf0, 0xaa, 0x55}, SimSectorSize); err != nil {
		t.Fatal(err)
	}
	// Programming only clears bits.
	if err := s.Write([]byte{0xf0, 0xff, 0xff, 0xff}, SimSectorSize); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 4)
	if err := s.Read(got, SimSectorSize); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x00, 0xf0, 0xaa, 0x55}) {
		t.Errorf("got %x", got)
	}
	if err := s.Read(got, 2*SimSectorSize); !errors.Is(err, ErrInvalidAddr) {
		t.Error("read past end:", err)
	}
	if err := s.Write(got[:3], 0); !errors.Is(err, ErrInvalidParam) {
		t.Error("unaligned write:", err)
	}

	var buf [8]byte
	// Erase without write enable is ignored.
	addr := []byte{0x00, 0x10, 0x00}
	copy(buf[:], addr)
	if err := s.CInstrXfer(CInstrConfig{Opcode: cmdSectorErase, Length: CInstrLen4B}, buf[:], buf[:]); err != nil {
		t.Fatal(err)
	}
	if s.Memory()[SimSectorSize] != 0 {
		t.Fatal("erase without WREN modified flash")
	}
	copy(buf[:], addr)
	if err := s.CInstrXfer(CInstrConfig{Opcode: cmdSectorErase, Length: CInstrLen4B, WREN: true}, buf[:], buf[:]); err != nil {
		t.Fatal(err)
	}
	if s.Memory()[SimSectorSize] != 0xff {
		t.Fatal("sector not erased")
	}
	if err := s.CInstrXfer(CInstrConfig{Opcode: cmdReadJEDEC, Length: CInstrLen4B}, buf[:], buf[:]); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:3], []byte{0xC2, 0x28, 0x17}) {
		t.Errorf("jedec %x", buf[:3])
	}
	if err := s.CInstrXfer(CInstrConfig{Opcode: cmdWriteEnable, Length: CInstrLen1B}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.CInstrXfer(CInstrConfig{Opcode: cmdReadStatus, Length: CInstrLen2B}, buf[:], buf[:]); err != nil {
		t.Fatal(err)
	}
	if buf[0]&statusWEL == 0 {
		t.Error("write enable latch not reported")
	}
}
