package spiqspi

import (
	"bytes"
	"testing"

	"github.com/soypat/qspi/qspidrv"
)

// loopback wires SDO to SDI and counts rising clock edges.
type loopback struct {
	sck, sdo bool
	rising   int
	sampled  []bool // SDO level at each rising edge.
}

func (l *loopback) bus() *Bitbang {
	return &Bitbang{
		SCK: func(level bool) {
			if level && !l.sck {
				l.rising++
				l.sampled = append(l.sampled, l.sdo)
			}
			l.sck = level
		},
		SDO: func(level bool) { l.sdo = level },
		SDI: func() bool { return l.sdo },
	}
}

func TestBitbangLoopback(t *testing.T) {
	for _, mode := range []uint8{0, 3} {
		var l loopback
		bb := l.bus()
		if err := bb.Configure(1_000_000, mode); err != nil {
			t.Fatal(err)
		}
		l.rising, l.sampled = 0, nil
		w := []byte{0xA5, 0x01, 0x80, 0xff}
		r := make([]byte, len(w))
		if err := bb.Tx(w, r); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(w, r) {
			t.Errorf("mode %d: got %x, want %x", mode, r, w)
		}
		if l.rising != 8*len(w) {
			t.Errorf("mode %d: %d clock edges", mode, l.rising)
		}
		if l.sck != (mode == 3) {
			t.Errorf("mode %d: clock not idle after transfer", mode)
		}
		// 0xA5 MSB first.
		want := []bool{true, false, true, false, false, true, false, true}
		for i := range want {
			if l.sampled[i] != want[i] {
				t.Fatalf("mode %d: bit %d sampled %v", mode, i, l.sampled[i])
			}
		}
	}
}

func TestBitbangTx(t *testing.T) {
	var l loopback
	bb := l.bus()
	if err := bb.Configure(0, 1); err == nil {
		t.Error("expected mode 1 to be rejected")
	}
	if err := bb.Tx(make([]byte, 2), make([]byte, 3)); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := bb.Tx([]byte{1, 2}, nil); err != nil {
		t.Fatal(err)
	}
	r := []byte{0xff, 0xff}
	if err := bb.Tx(nil, r); err != nil || r[0] != 0 || r[1] != 0 {
		t.Errorf("read-only transfer %x %v", r, err)
	}
	b, _ := bb.Transfer(0x3C)
	if b != 0x3C {
		t.Errorf("transfer echo %#x", b)
	}
}

func TestBitbangDriver(t *testing.T) {
	var l loopback
	bb := l.bus()
	var selected []bool
	drv := New(bb, func(level bool) { selected = append(selected, level) })
	drv.Configure = bb.Configure
	cfg := qspidrv.Config{Pins: testPins}
	cfg.Phy.SPIMode = qspidrv.SPIMode1
	if err := drv.Init(&cfg); err != nil {
		t.Fatal(err)
	}
	if !l.sck {
		t.Error("mode 3 should idle clock high")
	}
	var rx [3]byte
	if err := drv.CInstrXfer(qspidrv.CInstrConfig{Opcode: 0x9F, Length: qspidrv.CInstrLen4B}, []byte{1, 2, 3}, rx[:]); err != nil {
		t.Fatal(err)
	}
	if rx != [3]byte{1, 2, 3} {
		t.Errorf("loopback instruction data %x", rx)
	}
	if len(selected) < 2 || selected[len(selected)-1] != true {
		t.Error("chip select left asserted")
	}
}
