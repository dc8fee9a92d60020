package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	dec := decoder{AddrBytes: 3}
	tx := dec.decode(frame{
		SDO: []byte{0x0B, 0x01, 0x02, 0x03, 0x00, 0x00, 0x00},
		SDI: []byte{0, 0, 0, 0, 0, 0xAA, 0x55},
	})
	if tx.Info.Name != "FAST_READ" || tx.Addr != 0x010203 {
		t.Errorf("bad decode %+v", tx)
	}
	if !bytes.Equal(tx.Data, []byte{0xAA, 0x55}) {
		t.Errorf("expected read data from SDI, got %x", tx.Data)
	}

	tx = dec.decode(frame{SDO: []byte{0x02, 0x00, 0x10, 0x00, 1, 2, 3, 4}})
	if tx.Info.Name != "PP" || tx.Addr != 0x1000 || !bytes.Equal(tx.Data, []byte{1, 2, 3, 4}) {
		t.Errorf("bad page program %+v", tx)
	}

	dec.AddrBytes = 4
	tx = dec.decode(frame{SDO: []byte{0x20, 0x01, 0x00, 0x10, 0x00}})
	if tx.Addr != 0x01001000 || len(tx.Data) != 0 {
		t.Errorf("bad 4 byte erase %+v", tx)
	}

	// Truncated frames must not panic.
	tx = dec.decode(frame{SDO: []byte{0xD8, 0x01}})
	if tx.Addr != 1 {
		t.Error("truncated address", tx.Addr)
	}
	if dec.decode(frame{}).Info.Name != "EMPTY" {
		t.Error("expected empty frame")
	}
	if dec.decode(frame{SDO: []byte{0xEE}}).Info.Name != "OP_EE" {
		t.Error("expected unknown opcode name")
	}
}

func TestProcessCollapses(t *testing.T) {
	dec := decoder{AddrBytes: 3}
	poll := frame{SDO: []byte{opReadStatus, 0}, SDI: []byte{0, 0x01}}
	done := frame{SDO: []byte{opReadStatus, 0}, SDI: []byte{0, 0x00}}
	txs := dec.process([]frame{{SDO: []byte{0x06}}, poll, poll, poll, done})
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[1].Num != 3 || txs[2].Num != 1 {
		t.Errorf("bad counts %d %d", txs[1].Num, txs[2].Num)
	}
}

func TestFormat(t *testing.T) {
	dec := decoder{AddrBytes: 3, MaxData: 2}
	tx := dec.decode(frame{SDO: []byte{0x02, 0, 0, 0, 1, 2, 3, 4}})
	tx.Num = 1
	s := dec.format(tx)
	if !strings.Contains(s, "PP") || !strings.Contains(s, "data=0102...(+2)") || !strings.Contains(s, "len=4") {
		t.Error("unexpected format", s)
	}
	dec.OmitReadData = true
	tx = dec.decode(frame{SDO: []byte{0x9F, 0, 0, 0}, SDI: []byte{0, 0xC2, 0x28, 0x17}})
	if s = dec.format(tx); !strings.HasSuffix(s, "data=") {
		t.Error("read data not omitted", s)
	}
}
