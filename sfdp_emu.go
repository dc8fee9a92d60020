package qspi

// SFDPTableLen is the size of a canned discovery table.
const SFDPTableLen = 120

// Offsets into the SFDP header of the first parameter header fields.
const (
	sfdpParamLenIdx = 11 // Parameter table length in dwords.
	sfdpParamPtrIdx = 12 // Parameter table pointer, low byte.
)

// Header windows are served sfdpStride bytes at a time and wrap after
// sfdpWrapAt, which covers the first 32 bytes of the table.
const (
	sfdpStride = 8
	sfdpWrapAt = 24
)

// SFDP data captured from the MX25R6435F of an nRF52840 DK over SPI.
var sfdpMX25R6435F = [SFDPTableLen]byte{
	0x53, 0x46, 0x44, 0x50, 0x06, 0x01, 0x02, 0xFF,
	0x00, 0x06, 0x01, 0x10, 0x30, 0x00, 0x00, 0xFF,
	0xC2, 0x00, 0x01, 0x04, 0x10, 0x01, 0x00, 0xFF,
	0x84, 0x00, 0x01, 0x02, 0xC0, 0x00, 0x00, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xE5, 0x20, 0xF1, 0xFF, 0xFF, 0xFF, 0xFF, 0x03,
	0x44, 0xEB, 0x08, 0x6B, 0x08, 0x3B, 0x04, 0xBB,
	0xEE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0xFF,
	0xFF, 0xFF, 0x00, 0xFF, 0x0C, 0x20, 0x0F, 0x52,
	0x10, 0xD8, 0x00, 0xFF, 0x23, 0x72, 0xF5, 0x00,
	0x82, 0xED, 0x04, 0xCC, 0x44, 0x83, 0x48, 0x44,
	0x30, 0xB0, 0x30, 0xB0, 0xF7, 0xC4, 0xD5, 0x5C,
	0x00, 0xBE, 0x29, 0xFF, 0xF0, 0xD0, 0xFF, 0xFF,
}

// SFDPCustomBoard is the SFDP header captured from a Micron part on a custom
// board. The capture is 112 bytes long, the tail is zero.
var SFDPCustomBoard = [SFDPTableLen]byte{
	0x53, 0x46, 0x44, 0x50, 0x06, 0x01, 0x01, 0xFF,
	0x00, 0x06, 0x01, 0x10, 0x30, 0x00, 0x00, 0xFF,
	0x9D, 0x05, 0x01, 0x03, 0x80, 0x00, 0x00, 0x02,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xE5, 0x20, 0xF9, 0xFF, 0xFF, 0xFF, 0xFF, 0x03,
	0x44, 0xEB, 0x08, 0x6B, 0x08, 0x3B, 0x80, 0xBB,
	0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0xFF,
	0xFF, 0xFF, 0x44, 0xEB, 0x0C, 0x20, 0x0F, 0x52,
	0x10, 0xD8, 0x00, 0xFF, 0x23, 0x4A, 0xC9, 0x00,
	0x82, 0xD8, 0x11, 0xC3, 0xCC, 0xCD, 0x68, 0x46,
	0x7A, 0x75, 0x7A, 0x75, 0xF7, 0xA2, 0xD5, 0x5C,
	0x4A, 0x42, 0x2C, 0xFF, 0xF0, 0x30, 0xC0, 0x80,
}

// SFDPEmulator answers SFDP reads from a canned table instead of the bus.
// Short reads return consecutive 8 byte windows of the header; a read of
// exactly the parameter table length returns the parameter table.
//
// The window cursor is not reset between unrelated discovery sequences.
type SFDPEmulator struct {
	table  [SFDPTableLen]byte
	offset int
}

// NewSFDPEmulator returns an emulator serving table. table must be
// SFDPTableLen bytes long and its parameter table must lie within it,
// see [ValidSFDPTable].
func NewSFDPEmulator(table []byte) SFDPEmulator {
	if !ValidSFDPTable(table) {
		panic("bad SFDP table")
	}
	var e SFDPEmulator
	copy(e.table[:], table)
	return e
}

// ValidSFDPTable reports whether table can be served by an [SFDPEmulator]:
// it is SFDPTableLen bytes long and the first parameter table, found through
// the pointer and length fields of its header, ends within it.
func ValidSFDPTable(table []byte) bool {
	if len(table) != SFDPTableLen {
		return false
	}
	ptr := int(table[sfdpParamPtrIdx])
	plen := int(table[sfdpParamLenIdx]) * 4
	return ptr+plen <= SFDPTableLen
}

// ParamTableLen returns the length in bytes of the first parameter table.
func (e *SFDPEmulator) ParamTableLen() int {
	return int(e.table[sfdpParamLenIdx]) * 4
}

// Read serves an SFDP read of len(dst) bytes. Reads longer than the parameter
// table are ignored.
func (e *SFDPEmulator) Read(dst []byte) {
	plen := e.ParamTableLen()
	switch {
	case len(dst) < plen:
		if e.offset > sfdpWrapAt {
			e.offset = 0
		}
		copy(dst, e.table[e.offset:])
		e.offset += sfdpStride
	case len(dst) == plen:
		ptr := int(e.table[sfdpParamPtrIdx])
		copy(dst, e.table[ptr:])
	}
}

// Offset returns the current header window cursor.
func (e *SFDPEmulator) Offset() int { return e.offset }

// Reset rewinds the header window cursor.
func (e *SFDPEmulator) Reset() { e.offset = 0 }
