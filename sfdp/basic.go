package sfdp

import "errors"

// Basic parameter table dword indices.
const (
	dwordCaps      = 0 // Erase size, 4K erase opcode, fast read support.
	dwordDensity   = 1
	dwordRead144   = 2 // 1-4-4 and 1-1-4 fast read settings.
	dwordRead122   = 3 // 1-1-2 and 1-2-2 fast read settings.
	dwordEraseType = 7 // Erase types 1 and 2.
)

// FastRead describes a fast read instruction advertised by the device.
type FastRead struct {
	// Name is the bus width triple, i.e: "1-4-4".
	Name   string
	Opcode uint8
	// Dummy is the number of wait states (dummy clocks).
	Dummy uint8
	// ModeClocks is the number of mode bit clocks.
	ModeClocks uint8
}

// Size returns the flash size in bytes.
func (s *SFDP) Size() (int64, error) {
	d := s.Basic[dwordDensity]
	if d&(1<<31) != 0 {
		// 2^N bits.
		n := d &^ (1 << 31)
		if n < 3 || n > 62 {
			return 0, errors.New("sfdp: density out of range")
		}
		return 1 << (n - 3), nil
	}
	return (int64(d) + 1) / 8, nil
}

// Erase4KOpcode returns the 4 KiB erase instruction.
func (s *SFDP) Erase4KOpcode() (uint8, error) {
	d := s.Basic[dwordCaps]
	if d&0b11 != 0b01 {
		return 0, errors.New("sfdp: 4KiB erase unsupported")
	}
	return uint8(d >> 8), nil
}

// AddressBytes returns the supported address widths in bytes: 3, 4 or both.
func (s *SFDP) AddressBytes() []int {
	switch (s.Basic[dwordCaps] >> 17) & 0b11 {
	case 0b00:
		return []int{3}
	case 0b01:
		return []int{3, 4}
	case 0b10:
		return []int{4}
	}
	return nil
}

// FastReads returns the multi-line fast read instructions the device supports.
func (s *SFDP) FastReads() []FastRead {
	caps := s.Basic[dwordCaps]
	var reads []FastRead
	if caps&(1<<16) != 0 && len(s.Basic) > dwordRead122 {
		reads = append(reads, fastRead("1-1-2", s.Basic[dwordRead122]))
	}
	if caps&(1<<20) != 0 && len(s.Basic) > dwordRead122 {
		reads = append(reads, fastRead("1-2-2", s.Basic[dwordRead122]>>16))
	}
	if caps&(1<<21) != 0 && len(s.Basic) > dwordRead144 {
		reads = append(reads, fastRead("1-4-4", s.Basic[dwordRead144]))
	}
	if caps&(1<<22) != 0 && len(s.Basic) > dwordRead144 {
		reads = append(reads, fastRead("1-1-4", s.Basic[dwordRead144]>>16))
	}
	return reads
}

// fastRead decodes a 16 bit fast read descriptor held in the low half of v.
func fastRead(name string, v uint32) FastRead {
	return FastRead{
		Name:       name,
		Dummy:      uint8(v & 0x1f),
		ModeClocks: uint8(v>>5) & 0x7,
		Opcode:     uint8(v >> 8),
	}
}

// EraseTypes returns the (size, opcode) pairs of the first two erase types.
// Unused erase types are omitted.
func (s *SFDP) EraseTypes() (sizes []int, opcodes []uint8) {
	if len(s.Basic) <= dwordEraseType {
		return nil, nil
	}
	d := s.Basic[dwordEraseType]
	for i := 0; i < 2; i++ {
		exp := uint8(d >> (16 * i))
		if exp == 0 {
			continue
		}
		sizes = append(sizes, 1<<exp)
		opcodes = append(opcodes, uint8(d>>(16*i+8)))
	}
	return sizes, opcodes
}
