// Package sfdp decodes Serial Flash Discoverable Parameters (JESD216) as
// returned by the 0x5A read instruction.
package sfdp

import (
	"encoding/binary"
	"errors"
)

const (
	// BasicTableID identifies the JEDEC basic flash parameter table.
	BasicTableID = 0xFF00
	// FourByteAddrTableID identifies the JEDEC 4-byte address instruction table.
	FourByteAddrTableID = 0xFF84

	headerSize      = 8
	paramHeaderSize = 8
	signature       = 0x50444653 // "SFDP" little endian.
)

var (
	ErrNoSignature   = errors.New("sfdp: bad signature, chip does not support SFDP")
	ErrNoBasicTable  = errors.New("sfdp: missing basic parameter table")
	ErrShortTable    = errors.New("sfdp: parameter table too short")
	ErrTableNotFound = errors.New("sfdp: table not found")
)

// ReaderAt reads len(out) bytes of the SFDP address space starting at offset.
type ReaderAt interface {
	SFDPReadAt(offset uint32, out []byte) error
}

// Buffer is an in-memory SFDP address space.
type Buffer []byte

// SFDPReadAt implements [ReaderAt] for Buffer.
func (b Buffer) SFDPReadAt(offset uint32, out []byte) error {
	offset &= 0x00ff_ffff
	if int(offset)+len(out) > len(b) {
		return errors.New("sfdp: read out of range")
	}
	copy(out, b[offset:])
	return nil
}

// Header is the SFDP header found at offset 0.
type Header struct {
	MinorRev uint8
	MajorRev uint8
	// NumParams is the number of parameter headers. The on-wire field is zero based.
	NumParams      int
	AccessProtocol uint8
}

// ParamHeader describes one parameter table.
type ParamHeader struct {
	ID       uint16
	MinorRev uint8
	MajorRev uint8
	// Length is the table length in dwords.
	Length  uint8
	Pointer uint32
}

// SFDP holds the decoded header, all parameter headers and the basic
// parameter table.
type SFDP struct {
	Header
	Params []ParamHeader
	// Basic is the basic flash parameter table as little endian dwords.
	Basic []uint32
}

// Parse reads the header, each parameter header and the basic parameter table.
// Reads are issued in that order: 8 bytes at 0, 8 bytes per parameter header
// and one read of the basic table's length.
func Parse(r ReaderAt) (*SFDP, error) {
	var buf [headerSize]byte
	if err := r.SFDPReadAt(0, buf[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(buf[:4]) != signature {
		return nil, ErrNoSignature
	}
	s := &SFDP{Header: Header{
		MinorRev:       buf[4],
		MajorRev:       buf[5],
		NumParams:      int(buf[6]) + 1,
		AccessProtocol: buf[7],
	}}
	s.Params = make([]ParamHeader, s.NumParams)
	for i := range s.Params {
		err := r.SFDPReadAt(uint32(headerSize+i*paramHeaderSize), buf[:])
		if err != nil {
			return nil, err
		}
		s.Params[i] = decodeParamHeader(buf[:])
	}
	basic := s.Param(BasicTableID)
	if basic == nil {
		return nil, ErrNoBasicTable
	}
	tbl, err := ReadTable(r, *basic)
	if err != nil {
		return nil, err
	}
	if len(tbl) < 2 {
		return nil, ErrShortTable
	}
	s.Basic = tbl
	return s, nil
}

func decodeParamHeader(b []byte) ParamHeader {
	_ = b[7]
	return ParamHeader{
		ID:       uint16(b[7])<<8 | uint16(b[0]),
		MinorRev: b[1],
		MajorRev: b[2],
		Length:   b[3],
		Pointer:  uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16,
	}
}

// ReadTable reads the parameter table described by p.
func ReadTable(r ReaderAt, p ParamHeader) ([]uint32, error) {
	raw := make([]byte, int(p.Length)*4)
	if err := r.SFDPReadAt(p.Pointer, raw); err != nil {
		return nil, err
	}
	tbl := make([]uint32, p.Length)
	for i := range tbl {
		tbl[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return tbl, nil
}

// Param returns the first parameter header with the given id or nil.
func (s *SFDP) Param(id uint16) *ParamHeader {
	for i := range s.Params {
		if s.Params[i].ID == id {
			return &s.Params[i]
		}
	}
	return nil
}

// Table reads the parameter table with the given id from r.
func (s *SFDP) Table(r ReaderAt, id uint16) ([]uint32, error) {
	p := s.Param(id)
	if p == nil {
		return nil, ErrTableNotFound
	}
	return ReadTable(r, *p)
}
