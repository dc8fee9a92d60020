// Package qspi implements a portable QSPI flash controller on top of a vendor
// peripheral driver. It maps protocol agnostic commands onto the small set of
// wire protocols the peripheral supports, reconfigures the peripheral when the
// protocol or clock changes and dispatches transfers.
package qspi

import (
	"errors"
)

// Errors returned by Device methods. Errors caused by the peripheral driver
// are joined with the driver error so both can be matched with errors.Is.
var (
	// ErrInvalidParameter is returned for malformed or unsupported requests.
	ErrInvalidParameter = errors.New("qspi: invalid parameter")
	// ErrError is returned for peripheral failures and internal inconsistencies.
	ErrError = errors.New("qspi: error")
)

// MaxFrequency is the fastest supported bus clock in Hz.
const MaxFrequency = 32_000_000

// Flash opcodes the peripheral can issue on its own.
const (
	OpFastRead = 0x0B
	OpRead2O   = 0x3B
	OpRead2IO  = 0xBB
	OpRead4O   = 0x6B
	OpRead4IO  = 0xEB
	OpReadSFDP = 0x5A

	OpPP    = 0x02
	OpPP2O  = 0xA2
	OpPP4O  = 0x32
	OpPP4IO = 0x38
)

// BusWidth is the number of data lines used during a command phase.
type BusWidth uint8

const (
	BusSingle BusWidth = iota
	BusDual
	BusQuad
)

func (bw BusWidth) String() string {
	switch bw {
	case BusSingle:
		return "1"
	case BusDual:
		return "2"
	case BusQuad:
		return "4"
	}
	return "?"
}

// AddressSize is the width of the address phase.
type AddressSize uint8

const (
	AddrSize8 AddressSize = iota
	AddrSize16
	AddrSize24
	AddrSize32
)

// Instruction is the opcode phase of a command.
type Instruction struct {
	BusWidth BusWidth
	Value    uint8
	Disabled bool
}

// Address is the address phase of a command.
type Address struct {
	BusWidth BusWidth
	Size     AddressSize
	Value    uint32
	Disabled bool
}

// DataPhase is the data phase of a command. Its length is given by the transfer.
type DataPhase struct {
	BusWidth BusWidth
}

// Command describes a flash command independently of the peripheral.
type Command struct {
	Instruction Instruction
	Address     Address
	Data        DataPhase
}

// Protocol is a supported instruction-address-data bus width combination.
type Protocol uint8

const (
	protoInvalid Protocol = iota
	Proto111
	Proto114
	Proto144
	Proto112
	Proto122
)

// ProtocolOf returns the protocol matching the bus widths of cmd and false
// if the peripheral cannot issue it.
func ProtocolOf(cmd Command) (Protocol, bool) {
	if cmd.Instruction.BusWidth != BusSingle {
		return protoInvalid, false
	}
	a, d := cmd.Address.BusWidth, cmd.Data.BusWidth
	var p Protocol
	switch {
	case a == BusSingle && d == BusSingle:
		p = Proto111
	case a == BusSingle && d == BusQuad:
		p = Proto114
	case a == BusQuad && d == BusQuad:
		p = Proto144
	case a == BusSingle && d == BusDual:
		p = Proto112
	case a == BusDual && d == BusDual:
		p = Proto122
	}
	return p, p != protoInvalid
}

func (p Protocol) String() string {
	switch p {
	case Proto111:
		return "1-1-1"
	case Proto114:
		return "1-1-4"
	case Proto144:
		return "1-4-4"
	case Proto112:
		return "1-1-2"
	case Proto122:
		return "1-2-2"
	}
	return "invalid"
}
