// Package qspidrv defines the contract of a vendor QSPI peripheral driver
// modelled after the nRF52 QSPI block: its configuration record, the
// enumerated register field values and the primitive operations.
package qspidrv

import (
	"errors"
	"strconv"
)

// Driver is the low level peripheral driver. Init must not be called on an
// already initialized peripheral; callers Uninit first.
type Driver interface {
	// Init configures and enables the peripheral with cfg.
	Init(cfg *Config) error
	// Uninit disables the peripheral. Calling it on a disabled peripheral is harmless.
	Uninit()
	// Read reads len(dst) bytes starting at flash address addr. len(dst) must be word aligned.
	Read(dst []byte, addr uint32) error
	// Write writes src starting at flash address addr. len(src) must be word aligned.
	Write(src []byte, addr uint32) error
	// CInstrXfer runs a custom instruction. tx and rx hold the cfg.Length-1
	// bytes following the opcode and may share the same backing array.
	CInstrXfer(cfg CInstrConfig, tx, rx []byte) error
}

// Driver error codes.
var (
	ErrInvalidParam = errors.New("qspidrv: invalid parameter")
	ErrInvalidState = errors.New("qspidrv: invalid state")
	ErrInvalidAddr  = errors.New("qspidrv: invalid address")
	ErrTimeout      = errors.New("qspidrv: timeout")
)

// Pin is an opaque pin identifier.
type Pin uint32

// PinNotConnected marks an unused pin.
const PinNotConnected Pin = 0xFFFF_FFFF

// Pins holds the peripheral pin assignments.
type Pins struct {
	SCK Pin
	CSN Pin
	IO0 Pin
	IO1 Pin
	IO2 Pin
	IO3 Pin
}

// Frequency is the SCK divider of the 32MHz base clock. Register value n
// yields 32MHz/(n+1).
type Frequency uint8

const (
	Freq32MDiv1 Frequency = iota
	Freq32MDiv2
	Freq32MDiv3
	Freq32MDiv4
	Freq32MDiv5
	Freq32MDiv6
	Freq32MDiv7
	Freq32MDiv8
	Freq32MDiv9
	Freq32MDiv10
	Freq32MDiv11
	Freq32MDiv12
	Freq32MDiv13
	Freq32MDiv14
	Freq32MDiv15
	Freq32MDiv16
)

// BaseClock is the undivided peripheral clock in Hz.
const BaseClock = 32_000_000

// Divider returns the integer clock divider.
func (f Frequency) Divider() int { return int(f) + 1 }

// Hz returns the resulting SCK frequency.
func (f Frequency) Hz() int { return BaseClock / f.Divider() }

func (f Frequency) String() string {
	return "32MDIV" + strconv.Itoa(f.Divider())
}

// SPIMode is the clock polarity/phase mode. The block only implements 0 and 3,
// which the SDK calls MODE_0 and MODE_1.
type SPIMode uint8

const (
	SPIMode0 SPIMode = iota // CPOL=0, CPHA=0
	SPIMode1                // CPOL=1, CPHA=1
)

// ReadOC is the read opcode class used for Read transfers.
type ReadOC uint8

const (
	ReadOCFastRead ReadOC = iota // 0x0B
	ReadOCRead2O                 // 0x3B
	ReadOCRead2IO                // 0xBB
	ReadOCRead4O                 // 0x6B
	ReadOCRead4IO                // 0xEB
)

// WriteOC is the write opcode class used for Write transfers.
type WriteOC uint8

const (
	WriteOCPP    WriteOC = iota // 0x02
	WriteOCPP2O                 // 0xA2
	WriteOCPP4O                 // 0x32
	WriteOCPP4IO                // 0x38
)

// AddrMode is the address width of Read and Write transfers.
type AddrMode uint8

const (
	AddrMode24 AddrMode = iota
	AddrMode32
)

// Opcode returns the flash instruction the peripheral emits for the class.
func (oc ReadOC) Opcode() uint8 {
	switch oc {
	case ReadOCFastRead:
		return 0x0B
	case ReadOCRead2O:
		return 0x3B
	case ReadOCRead2IO:
		return 0xBB
	case ReadOCRead4O:
		return 0x6B
	case ReadOCRead4IO:
		return 0xEB
	}
	return 0
}

// Opcode returns the flash instruction the peripheral emits for the class.
func (oc WriteOC) Opcode() uint8 {
	switch oc {
	case WriteOCPP:
		return 0x02
	case WriteOCPP2O:
		return 0xA2
	case WriteOCPP4O:
		return 0x32
	case WriteOCPP4IO:
		return 0x38
	}
	return 0
}

// AddrBytes returns the number of address bytes sent on the bus.
func (m AddrMode) AddrBytes() int {
	if m == AddrMode32 {
		return 4
	}
	return 3
}

// PhyIf holds the physical interface settings.
type PhyIf struct {
	SCKFreq   Frequency
	SCKDelay  uint8 // In 62.5ns units, minimum CSN high time.
	DPMEnable bool  // Deep power-down mode.
	SPIMode   SPIMode
}

// ProtIf holds the protocol interface settings.
type ProtIf struct {
	ReadOC   ReadOC
	WriteOC  WriteOC
	AddrMode AddrMode
}

// Config is the full peripheral configuration record.
type Config struct {
	Pins        Pins
	Phy         PhyIf
	Prot        ProtIf
	IRQPriority uint8
}

// CInstrLen is the total custom instruction frame length, opcode included.
type CInstrLen uint8

const (
	CInstrLen1B CInstrLen = iota + 1
	CInstrLen2B
	CInstrLen3B
	CInstrLen4B
	CInstrLen5B
	CInstrLen6B
	CInstrLen7B
	CInstrLen8B
	CInstrLen9B
)

// DataLen returns the number of bytes following the opcode.
func (l CInstrLen) DataLen() int { return int(l) - 1 }

// CInstrConfig describes a custom instruction transfer.
type CInstrConfig struct {
	Opcode   uint8
	Length   CInstrLen
	IO2Level bool // Level of IO2 during the transfer.
	IO3Level bool // Level of IO3 during the transfer.
	WIPWait  bool // Wait for the write-in-progress bit to clear before starting.
	WREN     bool // Send write enable before the instruction.
}

// Validate checks the record against the enumerations the block accepts.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Phy.SCKFreq > Freq32MDiv16,
		cfg.Phy.SPIMode > SPIMode1,
		cfg.Prot.ReadOC > ReadOCRead4IO,
		cfg.Prot.WriteOC > WriteOCPP4IO,
		cfg.Prot.AddrMode > AddrMode32,
		cfg.IRQPriority > 7:
		return ErrInvalidParam
	}
	p := cfg.Pins
	if p.SCK == PinNotConnected || p.CSN == PinNotConnected || p.IO0 == PinNotConnected || p.IO1 == PinNotConnected {
		return ErrInvalidParam
	}
	return nil
}
