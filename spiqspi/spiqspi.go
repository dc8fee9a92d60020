// Package spiqspi implements the QSPI peripheral driver contract over a plain
// single line SPI bus and a chip select pin. Only the 1-1-1 protocol is
// available, any other read or write opcode class is rejected by Init.
package spiqspi

import (
	"time"

	"github.com/soypat/qspi/qspidrv"
	"golang.org/x/exp/constraints"
	"tinygo.org/x/drivers"
)

const (
	cmdWriteEnable = 0x06
	cmdReadStatus  = 0x05
	cmdFastRead    = 0x0B
	cmdPageProgram = 0x02

	statusWIP = 1 << 0
	pageSize  = 256
)

const (
	programTimeout = 50 * time.Millisecond
	// instrTimeout bounds the wait for a previous erase before a custom instruction.
	instrTimeout = 3 * time.Second
)

// OutputPin sets a pin level, true is high.
type OutputPin func(bool)

// Driver drives a NOR flash over SPI. It implements [qspidrv.Driver].
type Driver struct {
	spi    drivers.SPI
	cs     OutputPin
	cfg    qspidrv.Config
	active bool
	hdr    [6]byte
	// discard receives bytes clocked in while sending. Some buses require
	// equal length buffers in Tx.
	discard [pageSize]byte
	// Configure, if set, is called by Init to apply the bus clock in Hz and the
	// SPI mode (0 or 3).
	Configure func(hz uint32, mode uint8) error
}

var _ qspidrv.Driver = (*Driver)(nil)

// New returns a driver using spi and an active low chip select.
func New(spi drivers.SPI, cs OutputPin) *Driver {
	cs(true)
	return &Driver{spi: spi, cs: cs}
}

// Init implements [qspidrv.Driver].
func (d *Driver) Init(cfg *qspidrv.Config) error {
	if d.active {
		return qspidrv.ErrInvalidState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Prot.ReadOC != qspidrv.ReadOCFastRead || cfg.Prot.WriteOC != qspidrv.WriteOCPP {
		return qspidrv.ErrInvalidParam // No dual or quad lines.
	}
	if d.Configure != nil {
		var mode uint8
		if cfg.Phy.SPIMode == qspidrv.SPIMode1 {
			mode = 3
		}
		err := d.Configure(uint32(cfg.Phy.SCKFreq.Hz()), mode)
		if err != nil {
			return err
		}
	}
	d.cfg = *cfg
	d.active = true
	d.cs(true)
	return nil
}

// Uninit implements [qspidrv.Driver].
func (d *Driver) Uninit() {
	d.active = false
	d.cs(true)
}

// Read implements [qspidrv.Driver] with the 0x0B fast read instruction.
func (d *Driver) Read(dst []byte, addr uint32) error {
	if err := d.check(len(dst), addr); err != nil {
		return err
	}
	hdr := d.header(cmdFastRead, addr)
	hdr = append(hdr, 0) // Dummy byte.
	d.cs(false)
	err := d.spi.Tx(hdr, d.discard[:len(hdr)])
	if err == nil {
		// Flash ignores SDO while data is clocked out.
		err = d.spi.Tx(dst, dst)
	}
	d.cs(true)
	return err
}

// Write implements [qspidrv.Driver], splitting src into page programs.
func (d *Driver) Write(src []byte, addr uint32) error {
	if err := d.check(len(src), addr); err != nil {
		return err
	}
	for len(src) > 0 {
		n := min(len(src), pageSize-int(addr%pageSize))
		err := d.command(cmdWriteEnable)
		if err != nil {
			return err
		}
		d.cs(false)
		hdr := d.header(cmdPageProgram, addr)
		err = d.spi.Tx(hdr, d.discard[:len(hdr)])
		if err == nil {
			err = d.spi.Tx(src[:n], d.discard[:n])
		}
		d.cs(true)
		if err != nil {
			return err
		}
		if err = d.waitReady(programTimeout); err != nil {
			return err
		}
		src = src[n:]
		addr += uint32(n)
	}
	return nil
}

// CInstrXfer implements [qspidrv.Driver]. Byte i of rx is clocked in while
// byte i of tx is clocked out.
func (d *Driver) CInstrXfer(cfg qspidrv.CInstrConfig, tx, rx []byte) error {
	if !d.active {
		return qspidrv.ErrInvalidState
	}
	n := cfg.Length.DataLen()
	if cfg.Length < qspidrv.CInstrLen1B || cfg.Length > qspidrv.CInstrLen9B || (len(tx) < n && len(rx) < n) {
		return qspidrv.ErrInvalidParam
	}
	if cfg.WIPWait {
		if err := d.waitReady(instrTimeout); err != nil {
			return err
		}
	}
	if cfg.WREN {
		if err := d.command(cmdWriteEnable); err != nil {
			return err
		}
	}
	d.cs(false)
	defer d.cs(true)
	_, err := d.spi.Transfer(cfg.Opcode)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		var out byte
		if i < len(tx) {
			out = tx[i]
		}
		in, err := d.spi.Transfer(out)
		if err != nil {
			return err
		}
		if i < len(rx) {
			rx[i] = in
		}
	}
	return nil
}

func (d *Driver) check(n int, addr uint32) error {
	switch {
	case !d.active:
		return qspidrv.ErrInvalidState
	case !isaligned(uint32(n), 4) || !isaligned(addr, 4):
		return qspidrv.ErrInvalidParam
	case d.cfg.Prot.AddrMode == qspidrv.AddrMode24 && addr+uint32(n) > 1<<24:
		return qspidrv.ErrInvalidAddr
	}
	return nil
}

// header encodes opcode followed by the big endian address.
func (d *Driver) header(opcode uint8, addr uint32) []byte {
	na := d.cfg.Prot.AddrMode.AddrBytes()
	hdr := d.hdr[:1+na]
	hdr[0] = opcode
	for i := 0; i < na; i++ {
		hdr[na-i] = byte(addr >> (8 * i))
	}
	return hdr
}

func (d *Driver) command(opcode uint8) error {
	d.cs(false)
	_, err := d.spi.Transfer(opcode)
	d.cs(true)
	return err
}

func (d *Driver) readStatus() (uint8, error) {
	d.cs(false)
	defer d.cs(true)
	_, err := d.spi.Transfer(cmdReadStatus)
	if err != nil {
		return 0, err
	}
	return d.spi.Transfer(0)
}

func (d *Driver) waitReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		status, err := d.readStatus()
		if err != nil {
			return err
		}
		if status&statusWIP == 0 {
			return nil
		}
		if time.Since(deadline) >= 0 {
			return qspidrv.ErrTimeout
		}
	}
}

// isaligned checks if `val` is wholly divisible by `align`. `align` must be a power of 2.
func isaligned[T constraints.Unsigned](val, align T) bool {
	return val&(align-1) == 0
}
