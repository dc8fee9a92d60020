package qspi

import (
	"log/slog"

	"github.com/soypat/qspi/qspidrv"
)

// Write programs data at cmd's address using cmd's protocol. len(data) must be
// a multiple of 4. The peripheral does not report partial writes: on success
// all of data was transferred.
func (d *Device) Write(cmd Command, data []byte) error {
	d.lock()
	defer d.unlock()
	if !isaligned(uint(len(data)), 4) {
		return ErrInvalidParameter
	}
	err := d.prepareCommand(cmd, true)
	if err != nil {
		return err
	}
	d.trace("Write", slog.Uint64("addr", uint64(cmd.Address.Value)), slog.Int("len", len(data)))
	err = d.drv.Write(data, cmd.Address.Value)
	if err != nil {
		d.logerr("Write", slog.String("err", err.Error()))
		return errjoin(ErrError, err)
	}
	return nil
}

// Read fills dst from cmd's address using cmd's protocol. len(dst) must be a
// multiple of 4. SFDP reads (opcode 0x5A) are served by the discovery emulator
// and never reach the bus.
func (d *Device) Read(cmd Command, dst []byte) error {
	d.lock()
	defer d.unlock()
	if !isaligned(uint(len(dst)), 4) {
		return ErrInvalidParameter
	}
	if cmd.Instruction.Value == OpReadSFDP {
		d.trace("Read:sfdp", slog.Int("len", len(dst)), slog.Int("offset", d.sfdp.offset))
		d.sfdp.Read(dst)
		return nil
	}
	err := d.prepareCommand(cmd, false)
	if err != nil {
		return err
	}
	d.trace("Read", slog.Uint64("addr", uint64(cmd.Address.Value)), slog.Int("len", len(dst)))
	err = d.drv.Read(dst, cmd.Address.Value)
	if err != nil {
		d.logerr("Read", slog.String("err", err.Error()))
		return errjoin(ErrError, err)
	}
	return nil
}

// maxCInstrData is the number of bytes a custom instruction can carry after the opcode.
const maxCInstrData = 8

// CommandTransfer issues a short command such as an erase or a register
// access. With the address enabled and no payload the address is sent after
// the opcode. Otherwise up to 8 bytes of tx and rx combined are exchanged.
// Send and receive share one shift register: rx receives the first len(rx)
// bytes clocked back.
func (d *Device) CommandTransfer(cmd Command, tx, rx []byte) error {
	d.lock()
	defer d.unlock()
	dataSize := len(tx) + len(rx)
	cinstr := qspidrv.CInstrConfig{
		Opcode:   cmd.Instruction.Value,
		IO2Level: true,
		IO3Level: true,
		WIPWait:  false,
		WREN:     false,
	}
	buf := d.scratch[:]
	switch {
	case !cmd.Address.Disabled && dataSize == 0:
		// Command with address only, i.e: erase.
		switch cmd.Address.Size {
		case AddrSize24:
			cinstr.Length = qspidrv.CInstrLen4B
		case AddrSize32:
			cinstr.Length = qspidrv.CInstrLen5B
		default:
			return ErrError
		}
		putAddr(buf[:cinstr.Length.DataLen()], cmd.Address.Value)
	case dataSize <= maxCInstrData:
		cinstr.Length = qspidrv.CInstrLen1B + qspidrv.CInstrLen(dataSize)
		copy(buf, tx)
	default:
		d.debug("CommandTransfer:payload too large", slog.Int("len", dataSize))
		return ErrError
	}
	d.trace("CommandTransfer", slog.Uint64("opcode", uint64(cinstr.Opcode)), slog.Uint64("length", uint64(cinstr.Length)))
	err := d.drv.CInstrXfer(cinstr, buf, buf)
	if err != nil {
		d.logerr("CommandTransfer", slog.String("err", err.Error()))
		return errjoin(ErrError, err)
	}
	copy(rx, buf[:len(rx)])
	return nil
}

// putAddr stores the low len(b) bytes of addr in b, most significant first.
func putAddr(b []byte, addr uint32) {
	for i := range b {
		b[len(b)-1-i] = byte(addr >> (8 * i))
	}
}
