package qspi

import (
	"log/slog"

	"github.com/soypat/qspi/qspidrv"
)

// resolveProtocol maps cmd onto the peripheral's protocol interface settings,
// starting from cur. Only the opcode class of the transfer direction and the
// address mode change. It does not modify any state.
func resolveProtocol(cur qspidrv.ProtIf, cmd Command, write bool) (prot qspidrv.ProtIf, err error) {
	prot = cur
	proto, ok := ProtocolOf(cmd)
	if !ok {
		return prot, ErrInvalidParameter
	}
	op := cmd.Instruction.Value
	if write {
		prot.WriteOC, ok = writeOpcodeClass(proto, op)
	} else {
		prot.ReadOC, ok = readOpcodeClass(proto, op)
	}
	if !ok {
		return prot, ErrInvalidParameter
	}
	switch cmd.Address.Size {
	case AddrSize24:
		prot.AddrMode = qspidrv.AddrMode24
	case AddrSize32:
		prot.AddrMode = qspidrv.AddrMode32
	default:
		return prot, ErrInvalidParameter
	}
	return prot, nil
}

func writeOpcodeClass(p Protocol, op uint8) (qspidrv.WriteOC, bool) {
	switch {
	case p == Proto111 && op == OpPP:
		return qspidrv.WriteOCPP, true
	case p == Proto114 && op == OpPP4O:
		return qspidrv.WriteOCPP4O, true
	case p == Proto144 && op == OpPP4IO:
		return qspidrv.WriteOCPP4IO, true
	case p == Proto112 && op == OpPP2O:
		return qspidrv.WriteOCPP2O, true
	}
	// 1-2-2 page program is not implemented by the peripheral.
	return 0, false
}

func readOpcodeClass(p Protocol, op uint8) (qspidrv.ReadOC, bool) {
	switch {
	case p == Proto111 && (op == OpFastRead || op == OpReadSFDP):
		return qspidrv.ReadOCFastRead, true
	case p == Proto114 && op == OpRead4O:
		return qspidrv.ReadOCRead4O, true
	case p == Proto144 && op == OpRead4IO:
		return qspidrv.ReadOCRead4IO, true
	case p == Proto112 && op == OpRead2O:
		return qspidrv.ReadOCRead2O, true
	case p == Proto122 && op == OpRead2IO:
		return qspidrv.ReadOCRead2IO, true
	}
	return 0, false
}

// prepareCommand reconfigures the peripheral so that the next Read or Write
// transfer is issued with cmd's protocol. The configuration record is only
// updated if the peripheral accepts the new settings.
func (d *Device) prepareCommand(cmd Command, write bool) error {
	prot, err := resolveProtocol(d.cfg.Prot, cmd, write)
	if err != nil {
		d.debug("prepareCommand:unsupported",
			slog.Uint64("opcode", uint64(cmd.Instruction.Value)),
			slog.String("widths", cmd.Instruction.BusWidth.String()+"-"+cmd.Address.BusWidth.String()+"-"+cmd.Data.BusWidth.String()),
			slog.Bool("write", write),
		)
		return err
	}
	candidate := d.cfg
	candidate.Prot = prot
	return d.apply(candidate)
}
