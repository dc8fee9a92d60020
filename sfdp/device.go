package sfdp

import "github.com/soypat/qspi"

// DeviceReader reads the SFDP address space through a [qspi.Device] using the
// single line 0x5A instruction with a 24 bit address.
type DeviceReader struct {
	Dev *qspi.Device
}

// SFDPReadAt implements [ReaderAt]. len(out) must be a multiple of 4.
func (r DeviceReader) SFDPReadAt(offset uint32, out []byte) error {
	cmd := qspi.Command{
		Instruction: qspi.Instruction{BusWidth: qspi.BusSingle, Value: qspi.OpReadSFDP},
		Address:     qspi.Address{BusWidth: qspi.BusSingle, Size: qspi.AddrSize24, Value: offset},
		Data:        qspi.DataPhase{BusWidth: qspi.BusSingle},
	}
	return r.Dev.Read(cmd, out)
}
