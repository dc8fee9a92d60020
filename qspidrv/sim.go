package qspidrv

// Flash instructions understood by the simulated device.
const (
	cmdWriteEnable  = 0x06
	cmdWriteDisable = 0x04
	cmdReadStatus   = 0x05
	cmdReadJEDEC    = 0x9F
	cmdSectorErase  = 0x20
	cmdBlockErase   = 0xD8
	cmdChipErase    = 0xC7
)

const (
	statusWIP = 1 << 0
	statusWEL = 1 << 1
)

// Geometry of the simulated NOR flash.
const (
	SimSectorSize = 4 * 1024
	SimBlockSize  = 64 * 1024
)

// Sim is an in-memory model of the QSPI peripheral with a NOR flash attached.
// Like the real block it refuses Init while enabled, so callers must Uninit
// before reconfiguring.
type Sim struct {
	mem    []byte
	jedec  [3]byte
	status uint8
	active bool
	cfg    Config

	// InitErr, when non-nil, is returned by the next calls to Init.
	InitErr error
	// XferErr, when non-nil, is returned by Read, Write and CInstrXfer.
	XferErr error

	InitCalls   int
	UninitCalls int
	ReadCalls   int
	WriteCalls  int
	XferCalls   int
	// LastCInstr is the last custom instruction configuration received.
	LastCInstr CInstrConfig
	// LastCInstrData holds a copy of the tx bytes of the last custom instruction.
	LastCInstrData []byte
}

// NewSim returns an erased flash of the given size identifying itself with
// the given JEDEC ID bytes.
func NewSim(size int, jedec [3]byte) *Sim {
	s := &Sim{
		mem:   make([]byte, size),
		jedec: jedec,
	}
	for i := range s.mem {
		s.mem[i] = 0xff
	}
	return s
}

// Init implements [Driver].
func (s *Sim) Init(cfg *Config) error {
	s.InitCalls++
	if s.active {
		return ErrInvalidState
	}
	if s.InitErr != nil {
		return s.InitErr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	quad := cfg.Prot.ReadOC == ReadOCRead4O || cfg.Prot.ReadOC == ReadOCRead4IO ||
		cfg.Prot.WriteOC == WriteOCPP4O || cfg.Prot.WriteOC == WriteOCPP4IO
	if quad && (cfg.Pins.IO2 == PinNotConnected || cfg.Pins.IO3 == PinNotConnected) {
		return ErrInvalidParam
	}
	s.cfg = *cfg
	s.active = true
	return nil
}

// Uninit implements [Driver].
func (s *Sim) Uninit() {
	s.UninitCalls++
	s.active = false
}

// Active reports whether the peripheral is enabled.
func (s *Sim) Active() bool { return s.active }

// Config returns the configuration of the last successful Init.
func (s *Sim) Config() Config { return s.cfg }

// Memory returns the flash contents. Modifying it modifies the flash.
func (s *Sim) Memory() []byte { return s.mem }

// Read implements [Driver].
func (s *Sim) Read(dst []byte, addr uint32) error {
	s.ReadCalls++
	if err := s.checkXfer(len(dst), addr); err != nil {
		return err
	}
	copy(dst, s.mem[addr:])
	return nil
}

// Write implements [Driver]. Programming only clears bits, as on NOR flash.
func (s *Sim) Write(src []byte, addr uint32) error {
	s.WriteCalls++
	if err := s.checkXfer(len(src), addr); err != nil {
		return err
	}
	for i, b := range src {
		s.mem[int(addr)+i] &= b
	}
	s.status &^= statusWEL
	return nil
}

func (s *Sim) checkXfer(n int, addr uint32) error {
	switch {
	case !s.active:
		return ErrInvalidState
	case s.XferErr != nil:
		return s.XferErr
	case n%4 != 0 || addr%4 != 0:
		return ErrInvalidParam
	case s.cfg.Prot.AddrMode == AddrMode24 && addr > 0xff_ffff:
		return ErrInvalidAddr
	case int(addr)+n > len(s.mem):
		return ErrInvalidAddr
	}
	return nil
}

// CInstrXfer implements [Driver].
func (s *Sim) CInstrXfer(cfg CInstrConfig, tx, rx []byte) error {
	s.XferCalls++
	s.LastCInstr = cfg
	n := cfg.Length.DataLen()
	switch {
	case !s.active:
		return ErrInvalidState
	case s.XferErr != nil:
		return s.XferErr
	case cfg.Length < CInstrLen1B || cfg.Length > CInstrLen9B:
		return ErrInvalidParam
	case len(tx) < n && len(rx) < n:
		return ErrInvalidParam
	}
	s.LastCInstrData = append(s.LastCInstrData[:0], tx[:min(n, len(tx))]...)
	if cfg.WREN {
		s.status |= statusWEL
	}
	addr := beAddr(s.LastCInstrData)
	var out [8]byte
	switch cfg.Opcode {
	case cmdWriteEnable:
		s.status |= statusWEL
	case cmdWriteDisable:
		s.status &^= statusWEL
	case cmdReadStatus:
		for i := range out {
			out[i] = s.status
		}
	case cmdReadJEDEC:
		copy(out[:], s.jedec[:])
	case cmdSectorErase:
		s.erase(addr, SimSectorSize)
	case cmdBlockErase:
		s.erase(addr, SimBlockSize)
	case cmdChipErase:
		s.erase(0, len(s.mem))
	}
	copy(rx[:min(n, len(rx))], out[:])
	return nil
}

func (s *Sim) erase(addr uint32, size int) {
	if s.status&statusWEL == 0 {
		return // Write enable latch not set, flash ignores the instruction.
	}
	start := int(addr) &^ (size - 1)
	if start >= len(s.mem) {
		return
	}
	end := min(start+size, len(s.mem))
	for i := start; i < end; i++ {
		s.mem[i] = 0xff
	}
	s.status &^= statusWEL
}

func beAddr(b []byte) (addr uint32) {
	for _, v := range b {
		addr = addr<<8 | uint32(v)
	}
	return addr
}
