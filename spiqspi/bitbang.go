package spiqspi

import "errors"

// Bitbang is a software SPI bus driven through pin callbacks, MSB first.
// It supports modes 0 and 3, the only modes a QSPI peripheral offers.
type Bitbang struct {
	SCK OutputPin
	SDO OutputPin
	SDI func() bool
	// Delay, if set, is called every quarter clock period.
	Delay func()
	mode  uint8
}

// Configure sets the idle clock level for mode. Its signature matches
// [Driver.Configure]; the clock rate is set by Delay and hz is ignored.
func (s *Bitbang) Configure(hz uint32, mode uint8) error {
	if mode != 0 && mode != 3 {
		return errors.New("bitbang: unsupported SPI mode")
	}
	s.mode = mode
	s.SCK(s.cpol())
	s.SDO(false)
	return nil
}

// Tx matches signature of machine.SPI.Tx(). Either w or r may be nil, when
// both are set they must have the same length.
func (s *Bitbang) Tx(w, r []byte) error {
	switch {
	case w != nil && r != nil && len(w) != len(r):
		return errors.New("bitbang: buffer length mismatch")
	case w != nil:
		for i, b := range w {
			in := s.transfer(b)
			if r != nil {
				r[i] = in
			}
		}
	default:
		for i := range r {
			r[i] = s.transfer(0)
		}
	}
	return nil
}

// Transfer matches signature of machine.SPI.Transfer().
func (s *Bitbang) Transfer(b byte) (byte, error) {
	return s.transfer(b), nil
}

func (s *Bitbang) transfer(b byte) (out byte) {
	for bit := 7; bit >= 0; bit-- {
		out |= b2u8(s.bitTransfer(b&(1<<bit) != 0)) << bit
	}
	return out
}

// bitTransfer shifts one bit out on the leading edge setup and samples on the
// rising edge. Both modes sample on the rising edge.
func (s *Bitbang) bitTransfer(b bool) bool {
	cpol := s.cpol()
	if cpol {
		s.SCK(false)
	}
	s.SDO(b)
	s.delay()
	s.delay()
	s.SCK(true)
	s.delay()
	inputBit := s.SDI()
	s.delay()
	if !cpol {
		s.SCK(false)
	}
	return inputBit
}

func (s *Bitbang) cpol() bool { return s.mode == 3 }

func (s *Bitbang) delay() {
	if s.Delay != nil {
		s.Delay()
	}
}

func b2u8(b bool) byte {
	if b {
		return 1
	}
	return 0
}
