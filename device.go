package qspi

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/soypat/qspi/qspidrv"
)

const (
	// sckDelay is the minimum CSN high time in 62.5ns units.
	sckDelay = 0x05
	// defaultIRQPriority is the SDK's default SPI interrupt priority.
	defaultIRQPriority = 6
)

// Device is a QSPI flash controller bound to one peripheral driver.
// Methods may be called from multiple goroutines; calls are serialized.
type Device struct {
	mu  sync.Mutex
	drv qspidrv.Driver
	// cfg is the last configuration the peripheral accepted. It is never read
	// back from hardware.
	cfg qspidrv.Config
	// initialized is set after the first successful peripheral Init.
	initialized bool
	sfdp        SFDPEmulator
	// scratch is shared by send and receive of custom instructions.
	scratch [8]byte
	logger  *slog.Logger
}

// Config holds the parameters of Device.Init.
type Config struct {
	Pins qspidrv.Pins
	// Frequency is the requested bus clock in Hz. It is rounded down to the
	// nearest supported rate.
	Frequency int
	// Mode 0 selects SPI mode 0. Any other value selects the peripheral's
	// second mode (CPOL=1, CPHA=1); modes 1 and 2 are not available.
	Mode   uint8
	Logger *slog.Logger
	// SFDP replaces the canned discovery table served for 0x5A reads.
	// It must be SFDPTableLen bytes long.
	SFDP []byte
}

// New returns a Device that drives drv. The peripheral is untouched until Init.
func New(drv qspidrv.Driver) *Device {
	return &Device{
		drv:  drv,
		sfdp: SFDPEmulator{table: sfdpMX25R6435F},
	}
}

// Init configures the pins, clock and mode and initializes the peripheral.
func (d *Device) Init(cfg Config) error {
	d.lock()
	defer d.unlock()
	d.logger = cfg.Logger
	if cfg.Frequency > MaxFrequency {
		d.logerr("Init:frequency too high", slog.Int("hz", cfg.Frequency))
		return ErrInvalidParameter
	}
	if cfg.SFDP != nil && !ValidSFDPTable(cfg.SFDP) {
		d.logerr("Init:bad SFDP table", slog.Int("len", len(cfg.SFDP)))
		return ErrInvalidParameter
	}
	candidate := d.cfg
	candidate.Pins = cfg.Pins
	candidate.IRQPriority = defaultIRQPriority
	candidate.Phy = qspidrv.PhyIf{
		SCKFreq:   Quantize(cfg.Frequency),
		SCKDelay:  sckDelay,
		DPMEnable: false,
		SPIMode:   qspidrv.SPIMode0,
	}
	if cfg.Mode != 0 {
		candidate.Phy.SPIMode = qspidrv.SPIMode1
	}
	d.info("Init", slog.Int("hz", cfg.Frequency), slog.String("sck", candidate.Phy.SCKFreq.String()), slog.Uint64("mode", uint64(candidate.Phy.SPIMode)))
	err := d.apply(candidate)
	if err != nil {
		return err
	}
	if cfg.SFDP != nil {
		d.sfdp = NewSFDPEmulator(cfg.SFDP)
	}
	return nil
}

// Free releases the device. The peripheral driver has no teardown that is
// safe to call in every state, so Free does nothing and always succeeds.
func (d *Device) Free() error {
	return nil
}

// SetFrequency changes the bus clock, reinitializing the peripheral.
func (d *Device) SetFrequency(hz int) error {
	d.lock()
	defer d.unlock()
	if hz > MaxFrequency {
		return ErrInvalidParameter
	}
	candidate := d.cfg
	candidate.Phy.SCKFreq = Quantize(hz)
	d.debug("SetFrequency", slog.Int("hz", hz), slog.String("sck", candidate.Phy.SCKFreq.String()))
	return d.apply(candidate)
}

// apply tears down the peripheral if it was ever initialized and initializes
// it with candidate. The peripheral refuses new settings while enabled.
func (d *Device) apply(candidate qspidrv.Config) error {
	if d.initialized {
		d.drv.Uninit()
	}
	err := d.drv.Init(&candidate)
	if err != nil {
		d.logerr("apply:init failed", slog.String("err", err.Error()))
		if errors.Is(err, qspidrv.ErrInvalidParam) {
			return errjoin(ErrInvalidParameter, err)
		}
		return errjoin(ErrError, err)
	}
	d.initialized = true
	d.cfg = candidate
	d.trace("apply:ok",
		slog.Uint64("readoc", uint64(candidate.Prot.ReadOC)),
		slog.Uint64("writeoc", uint64(candidate.Prot.WriteOC)),
		slog.Uint64("addrmode", uint64(candidate.Prot.AddrMode)),
	)
	return nil
}

// PeripheralConfig returns the last configuration applied to the peripheral.
func (d *Device) PeripheralConfig() qspidrv.Config {
	d.lock()
	defer d.unlock()
	return d.cfg
}

// Initialized reports whether the peripheral was successfully initialized at least once.
func (d *Device) Initialized() bool {
	d.lock()
	defer d.unlock()
	return d.initialized
}

func (d *Device) lock()   { d.mu.Lock() }
func (d *Device) unlock() { d.mu.Unlock() }
