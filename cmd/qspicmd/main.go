package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/soypat/qspi"
	"github.com/soypat/qspi/qspidrv"
	"github.com/soypat/qspi/sfdp"
)

var pins = qspidrv.Pins{SCK: 19, CSN: 17, IO0: 20, IO1: 21, IO2: 22, IO3: 23}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "qspicmd:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("qspicmd", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "qspicmd - Exercise the QSPI flash interface against a simulated MX25R6435F.\n\tUsage: qspicmd [flags] id|sfdp|read ADDR N|write ADDR HEX|erase ADDR\n")
		fs.PrintDefaults()
	}
	image := fs.String("image", "", "Flash image file. Loaded before and saved after the command when set.")
	size := fs.Int("size", 1<<20, "Simulated flash size in bytes when no image exists.")
	freq := fs.Int("freq", 8_000_000, "Bus frequency in Hz.")
	proto := fs.String("proto", "1-1-1", "Transfer protocol for read and write: 1-1-1, 1-1-2, 1-2-2, 1-1-4 or 1-4-4.")
	board := fs.Bool("custom-board", false, "Emulate the SFDP table of the custom board flash.")
	verbose := fs.Bool("v", false, "Enable debug logging.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug - 1}))
	}

	sim := qspidrv.NewSim(*size, [3]byte{0xC2, 0x28, 0x17})
	if *image != "" {
		b, err := os.ReadFile(*image)
		if err == nil {
			sim = qspidrv.NewSim(len(b), [3]byte{0xC2, 0x28, 0x17})
			copy(sim.Memory(), b)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	dev := qspi.New(sim)
	cfg := qspi.Config{Pins: pins, Frequency: *freq, Logger: logger}
	if *board {
		cfg.SFDP = qspi.SFDPCustomBoard[:]
	}
	if err := dev.Init(cfg); err != nil {
		return err
	}
	defer dev.Free()

	c := cli{dev: dev, w: stdout, proto: *proto}
	err := c.exec(fs.Args())
	if err != nil {
		return err
	}
	if *image != "" {
		return os.WriteFile(*image, sim.Memory(), 0o644)
	}
	return nil
}

type cli struct {
	dev   *qspi.Device
	w     io.Writer
	proto string
}

func (c *cli) exec(args []string) error {
	switch args[0] {
	case "id":
		return c.id()
	case "sfdp":
		return c.sfdp()
	case "read":
		if len(args) != 3 {
			return errors.New("usage: read ADDR N")
		}
		addr, err := parseUint(args[1])
		if err != nil {
			return err
		}
		n, err := parseUint(args[2])
		if err != nil {
			return err
		}
		return c.read(uint32(addr), int(n))
	case "write":
		if len(args) != 3 {
			return errors.New("usage: write ADDR HEX")
		}
		addr, err := parseUint(args[1])
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(args[2])
		if err != nil {
			return err
		}
		return c.write(uint32(addr), data)
	case "erase":
		if len(args) != 2 {
			return errors.New("usage: erase ADDR")
		}
		addr, err := parseUint(args[1])
		if err != nil {
			return err
		}
		return c.erase(uint32(addr))
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func (c *cli) id() error {
	var id [3]byte
	err := c.dev.CommandTransfer(instr(0x9F), nil, id[:])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.w, "jedec id: manufacturer=%#02x type=%#02x capacity=%#02x\n", id[0], id[1], id[2])
	return err
}

func (c *cli) sfdp() error {
	s, err := sfdp.Parse(sfdp.DeviceReader{Dev: c.dev})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.w, "sfdp rev %d.%d, %d parameter tables\n", s.MajorRev, s.MinorRev, s.NumParams)
	for _, p := range s.Params {
		fmt.Fprintf(c.w, "  table %#04x rev %d.%d: %d dwords at %#x\n", p.ID, p.MajorRev, p.MinorRev, p.Length, p.Pointer)
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.w, "size: %d bytes\n", size)
	for _, fr := range s.FastReads() {
		fmt.Fprintf(c.w, "fast read %s: opcode=%#02x dummy=%d mode=%d\n", fr.Name, fr.Opcode, fr.Dummy, fr.ModeClocks)
	}
	sizes, ops := s.EraseTypes()
	for i := range sizes {
		fmt.Fprintf(c.w, "erase %d bytes: opcode=%#02x\n", sizes[i], ops[i])
	}
	return nil
}

func (c *cli) read(addr uint32, n int) error {
	cmd, err := protoCommand(c.proto, false, addr)
	if err != nil {
		return err
	}
	buf := make([]byte, (n+3)&^3)
	if err = c.dev.Read(cmd, buf); err != nil {
		return err
	}
	_, err = fmt.Fprint(c.w, hex.Dump(buf[:n]))
	return err
}

func (c *cli) write(addr uint32, data []byte) error {
	cmd, err := protoCommand(c.proto, true, addr)
	if err != nil {
		return err
	}
	// Pad with erased bytes, programming 0xff leaves flash untouched.
	for len(data)%4 != 0 {
		data = append(data, 0xff)
	}
	return c.dev.Write(cmd, data)
}

func (c *cli) erase(addr uint32) error {
	err := c.dev.CommandTransfer(instr(0x06), nil, nil)
	if err != nil {
		return err
	}
	erase := instr(0x20)
	erase.Address = qspi.Address{BusWidth: qspi.BusSingle, Size: qspi.AddrSize24, Value: addr}
	return c.dev.CommandTransfer(erase, nil, nil)
}

// instr returns a single line command with no address phase.
func instr(op uint8) qspi.Command {
	return qspi.Command{
		Instruction: qspi.Instruction{BusWidth: qspi.BusSingle, Value: op},
		Address:     qspi.Address{Disabled: true},
		Data:        qspi.DataPhase{BusWidth: qspi.BusSingle},
	}
}

func protoCommand(proto string, write bool, addr uint32) (qspi.Command, error) {
	var cmd qspi.Command
	var aw, dw qspi.BusWidth
	switch proto {
	case "1-1-1":
		aw, dw = qspi.BusSingle, qspi.BusSingle
		cmd.Instruction.Value = qspi.OpFastRead
		if write {
			cmd.Instruction.Value = qspi.OpPP
		}
	case "1-1-2":
		aw, dw = qspi.BusSingle, qspi.BusDual
		cmd.Instruction.Value = qspi.OpRead2O
		if write {
			cmd.Instruction.Value = qspi.OpPP2O
		}
	case "1-2-2":
		aw, dw = qspi.BusDual, qspi.BusDual
		cmd.Instruction.Value = qspi.OpRead2IO
	case "1-1-4":
		aw, dw = qspi.BusSingle, qspi.BusQuad
		cmd.Instruction.Value = qspi.OpRead4O
		if write {
			cmd.Instruction.Value = qspi.OpPP4O
		}
	case "1-4-4":
		aw, dw = qspi.BusQuad, qspi.BusQuad
		cmd.Instruction.Value = qspi.OpRead4IO
		if write {
			cmd.Instruction.Value = qspi.OpPP4IO
		}
	default:
		return cmd, fmt.Errorf("unknown protocol %q", proto)
	}
	cmd.Instruction.BusWidth = qspi.BusSingle
	cmd.Address = qspi.Address{BusWidth: aw, Size: qspi.AddrSize24, Value: addr}
	cmd.Data.BusWidth = dw
	return cmd, nil
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 32)
}
