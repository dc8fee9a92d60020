package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/qspi"
	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
	"golang.org/x/exp/constraints"
)

type decoder struct {
	// Address bytes sent after addressed instructions, 3 or 4.
	AddrBytes    int
	OmitReadData bool
	OmitStatus   bool
	// Maximum data bytes printed per transaction. 0 prints everything.
	MaxData int
}

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "qspianalyze - Decode binary Saleae digital captures of single line SPI NOR flash traffic.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	sdo := flag.String("f-sdo", "digital_1.bin", "Input filename: SPI SDO (host to flash) data.")
	sdi := flag.String("f-sdi", "digital_3.bin", "Input filename: SPI SDI (flash to host) data. Empty to skip.")
	enable := flag.String("f-cs", "digital_0.bin", "Input filename: SPI CS data.")
	clk := flag.String("f-clk", "digital_2.bin", "Input filename: SPI CLK data.")
	output := flag.String("o-cmd", "", "Output filename of flash transactions. Defaults to stdout.")
	addr4 := flag.Bool("addr4", false, "Instructions carry 4 address bytes.")
	omitReadData := flag.Bool("omit-read-data", false, "Omit data clocked in from the flash.")
	omitStatus := flag.Bool("omit-status", false, "Omit status register polls.")
	maxData := flag.Int("max-data", 16, "Maximum data bytes printed per transaction, 0 for all.")
	flag.Parse()
	dec := decoder{
		AddrBytes:    3,
		OmitReadData: *omitReadData,
		OmitStatus:   *omitStatus,
		MaxData:      *maxData,
	}
	if *addr4 {
		dec.AddrBytes = 4
	}
	start := time.Now()
	if err := dec.run(*sdo, *sdi, *enable, *clk, *output); err != nil {
		slog.Error("analyze", slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("finished", slog.Duration("elapsed", time.Since(start)))
}

func (dec *decoder) run(fsdo, fsdi, fenable, fclk, output string) error {
	clk, err := opendigital(fclk)
	if err != nil {
		return err
	}
	enable, err := opendigital(fenable)
	if err != nil {
		return err
	}
	sdo, err := opendigital(fsdo)
	if err != nil {
		return err
	}
	sdi := sdo
	if fsdi != "" {
		sdi, err = opendigital(fsdi)
		if err != nil {
			return err
		}
	}
	spi := analyzers.SPI{}
	out, _ := spi.Scan(clk, enable, sdo, sdi)
	// Scanning with the lines swapped yields the bytes clocked in by the host.
	in, _ := spi.Scan(clk, enable, sdi, sdo)
	frames := make([]frame, len(out))
	for i := range out {
		frames[i].Start = out[i].StartTime()
		frames[i].SDO = out[i].SDO
		if fsdi != "" && i < len(in) {
			frames[i].SDI = in[i].SDO
		}
	}
	txs := dec.process(frames)
	slog.Debug("decoded", slog.Int("frames", len(frames)), slog.Int("transactions", len(txs)))

	var w io.Writer = os.Stdout
	if output != "" {
		fp, err := os.Create(output)
		if err != nil {
			return err
		}
		defer fp.Close()
		w = fp
	}
	for _, tx := range txs {
		if dec.OmitStatus && tx.Op == opReadStatus {
			continue
		}
		if _, err = fmt.Fprintln(w, dec.format(tx)); err != nil {
			return err
		}
	}
	return nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return saleae.ReadDigitalFile(fp)
}

// frame is the raw byte stream of one chip select assertion.
type frame struct {
	Start float64
	SDO   []byte
	SDI   []byte
}

type opcodeInfo struct {
	Name  string
	Addr  bool
	Dummy int
	// Data flows from flash to host.
	In bool
}

const opReadStatus = 0x05

var opcodes = map[uint8]opcodeInfo{
	0x01:            {Name: "WRSR"},
	0x02:            {Name: "PP", Addr: true},
	0x03:            {Name: "READ", Addr: true, In: true},
	0x04:            {Name: "WRDI"},
	opReadStatus:    {Name: "RDSR", In: true},
	0x06:            {Name: "WREN"},
	0x0B:            {Name: "FAST_READ", Addr: true, Dummy: 1, In: true},
	0x15:            {Name: "RDCR", In: true},
	0x20:            {Name: "SE", Addr: true},
	0x52:            {Name: "BE32K", Addr: true},
	qspi.OpReadSFDP: {Name: "RDSFDP", Addr: true, Dummy: 1, In: true},
	0x60:            {Name: "CE"},
	0x66:            {Name: "RSTEN"},
	0x99:            {Name: "RST"},
	0x9F:            {Name: "RDID", In: true},
	0xAB:            {Name: "RES", In: true, Dummy: 3},
	0xB9:            {Name: "DP"},
	0xC7:            {Name: "CE"},
	0xD8:            {Name: "BE", Addr: true},
}

type flashtx struct {
	Num   int
	Op    uint8
	Info  opcodeInfo
	Addr  uint32
	Data  []byte
	Start float64
}

func (dec *decoder) decode(f frame) (tx flashtx) {
	tx.Start = f.Start
	if len(f.SDO) == 0 {
		tx.Info.Name = "EMPTY"
		return tx
	}
	tx.Op = f.SDO[0]
	info, ok := opcodes[tx.Op]
	if !ok {
		info = opcodeInfo{Name: fmt.Sprintf("OP_%02X", tx.Op)}
	}
	tx.Info = info
	hdr := 1
	if info.Addr {
		n := min(dec.AddrBytes, len(f.SDO)-1)
		for _, b := range f.SDO[1 : 1+n] {
			tx.Addr = tx.Addr<<8 | uint32(b)
		}
		hdr += dec.AddrBytes
	}
	hdr += info.Dummy
	src := f.SDO
	if info.In {
		src = f.SDI
	}
	if hdr < len(src) {
		tx.Data = src[hdr:]
	}
	return tx
}

// process decodes frames and collapses consecutive identical transactions.
func (dec *decoder) process(frames []frame) (txs []flashtx) {
	for i := 0; i < len(frames); i++ {
		tx := dec.decode(frames[i])
		tx.Num = 1
		for j := i + 1; j < len(frames); j++ {
			next := dec.decode(frames[j])
			if next.Op != tx.Op || next.Addr != tx.Addr || !bytes.Equal(next.Data, tx.Data) {
				break
			}
			tx.Num++
			i = j
		}
		txs = append(txs, tx)
	}
	return txs
}

func (dec *decoder) format(tx flashtx) string {
	data := tx.Data
	if dec.OmitReadData && tx.Info.In {
		data = nil
	}
	var trail string
	if dec.MaxData > 0 && len(data) > dec.MaxData {
		trail = fmt.Sprintf("...(+%d)", len(data)-dec.MaxData)
		data = data[:dec.MaxData]
	}
	s := fmt.Sprintf("t=%f cmd×%-3d %-9s op=%#02x", tx.Start, tx.Num, tx.Info.Name, tx.Op)
	if tx.Info.Addr {
		s += fmt.Sprintf(" addr=%#08x", tx.Addr)
	}
	return s + fmt.Sprintf(" len=%-4d data=%x%s", len(tx.Data), data, trail)
}

func min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
