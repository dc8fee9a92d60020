package qspi

import "github.com/soypat/qspi/qspidrv"

// freqLadder maps the lower bound of each supported rate band to its divider.
// A request below a threshold gets the divider of the previous rung.
var freqLadder = [...]struct {
	below int
	freq  qspidrv.Frequency
}{
	{2_130_000, qspidrv.Freq32MDiv16}, // 2.0 MHz, minimum supported.
	{2_290_000, qspidrv.Freq32MDiv15}, // 2.13 MHz
	{2_460_000, qspidrv.Freq32MDiv14}, // 2.29 MHz
	{2_660_000, qspidrv.Freq32MDiv13}, // 2.46 MHz
	{2_900_000, qspidrv.Freq32MDiv12}, // 2.66 MHz
	{3_200_000, qspidrv.Freq32MDiv11}, // 2.9 MHz
	{3_550_000, qspidrv.Freq32MDiv10}, // 3.2 MHz
	{4_000_000, qspidrv.Freq32MDiv9},  // 3.55 MHz
	{4_570_000, qspidrv.Freq32MDiv8},  // 4.0 MHz
	{5_330_000, qspidrv.Freq32MDiv7},  // 4.57 MHz
	{6_400_000, qspidrv.Freq32MDiv6},  // 5.33 MHz
	{8_000_000, qspidrv.Freq32MDiv5},  // 6.4 MHz
	{10_600_000, qspidrv.Freq32MDiv4}, // 8.0 MHz
	{16_000_000, qspidrv.Freq32MDiv3}, // 10.6 MHz
	{32_000_000, qspidrv.Freq32MDiv2}, // 16 MHz
}

// Quantize returns the divider of the fastest supported rate not above hz.
// Requests under 2MHz get the slowest divider, requests at or above 32MHz
// the undivided clock.
func Quantize(hz int) qspidrv.Frequency {
	for _, rung := range freqLadder {
		if hz < rung.below {
			return rung.freq
		}
	}
	return qspidrv.Freq32MDiv1
}
