package inspector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/auxlab/internal/engine"
)

// MaxDisplayChars bounds previews in variable listings.
const MaxDisplayChars = 140

// rmsOffset makes a full-scale sine read 0 dB.
const rmsOffset = 3.0103

// TypeTag returns the short type label shown in variable listings.
func TypeTag(v engine.Value) string {
	if v == nil {
		return ""
	}
	switch v.Kind() {
	case engine.KindScalar:
		return "SCLR"
	case engine.KindVector:
		return "VECT"
	case engine.KindAudio:
		return "AUD"
	case engine.KindText:
		return "TEXT"
	case engine.KindBinary:
		return "BIN"
	case engine.KindCell:
		return "CELL"
	case engine.KindStruct:
		return "STRC"
	default:
		return ""
	}
}

// Size describes the extent of v: the element count, or channels by
// samples for multichannel signals.
func Size(v engine.Value) string {
	if v == nil {
		return "0"
	}
	if sig, ok := v.(engine.Signal); ok && len(sig.Channels) > 1 {
		return fmt.Sprintf("%dx%d", len(sig.Channels), sig.Len())
	}
	return strconv.Itoa(v.Len())
}

// RMSdB returns the RMS level of each channel in dB, comma separated. A
// silent or empty channel reads -inf.
func RMSdB(sig engine.Signal) string {
	parts := make([]string, 0, len(sig.Channels))
	for _, ch := range sig.Channels {
		parts = append(parts, channelRMS(ch.Samples))
	}
	return strings.Join(parts, ", ")
}

func channelRMS(samples []float64) string {
	if len(samples) == 0 {
		return "-inf"
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	mean := sum / float64(len(samples))
	if mean <= 0 {
		return "-inf"
	}
	return strconv.FormatFloat(20*math.Log10(math.Sqrt(mean))+rmsOffset, 'f', 1, 64)
}

// Intervals returns the time span of each channel in milliseconds.
func Intervals(sig engine.Signal) string {
	if sig.SampleRate <= 0 {
		return ""
	}
	fs := float64(sig.SampleRate)
	parts := make([]string, 0, len(sig.Channels))
	for _, ch := range sig.Channels {
		start := ch.Start * 1000 / fs
		end := (ch.Start + float64(len(ch.Samples))) * 1000 / fs
		parts = append(parts, fmt.Sprintf("%s-%s", engine.FormatNumber(start, 6), engine.FormatNumber(end, 6)))
	}
	return strings.Join(parts, ", ")
}

// Truncate shortens s to at most max user-perceived characters, ending in
// "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 || uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	keep := max - 3
	if keep < 0 {
		keep = 0
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < keep && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("...")
	return b.String()
}

// Width returns the display width of s in terminal cells.
func Width(s string) int {
	return uniseg.StringWidth(s)
}

// Pad right-pads s with spaces to width cells.
func Pad(s string, width int) string {
	if w := Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
