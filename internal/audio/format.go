package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// SupportedSampleRates lists the rates accepted on input and announced on output
var SupportedSampleRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000}

const (
	MinChannels = 1
	MaxChannels = 2

	// BytesPerSample is the width of one S16 output sample
	BytesPerSample = 2
)

// Variant selects the bitstream flavour the engine decodes
type Variant int

const (
	VariantUnknown Variant = iota
	VariantA               // WMA version 1
	VariantB               // WMA version 2
)

// VariantForVersion maps the descriptor version field to a codec variant.
// Version 2 selects VariantB; anything else falls back to VariantA.
func VariantForVersion(version int) Variant {
	if version == 2 {
		return VariantB
	}
	return VariantA
}

func (v Variant) String() string {
	switch v {
	case VariantA:
		return "wmav1"
	case VariantB:
		return "wmav2"
	default:
		return "unknown"
	}
}

// Layout describes how channels are arranged in an output buffer
type Layout int

const (
	LayoutInterleaved Layout = iota
	LayoutNonInterleaved
)

func (l Layout) String() string {
	if l == LayoutInterleaved {
		return "interleaved"
	}
	return "non-interleaved"
}

// OutputFormat is the raw audio format announced to the downstream sink
type OutputFormat struct {
	Format     malgo.FormatType // always malgo.FormatS16, native byte order
	Layout     Layout
	SampleRate int
	Channels   int
}

// NewS16Format returns the interleaved S16 format for the given rate and channels
func NewS16Format(sampleRate, channels int) OutputFormat {
	return OutputFormat{
		Format:     malgo.FormatS16,
		Layout:     LayoutInterleaved,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// FrameBytes is the size of one sample frame (one sample per channel)
func (f OutputFormat) FrameBytes() int {
	return BytesPerSample * f.Channels
}

func (f OutputFormat) String() string {
	return fmt.Sprintf("S16/%s/%dHz/%dch", f.Layout, f.SampleRate, f.Channels)
}

// IsSupportedSampleRate reports whether rate is in SupportedSampleRates
func IsSupportedSampleRate(rate int) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}
