//go:build cgo

// Package ffmpegtest encodes short WMA streams with libavcodec for tests that
// need real superframes, and muxes them into ASF files.
package ffmpegtest

import (
	"errors"
	"testing"

	"github.com/asticode/go-astiav"

	"wmadec.click/internal/audio"
)

// Stream is an encoded WMA stream with everything negotiation needs
type Stream struct {
	Version    int
	SampleRate int
	Channels   int
	BitRate    int
	BlockAlign int
	ExtraData  []byte
	Packets    [][]byte

	frameSize int
	params    *astiav.CodecParameters // carries block_align and bit_rate to the muxer
}

// Encode encodes frames of silence as WMA version 1 or 2. The test is
// skipped when libavcodec was built without the encoder.
func Encode(t testing.TB, version, sampleRate, channels, bitRate, frames int) *Stream {
	t.Helper()

	id := astiav.CodecIDWmav2
	if version == 1 {
		id = astiav.CodecIDWmav1
	}
	codec := astiav.FindEncoder(id)
	if codec == nil {
		t.Skipf("libavcodec has no wmav%d encoder", version)
	}

	layout := astiav.ChannelLayoutStereo
	if channels == 1 {
		layout = astiav.ChannelLayoutMono
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		t.Fatal("failed to allocate encoder context")
	}
	defer cc.Free()
	cc.SetSampleFormat(astiav.SampleFormatFltp)
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(layout)
	cc.SetBitRate(int64(bitRate))
	cc.SetTimeBase(astiav.NewRational(1, sampleRate))
	if err := cc.Open(codec, nil); err != nil {
		t.Fatalf("failed to open wmav%d encoder: %v", version, err)
	}

	s := &Stream{
		Version:    version,
		SampleRate: sampleRate,
		Channels:   channels,
		BitRate:    bitRate,
		ExtraData:  cc.ExtraData(),
		frameSize:  cc.FrameSize(),
	}

	s.params = astiav.AllocCodecParameters()
	t.Cleanup(s.params.Free)

	frame := astiav.AllocFrame()
	defer frame.Free()
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	drain := func() {
		for {
			if err := cc.ReceivePacket(pkt); err != nil {
				if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
					return
				}
				t.Fatalf("receive packet: %v", err)
			}
			s.Packets = append(s.Packets, pkt.Data())
			pkt.Unref()
		}
	}

	for i := 0; i < frames; i++ {
		frame.Unref()
		frame.SetNbSamples(s.frameSize)
		frame.SetSampleFormat(astiav.SampleFormatFltp)
		frame.SetChannelLayout(layout)
		frame.SetSampleRate(sampleRate)
		if err := frame.AllocBuffer(0); err != nil {
			t.Fatalf("alloc frame buffer: %v", err)
		}
		if err := frame.SamplesFillSilence(); err != nil {
			t.Fatalf("fill silence: %v", err)
		}
		frame.SetPts(int64(i * s.frameSize))
		if err := cc.SendFrame(frame); err != nil {
			t.Fatalf("send frame %d: %v", i, err)
		}
		drain()
	}
	if err := cc.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		t.Fatalf("flush encoder: %v", err)
	}
	drain()

	if len(s.Packets) == 0 {
		t.Fatal("encoder produced no packets")
	}
	// the encoder pads every superframe to the block alignment
	s.BlockAlign = len(s.Packets[0])
	if err := cc.ToCodecParameters(s.params); err != nil {
		t.Fatalf("encoder parameters: %v", err)
	}
	return s
}

// Descriptor returns the caps a demuxer reports for s
func (s *Stream) Descriptor() *audio.Descriptor {
	return audio.NewDescriptor(audio.MediaTypeWMA).
		SetInt(audio.FieldVersion, s.Version).
		SetInt(audio.FieldBitRate, s.BitRate).
		SetInt(audio.FieldDepth, 16).
		SetInt(audio.FieldSampleRate, s.SampleRate).
		SetInt(audio.FieldChannels, s.Channels).
		SetInt(audio.FieldBlockAlign, s.BlockAlign).
		SetCodecData(s.ExtraData)
}

// WriteASF muxes the packets of s into an ASF file at path
func WriteASF(t testing.TB, s *Stream, path string) {
	t.Helper()

	fc, err := astiav.AllocOutputFormatContext(nil, "asf", path)
	if err != nil {
		t.Fatalf("alloc asf muxer: %v", err)
	}
	defer fc.Free()

	st := fc.NewStream(nil)
	if st == nil {
		t.Fatal("failed to add ASF stream")
	}
	if err := s.params.Copy(st.CodecParameters()); err != nil {
		t.Fatalf("copy codec parameters: %v", err)
	}
	st.SetTimeBase(astiav.NewRational(1, s.SampleRate))

	ioc, err := astiav.OpenIOContext(path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer ioc.Close()
	fc.SetPb(ioc)

	if err := fc.WriteHeader(nil); err != nil {
		t.Fatalf("write ASF header: %v", err)
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	src := astiav.NewRational(1, s.SampleRate)
	for i, data := range s.Packets {
		pkt.Unref()
		if err := pkt.FromData(data); err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		pkt.SetStreamIndex(st.Index())
		pkt.SetPts(int64(i * s.frameSize))
		pkt.SetDts(int64(i * s.frameSize))
		pkt.SetDuration(int64(s.frameSize))
		pkt.RescaleTs(src, st.TimeBase())
		if err := fc.WriteInterleavedFrame(pkt); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}

	if err := fc.WriteTrailer(); err != nil {
		t.Fatalf("write ASF trailer: %v", err)
	}
}
