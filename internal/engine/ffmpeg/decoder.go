//go:build cgo

package ffmpeg

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/asticode/go-astiav"

	"wmadec.click/internal/audio"
)

// Engine creates libavcodec WMA decoders
type Engine struct{}

// New returns the ffmpeg engine
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Name() string {
	return Name
}

func codecIDFor(v audio.Variant) (astiav.CodecID, error) {
	switch v {
	case audio.VariantA:
		return astiav.CodecIDWmav1, nil
	case audio.VariantB:
		return astiav.CodecIDWmav2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedVariant, v)
	}
}

func channelLayoutFor(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	default:
		return astiav.ChannelLayout{}, fmt.Errorf("%w: %d", ErrUnsupportedLayout, channels)
	}
}

// Init opens a decoder configured from the negotiated context
func (e *Engine) Init(dc *audio.DecodeContext) (audio.EngineState, error) {
	slog.Debug("initializing ffmpeg decoder",
		"variant", dc.Variant,
		"sample_rate", dc.SampleRate,
		"channels", dc.Channels,
		"bit_rate", dc.BitRate,
		"block_align", dc.BlockAlign,
		"extradata_bytes", len(dc.ExtraData()))

	codecID, err := codecIDFor(dc.Variant)
	if err != nil {
		return nil, err
	}
	layout, err := channelLayoutFor(dc.Channels)
	if err != nil {
		return nil, err
	}

	codec := astiav.FindDecoder(codecID)
	if codec == nil {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, dc.Variant)
	}

	cp := astiav.AllocCodecParameters()
	if cp == nil {
		return nil, fmt.Errorf("%w: codec parameters", audio.ErrAllocationFailed)
	}
	defer cp.Free()

	cp.SetMediaType(astiav.MediaTypeAudio)
	cp.SetCodecID(codecID)
	cp.SetSampleRate(dc.SampleRate)
	cp.SetChannelLayout(layout)
	if extra := dc.ExtraData(); len(extra) > 0 {
		if err := cp.SetExtraData(extra); err != nil {
			return nil, fmt.Errorf("failed to set extradata: %w", err)
		}
	}

	s := &decoderState{pool: newBufferPool(), layout: layout, sampleRate: dc.SampleRate}

	if s.cc = astiav.AllocCodecContext(codec); s.cc == nil {
		return nil, fmt.Errorf("%w: codec context", audio.ErrAllocationFailed)
	}
	if err := s.cc.FromCodecParameters(cp); err != nil {
		s.free()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	s.cc.SetBitRate(int64(dc.BitRate))

	// block_align has no codec parameter setter; wmadec refuses to open without it
	opts := astiav.NewDictionary()
	defer opts.Free()
	if err := opts.Set("block_align", strconv.Itoa(dc.BlockAlign), 0); err != nil {
		s.free()
		return nil, fmt.Errorf("block_align option: %w", err)
	}
	if err := s.cc.Open(codec, opts); err != nil {
		s.free()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	s.pkt = astiav.AllocPacket()
	s.src = astiav.AllocFrame()
	s.dst = astiav.AllocFrame()
	s.swr = astiav.AllocSoftwareResampleContext()
	if s.pkt == nil || s.src == nil || s.dst == nil || s.swr == nil {
		s.free()
		return nil, fmt.Errorf("%w: decode buffers", audio.ErrAllocationFailed)
	}

	slog.Info("ffmpeg decoder ready", "codec", codec.Name(), "sample_rate", dc.SampleRate, "channels", dc.Channels)
	return s, nil
}

// decoderState owns every libav object for one negotiated stream
type decoderState struct {
	cc  *astiav.CodecContext
	pkt *astiav.Packet
	src *astiav.Frame
	dst *astiav.Frame
	swr *astiav.SoftwareResampleContext

	pool       *bufferPool
	layout     astiav.ChannelLayout
	sampleRate int
}

// DecodeSuperframe sends one packet and drains every frame it produces as
// interleaved S16. No output yields a nil buffer.
func (s *decoderState) DecodeSuperframe(frame []byte) (audio.PCMBuffer, error) {
	s.pkt.Unref()
	if err := s.pkt.FromData(frame); err != nil {
		return nil, fmt.Errorf("%w: packet: %w", audio.ErrAllocationFailed, err)
	}
	defer s.pkt.Unref()

	if err := s.cc.SendPacket(s.pkt); err != nil {
		return nil, statusError("send packet", err)
	}

	out := s.pool.get()
	for {
		s.src.Unref()
		if err := s.cc.ReceiveFrame(s.src); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				break
			}
			out.Release()
			return nil, statusError("receive frame", err)
		}

		if err := s.convert(out); err != nil {
			out.Release()
			return nil, err
		}
	}

	if len(out.data) == 0 {
		out.Release()
		return nil, nil
	}
	return out, nil
}

func (s *decoderState) convert(out *pcmBuffer) error {
	s.dst.Unref()
	s.dst.SetNbSamples(s.src.NbSamples())
	s.dst.SetChannelLayout(s.layout)
	s.dst.SetSampleRate(s.sampleRate)
	s.dst.SetSampleFormat(astiav.SampleFormatS16)
	if err := s.dst.AllocBuffer(0); err != nil {
		return fmt.Errorf("%w: dst buffer: %w", audio.ErrAllocationFailed, err)
	}

	if err := s.swr.ConvertFrame(s.src, s.dst); err != nil {
		return statusError("swr convert", err)
	}

	b, err := s.dst.Data().Bytes(0)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	out.append(b)
	return nil
}

func (s *decoderState) Release() error {
	if n := s.pool.Outstanding(); n > 0 {
		slog.Warn("releasing decoder with PCM buffers outstanding", "buffers", n)
	}
	s.free()
	slog.Debug("ffmpeg decoder released")
	return nil
}

func (s *decoderState) free() {
	if s.swr != nil {
		s.swr.Free()
		s.swr = nil
	}
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.src != nil {
		s.src.Free()
		s.src = nil
	}
	if s.pkt != nil {
		s.pkt.Free()
		s.pkt = nil
	}
	if s.cc != nil {
		s.cc.Free()
		s.cc = nil
	}
}

// statusError keeps the libav error code as the engine status
func statusError(op string, err error) error {
	var astErr astiav.Error
	if errors.As(err, &astErr) {
		return &audio.StatusError{Status: int(astErr), Err: fmt.Errorf("%s: %w", op, err)}
	}
	return &audio.StatusError{Status: -1, Err: fmt.Errorf("%s: %w", op, err)}
}
