//go:build cgo

package demux

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/asticode/go-astiav"
	"github.com/spf13/afero"

	"wmadec.click/internal/audio"
)

// Demuxer reads compressed WMA packets from one audio stream of a file
type Demuxer struct {
	fc     *astiav.FormatContext
	stream *astiav.Stream
	pkt    *astiav.Packet
	desc   *audio.Descriptor
}

// Open opens path and selects its best audio stream. The header is also read
// through fs for the block alignment libavformat does not expose.
func Open(fs afero.Fs, path string) (*Demuxer, error) {
	slog.Debug("opening demuxer", "path", path)

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: format context", audio.ErrAllocationFailed)
	}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}

	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, _, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoAudio, err)
		}
		return nil, ErrNoAudio
	}

	blockAlign := 0
	if formats, err := ReadStreamFormats(fs, path); err != nil {
		slog.Warn("failed to read ASF stream formats", "path", path, "error", err)
	} else if sf, ok := formatForStream(formats, st.ID()); ok {
		blockAlign = sf.BlockAlign
	}

	desc, err := descriptorFromParameters(st.CodecParameters(), blockAlign)
	if err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, err
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("%w: packet", audio.ErrAllocationFailed)
	}

	slog.Info("demuxer opened", "path", path, "stream", st.Index(), "caps", desc.String())
	return &Demuxer{fc: fc, stream: st, pkt: pkt, desc: desc}, nil
}

func descriptorFromParameters(cp *astiav.CodecParameters, blockAlign int) (*audio.Descriptor, error) {
	var version int
	switch cp.CodecID() {
	case astiav.CodecIDWmav1:
		version = 1
	case astiav.CodecIDWmav2:
		version = 2
	default:
		return nil, fmt.Errorf("%w: codec %s", ErrNotWMA, cp.CodecID())
	}

	d := audio.NewDescriptor(audio.MediaTypeWMA).
		SetInt(audio.FieldVersion, version).
		SetInt(audio.FieldBitRate, int(cp.BitRate())).
		SetInt(audio.FieldDepth, 16).
		SetInt(audio.FieldSampleRate, cp.SampleRate()).
		SetInt(audio.FieldChannels, cp.ChannelLayout().Channels())
	if blockAlign > 0 {
		d.SetInt(audio.FieldBlockAlign, blockAlign)
	}
	if extra := cp.ExtraData(); len(extra) > 0 {
		d.SetCodecData(extra)
	}
	return d, nil
}

// Descriptor returns the stream configuration for negotiation
func (d *Demuxer) Descriptor() *audio.Descriptor {
	return d.desc
}

// Next returns the next compressed superframe of the selected stream, or
// io.EOF once the container is exhausted
func (d *Demuxer) Next() ([]byte, error) {
	if d.fc == nil {
		return nil, ErrDemuxerState
	}

	for {
		d.pkt.Unref()
		if err := d.fc.ReadFrame(d.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil, io.EOF
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}

		if d.pkt.StreamIndex() != d.stream.Index() {
			continue
		}
		return d.pkt.Data(), nil
	}
}

// Close releases the container
func (d *Demuxer) Close() error {
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
		d.fc = nil
	}
	return nil
}
