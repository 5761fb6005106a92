package demux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// maxHeaderSize bounds the header object read into memory
const maxHeaderSize = 16 << 20

var ErrBadHeader = errors.New("malformed ASF header")

var (
	guidHeader           = [16]byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C}
	guidStreamProperties = [16]byte{0x91, 0x07, 0xDC, 0xB7, 0xB7, 0xA9, 0xCF, 0x11, 0x8E, 0xE6, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65}
	guidAudioMedia       = [16]byte{0x40, 0x9E, 0x69, 0xF8, 0x4D, 0x5B, 0xCF, 0x11, 0xA8, 0xFD, 0x00, 0x80, 0x5F, 0x5C, 0x44, 0x2B}
)

// StreamFormat is the WAVEFORMATEX carried by one ASF audio stream
type StreamFormat struct {
	StreamNumber   int
	FormatTag      uint16
	Channels       int
	SampleRate     int
	AvgBytesPerSec int
	BlockAlign     int
	BitsPerSample  int
	ExtraData      []byte
}

// ReadStreamFormats returns the audio stream formats declared in the header
// object of an ASF file
func ReadStreamFormats(fs afero.Fs, path string) ([]StreamFormat, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	formats, err := parseStreamFormats(f)
	if err != nil {
		return nil, err
	}
	slog.Debug("read ASF stream formats", "path", path, "audio_streams", len(formats))
	return formats, nil
}

func parseStreamFormats(r io.Reader) ([]StreamFormat, error) {
	var top [30]byte
	if _, err := io.ReadFull(r, top[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if !bytes.Equal(top[:16], guidHeader[:]) {
		return nil, ErrNotASF
	}
	size := binary.LittleEndian.Uint64(top[16:24])
	if size < 30 || size > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrBadHeader, size)
	}
	count := binary.LittleEndian.Uint32(top[24:28])

	body := make([]byte, size-30)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}

	var formats []StreamFormat
	for i := uint32(0); i < count && len(body) >= 24; i++ {
		objSize := binary.LittleEndian.Uint64(body[16:24])
		if objSize < 24 || objSize > uint64(len(body)) {
			return nil, fmt.Errorf("%w: object %d size %d", ErrBadHeader, i, objSize)
		}
		if bytes.Equal(body[:16], guidStreamProperties[:]) {
			sf, ok, err := parseStreamProperties(body[24:objSize])
			if err != nil {
				return nil, err
			}
			if ok {
				formats = append(formats, sf)
			}
		}
		body = body[objSize:]
	}
	return formats, nil
}

// parseStreamProperties decodes a Stream Properties Object body. ok is false
// for non-audio streams.
func parseStreamProperties(b []byte) (sf StreamFormat, ok bool, err error) {
	if len(b) < 54 {
		return sf, false, fmt.Errorf("%w: stream properties truncated", ErrBadHeader)
	}
	if !bytes.Equal(b[:16], guidAudioMedia[:]) {
		return sf, false, nil
	}

	typeLen := int(binary.LittleEndian.Uint32(b[40:44]))
	flags := binary.LittleEndian.Uint16(b[48:50])
	wf := b[54:]
	if typeLen < 16 || typeLen > len(wf) {
		return sf, false, fmt.Errorf("%w: audio format length %d", ErrBadHeader, typeLen)
	}
	wf = wf[:typeLen]

	sf = StreamFormat{
		StreamNumber:   int(flags & 0x7F),
		FormatTag:      binary.LittleEndian.Uint16(wf[0:2]),
		Channels:       int(binary.LittleEndian.Uint16(wf[2:4])),
		SampleRate:     int(binary.LittleEndian.Uint32(wf[4:8])),
		AvgBytesPerSec: int(binary.LittleEndian.Uint32(wf[8:12])),
		BlockAlign:     int(binary.LittleEndian.Uint16(wf[12:14])),
		BitsPerSample:  int(binary.LittleEndian.Uint16(wf[14:16])),
	}
	if len(wf) >= 18 {
		extra := int(binary.LittleEndian.Uint16(wf[16:18]))
		if extra > len(wf)-18 {
			return sf, false, fmt.Errorf("%w: extradata length %d", ErrBadHeader, extra)
		}
		sf.ExtraData = append([]byte(nil), wf[18:18+extra]...)
	}
	return sf, true, nil
}

// formatForStream picks the format of stream number id, or the first audio
// format when no stream carries that number
func formatForStream(formats []StreamFormat, id int) (StreamFormat, bool) {
	for _, sf := range formats {
		if sf.StreamNumber == id {
			return sf, true
		}
	}
	if len(formats) > 0 {
		return formats[0], true
	}
	return StreamFormat{}, false
}
