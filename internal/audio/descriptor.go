package audio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MediaTypeWMA is the media type of the compressed input stream
const MediaTypeWMA = "audio/x-wma"

// Descriptor field names, as carried by the demultiplexer
const (
	FieldVersion    = "wmaversion"
	FieldBitRate    = "bitrate"
	FieldSampleRate = "rate"
	FieldChannels   = "channels"
	FieldBlockAlign = "block_align"
	FieldDepth      = "depth"
	FieldCodecData  = "codec_data"
)

// MandatoryFields must all be present for negotiation to proceed
var MandatoryFields = []string{FieldVersion, FieldBitRate, FieldSampleRate, FieldChannels, FieldBlockAlign}

// ErrMalformedDescriptor is returned when a caps string cannot be parsed
var ErrMalformedDescriptor = errors.New("malformed descriptor")

// Descriptor is the configuration handed over by the demultiplexer: a set of
// named integer fields plus optional codec data. Fields may be absent.
type Descriptor struct {
	MediaType string
	ints      map[string]int
	order     []string
	codecData []byte
	hasCodec  bool
}

// NewDescriptor creates an empty descriptor for the given media type
func NewDescriptor(mediaType string) *Descriptor {
	return &Descriptor{
		MediaType: mediaType,
		ints:      make(map[string]int),
	}
}

// SetInt sets an integer field and returns the descriptor for chaining
func (d *Descriptor) SetInt(name string, value int) *Descriptor {
	if _, exists := d.ints[name]; !exists {
		d.order = append(d.order, name)
	}
	d.ints[name] = value
	return d
}

// Int returns an integer field and whether it is present
func (d *Descriptor) Int(name string) (int, bool) {
	v, ok := d.ints[name]
	return v, ok
}

// Remove deletes an integer field
func (d *Descriptor) Remove(name string) *Descriptor {
	if _, exists := d.ints[name]; !exists {
		return d
	}
	delete(d.ints, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return d
}

// SetCodecData attaches codec initialization bytes. The slice is not copied.
func (d *Descriptor) SetCodecData(data []byte) *Descriptor {
	d.codecData = data
	d.hasCodec = true
	return d
}

// CodecData returns the codec initialization bytes and whether they were provided
func (d *Descriptor) CodecData() ([]byte, bool) {
	return d.codecData, d.hasCodec
}

// MissingFields lists the mandatory fields that are absent
func (d *Descriptor) MissingFields() []string {
	var missing []string
	for _, name := range MandatoryFields {
		if _, ok := d.ints[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// String renders the descriptor in caps string form
func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.MediaType)
	for _, name := range d.order {
		fmt.Fprintf(&b, ", %s=(int)%d", name, d.ints[name])
	}
	if d.hasCodec {
		fmt.Fprintf(&b, ", %s=(buffer)%s", FieldCodecData, hex.EncodeToString(d.codecData))
	}
	return b.String()
}

// ParseDescriptor parses a caps string such as
//
//	audio/x-wma, wmaversion=(int)2, rate=(int)44100, codec_data=(buffer)008800000f00752e0000
//
// Backslash escapes produced by debug output are accepted. Fields of types
// other than int and buffer are ignored.
func ParseDescriptor(caps string) (*Descriptor, error) {
	caps = strings.ReplaceAll(caps, "\\", "")
	parts := strings.Split(caps, ",")

	mediaType := strings.TrimSpace(parts[0])
	if mediaType == "" || strings.Contains(mediaType, "=") {
		return nil, fmt.Errorf("%w: missing media type", ErrMalformedDescriptor)
	}

	d := NewDescriptor(mediaType)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, raw, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no value", ErrMalformedDescriptor, part)
		}
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)

		typ := "int"
		if strings.HasPrefix(raw, "(") {
			end := strings.Index(raw, ")")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated type in %q", ErrMalformedDescriptor, part)
			}
			typ = raw[1:end]
			raw = strings.TrimSpace(raw[end+1:])
		}

		switch typ {
		case "int", "gint":
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: field %s: %v", ErrMalformedDescriptor, name, err)
			}
			d.SetInt(name, v)
		case "buffer", "GstBuffer":
			data, err := hex.DecodeString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: field %s: %v", ErrMalformedDescriptor, name, err)
			}
			if name == FieldCodecData {
				d.SetCodecData(data)
			}
		default:
			// string, fraction, etc. carry nothing the negotiator reads
		}
	}

	return d, nil
}
