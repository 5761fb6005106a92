//go:build cgo

package demux

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmadec.click/internal/audio"
	"wmadec.click/internal/audio/audiotest"
	"wmadec.click/internal/engine/ffmpeg"
	"wmadec.click/internal/engine/ffmpeg/ffmpegtest"
)

func writeFixture(t *testing.T, version int) (string, *ffmpegtest.Stream) {
	t.Helper()
	stream := ffmpegtest.Encode(t, version, 44100, 2, 128000, 6)
	path := filepath.Join(t.TempDir(), "fixture.wma")
	ffmpegtest.WriteASF(t, stream, path)
	return path, stream
}

func TestOpenReportsNegotiableDescriptor(t *testing.T) {
	path, stream := writeFixture(t, 2)
	fs := afero.NewOsFs()

	mime, err := Probe(fs, path)
	require.NoError(t, err)
	assert.Equal(t, MimeASF, mime)

	d, err := Open(fs, path)
	require.NoError(t, err)
	defer d.Close()

	desc := d.Descriptor()
	require.NoError(t, audio.ValidateDescriptor(desc))

	version, _ := desc.Int(audio.FieldVersion)
	blockAlign, ok := desc.Int(audio.FieldBlockAlign)
	require.True(t, ok, "block_align comes from the stream properties object")
	assert.Equal(t, 2, version)
	assert.Equal(t, stream.BlockAlign, blockAlign)

	codecData, ok := desc.CodecData()
	require.True(t, ok)
	assert.Equal(t, stream.ExtraData, codecData)
}

func TestOpenDecodesEveryPacket(t *testing.T) {
	path, stream := writeFixture(t, 2)

	d, err := Open(afero.NewOsFs(), path)
	require.NoError(t, err)
	defer d.Close()

	out := audiotest.NewSink()
	session := audio.NewSession(ffmpeg.New(), out)
	require.NoError(t, session.Start())
	defer session.Stop()
	require.NoError(t, session.SetFormat(d.Descriptor()))

	packets := 0
	for {
		frame, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		packets++
		require.NoError(t, session.HandleFrame(frame))
	}

	assert.Equal(t, len(stream.Packets), packets)
	stats := session.Stats()
	assert.Zero(t, stats.FramesDropped)
	assert.Greater(t, stats.BytesOut, int64(0))
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open(afero.NewOsFs(), filepath.Join(t.TempDir(), "missing.wma"))
	assert.Error(t, err)
}

func TestNextAfterClose(t *testing.T) {
	path, _ := writeFixture(t, 1)

	d, err := Open(afero.NewOsFs(), path)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrDemuxerState)
}
