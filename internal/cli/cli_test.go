package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youpy/go-wav"

	"wmadec.click/internal/audio"
	"wmadec.click/internal/audio/audiotest"
	"wmadec.click/internal/config"
	"wmadec.click/internal/sink"
	"wmadec.click/internal/tracking"
)

var asfHeaderGUID = []byte{
	0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11,
	0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C,
}

const songPath = "/music/song.wma"

// scriptedSource replays a fixed descriptor and frame list
type scriptedSource struct {
	desc   *audio.Descriptor
	frames [][]byte
	next   int
	closed bool
}

func (s *scriptedSource) Descriptor() *audio.Descriptor { return s.desc }

func (s *scriptedSource) Next() ([]byte, error) {
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

type fakeTerminal struct {
	terminals map[int]bool
}

func (f *fakeTerminal) IsTerminal(fd int) bool {
	return f.terminals[fd]
}

// fdBuffer is a buffer that claims to be a file descriptor
type fdBuffer struct {
	bytes.Buffer
	fd uintptr
}

func (b *fdBuffer) Fd() uintptr { return b.fd }

func wmaDescriptor() *audio.Descriptor {
	return audio.NewDescriptor(audio.MediaTypeWMA).
		SetInt(audio.FieldVersion, 2).
		SetInt(audio.FieldBitRate, 128000).
		SetInt(audio.FieldSampleRate, 44100).
		SetInt(audio.FieldChannels, 2).
		SetInt(audio.FieldBlockAlign, 5945).
		SetCodecData([]byte{0x00, 0x88, 0x00, 0x00, 0x0f, 0x00})
}

// stereoPCM returns n interleaved native-endian S16 frames
func stereoPCM(n int) []byte {
	pcm := make([]byte, 0, n*4)
	for i := 0; i < n; i++ {
		pcm = binary.NativeEndian.AppendUint16(pcm, uint16(int16(i)))
		pcm = binary.NativeEndian.AppendUint16(pcm, uint16(-int16(i)))
	}
	return pcm
}

type testHarness struct {
	t      *testing.T
	fs     afero.Fs
	engine *audiotest.Engine
	source *scriptedSource
	opened int
	term   *fakeTerminal
	dbPath string
}

// newHarness builds a CLI over a memory filesystem holding an ASF file and
// a config file. Tracking writes to a temporary database when enabled.
func newHarness(t *testing.T, trackingEnabled bool) *testHarness {
	t.Helper()

	h := &testHarness{
		t:      t,
		fs:     afero.NewMemMapFs(),
		engine: &audiotest.Engine{EngineName: "scripted", Default: audiotest.OK(stereoPCM(16))},
		source: &scriptedSource{
			desc:   wmaDescriptor(),
			frames: [][]byte{{0x01}, {0x02}, {0x03}},
		},
		term:   &fakeTerminal{terminals: map[int]bool{}},
		dbPath: filepath.Join(t.TempDir(), "sessions.db"),
	}

	asf := append(append([]byte{}, asfHeaderGUID...), make([]byte, 64)...)
	require.NoError(t, afero.WriteFile(h.fs, songPath, asf, 0644))
	h.writeConfig(fmt.Sprintf(`{"log_level": "error", "engine": "auto", "sink": "wav", "tracking": {"enabled": %t, "database_path": %q}}`,
		trackingEnabled, h.dbPath))

	t.Setenv("WMADEC_TRACKING", "")
	t.Setenv("WMADEC_SINK", "")
	t.Setenv("WMADEC_ENGINE", "")

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	return h
}

func (h *testHarness) writeConfig(content string) {
	require.NoError(h.t, afero.WriteFile(h.fs, "/config.json", []byte(content), 0644))
}

func (h *testHarness) cli() *CLI {
	registry := audio.NewEngineRegistry()
	registry.Register(h.engine)
	return NewCLI(
		WithFilesystem(h.fs),
		WithEngines(registry),
		WithTerminalDetector(h.term),
		WithSourceOpener(func(path string) (FrameSource, error) {
			h.opened++
			return h.source, nil
		}),
	)
}

// run executes one command with the harness config
func (h *testHarness) run(stdout io.Writer, args ...string) (int, string) {
	stderr := &bytes.Buffer{}
	argv := append([]string{"wmadec", "--config", "/config.json"}, args...)
	code := h.cli().Run(argv, strings.NewReader(""), stdout, stderr)
	return code, stderr.String()
}

func TestNewCLI(t *testing.T) {
	c := NewCLI(WithFilesystem(afero.NewMemMapFs()))
	require.NotNil(t, c.rootCmd)
	assert.Equal(t, "wmadec", c.rootCmd.Use)

	var names []string
	for _, cmd := range c.rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"decode", "probe", "caps", "stats"})
	assert.Equal(t, []string{"ffmpeg"}, c.engines.GetSupportedEngines())
}

func TestRunVersion(t *testing.T) {
	for _, flag := range []string{"--version", "-v"} {
		stdout := &bytes.Buffer{}
		code := NewCLI(WithFilesystem(afero.NewMemMapFs())).Run([]string{"wmadec", flag}, nil, stdout, io.Discard)
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout.String(), "wmadec version "+Version)
	}
}

func TestDecodeWritesWavNextToInput(t *testing.T) {
	h := newHarness(t, false)
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "decode", songPath)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout.String(), "Decoded 3 of 3 frames (0 dropped)")
	assert.Contains(t, stdout.String(), "/music/song.wav")
	assert.True(t, h.source.closed)
	assert.Equal(t, 1, h.engine.InitCalls)
	assert.Equal(t, 1, h.engine.ReleaseCalls)
	assert.Zero(t, h.engine.Outstanding())

	data, err := afero.ReadFile(h.fs, "/music/song.wav")
	require.NoError(t, err)
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	require.NoError(t, err)
	assert.EqualValues(t, 2, format.NumChannels)
	assert.EqualValues(t, 44100, format.SampleRate)
	assert.EqualValues(t, 16, format.BitsPerSample)
}

func TestDecodeContinuesPastBadFrame(t *testing.T) {
	h := newHarness(t, false)
	h.engine.Results = []audiotest.Result{
		audiotest.OK(stereoPCM(16)),
		audiotest.Fail(-5),
		audiotest.OK(stereoPCM(16)),
	}
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "decode", songPath, "--sink", "null")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout.String(), "Decoded 2 of 3 frames (1 dropped)")
	assert.Contains(t, stdout.String(), "128 bytes")
	assert.Contains(t, stdout.String(), "S16/interleaved/44100Hz/2ch")
}

func TestDecodeRawToStdout(t *testing.T) {
	h := newHarness(t, false)
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "decode", songPath, "--sink", "raw")
	require.Equal(t, 0, code, stderr)

	want := bytes.Repeat(stereoPCM(16), 3)
	assert.Equal(t, want, stdout.Bytes())
	assert.Contains(t, stderr, "Decoded 3 of 3 frames")
}

func TestDecodeRefusesRawToTerminal(t *testing.T) {
	h := newHarness(t, false)
	h.term.terminals[7] = true
	stdout := &fdBuffer{fd: 7}

	code, stderr := h.run(stdout, "decode", songPath, "--sink", "raw")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "terminal")
	assert.Zero(t, h.opened)
	assert.Zero(t, stdout.Len())
}

func TestDecodeRejectsNonASFInput(t *testing.T) {
	h := newHarness(t, false)
	wavHeader := []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x02\x00")
	require.NoError(t, afero.WriteFile(h.fs, "/music/song.wav", wavHeader, 0644))

	code, stderr := h.run(&bytes.Buffer{}, "decode", "/music/song.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not a WMA file")
	assert.Zero(t, h.opened)
}

func TestDecodeEngineInitFailure(t *testing.T) {
	h := newHarness(t, false)
	h.engine.InitErr = errors.New("codec missing")

	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--sink", "null")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, audio.ErrDecodeEngineInitFailed.Error())
	assert.Zero(t, h.engine.DecodeCalls)
	assert.True(t, h.source.closed)
}

func TestDecodeRejectsUnsupportedDescriptor(t *testing.T) {
	h := newHarness(t, false)
	h.source.desc.SetInt(audio.FieldSampleRate, 96000)

	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--sink", "null")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, audio.ErrUnsupportedConfiguration.Error())
	assert.Zero(t, h.engine.InitCalls)
}

func TestDecodeUnknownEngine(t *testing.T) {
	h := newHarness(t, false)

	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--engine", "gstreamer")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, audio.ErrUnknownEngine.Error())
}

func TestDecodeRecordsSessionAndStatsReportsIt(t *testing.T) {
	h := newHarness(t, true)
	h.engine.Results = []audiotest.Result{
		audiotest.OK(stereoPCM(16)),
		audiotest.Fail(-5),
	}

	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--sink", "null")
	require.Equal(t, 0, code, stderr)

	db, err := tracking.NewDatabase(h.dbPath)
	require.NoError(t, err)
	sessions, err := tracking.ListSessions(db, tracking.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, songPath, sessions[0].Source)
	assert.Equal(t, "scripted", sessions[0].Engine)
	assert.Equal(t, "wmav2", sessions[0].Variant)
	assert.EqualValues(t, 3, sessions[0].FramesIn)
	assert.EqualValues(t, 1, sessions[0].FramesDropped)

	frameErrors, err := tracking.GetFrameErrors(db, sessions[0].SessionID)
	require.NoError(t, err)
	require.Len(t, frameErrors, 1)
	assert.EqualValues(t, 1, frameErrors[0].FrameIndex)
	assert.Equal(t, -5, frameErrors[0].Status)
	require.NoError(t, db.Close())

	stdout := &bytes.Buffer{}
	code, stderr = h.run(stdout, "stats", "--errors")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout.String(), "Summary: 1 sessions, 3 frames in, 2 decoded, 1 dropped")
	assert.Contains(t, stdout.String(), "song.wma")

	stdout.Reset()
	code, stderr = h.run(stdout, "stats", "--session", sessions[0].SessionID)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout.String(), "Dropped frames:")
	assert.Contains(t, stdout.String(), "status -5")
}

func TestStatsRequiresTracking(t *testing.T) {
	h := newHarness(t, false)

	code, stderr := h.run(&bytes.Buffer{}, "stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, ErrTrackingDisabled.Error())
}

func TestStatsWithNoSessions(t *testing.T) {
	h := newHarness(t, true)
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "stats", "--since", "3 days ago")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout.String(), "No sessions found.")
}

func TestStatsJSON(t *testing.T) {
	h := newHarness(t, true)
	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--sink", "null")
	require.Equal(t, 0, code, stderr)

	stdout := &bytes.Buffer{}
	code, stderr = h.run(stdout, "stats", "--json", "--days", "0")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout.String(), `"frames_decoded": 3`)
	assert.Contains(t, stdout.String(), `"sessions": 1`)
}

func TestProbe(t *testing.T) {
	h := newHarness(t, false)
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "probe", songPath, "--count")
	require.Equal(t, 0, code, stderr)

	out := stdout.String()
	assert.Contains(t, out, "Container: video/x-ms-asf")
	assert.Contains(t, out, "Caps: audio/x-wma, wmaversion=(int)2")
	assert.Contains(t, out, "Superframes: 3 (3 bytes)")
	assert.Contains(t, out, "Variant: wmav2")
	assert.Contains(t, out, "Output: S16/interleaved/44100Hz/2ch")
	assert.Contains(t, out, "Status: ok")
	assert.Zero(t, h.engine.InitCalls)
}

func TestProbeReportsIncompleteDescriptor(t *testing.T) {
	h := newHarness(t, false)
	h.source.desc.Remove(audio.FieldBlockAlign)
	stdout := &bytes.Buffer{}

	code, stderr := h.run(stdout, "probe", songPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Status: rejected")
	assert.Contains(t, stderr, audio.ErrConfigurationIncomplete.Error())
}

func TestCaps(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		output string
	}{
		{
			name:   "accepted",
			args:   []string{"audio/x-wma, wmaversion=(int)1, bitrate=(int)64000, rate=(int)22050, channels=(int)1, block_align=(int)742"},
			output: "Variant: wmav1",
		},
		{
			name:   "split across arguments",
			args:   []string{"audio/x-wma,", "wmaversion=(int)2,", "bitrate=(int)1,", "rate=(int)8000,", "channels=(int)2,", "block_align=(int)1"},
			output: "Output: S16/interleaved/8000Hz/2ch",
		},
		{
			name:   "outside template",
			args:   []string{"audio/x-wma, wmaversion=(int)3, bitrate=(int)1, rate=(int)44100, channels=(int)2, block_align=(int)1"},
			code:   1,
			output: "Status: rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			stdout := &bytes.Buffer{}
			code, stderr := h.run(stdout, append([]string{"caps"}, tt.args...)...)
			assert.Equal(t, tt.code, code, stderr)
			assert.Contains(t, stdout.String(), tt.output)
		})
	}
}

func TestInvalidConfigFails(t *testing.T) {
	h := newHarness(t, false)
	h.writeConfig(`{"sink": "mp3", "volume": 3}`)

	code, stderr := h.run(&bytes.Buffer{}, "caps", "audio/x-wma")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid sink 'mp3'")
	assert.Contains(t, stderr, "volume must be between")
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	h := newHarness(t, false)

	code, stderr := h.run(&bytes.Buffer{}, "--log-level", "debug", "probe", songPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "loading config from file", "the flag applies before config is read")
	assert.Contains(t, stderr, "running probe command")
}

func TestInvalidLogLevelFlag(t *testing.T) {
	h := newHarness(t, false)

	code, stderr := h.run(&bytes.Buffer{}, "--log-level", "chatty", "caps", "audio/x-wma")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid --log-level")
}

func TestDecodeRejectsUnknownSink(t *testing.T) {
	h := newHarness(t, false)

	code, stderr := h.run(&bytes.Buffer{}, "decode", songPath, "--sink", "flac")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "must be one of: wav, aiff, raw, device, null")
	assert.Zero(t, h.opened, "the input is not opened for an unknown sink")
}

func TestSupportedSinksMatchFactory(t *testing.T) {
	c := NewCLI(WithFilesystem(afero.NewMemMapFs()))
	assert.ElementsMatch(t, sink.Kinds(), c.configManager.GetSupportedSinks())
}

func TestIsInteractiveTerminal(t *testing.T) {
	c := NewCLI(WithFilesystem(afero.NewMemMapFs()), WithTerminalDetector(&fakeTerminal{terminals: map[int]bool{3: true}}))

	assert.True(t, c.isInteractiveTerminal(&fdBuffer{fd: 3}))
	assert.False(t, c.isInteractiveTerminal(&fdBuffer{fd: 4}))
	assert.False(t, c.isInteractiveTerminal(&bytes.Buffer{}))
}

func TestFanoutHandlerFiltersPerHandler(t *testing.T) {
	var quiet, verbose bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewTextHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With("session_id", "s1")

	logger.Debug("frame decoded")
	logger.Warn("frame dropped")

	assert.NotContains(t, quiet.String(), "frame decoded")
	assert.Contains(t, quiet.String(), "frame dropped")
	assert.Contains(t, verbose.String(), "frame decoded")
	assert.Contains(t, verbose.String(), "session_id=s1")

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newFanoutHandler().Enabled(context.Background(), slog.LevelError))
}

func TestSetupLoggingCreatesLogDirectoryThroughFilesystem(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logFile := filepath.Join(t.TempDir(), "logs", "wmadec.log")
	readOnly := afero.NewReadOnlyFs(afero.NewMemMapFs())
	cm := config.NewConfigManagerWithFilesystem(readOnly)
	cfg := cm.GetDefaultConfig()
	cfg.LogLevel = "error"
	cfg.FileLogging.Enabled = true
	cfg.FileLogging.Filename = logFile

	assert.Empty(t, setupLogging(readOnly, cm, cfg, io.Discard), "no file handler without a log directory")

	fs := afero.NewMemMapFs()
	cm = config.NewConfigManagerWithFilesystem(fs)
	assert.Equal(t, logFile, setupLogging(fs, cm, cfg, io.Discard))
	exists, err := afero.DirExists(fs, filepath.Dir(logFile))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWithClockDrivesSinceFilter(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	c := NewCLI(WithFilesystem(afero.NewMemMapFs()), WithClock(func() time.Time { return now }))
	assert.Equal(t, now, c.now())
}
