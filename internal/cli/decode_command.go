package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"wmadec.click/internal/audio"
	"wmadec.click/internal/demux"
	"wmadec.click/internal/sink"
	"wmadec.click/internal/tracking"
)

type decodeOptions struct {
	output string
	sink   string
	engine string
}

func newDecodeCommand() *cobra.Command {
	var opts decodeOptions

	decodeCmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a WMA stream to PCM",
		Long: `Decode the WMA audio stream of an ASF file into 16-bit PCM.

The stream descriptor is negotiated once, then every superframe is decoded
in order. Frames the engine cannot decode are dropped and counted; the rest
of the stream still decodes.

Examples:
  wmadec decode song.wma                     # writes song.wav
  wmadec decode song.wma -o out.aiff --sink aiff
  wmadec decode song.wma --sink raw > song.pcm
  wmadec decode song.wma --sink device       # play it`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := cliFromContext(cmd.Context())
			if cli == nil {
				return ErrNoCLI
			}
			return cli.runDecode(cmd, args[0], opts)
		},
	}

	decodeCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default: input name with the sink extension, raw: stdout)")
	decodeCmd.Flags().StringVar(&opts.sink, "sink", "", "Output sink (wav, aiff, raw, device, null)")
	decodeCmd.Flags().StringVar(&opts.engine, "engine", "", "Decode engine (default from config)")

	return decodeCmd
}

func (c *CLI) runDecode(cmd *cobra.Command, input string, opts decodeOptions) error {
	kind := opts.sink
	if kind == "" {
		kind = c.cfg.Sink
	}
	kind = strings.ToLower(kind)
	engineName := opts.engine
	if engineName == "" {
		engineName = c.cfg.Engine
	}

	slog.Debug("running decode command", "input", input, "sink", kind, "engine", engineName, "output", opts.output)

	if supported := c.configManager.GetSupportedSinks(); !slices.Contains(supported, kind) {
		return fmt.Errorf("%w: %q, must be one of: %s", sink.ErrUnknownSink, kind, strings.Join(supported, ", "))
	}

	if _, err := demux.Probe(c.fs, input); err != nil {
		return fmt.Errorf("%s is not a WMA file: %w", input, err)
	}

	engine, err := c.engines.Lookup(engineName)
	if err != nil {
		return err
	}

	output := opts.output
	toStdout := kind == sink.KindRaw && (output == "" || output == "-")
	if toStdout && c.isInteractiveTerminal(cmd.OutOrStdout()) {
		return sink.ErrTerminalOutput
	}
	if output == "" && (kind == sink.KindWav || kind == sink.KindAiff) {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + kind
	}

	src, err := c.openSource(input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer src.Close()

	factory := sink.NewFactory(c.fs,
		sink.WithStdout(cmd.OutOrStdout()),
		sink.WithVolume(float32(c.cfg.Volume)))
	out, err := factory.New(kind, output)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}

	var sessionOpts []audio.Option
	c.initializeTracking()
	if c.trackingDB != nil {
		recorder := tracking.NewRecorder(c.trackingDB, input, engine.Name())
		sessionOpts = append(sessionOpts, audio.WithObserver(recorder.GetObserver()))
	}
	session := audio.NewSession(engine, out, sessionOpts...)

	runErr := decodeStream(session, src)
	format := "no output format"
	if last, ok := session.LastAnnounced(); ok {
		format = last.String()
	}
	stopErr := session.Stop()
	closeErr := out.Close()
	if err := errors.Join(runErr, stopErr, closeErr); err != nil {
		return fmt.Errorf("decoding %s failed: %w", input, err)
	}

	report := cmd.OutOrStdout()
	if toStdout {
		report = cmd.ErrOrStderr()
	}
	if output == "" {
		output = "-"
	}
	stats := session.Stats()
	fmt.Fprintf(report, "Decoded %d of %d frames (%d dropped)\n", stats.FramesDecoded, stats.FramesIn, stats.FramesDropped)
	fmt.Fprintf(report, "Output: %s, %d bytes, %s\n", output, stats.BytesOut, format)
	fmt.Fprintf(report, "Session: %s\n", session.ID())
	return nil
}

// decodeStream drives one session over every frame of src, then signals
// end of stream
func decodeStream(session *audio.Session, src FrameSource) error {
	if err := session.Start(); err != nil {
		return err
	}
	if err := session.SetFormat(src.Descriptor()); err != nil {
		return err
	}

	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		if err := session.HandleFrame(frame); err != nil {
			return err
		}
	}

	return session.HandleFrame(nil)
}
