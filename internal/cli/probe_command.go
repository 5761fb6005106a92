package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"wmadec.click/internal/audio"
	"wmadec.click/internal/demux"
)

func newProbeCommand() *cobra.Command {
	var count bool

	probeCmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show the stream descriptor of a WMA file",
		Long: `Show the container type and the stream descriptor a decode would
negotiate, and whether the descriptor is accepted.

Examples:
  wmadec probe song.wma
  wmadec probe song.wma --count   # also count superframes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := cliFromContext(cmd.Context())
			if cli == nil {
				return ErrNoCLI
			}
			return cli.runProbe(cmd, args[0], count)
		},
	}

	probeCmd.Flags().BoolVar(&count, "count", false, "Read the whole stream and count superframes")

	return probeCmd
}

func (c *CLI) runProbe(cmd *cobra.Command, input string, count bool) error {
	slog.Debug("running probe command", "input", input, "count", count)
	w := cmd.OutOrStdout()

	mime, err := demux.Probe(c.fs, input)
	if err != nil {
		return fmt.Errorf("%s is not a WMA file: %w", input, err)
	}

	src, err := c.openSource(input)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", input, err)
	}
	defer src.Close()

	desc := src.Descriptor()
	fmt.Fprintf(w, "Container: %s\n", mime)
	if desc != nil {
		fmt.Fprintf(w, "Caps: %s\n", desc)
	}

	if count {
		frames, bytes, err := countFrames(src)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Superframes: %d (%d bytes)\n", frames, bytes)
	}

	return reportDescriptor(w, desc)
}

func newCapsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "caps <caps-string>",
		Short: "Validate a caps string without decoding",
		Long: `Parse a caps string and check it against the accepted input formats:
WMA versions 1 and 2, rates 8000 to 48000 Hz, mono or stereo.

Example:
  wmadec caps 'audio/x-wma, wmaversion=(int)2, bitrate=(int)128000, rate=(int)44100, channels=(int)2, block_align=(int)5945, codec_data=(buffer)008800000f0000000000'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := strings.Join(args, " ")
			slog.Debug("running caps command", "caps", caps)

			desc, err := audio.ParseDescriptor(caps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Caps: %s\n", desc)
			return reportDescriptor(cmd.OutOrStdout(), desc)
		},
	}
}

// reportDescriptor prints what a session would negotiate from desc
func reportDescriptor(w io.Writer, desc *audio.Descriptor) error {
	if err := audio.ValidateDescriptor(desc); err != nil {
		fmt.Fprintf(w, "Status: rejected\n")
		return fmt.Errorf("%w: %w", ErrUnsupportedStream, err)
	}

	version, _ := desc.Int(audio.FieldVersion)
	rate, _ := desc.Int(audio.FieldSampleRate)
	channels, _ := desc.Int(audio.FieldChannels)
	bitrate, _ := desc.Int(audio.FieldBitRate)
	codecData, _ := desc.CodecData()

	fmt.Fprintf(w, "Variant: %s\n", audio.VariantForVersion(version))
	fmt.Fprintf(w, "Output: %s\n", audio.NewS16Format(rate, channels))
	fmt.Fprintf(w, "Bitrate: %d bps, %d bytes codec data\n", bitrate, len(codecData))
	fmt.Fprintf(w, "Status: ok\n")
	return nil
}

func countFrames(src FrameSource) (frames int, bytes int64, err error) {
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return frames, bytes, nil
		}
		if err != nil {
			return frames, bytes, fmt.Errorf("failed to read frame %d: %w", frames, err)
		}
		frames++
		bytes += int64(len(frame))
	}
}
