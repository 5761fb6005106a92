package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"wmadec.click/internal/audio"
	"wmadec.click/internal/config"
	"wmadec.click/internal/demux"
	"wmadec.click/internal/engine/ffmpeg"
	"wmadec.click/internal/tracking"
)

const Version = "0.4.0"

var (
	ErrNoCLI             = errors.New("CLI instance not found in context")
	ErrTrackingDisabled  = errors.New("session tracking is not enabled or database is not available")
	ErrUnsupportedStream = errors.New("stream cannot be decoded")
)

// FrameSource yields the stream descriptor and then one compressed
// superframe per Next call, io.EOF at end of stream
type FrameSource interface {
	Descriptor() *audio.Descriptor
	Next() ([]byte, error)
	Close() error
}

// SourceOpener opens the frame source for an input path
type SourceOpener func(path string) (FrameSource, error)

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	fs               afero.Fs
	configManager    *config.ConfigManager
	engines          *audio.EngineRegistry
	openSource       SourceOpener
	terminalDetector TerminalDetector
	trackingDB       *sql.DB // Optional, nil when tracking is disabled
	cfg              *config.Config
	now              func() time.Time
}

// Option configures a CLI
type Option func(*CLI)

// WithFilesystem sets the filesystem used for config, probing and file sinks
func WithFilesystem(fs afero.Fs) Option {
	return func(c *CLI) {
		c.fs = fs
	}
}

// WithEngines replaces the default engine registry
func WithEngines(engines *audio.EngineRegistry) Option {
	return func(c *CLI) {
		c.engines = engines
	}
}

// WithSourceOpener replaces the ASF demuxer
func WithSourceOpener(open SourceOpener) Option {
	return func(c *CLI) {
		c.openSource = open
	}
}

// WithTerminalDetector replaces the terminal check on stdout
func WithTerminalDetector(detector TerminalDetector) Option {
	return func(c *CLI) {
		c.terminalDetector = detector
	}
}

// WithClock sets the time source for stats date filters
func WithClock(now func() time.Time) Option {
	return func(c *CLI) {
		c.now = now
	}
}

// NewCLI creates a new CLI instance
func NewCLI(opts ...Option) *CLI {
	slog.Debug("creating new CLI instance")

	c := &CLI{
		fs:               afero.NewOsFs(),
		terminalDetector: &DefaultTerminalDetector{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.openSource == nil {
		c.openSource = c.openDemuxer
	}
	if c.engines == nil {
		c.engines = audio.NewEngineRegistry()
		c.engines.Register(ffmpeg.New())
	}
	c.configManager = config.NewConfigManagerWithFilesystem(c.fs)

	rootCmd := &cobra.Command{
		Use:   "wmadec",
		Short: "WMA superframe decoder",
		Long: "wmadec decodes WMA version 1 and 2 streams from ASF files into 16-bit PCM, " +
			"writing WAV, AIFF or raw output, or playing it on the default audio device.",
		PersistentPreRunE: c.prepare,
		RunE:              runRoot,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newProbeCommand())
	rootCmd.AddCommand(newCapsCommand())
	rootCmd.AddCommand(newStatsCommand())

	c.rootCmd = rootCmd
	return c
}

type cliContextKey struct{}

// contextWithCLI stores CLI instance in context for command handlers
func contextWithCLI(cli *CLI) context.Context {
	return context.WithValue(context.Background(), cliContextKey{}, cli)
}

// cliFromContext extracts CLI instance from context
func cliFromContext(ctx context.Context) *CLI {
	if cli, ok := ctx.Value(cliContextKey{}).(*CLI); ok {
		return cli
	}
	return nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "wmadec version %s\nWMA superframe decoder\n", Version)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if version, _ := cmd.Flags().GetBool("version"); version {
		printVersion(cmd.OutOrStdout())
		return nil
	}
	return cmd.Help()
}

// prepare loads configuration and sets up logging before any subcommand
func (c *CLI) prepare(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadAndValidateConfig(cmd)
	if err != nil {
		return err
	}
	c.cfg = cfg
	setupLogging(c.fs, c.configManager, cfg, cmd.ErrOrStderr())
	return nil
}

// loadAndValidateConfig loads configuration from flags and files, applies overrides, and validates
func (c *CLI) loadAndValidateConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")

	// the flag also covers config loading, before the full logging setup
	if err := c.configManager.ApplyLogLevelWithWriter(logLevel, cmd.ErrOrStderr()); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = c.configManager.LoadFromFile(configFile)
	} else {
		cfg, err = c.configManager.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	cfg = c.configManager.ApplyEnvironmentOverrides(cfg)

	if logLevel != "" {
		cfg.LogLevel = logLevel
		slog.Debug("log level override applied", "value", logLevel)
	}

	if err := c.configManager.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	// Version needs no config or engines
	if len(args) == 2 && (args[1] == "--version" || args[1] == "-v") {
		printVersion(stdout)
		return 0
	}

	defer c.closeTracking()

	if len(args) > 0 {
		args = args[1:]
	}
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
	c.rootCmd.SetContext(contextWithCLI(c))

	if err := c.rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// initializeTracking opens the session database if enabled in configuration.
// Failures degrade to running without tracking.
func (c *CLI) initializeTracking() {
	if c.trackingDB != nil || c.cfg == nil {
		return
	}

	if c.cfg.Tracking == nil || !c.cfg.Tracking.Enabled {
		slog.Debug("session tracking disabled, skipping database initialization")
		return
	}

	dbPath := c.configManager.ResolveDatabasePath(c.cfg.Tracking.DatabasePath)
	db, err := tracking.NewDatabaseWithFilesystem(c.fs, dbPath)
	if err != nil {
		slog.Error("failed to initialize tracking database, continuing without tracking",
			"path", dbPath, "error", err)
		return
	}

	c.trackingDB = db
	slog.Debug("tracking database initialized", "path", dbPath)
}

func (c *CLI) closeTracking() {
	if c.trackingDB == nil {
		return
	}
	if err := c.trackingDB.Close(); err != nil {
		slog.Error("error closing tracking database", "error", err)
	}
	c.trackingDB = nil
}

func (c *CLI) openDemuxer(path string) (FrameSource, error) {
	d, err := demux.Open(c.fs, path)
	if err != nil {
		return nil, err
	}
	return d, nil
}
