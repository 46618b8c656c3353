// Package main provides the CLI entry point for framepace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"

	"github.com/user/framepace/pkg/adapters/astiavsource"
	"github.com/user/framepace/pkg/adapters/ffmpegsource"
	"github.com/user/framepace/pkg/adapters/logger"
	"github.com/user/framepace/pkg/adapters/mp4index"
	"github.com/user/framepace/pkg/adapters/nullrenderer"
	"github.com/user/framepace/pkg/adapters/osfilesystem"
	"github.com/user/framepace/pkg/adapters/snapshotrenderer"
	"github.com/user/framepace/pkg/config"
	"github.com/user/framepace/pkg/ports"
	"github.com/user/framepace/pkg/session"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Play    PlayCmd    `cmd:"" help:"Play a video file with frame-accurate pacing."`
	Probe   ProbeCmd   `cmd:"" help:"Show stream and keyframe information of an MP4 file."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// PlayCmd defines the play subcommand.
type PlayCmd struct {
	Input  string `arg:"" help:"Video file to play."`
	Config string `short:"c" help:"YAML configuration file."`

	// Decoding
	Backend    string `short:"b" help:"Decode backend (libav, ffmpeg)."`
	Threads    *int   `help:"Decoder thread count (0 = automatic)."`
	FFmpegPath string `help:"Path to ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)."`

	// Presentation
	Renderer  string  `short:"r" help:"Renderer (snapshot, null)."`
	Out       string  `short:"o" help:"Directory for snapshots."`
	Format    string  `help:"Snapshot image format (png, jpeg)."`
	Width     *int    `short:"W" help:"Scale snapshots to this width."`
	Every     *int    `help:"Write every Nth presented frame."`
	NoOverlay bool    `help:"Do not draw the presentation time on snapshots."`
	Start     float64 `short:"s" help:"Start position in seconds."`
	Paused    bool    `help:"Start paused. With --start the frame at that position is shown once."`
	Lookahead *int    `help:"Milliseconds of decode budget after a seek."`
	Controls  bool    `help:"Read pause, resume, seek and quit commands from stdin."`

	// Logging
	LogLevel  string `short:"l" help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (console, text, json)."`
	Quiet     bool   `short:"Q" help:"Suppress all log output."`
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	Input string `arg:"" help:"MP4 file to inspect."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("framepace"),
		kong.Description(l10n.T("Frame-accurate video playback with seek and pause")),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the play command.
func (cmd *PlayCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg, cmd.Quiet)
	astiavsource.SetLogLevel(cfg.Level())

	opener, err := newOpener(cfg, log)
	if err != nil {
		return err
	}

	fs := osfilesystem.New()
	var renderer ports.Renderer
	var snapshots *snapshotrenderer.Renderer
	switch cfg.Renderer {
	case config.RendererSnapshot:
		if err := fs.MkdirAll(cfg.Snapshot.Dir); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
		snapshots = snapshotrenderer.New(snapshotrenderer.Options{
			Dir:          cfg.Snapshot.Dir,
			Format:       snapshotrenderer.Format(cfg.Snapshot.Format),
			Quality:      cfg.Snapshot.Quality,
			Width:        cfg.Snapshot.Width,
			Overlay:      cfg.Snapshot.Overlay,
			OverlayColor: config.ParseColor(cfg.Snapshot.OverlayColor),
			Every:        cfg.Snapshot.Every,
		}, fs, log)
		renderer = snapshots
	default:
		renderer = nullrenderer.New()
	}

	opts := []session.Option{}
	if !cmd.Quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		opts = append(opts, session.WithObserver(newProgress(os.Stderr)))
	}

	sess, err := session.Open(session.Config{
		Path:        cmd.Input,
		StartAt:     cmd.Start,
		StartPaused: cmd.Paused,
		Lookahead:   cfg.SeekLookahead(),
	}, opener, renderer, log, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cmd.Controls {
		go readControls(ctx, os.Stdin, sess, cmd.Paused, cancel, log)
	}

	result, err := sess.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr)
	fmt.Println(l10n.F("Presented %d frames (%d skipped, %d late, %d seeks) in %s",
		result.Stats.Presented, result.Stats.Skipped, result.Stats.Late, result.Stats.Seeks, result.Elapsed.Round(time.Millisecond)))
	if snapshots != nil {
		fmt.Println(l10n.F("Snapshots written: %d to %s", len(snapshots.Written()), cfg.Snapshot.Dir))
	}
	return nil
}

// buildConfig loads the config file, if any, and applies flag overrides.
func (cmd *PlayCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		loaded, err := config.Load(osfilesystem.New(), cmd.Config)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Backend != "" {
		cfg.Backend = cmd.Backend
	}
	if cmd.Threads != nil {
		cfg.Threads = *cmd.Threads
	}
	if cmd.FFmpegPath != "" {
		cfg.FFmpegPath = cmd.FFmpegPath
	}
	if cmd.Renderer != "" {
		cfg.Renderer = cmd.Renderer
	}
	if cmd.Out != "" {
		cfg.Snapshot.Dir = cmd.Out
	}
	if cmd.Format != "" {
		cfg.Snapshot.Format = cmd.Format
	}
	if cmd.Width != nil {
		cfg.Snapshot.Width = *cmd.Width
	}
	if cmd.Every != nil {
		cfg.Snapshot.Every = *cmd.Every
	}
	if cmd.NoOverlay {
		cfg.Snapshot.Overlay = false
	}
	if cmd.Lookahead != nil {
		cfg.SeekLookaheadMs = *cmd.Lookahead
	}
	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}
	if cmd.LogFormat != "" {
		cfg.LogFormat = cmd.LogFormat
	}

	if cmd.Start < 0 {
		return cfg, fmt.Errorf("%w: start must not be negative", config.ErrInvalid)
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, quiet bool) ports.Logger {
	if quiet {
		return logger.NewNoop()
	}
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		return logger.NewStructured(cfg.Level(), logger.FormatJSON, os.Stderr)
	case config.LogFormatText:
		return logger.NewStructured(cfg.Level(), logger.FormatText, os.Stderr)
	default:
		return logger.NewConsole(cfg.Level())
	}
}

func newOpener(cfg config.Config, log ports.Logger) (ports.SourceOpener, error) {
	if cfg.Backend == config.BackendFFmpeg {
		return ffmpegsource.NewOpener(cfg.FFmpegPath, cfg.FFprobePath, log)
	}
	return astiavsource.NewOpener(cfg.Threads, log), nil
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	ix, err := mp4index.FromFile(cmd.Input)
	if err != nil {
		return err
	}

	fmt.Println(l10n.F("Codec: %s", ix.Codec))
	fmt.Println(l10n.F("Size: %dx%d", ix.Width, ix.Height))
	fmt.Println(l10n.F("Time base: %s", ix.TimeBase()))
	fmt.Println(l10n.F("Duration: %.3fs", ix.DurationSeconds()))
	fmt.Println(l10n.F("Frames: %d (%d keyframes)", len(ix.Samples), ix.KeyframeCount()))
	fmt.Println(l10n.F("Frame rate: %.3f fps", ix.FrameRate()))
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("framepace version %s", version))
	return nil
}
