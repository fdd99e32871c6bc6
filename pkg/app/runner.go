package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"trs80term/pkg/config"
	"trs80term/pkg/connection"
	"trs80term/pkg/dispatch"
	"trs80term/pkg/history"
	"trs80term/pkg/indicator"
	"trs80term/pkg/media"
	"trs80term/pkg/screen"
)

// Runner provides a high-level interface to run the console application
type Runner struct {
	endpoint connection.Endpoint
	settings *config.Settings
	format   history.FileFormat

	// Where the session summary goes once the screen is released
	out io.Writer
}

// NewRunner creates a new application runner
func NewRunner(endpoint connection.Endpoint, settings *config.Settings) (*Runner, error) {
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	format, err := history.ParseFormat(settings.RecordFormat)
	if err != nil {
		return nil, err
	}

	return &Runner{
		endpoint: endpoint,
		settings: settings,
		format:   format,
		out:      os.Stdout,
	}, nil
}

// Config builds the application configuration for this runner
func (r *Runner) Config(logger *slog.Logger) Config {
	cfg := Config{
		Server:       r.endpoint.Raw,
		Dial:         r.endpoint.Dialer(),
		Retry:        r.settings.Retry,
		HistorySize:  r.settings.HistorySize,
		Record:       r.settings.Record,
		RecordFormat: r.format,
		Logger:       logger,
	}
	// Colours were checked by NewRunner.
	if style, err := r.settings.DisplayStyle(); err == nil {
		cfg.DisplayStyle = style
	}
	if base, err := r.endpoint.HTTPBase(); err == nil {
		cfg.Media = media.NewClient(base, nil)
	}
	return cfg
}

// Run starts the application and blocks until it's stopped
func (r *Runner) Run(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("trs80term needs an interactive terminal")
	}

	logger, closeLog, err := r.openLog()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scr, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := scr.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	app, err := New(r.Config(logger), scr)
	if err != nil {
		scr.Fini()
		return fmt.Errorf("failed to create application: %w", err)
	}

	logger.Info("session started", "session", app.Session().ID, "server", r.endpoint.Raw)
	runErr := app.Run(ctx)
	scr.Fini()

	if runErr != nil {
		logger.Error("session failed", "err", runErr)
		return runErr
	}

	r.printSessionSummary(app)
	return nil
}

// openLog opens the log file named in the settings
func (r *Runner) openLog() (*slog.Logger, func(), error) {
	level, err := r.settings.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if r.settings.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	file, err := os.OpenFile(r.settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
}

// printSessionSummary prints a summary of the session
func (r *Runner) printSessionSummary(app *Application) {
	stats := app.Stats()

	fmt.Fprintf(r.out, "\n=== Session Summary ===\n")
	fmt.Fprintf(r.out, "Server: %s\n", r.endpoint.Raw)
	fmt.Fprintf(r.out, "Duration: %v\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.out, "Messages Received: %d (%d updates)\n", stats.Received, stats.Updates)
	fmt.Fprintf(r.out, "Commands Sent: %d\n", stats.Sent)
	if stats.Dropped > 0 {
		fmt.Fprintf(r.out, "Commands Dropped: %d\n", stats.Dropped)
	}
	if stats.Unknown > 0 {
		fmt.Fprintf(r.out, "Unknown Updates: %d\n", stats.Unknown)
	}
	if stats.IgnoredDrives > 0 {
		fmt.Fprintf(r.out, "Motor Updates For Unknown Drives: %d\n", stats.IgnoredDrives)
	}
	if r.settings.Record != "" {
		fmt.Fprintf(r.out, "Recording: %s\n", r.settings.Record)
	}
	fmt.Fprintf(r.out, "=======================\n")
}

// RunInteractive runs the console for endpoint
func RunInteractive(ctx context.Context, endpoint connection.Endpoint, settings *config.Settings) error {
	runner, err := NewRunner(endpoint, settings)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

// Replay feeds the inbound messages of a saved recording through the
// dispatcher and writes the final screen and indicators to w. It needs no
// terminal or server.
func Replay(path string, w io.Writer, logger *slog.Logger) error {
	recording, err := history.LoadFile(path)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	buffer := screen.NewBuffer()
	panel := indicator.NewPanel()
	dispatcher := dispatch.New(buffer, panel, logger)

	malformed := 0
	for _, payload := range recording.Inbound() {
		if err := dispatcher.Dispatch(payload); err != nil {
			logger.Warn("dropping malformed update", "err", err)
			malformed++
		}
	}

	return writeScreen(w, buffer, panel, malformed)
}

// writeScreen prints the display inside a frame, then the indicators
func writeScreen(w io.Writer, buffer *screen.Buffer, panel *indicator.Panel, malformed int) error {
	var b strings.Builder

	rule := "+" + strings.Repeat("-", screen.Columns) + "+\n"
	b.WriteString(rule)
	expanded := buffer.Expanded()
	for row := 0; row < screen.Rows; row++ {
		b.WriteByte('|')
		for _, glyph := range screen.RowRunes(buffer.RowText(row), expanded) {
			b.WriteRune(glyph)
		}
		b.WriteString("|\n")
	}
	b.WriteString(rule)

	fmt.Fprintf(&b, "%s\n", panel.Lights())
	if msg, _ := panel.Message(); msg != "" {
		fmt.Fprintf(&b, "Last message: %s\n", msg)
	}
	if malformed > 0 {
		fmt.Fprintf(&b, "Malformed messages: %d\n", malformed)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
