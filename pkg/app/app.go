// Package app provides the main application controller
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"trs80term/pkg/command"
	"trs80term/pkg/connection"
	"trs80term/pkg/dispatch"
	"trs80term/pkg/history"
	"trs80term/pkg/indicator"
	"trs80term/pkg/keymap"
	"trs80term/pkg/media"
	"trs80term/pkg/menu"
	"trs80term/pkg/screen"
)

// mediaTimeout bounds one media list request
const mediaTimeout = 10 * time.Second

// MediaLister lists the files a server offers. media.Client implements it.
type MediaLister interface {
	List(ctx context.Context, kind media.Kind) ([]string, error)
}

// Config contains application configuration
type Config struct {
	// Server is shown in the status line and the session summary
	Server string
	// Dial opens the link to the server
	Dial connection.DialFunc
	// Media fills the disk and cassette pickers; nil disables them
	Media MediaLister

	Retry        connection.RetryConfig
	HistorySize  int
	Record       string
	RecordFormat history.FileFormat

	// DisplayStyle colours the machine display; the zero style keeps the
	// renderer's white on black
	DisplayStyle tcell.Style

	Logger *slog.Logger
}

// Session represents one run of the console
type Session struct {
	ID        string
	Server    string
	StartTime time.Time
	EndTime   *time.Time
	mu        sync.RWMutex
}

// NewSession creates a new session
func NewSession(id, server string) *Session {
	return &Session{
		ID:        id,
		Server:    server,
		StartTime: time.Now(),
	}
}

// End marks the session as ended
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.EndTime == nil {
		now := time.Now()
		s.EndTime = &now
	}
}

// IsActive reports whether the session has not ended
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.EndTime == nil
}

// Duration returns how long the session ran, or has run so far
func (s *Session) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Events posted to the tcell queue from other goroutines. The loop is the
// only goroutine touching the screen buffer, indicators and menus.
type (
	updateEvent struct {
		tcell.EventTime
		payload []byte
	}
	closeEvent struct {
		tcell.EventTime
		err error
	}
	statusEvent struct {
		tcell.EventTime
		text string
	}
	mediaEvent struct {
		tcell.EventTime
		kind  media.Kind
		drive int
		names []string
		err   error
	}
)

// Application represents the main application controller
type Application struct {
	config Config
	logger *slog.Logger

	// Display
	screen   tcell.Screen
	buffer   *screen.Buffer
	renderer *screen.Renderer
	panel    *indicator.Panel
	statusY  int

	// Link to the server
	manager     *connection.Manager
	reconnector *connection.Reconnector
	encoder     *command.Encoder
	dispatcher  *dispatch.Dispatcher
	recorder    *history.Recorder

	// Menus
	overlay    *menu.Overlay
	control    *menu.Menu
	breakpoint *menu.Prompt

	session *Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	quitting bool
}

// New creates an application drawing on scr. The caller owns scr: it must
// be initialised and is finalised by the caller after Run returns.
func New(config Config, scr tcell.Screen) (*Application, error) {
	if config.Dial == nil {
		return nil, fmt.Errorf("no dialer configured")
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if config.HistorySize <= 0 {
		config.HistorySize = history.DefaultMaxEntries
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: config,
		logger: logger,
		screen: scr,
		buffer: screen.NewBuffer(),
		panel:  indicator.NewPanel(),
		ctx:    ctx,
		cancel: cancel,
	}
	app.renderer = screen.NewRenderer(app.buffer, scr)
	if config.DisplayStyle != tcell.StyleDefault {
		app.renderer.SetStyle(config.DisplayStyle)
	}
	app.dispatcher = dispatch.New(app.buffer, app.panel, logger)
	app.recorder = history.NewRecorder(config.HistorySize)
	app.session = NewSession(app.recorder.SessionID(), config.Server)

	app.manager = connection.NewManager(config.Dial, connection.Options{
		Handler: func(payload []byte) error {
			return app.post(&updateEvent{payload: payload})
		},
		OnClose: func(err error) {
			app.post(&closeEvent{err: err})
		},
		Tap:    app.record,
		Logger: logger,
	})
	if config.Retry.Enabled() {
		app.reconnector = connection.NewReconnector(app.manager, config.Retry, logger)
	}
	app.encoder = command.NewEncoder(app.manager)

	app.setupMenus()
	return app, nil
}

// setupMenus builds the F2 control menu
func (app *Application) setupMenus() {
	app.overlay = menu.NewOverlay()
	app.overlay.SetOnEmpty(app.redrawAll)

	app.breakpoint = menu.NewPrompt("Breakpoint address (hex)", 6, app.encoder.AddBreakpoint)
	app.breakpoint.SetOnError(app.showError)

	control := menu.New("TRS-80")
	control.AddItem("Boot", 'b', app.encoder.Boot)
	control.AddItem("Reset", 'r', app.encoder.Reset)
	control.AddItem("Trace", 't', app.encoder.Trace)
	control.AddItem("Add breakpoint...", 'a', func() error {
		app.overlay.Push(app.breakpoint)
		return nil
	})
	control.AddSeparator()
	control.AddItem("Disk 0...", '0', func() error { return app.pickMedia(media.Disks, 0) })
	control.AddItem("Disk 1...", '1', func() error { return app.pickMedia(media.Disks, 1) })
	control.AddItem("Cassette...", 'c', func() error { return app.pickMedia(media.Cassettes, -1) })
	control.AddSeparator()
	control.AddItem("Save recording", 's', app.saveRecordingNow)
	control.AddItem("Quit", 'q', func() error {
		app.quitting = true
		return nil
	})
	control.SetOnError(app.showError)

	if app.config.Media == nil {
		for _, label := range []string{"Disk 0...", "Disk 1...", "Cassette..."} {
			control.EnableItem(label, false)
		}
	}
	app.control = control
}

// Run connects and processes events until the user quits or ctx is done.
func (app *Application) Run(ctx context.Context) error {
	defer app.shutdown()

	stop := context.AfterFunc(ctx, func() {
		app.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	if err := app.connect(ctx); err != nil {
		return err
	}

	app.layout()
	app.panel.ShowMessage("Connected to " + app.config.Server)
	app.draw()

	for !app.quitting {
		ev := app.screen.PollEvent()
		if ev == nil {
			break
		}
		if _, ok := ev.(*tcell.EventInterrupt); ok && ctx.Err() != nil {
			break
		}
		app.handleEvent(ev)
		app.draw()
	}
	return nil
}

// connect makes the first connection, with retries when enabled
func (app *Application) connect(ctx context.Context) error {
	if app.reconnector != nil {
		return app.reconnector.Reconnect(ctx)
	}
	if err := app.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", app.config.Server, err)
	}
	return nil
}

// shutdown closes the link and saves the recording
func (app *Application) shutdown() {
	app.quitting = true
	app.cancel()

	app.manager.Close()
	app.wg.Wait()
	// A reconnect that was dialing when we cancelled may have opened again.
	app.manager.Close()
	app.manager.Wait()
	app.session.End()

	if app.config.Record != "" {
		if err := app.recorder.SaveToFile(app.config.Record, app.config.RecordFormat); err != nil {
			app.logger.Error("saving recording", "path", app.config.Record, "err", err)
		} else {
			app.logger.Info("recording saved", "path", app.config.Record, "entries", app.recorder.Len())
		}
	}
}

// post queues ev for the loop. The queue is bounded, so a full queue is
// retried until the application stops; updates are never dropped or
// reordered while it runs.
func (app *Application) post(ev tcell.Event) error {
	for {
		if err := app.screen.PostEvent(ev); err == nil {
			return nil
		}
		select {
		case <-app.ctx.Done():
			return app.ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// record feeds the traffic recorder from the connection tap
func (app *Application) record(dir connection.Direction, payload []byte) {
	d := history.DirectionInbound
	if dir == connection.Outbound {
		d = history.DirectionOutbound
	}
	if err := app.recorder.Record(payload, d); err != nil {
		app.logger.Debug("not recorded", "err", err)
	}
}

// handleEvent applies one event on the loop goroutine
func (app *Application) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *updateEvent:
		if err := app.dispatcher.Dispatch(ev.payload); err != nil {
			app.logger.Warn("dropping malformed update", "err", err, "payload", string(ev.payload))
		}
	case *closeEvent:
		app.handleClose(ev.err)
	case *statusEvent:
		app.panel.ShowMessage(ev.text)
	case *mediaEvent:
		app.openPicker(ev)
	case *tcell.EventKey:
		app.handleKey(ev)
	case *tcell.EventResize:
		app.screen.Sync()
		app.layout()
	}
}

// handleKey routes a key to the menus first, then to the machine
func (app *Application) handleKey(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyCtrlQ {
		app.quitting = true
		return
	}

	if app.overlay.HandleKey(ev) {
		return
	}

	if ev.Key() == tcell.KeyF2 {
		app.overlay.Push(app.control)
		return
	}

	result := keymap.TranslateTcell(ev)
	if result.Token.IsEmpty() {
		return
	}
	if err := app.encoder.Tap(result.Token); err != nil {
		app.logger.Warn("sending key", "token", string(result.Token), "err", err)
	}
}

// handleClose reports a lost link and starts reconnecting when enabled
func (app *Application) handleClose(err error) {
	if app.quitting {
		return
	}

	if err != nil && !connection.IsExpectedCloseError(err) {
		app.panel.ShowMessage("Connection lost: " + err.Error())
	} else {
		app.panel.ShowMessage("Connection closed")
	}

	if app.reconnector == nil {
		return
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		text := "Reconnected to " + app.config.Server
		if err := app.reconnector.Reconnect(app.ctx); err != nil {
			if app.ctx.Err() != nil {
				return
			}
			text = "Reconnect failed: " + err.Error()
		}
		app.post(&statusEvent{text: text})
	}()
}

// pickMedia fetches a media list in the background; the picker opens when
// it arrives. drive -1 is the cassette.
func (app *Application) pickMedia(kind media.Kind, drive int) error {
	if app.config.Media == nil {
		return fmt.Errorf("this server has no media list")
	}

	app.panel.ShowMessage("Fetching media list...")
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		ctx, cancel := context.WithTimeout(app.ctx, mediaTimeout)
		defer cancel()

		names, err := app.config.Media.List(ctx, kind)
		app.post(&mediaEvent{kind: kind, drive: drive, names: names, err: err})
	}()
	return nil
}

// openPicker shows the picker for a fetched media list
func (app *Application) openPicker(ev *mediaEvent) {
	if ev.err != nil {
		app.showError(fmt.Errorf("media list: %w", ev.err))
		return
	}

	title := "Cassette"
	if ev.drive >= 0 {
		title = fmt.Sprintf("Disk %d", ev.drive)
	}
	app.panel.ShowMessage("")

	drive := ev.drive
	picker := menu.NewPicker(title, ev.names, func(name string) error {
		if drive < 0 {
			return app.encoder.SetCassette(name)
		}
		return app.encoder.SetDisk(drive, name)
	})
	picker.SetOnError(app.showError)
	app.overlay.Push(picker)
}

// saveRecordingNow writes the recording from the menu
func (app *Application) saveRecordingNow() error {
	path := app.config.Record
	if path == "" {
		path = fmt.Sprintf("session_%s.%s", app.session.ID[:8], recordingExt(app.config.RecordFormat))
	}
	if err := app.recorder.SaveToFile(path, app.config.RecordFormat); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	app.panel.ShowMessage(fmt.Sprintf("Saved %d messages to %s", app.recorder.Len(), path))
	return nil
}

func recordingExt(format history.FileFormat) string {
	if format == history.FormatJSON {
		return "json"
	}
	return "log"
}

// showError puts an error on the status line
func (app *Application) showError(err error) {
	app.logger.Warn("user action failed", "err", err)
	app.panel.ShowMessage(err.Error())
}

// layout centres the 64x16 display with the status lines below it
func (app *Application) layout() {
	width, height := app.screen.Size()
	x := max((width-screen.Columns)/2, 0)
	y := max((height-screen.Rows-2)/2, 0)

	app.screen.Clear()
	app.renderer.SetOrigin(x, y)
	app.statusY = y + screen.Rows
}

// redrawAll repaints everything after an overlay closes
func (app *Application) redrawAll() {
	app.screen.Clear()
	app.buffer.MarkAllDirty()
}

// draw renders changed rows, the status lines and any open menu
func (app *Application) draw() {
	app.renderer.Draw()
	app.drawStatus()
	if app.overlay.Active() {
		app.overlay.Draw(app.screen)
	} else {
		app.screen.HideCursor()
	}
	app.screen.Show()
}

func (app *Application) drawStatus() {
	width, _ := app.screen.Size()

	status := app.panel.Lights() + "  " + app.manager.State().String()
	if msg, at := app.panel.Message(); msg != "" {
		status += "  " + at.Format("15:04:05") + " " + msg
	}
	drawLine(app.screen, app.statusY, width, status, statusStyle)
	drawLine(app.screen, app.statusY+1, width, "F2 menu  Ctrl+Q quit", hintStyle)
}

var (
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	hintStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// drawLine fills row y with text, padded or cut to width
func drawLine(scr tcell.Screen, y, width int, text string, style tcell.Style) {
	x := 0
	for _, r := range text {
		if x >= width {
			return
		}
		scr.SetContent(x, y, r, nil, style)
		x++
	}
	for ; x < width; x++ {
		scr.SetContent(x, y, ' ', nil, style)
	}
}

// Session returns the current session
func (app *Application) Session() *Session {
	return app.session
}

// Stats summarises the traffic of the session
type Stats struct {
	Received int64
	Sent     int64
	Dropped  int64
	Updates  int
	Unknown  int
	// IgnoredDrives counts motor updates for drives without a light
	IgnoredDrives int
	Duration      time.Duration
}

// Stats returns application statistics
func (app *Application) Stats() Stats {
	received, sent, dropped := app.manager.Stats()
	_, updates, unknown := app.dispatcher.Stats()
	return Stats{
		Received: received,
		Sent:     sent,
		Dropped:  dropped,
		Updates:  updates,
		Unknown:  unknown,

		IgnoredDrives: app.panel.IgnoredDrives(),
		Duration:      app.session.Duration(),
	}
}
