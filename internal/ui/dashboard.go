package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/ble-telemetry/internal/session"
	"github.com/rivo/tview"
)

const (
	powerStep      = 10
	resistanceStep = 5
	controlTimeout = 5 * time.Second
)

// Trainer is the control surface of a fitness machine, satisfied by ftms.ControlPoint.
type Trainer interface {
	SetTargetPower(ctx context.Context, watts int16) error
	SetTargetResistance(ctx context.Context, level uint8) error
}

type controlState struct {
	targetPower      int16
	targetResistance uint8
	mode             string
	lastErr          error
}

// Dashboard renders live telemetry: the headline metrics, the latest value of every channel, and the log tail.
type Dashboard struct {
	app     *tview.Application
	session *session.Session
	board   *Board
	logs    *LogBuffer
	trainer Trainer
	logger  *log.Logger

	metricsPanel  *tview.TextView
	channelsTable *tview.Table
	controlsPanel *tview.TextView
	logView       *tview.TextView
	root          *tview.Flex

	controlMu sync.Mutex
	control   controlState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDashboard builds the widgets. trainer may be nil when no fitness machine is connected.
func NewDashboard(app *tview.Application, sess *session.Session, logs *LogBuffer, trainer Trainer, logger *log.Logger) *Dashboard {
	if logger == nil {
		panic("Dashboard: logger cannot be nil")
	}
	if sess == nil {
		panic("Dashboard: session cannot be nil")
	}
	d := &Dashboard{
		app:     app,
		session: sess,
		board:   NewBoard(),
		logs:    logs,
		trainer: trainer,
		logger:  logger,
		control: controlState{targetPower: 150, mode: "none"},
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	// Draw is triggered by the listeners below, not by SetChangedFunc, so writes after Stop cannot hang.
	d.metricsPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	d.metricsPanel.SetBorder(true).SetTitle(" Metrics ")
	d.metricsPanel.SetText(FormatSnapshot(session.Snapshot{}))

	d.channelsTable = tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)
	d.channelsTable.SetBorder(true).SetTitle(" Channels ")
	d.renderRows(nil)

	d.controlsPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	d.controlsPanel.SetBorder(true).SetTitle(" Controls ")
	d.controlsPanel.SetText(d.formatControls())

	d.logView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(false)
	d.logView.SetBorder(true).SetTitle(" Logs ")

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.metricsPanel, 0, 2, false).
		AddItem(d.controlsPanel, 8, 0, false)

	rightColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.channelsTable, 0, 2, true).
		AddItem(d.logView, 0, 1, false)

	d.root = tview.NewFlex().
		AddItem(leftColumn, 0, 1, false).
		AddItem(rightColumn, 0, 2, true)

	d.app.SetInputCapture(d.handleKey)
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape, event.Key() == tcell.KeyRune && event.Rune() == 'q':
		d.app.Stop()
		return nil
	case event.Key() == tcell.KeyUp, event.Key() == tcell.KeyRune && (event.Rune() == '+' || event.Rune() == '='):
		d.adjustPower(powerStep)
		return nil
	case event.Key() == tcell.KeyDown, event.Key() == tcell.KeyRune && event.Rune() == '-':
		d.adjustPower(-powerStep)
		return nil
	case event.Key() == tcell.KeyRune && event.Rune() == '>':
		d.adjustResistance(resistanceStep)
		return nil
	case event.Key() == tcell.KeyRune && event.Rune() == '<':
		d.adjustResistance(-resistanceStep)
		return nil
	}
	return event
}

func (d *Dashboard) adjustPower(delta int16) {
	if d.trainer == nil {
		d.logger.Println("UI: no trainer to control")
		return
	}
	d.controlMu.Lock()
	target := max(0, d.control.targetPower+delta)
	d.control.targetPower = target
	d.control.mode = "erg"
	d.controlMu.Unlock()

	d.sendControl(fmt.Sprintf("target power %d W", target), func(ctx context.Context) error {
		return d.trainer.SetTargetPower(ctx, target)
	})
}

func (d *Dashboard) adjustResistance(delta int) {
	if d.trainer == nil {
		d.logger.Println("UI: no trainer to control")
		return
	}
	d.controlMu.Lock()
	level := uint8(min(255, max(0, int(d.control.targetResistance)+delta)))
	d.control.targetResistance = level
	d.control.mode = "resistance"
	d.controlMu.Unlock()

	d.sendControl(fmt.Sprintf("target resistance %d", level), func(ctx context.Context) error {
		return d.trainer.SetTargetResistance(ctx, level)
	})
}

// sendControl runs the control procedure off the UI goroutine; it blocks for up to controlTimeout.
func (d *Dashboard) sendControl(what string, fn func(ctx context.Context) error) {
	go_func_utils.SafeGo(d.logger, "control", func() {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil {
			d.logger.Printf("UI: %s failed: %v", what, err)
		} else {
			d.logger.Printf("UI: %s acknowledged", what)
		}
		d.controlMu.Lock()
		d.control.lastErr = err
		d.controlMu.Unlock()
		d.app.QueueUpdateDraw(func() { d.controlsPanel.SetText(d.formatControls()) })
	})
}

func (d *Dashboard) formatControls() string {
	d.controlMu.Lock()
	defer d.controlMu.Unlock()
	if d.trainer == nil {
		return "\n  [gray]No trainer control active[white]\n\n  Connect a fitness machine to adjust its targets."
	}
	text := "\n"
	switch d.control.mode {
	case "erg":
		text += fmt.Sprintf("  Mode [yellow]ERG[white]  target [yellow]%d[white] W\n", d.control.targetPower)
	case "resistance":
		text += fmt.Sprintf("  Mode [yellow]Resistance[white]  level [yellow]%d[white]\n", d.control.targetResistance)
	default:
		text += "  Mode [gray]free ride[white]\n"
	}
	if d.control.lastErr != nil {
		text += fmt.Sprintf("  [red]%v[white]\n", d.control.lastErr)
	}
	text += "\n  [yellow]+[white]/[yellow]-[white] power   [yellow]<[white]/[yellow]>[white] resistance   [yellow]q[white] quit\n"
	return text
}

func (d *Dashboard) renderRows(rows []Row) {
	d.channelsTable.Clear()
	header := []string{"Device", "Channel", "Value"}
	for col, h := range header {
		d.channelsTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, r := range rows {
		d.channelsTable.SetCell(i+1, 0, tview.NewTableCell(r.Device))
		d.channelsTable.SetCell(i+1, 1, tview.NewTableCell(string(r.Channel)))
		d.channelsTable.SetCell(i+1, 2, tview.NewTableCell(r.Text).SetExpansion(1))
	}
}

func (d *Dashboard) renderLogs() {
	if d.logs == nil {
		return
	}
	_, _, _, height := d.logView.GetInnerRect()
	if height <= 0 {
		height = 20
	}
	d.logView.SetText(strings.Join(d.logs.Tail(height), "\n"))
}

// Forget removes device from the channel table, typically after it disconnects.
func (d *Dashboard) Forget(device string) {
	d.board.Forget(device)
	d.app.QueueUpdateDraw(func() { d.renderRows(d.board.Rows()) })
}

func (d *Dashboard) listen(ctx context.Context) {
	measurements := make(chan session.Measurement, 16)
	unregisterMeasurements := d.session.Listen(measurements)
	snapshots := make(chan session.Snapshot, 1)
	unregisterSnapshots := d.session.ListenToSnapshot(snapshots)
	lines := make(chan string, 16)
	unregisterLogs := func() {}
	if d.logs != nil {
		unregisterLogs = d.logs.Listen(lines)
	}

	d.wg.Add(1)
	go_func_utils.SafeGo(d.logger, "dashboard", func() {
		defer d.wg.Done()
		defer unregisterMeasurements()
		defer unregisterSnapshots()
		defer unregisterLogs()

		// redraw at most every 100ms however fast frames arrive
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		var dirtyRows, dirtyLogs bool
		var snap *session.Snapshot
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-measurements:
				d.board.Update(m)
				dirtyRows = true
			case s := <-snapshots:
				snap = &s
			case <-lines:
				dirtyLogs = true
			case <-ticker.C:
				if !dirtyRows && !dirtyLogs && snap == nil {
					continue
				}
				rows := d.board.Rows()
				s, updateRows, updateLogs := snap, dirtyRows, dirtyLogs
				d.app.QueueUpdateDraw(func() {
					if s != nil {
						d.metricsPanel.SetText(FormatSnapshot(*s))
					}
					if updateRows {
						d.renderRows(rows)
					}
					if updateLogs {
						d.renderLogs()
					}
				})
				dirtyRows, dirtyLogs, snap = false, false, nil
			}
		}
	})
}

// Run shows the dashboard and blocks until the user quits or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	defer d.Shutdown()

	d.listen(ctx)
	go_func_utils.SafeGo(d.logger, "dashboard-stop", func() {
		<-ctx.Done()
		d.app.Stop()
	})

	// SetRoot must be called before setting focus, otherwise focus may be reset
	d.app.SetRoot(d.root, true)
	d.app.SetFocus(d.channelsTable)
	return d.app.Run()
}

func (d *Dashboard) Shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}
