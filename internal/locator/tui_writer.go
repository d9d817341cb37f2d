package locator

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"lora-locator/internal/registry"
	"lora-locator/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// snapshotMsg carries a published registry snapshot.
type snapshotMsg struct{ snap *registry.Snapshot }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

const (
	maxLogLines         = 1000
	maxSectionHeightPct = 0.4
)

// TUIWriter renders estimates using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting
// the TUI interrupts the process so the pipeline shuts down.
func NewTUIWriter(summary *Summary) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(summary), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements EstimateWriter.
func (w *TUIWriter) Write(row telemetry.EstimateRow) error {
	state, stateColor := "pending", colorYellow
	if row.Fixed {
		state, stateColor = "fixed", colorGreen
	}
	line := fmt.Sprintf("%s[%s]%s %ssensor=%s%s %slat=%.6f%s %slon=%.6f%s %sgw=%d%s %spkts=%d%s %s%s%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorWhite, row.SensorID, colorReset,
		colorGreen, row.Lat, colorReset,
		colorYellow, row.Lon, colorReset,
		colorCyan, row.Gateways, colorReset,
		colorMagenta, row.Packets, colorReset,
		stateColor, state, colorReset,
	)
	if row.Known {
		line += fmt.Sprintf(" %serr=%.1fm%s", colorRed, row.ErrorM, colorReset)
	}
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteBatch outputs multiple estimate rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteCalibration logs accepted refits.
func (w *TUIWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	if !row.Refit {
		return nil
	}
	line := fmt.Sprintf("%s[%s]%s %sCALIBRATE%s %ssensor=%s%s %sgw=%s%s %sn=%.3f%s %ssamples=%d%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorMagenta, colorReset,
		colorWhite, row.SensorID, colorReset,
		colorCyan, row.GatewayID, colorReset,
		colorBlue, row.Exponent, colorReset,
		colorGreen, row.Samples, colorReset,
	)
	w.program.Send(logMsg{line: line})
	return nil
}

// WriteSnapshot implements SnapshotWriter.
func (w *TUIWriter) WriteSnapshot(snap *registry.Snapshot) error {
	w.program.Send(snapshotMsg{snap: snap})
	return nil
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	summary      *Summary
	table        table.Model
	vp           viewport.Model
	logs         []string
	snap         *registry.Snapshot
	admin        bool
	wrap         bool
	autoscroll   bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func sensorColumns() []table.Column {
	return []table.Column{
		{Title: "Sensor", Width: 18},
		{Title: "Name", Width: 14},
		{Title: "Lat", Width: 11},
		{Title: "Lon", Width: 11},
		{Title: "GW", Width: 3},
		{Title: "Pkts", Width: 6},
		{Title: "State", Width: 8},
		{Title: "Err (m)", Width: 8},
	}
}

func newTUIModel(summary *Summary) tuiModel {
	t := table.New(table.WithColumns(sensorColumns()), table.WithHeight(2))
	return tuiModel{
		summary:    summary,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateHeights()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			case "q", "ctrl+c":
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "h", "?":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down", "k", "up", "pgdown", "pgup":
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case snapshotMsg:
		m.snap = msg.snap
		m.table.SetRows(sensorRows(msg.snap))
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateHeights()
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func sensorRows(snap *registry.Snapshot) []table.Row {
	if snap == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(snap.Sensors))
	for _, s := range snap.Sensors {
		state := "pending"
		if s.Fixed {
			state = "fixed"
		}
		errM := "-"
		if s.ErrorM != nil {
			errM = fmt.Sprintf("%.1f", *s.ErrorM)
		}
		rows = append(rows, table.Row{
			s.ID,
			s.Name,
			fmt.Sprintf("%.6f", s.Estimate.Lat),
			fmt.Sprintf("%.6f", s.Estimate.Lon),
			fmt.Sprintf("%d", len(s.Links)),
			fmt.Sprintf("%d", s.Packets),
			state,
			errM,
		})
	}
	return rows
}

func (m *tuiModel) updateHeights() {
	maxRows := int(float64(m.height) * maxSectionHeightPct)
	if maxRows < 1 {
		maxRows = 1
	}
	rows := len(m.table.Rows())
	if rows < 1 {
		rows = 1
	}
	if rows > maxRows {
		rows = maxRows
	}
	m.table.SetHeight(rows + 1)

	bottomHeight := lipgloss.Height(m.renderBottom())
	h := m.height - m.headerHeight - m.table.Height() - bottomHeight - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{
		m.header,
		divider,
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render("LoRa Locator")
	var parts []string
	if m.summary != nil {
		parts = append(parts,
			fmt.Sprintf("run=%s", m.summary.RunID),
			fmt.Sprintf("source=%s", m.summary.Source),
			fmt.Sprintf("P0=%.1f dBm", m.summary.ReferencePower),
		)
	}
	if m.snap != nil {
		parts = append(parts,
			fmt.Sprintf("%sn=%.3f%s", colorBlue, m.snap.Exponent, colorReset),
			fmt.Sprintf("samples=%d", m.snap.CalibrationSamples),
			fmt.Sprintf("gateways=%d", len(m.snap.Gateways)),
			fmt.Sprintf("sensors=%d", len(m.snap.Sensors)),
		)
		if m.snap.MeanErrorM != nil {
			parts = append(parts, fmt.Sprintf("%smean_err=%.1fm%s", colorRed, *m.snap.MeanErrorM, colorReset))
		}
	}
	line := strings.Join(parts, "  ")
	if m.wrap && m.vp.Width > 0 {
		line = wordwrap.String(line, m.vp.Width)
	}
	return title + "\n" + line
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	return fmt.Sprintf("Admin UI %s | Wrap %s | Scroll %s | Help %s",
		indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
