package locator

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"lora-locator/internal/geo"
	"lora-locator/internal/registry"
	"lora-locator/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	if err := w.Write(testEst); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if err := w.WriteSnapshot(&registry.Snapshot{}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, ok := p.msgs[1].(snapshotMsg); !ok {
		t.Fatalf("expected snapshotMsg, got %T", p.msgs[1])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[2].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[2])
	}
	_ = w.WriteCalibration(telemetry.CalibrationRow{Refit: false})
	if len(p.msgs) != 3 {
		t.Fatalf("rejected refit should not be logged")
	}
	_ = w.WriteCalibration(testCal)
	if _, ok := p.msgs[3].(logMsg); !ok {
		t.Fatalf("expected logMsg for calibration")
	}
}

func TestTUISnapshotFillsTable(t *testing.T) {
	m := newTUIModel(&Summary{RunID: "r1", Source: "replay"})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = mi.(tuiModel)

	errM := 2.5
	snap := &registry.Snapshot{
		Exponent: 2.7,
		Sensors: []registry.SensorView{
			{ID: "A", Estimate: geo.Point{Lat: 52.2, Lon: 6.8}, Fixed: true, ErrorM: &errM, Packets: 4},
			{ID: "B", Estimate: geo.Point{Lat: 52.1, Lon: 6.7}},
		},
	}
	mi, _ = m.Update(snapshotMsg{snap: snap})
	m = mi.(tuiModel)

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][6] != "fixed" || rows[0][7] != "2.5" {
		t.Fatalf("row A = %v", rows[0])
	}
	if rows[1][6] != "pending" || rows[1][7] != "-" {
		t.Fatalf("row B = %v", rows[1])
	}
	if !strings.Contains(m.header, "n=2.700") {
		t.Fatalf("header missing exponent: %q", m.header)
	}
}

func TestTUIWrapToggle(t *testing.T) {
	m := newTUIModel(nil)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 20})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "one two three four five six"})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestTUIScrollAndHelpToggle(t *testing.T) {
	m := newTUIModel(nil)
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled off")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = mi.(tuiModel)
	if !m.help || !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help view not shown")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mi.(tuiModel)
	if m.help {
		t.Fatalf("help not dismissed")
	}
}
