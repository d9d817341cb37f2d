// ColorStdoutWriter prints human-friendly, colorized estimates to STDOUT.
package locator

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"lora-locator/internal/registry"
	"lora-locator/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorGray    = "\x1b[90m"
)

// Summary describes the running engine for writers that print a banner.
type Summary struct {
	RunID          string
	Source         string
	ReferencePower float64
	Exponent       float64
	Calibration    bool
	Gateways       int
	Sensors        int
}

// ColorStdoutWriter prints estimate rows using ANSI colors.
type ColorStdoutWriter struct {
	summary *Summary
	out     io.Writer
	once    sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
// summary may be nil to skip the banner.
func NewColorStdoutWriter(summary *Summary) *ColorStdoutWriter {
	return &ColorStdoutWriter{summary: summary, out: os.Stdout}
}

// NewStdoutWriter returns a colorized writer when stdout is a terminal and a
// JSON writer otherwise.
func NewStdoutWriter(summary *Summary) EstimateWriter {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return NewColorStdoutWriter(summary)
	}
	return NewJSONStdoutWriter()
}

func (w *ColorStdoutWriter) printOverview() {
	if w.summary == nil {
		return
	}
	s := w.summary
	fmt.Fprintln(w.out, "Locator Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run ID:\t%s\n", s.RunID)
	fmt.Fprintf(tw, "Source:\t%s\n", s.Source)
	fmt.Fprintf(tw, "Reference Power (dBm):\t%.1f\n", s.ReferencePower)
	fmt.Fprintf(tw, "Path-Loss Exponent:\t%.2f\n", s.Exponent)
	fmt.Fprintf(tw, "Calibration:\t%t\n", s.Calibration)
	fmt.Fprintf(tw, "Gateways:\t%d\n", s.Gateways)
	fmt.Fprintf(tw, "Sensors:\t%d\n", s.Sensors)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single estimate row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.EstimateRow) error {
	w.once.Do(w.printOverview)

	state, stateColor := "pending", colorYellow
	if row.Fixed {
		state, stateColor = "fixed", colorGreen
	}

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%ssensor=%s%s ", colorWhite, row.SensorID, colorReset)
	if row.SensorName != "" {
		fmt.Fprintf(w.out, "%sname=%s%s ", colorBlue, row.SensorName, colorReset)
	}
	fmt.Fprintf(w.out, "%slat=%.6f%s ", colorGreen, row.Lat, colorReset)
	fmt.Fprintf(w.out, "%slon=%.6f%s ", colorYellow, row.Lon, colorReset)
	fmt.Fprintf(w.out, "%sgw=%d%s ", colorCyan, row.Gateways, colorReset)
	fmt.Fprintf(w.out, "%spkts=%d%s ", colorMagenta, row.Packets, colorReset)
	fmt.Fprintf(w.out, "%sn=%.2f%s ", colorBlue, row.Exponent, colorReset)
	fmt.Fprintf(w.out, "%s%s%s", stateColor, state, colorReset)
	if row.Known {
		errColor := colorGreen
		if row.ErrorM > 100 {
			errColor = colorRed
		}
		fmt.Fprintf(w.out, " %serr=%.1fm%s", errColor, row.ErrorM, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple estimate rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.EstimateRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteCalibration prints accepted calibration refits.
func (w *ColorStdoutWriter) WriteCalibration(row telemetry.CalibrationRow) error {
	if !row.Refit {
		return nil
	}
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sCALIBRATE%s sensor=%s gateway=%s rssi=%.1f dist=%.1fm n=%.3f samples=%d\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorMagenta, colorReset, row.SensorID, row.GatewayID,
		row.RSSI, row.DistanceM, row.Exponent, row.Samples)
	return nil
}

// WriteSnapshot prints a one-line registry summary.
func (w *ColorStdoutWriter) WriteSnapshot(snap *registry.Snapshot) error {
	if snap == nil {
		return nil
	}
	w.once.Do(w.printOverview)
	fixed := 0
	for _, s := range snap.Sensors {
		if s.Fixed {
			fixed++
		}
	}
	fmt.Fprintf(w.out, "%s[%s]%s %sSTATE%s sensors=%d fixed=%d gateways=%d n=%.3f",
		colorGray, snap.TakenAt.Format(time.RFC3339), colorReset,
		colorBlue, colorReset, len(snap.Sensors), fixed, len(snap.Gateways), snap.Exponent)
	if snap.MeanErrorM != nil {
		fmt.Fprintf(w.out, " %smean_err=%.1fm%s", colorRed, *snap.MeanErrorM, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}
