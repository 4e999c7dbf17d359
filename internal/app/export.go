package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"patient-monitor/internal/storage"
)

// Export renders the recorded session as CSV and/or PNG trends.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openRecorder(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	from := decimal.Zero
	if opts.From != nil {
		from = decimal.NewFromFloat(*opts.From)
	}
	to := decimal.NewFromInt(math.MaxInt32)
	if opts.To != nil {
		to = decimal.NewFromFloat(*opts.To)
	}
	if !from.LessThan(to) {
		return errors.New("from must be before to")
	}

	count, err := store.CountSnapshots(ctx)
	if err != nil {
		return err
	}
	snapshots, err := store.ListSnapshotsBetween(ctx, from, to, int(count))
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snapshots, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snapshots)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snapshots []storage.SnapshotRecord, max int) []storage.SnapshotRecord {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}
	if max == 1 {
		return snapshots[len(snapshots)-1:]
	}

	result := make([]storage.SnapshotRecord, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapshots []storage.SnapshotRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"sim_time_s", "rhythm", "heart_rate_bpm", "spo2_pct", "resp_rpm", "temp_c", "bp_sys_mmhg", "bp_dia_mmhg"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snapshots {
		hr := ""
		if snap.HeartRate != nil {
			hr = snap.HeartRate.String()
		}
		record := []string{
			snap.SimTime.String(),
			snap.Rhythm,
			hr,
			snap.SpO2.String(),
			snap.RespRate.String(),
			snap.TempC.String(),
			snap.BPSys.String(),
			snap.BPDia.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSnapshotsPNG(path string, snapshots []storage.SnapshotRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, 0, len(snapshots))
	hrX := make([]float64, 0, len(snapshots))
	hr := make([]float64, 0, len(snapshots))
	spo2 := make([]float64, 0, len(snapshots))
	sys := make([]float64, 0, len(snapshots))
	dia := make([]float64, 0, len(snapshots))
	temp := make([]float64, 0, len(snapshots))

	for _, snap := range snapshots {
		t := snap.SimTime.InexactFloat64()
		x = append(x, t)
		if snap.HeartRate != nil {
			hrX = append(hrX, t)
			hr = append(hr, snap.HeartRate.InexactFloat64())
		}
		spo2 = append(spo2, snap.SpO2.InexactFloat64())
		sys = append(sys, snap.BPSys.InexactFloat64())
		dia = append(dia, snap.BPDia.InexactFloat64())
		temp = append(temp, snap.TempC.InexactFloat64())
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	series := []chart.Series{
		chart.ContinuousSeries{Name: "SpO2 %", XValues: x, YValues: spo2},
		chart.ContinuousSeries{Name: "BP sys", XValues: x, YValues: sys},
		chart.ContinuousSeries{Name: "BP dia", XValues: x, YValues: dia},
		chart.ContinuousSeries{Name: "Temp °C", XValues: x, YValues: temp, YAxis: chart.YAxisSecondary},
	}
	if len(hr) > 0 {
		series = append([]chart.Series{chart.ContinuousSeries{Name: "HR bpm", XValues: hrX, YValues: hr}}, series...)
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Simulated time (s)",
		},
		YAxis: chart.YAxis{
			Name:           "bpm / % / mmHg",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "°C",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
