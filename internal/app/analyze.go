package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	chart "github.com/wcharczuk/go-chart/v2"

	"patient-monitor/internal/beats"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/ecg"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/waveform"
)

// WindowReport is the classification of one consecutive analysis window.
type WindowReport struct {
	Start  float64
	End    float64
	Result rhythm.Result
}

// AnalysisReport summarises a whole recording.
type AnalysisReport struct {
	Name     string
	Duration float64
	Beats    []domain.Beat
	Windows  []WindowReport
	Overall  rhythm.Result
	ECG      ecg.Report
}

// Beat detection methods accepted by the analyze command.
const (
	MethodPeak        = "peak"
	MethodPanTompkins = "pantompkins"
)

// AnalyzeRecording detects beats over the whole recording with the peak
// detector and classifies each consecutive window of the given length.
func AnalyzeRecording(rec *waveform.Recording, window float64, det beats.Options, opts rhythm.Options) AnalysisReport {
	samples := rec.Channels[domain.ChannelECG]
	return summarise(rec, samples, beats.Detect(samples, det), window, opts)
}

func summarise(rec *waveform.Recording, samples []domain.Sample, detected []domain.Beat, window float64, opts rhythm.Options) AnalysisReport {
	if window <= 0 {
		window = rhythm.DefaultWindow
	}
	report := AnalysisReport{
		Name:     rec.Name,
		Duration: rec.End(),
		Beats:    detected,
		Overall:  rhythm.Analyze(detected, math.Max(rec.End(), window), opts),
	}
	report.ECG = ecg.Analyze(samples, beats.SampleRate(samples), detected, report.Overall, opts)

	n := int(math.Ceil(rec.End() / window))
	if n == 0 {
		n = 1
	}
	i := 0
	for k := range n {
		start := float64(k) * window
		end := start + window
		j := i
		for j < len(detected) && detected[j].Time < end {
			j++
		}
		report.Windows = append(report.Windows, WindowReport{
			Start:  start,
			End:    math.Min(end, rec.End()),
			Result: rhythm.Analyze(detected[i:j], window, opts),
		})
		i = j
	}
	return report
}

// Analyze classifies a CSV recording offline and prints one row per window.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions, out io.Writer) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}
	rec, err := waveform.LoadCSV(opts.Path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	window := opts.Window
	if window <= 0 {
		window = a.Config.Monitor.AnalysisWindow.Seconds()
	}
	samples := rec.Channels[domain.ChannelECG]
	if opts.Preprocess {
		samples = ecg.Preprocess(samples, beats.SampleRate(samples))
	}
	var detected []domain.Beat
	switch opts.Method {
	case "", MethodPeak:
		detected = beats.Detect(samples, a.detectorOptions())
	case MethodPanTompkins:
		detected = beats.PanTompkins(samples, beats.PanTompkinsOptions{})
	default:
		return fmt.Errorf("unknown detection method %q (want %s or %s)", opts.Method, MethodPeak, MethodPanTompkins)
	}

	report := summarise(rec, samples, detected, window, a.rhythmOptions())
	a.Logger.Info().Str("file", opts.Path).
		Str("method", opts.Method).
		Bool("preprocess", opts.Preprocess).
		Int("beats", len(report.Beats)).
		Int("windows", len(report.Windows)).
		Msg("recording analysed")

	writeReport(out, report)

	if opts.PNGPath != "" {
		if err := writeStripPNG(opts.PNGPath, rec, report.Beats, opts.StripSeconds); err != nil {
			return fmt.Errorf("render strip: %w", err)
		}
	}
	return nil
}

func writeReport(out io.Writer, report AnalysisReport) {
	fmt.Fprintf(out, "%s: %.1fs, %d beats\n", report.Name, report.Duration, len(report.Beats))

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Window (s)\tBeats\tHR\tSDNN (ms)\tRMSSD (ms)\tpNN50 %\tCV\tRhythm")
	rows := append(append([]WindowReport{}, report.Windows...), WindowReport{Start: 0, End: report.Duration, Result: report.Overall})
	for i, w := range rows {
		label := fmt.Sprintf("%.1f-%.1f", w.Start, w.End)
		if i == len(rows)-1 {
			label = "overall"
		}
		fmt.Fprintf(writer, "%s\t%d\t%s\n", label, w.Result.BeatCount, formatResult(w.Result))
	}
	writer.Flush()

	writeMorphology(out, report.ECG)
}

func writeMorphology(out io.Writer, report ecg.Report) {
	fmt.Fprintln(out)
	if p := report.PWaves; p != nil {
		fmt.Fprintf(out, "P waves: %.0f%% of beats, mean PR %.0f ms, P-P CV %.3f\n", p.PresentPct, p.MeanPR*1000, p.Regularity)
	}
	if q := report.QRS; q != nil {
		fmt.Fprintf(out, "QRS: mean %.0f ms, %.0f%% wide, %d premature ventricular\n", q.MeanQRS*1000, q.WidePct, len(q.PVCs))
	}
	if h := report.HRV; h != nil {
		fmt.Fprintf(out, "HRV: LF %.2e, HF %.2e, LF/HF %.2f\n", h.LF, h.HF, h.Ratio)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Findings\tProbability %\tConfidence\tEvidence")
	for _, f := range report.Findings {
		fmt.Fprintf(writer, "%s\t%.0f\t%s\t%d\n", f.Condition, f.Probability, f.Confidence, f.Evidence)
	}
	writer.Flush()
}

func formatResult(res rhythm.Result) string {
	if !res.Defined {
		return "---\t---\t---\t---\t---\tinsufficient data"
	}
	return fmt.Sprintf("%.0f\t%.0f\t%.0f\t%.0f\t%.3f\t%s",
		res.HeartRate,
		res.SDNN*1000,
		res.RMSSD*1000,
		res.PNN50,
		res.CV,
		res.Class.Title(),
	)
}

func writeStripPNG(path string, rec *waveform.Recording, detected []domain.Beat, seconds float64) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	samples := rec.Channels[domain.ChannelECG]
	if seconds > 0 {
		cut := 0
		for cut < len(samples) && samples[cut].Time <= seconds {
			cut++
		}
		samples = samples[:cut]
	}
	if len(samples) < 2 {
		return errors.New("not enough samples to render")
	}

	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Time
		y[i] = s.Value
	}

	// Beat markers sit on the waveform at the nearest sample.
	var bx, by []float64
	j := 0
	last := samples[len(samples)-1].Time
	for _, b := range detected {
		if b.Time > last {
			break
		}
		for j+1 < len(samples) && samples[j+1].Time <= b.Time {
			j++
		}
		bx = append(bx, b.Time)
		by = append(by, samples[j].Value)
	}

	secondsFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1fs")
	}
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "ECG",
			XValues: x,
			YValues: y,
		},
	}
	if len(bx) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name: "R-peaks",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
			},
			XValues: bx,
			YValues: by,
		})
	}

	graph := chart.Chart{
		Width:  1600,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: secondsFormatter,
		},
		YAxis: chart.YAxis{
			Name: "mV",
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
