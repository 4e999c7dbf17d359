package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"patient-monitor/internal/control"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
)

const consoleHelp = "commands: start | pause | reset | silence | speed <12.5|25|50> | lead <I|II|III|V1> | load <file.csv> | status | help"

func (a *App) runConsole(ctx context.Context, ctl control.Controller) {
	if err := serveConsole(ctx, os.Stdin, os.Stdout, ctl); err != nil {
		a.Logger.Error().Err(err).Msg("console stopped")
	}
}

// serveConsole executes one control command per input line until in is
// exhausted or ctx is cancelled.
func serveConsole(ctx context.Context, in io.Reader, out io.Writer, ctl control.Controller) error {
	fmt.Fprintln(out, consoleHelp)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "help" || line == "?" {
			fmt.Fprintln(out, consoleHelp)
			continue
		}
		msg, err := control.Execute(ctl, line)
		switch {
		case errors.Is(err, control.ErrEmpty):
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		default:
			fmt.Fprintln(out, msg)
		}
	}
	return scanner.Err()
}

// FormatFrame renders the numeric panel of a frame on one line.
func FormatFrame(frame monitor.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%6.1fs ", frame.Time)

	hr := "---"
	if frame.Snapshot.HeartRate.Defined {
		hr = fmt.Sprintf("%.0f", frame.Snapshot.HeartRate.Value)
	}
	rhythm := "---"
	if frame.Rhythm.Defined {
		rhythm = frame.Rhythm.Class.Title()
	}
	fmt.Fprintf(&b, "HR %s%s SpO2 %.0f%s RESP %.0f%s TEMP %.1f%s BP %.0f/%.0f%s | %s | %s",
		hr, mark(frame, domain.ParamHeartRate),
		frame.Snapshot.SpO2.Value, mark(frame, domain.ParamSpO2),
		frame.Snapshot.RespRate.Value, mark(frame, domain.ParamResp),
		frame.Snapshot.Temp.Value, mark(frame, domain.ParamTemp),
		frame.Snapshot.BPSystolic.Value, frame.Snapshot.BPDiastolic.Value,
		bpMark(frame),
		rhythm,
		frame.Status,
	)
	return b.String()
}

func mark(frame monitor.Frame, p domain.Parameter) string {
	if ind, ok := frame.Alarms[p]; ok && ind.Audible {
		return "!"
	}
	return ""
}

func bpMark(frame monitor.Frame) string {
	if m := mark(frame, domain.ParamBPSystolic); m != "" {
		return m
	}
	return mark(frame, domain.ParamBPDiastolic)
}

// throttledPrinter writes at most one frame line per interval of wall time.
func throttledPrinter(out io.Writer, every time.Duration, now func() time.Time) func(monitor.Frame) {
	var last time.Time
	return func(frame monitor.Frame) {
		t := now()
		if !last.IsZero() && t.Sub(last) < every && len(frame.Transitions) == 0 {
			return
		}
		last = t
		fmt.Fprintln(out, FormatFrame(frame))
	}
}
