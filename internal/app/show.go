package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/storage"
)

// Show prints recent snapshots and alarm events of the recorded session.
func (a *App) Show(ctx context.Context, opts ShowOptions, out io.Writer) error {
	store, closeStore, err := a.openRecorder(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show snapshots")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if !opts.AlarmsOnly {
		snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
		if err != nil {
			return err
		}
		writeSnapshots(out, snapshots)
		fmt.Fprintln(out)
	}

	// Filtering happens after the query, so fewer than Limit rows may remain.
	events, err := store.ListRecentAlarmEvents(ctx, opts.Limit)
	if err != nil {
		return err
	}
	writeAlarmEvents(out, events, opts.Param)
	return nil
}

func writeSnapshots(out io.Writer, snapshots []storage.SnapshotRecord) {
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "no snapshots found")
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (s)\tRhythm\tHR\tSpO2\tRESP\tTEMP\tBP\tRecorded (UTC)")
	for _, snap := range snapshots {
		hr := "---"
		if snap.HeartRate != nil {
			hr = formatDecimal(*snap.HeartRate, 0)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s/%s\t%s\n",
			formatDecimal(snap.SimTime, 1),
			snap.Rhythm,
			hr,
			formatDecimal(snap.SpO2, 0),
			formatDecimal(snap.RespRate, 0),
			formatDecimal(snap.TempC, 1),
			formatDecimal(snap.BPSys, 0),
			formatDecimal(snap.BPDia, 0),
			snap.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()
}

// writeAlarmEvents prints events of param, or of every parameter when param is empty.
func writeAlarmEvents(out io.Writer, events []storage.AlarmEvent, param domain.Parameter) {
	if param != "" {
		kept := events[:0:0]
		for _, ev := range events {
			if ev.Param == string(param) {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no alarm events found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (s)\tParam\tTransition\tValue\tMessage")
	for _, ev := range events {
		value := formatDecimal(ev.Value, 1)
		if unit := domain.Parameter(ev.Param).Unit(); unit != "" {
			value += " " + unit
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s -> %s\t%s\t%s\n",
			formatDecimal(ev.SimTime, 1),
			ev.Param,
			ev.FromStatus,
			ev.ToStatus,
			value,
			sanitizeInline(ev.Message),
		)
	}
	writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
