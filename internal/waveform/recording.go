package waveform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"patient-monitor/internal/domain"
)

var (
	timeColumns    = []string{"time", "t", "timestamp", "seconds", "sec", "time_s"}
	voltageColumns = []string{"ecg", "signal", "data", "values", "amplitude", "voltage", "mv"}
	plethColumns   = []string{"pleth", "ppg"}
	respColumns    = []string{"resp", "respiration"}
)

// Recording is a fully materialized set of channels loaded from a file.
// Times are shifted so the first row sits at zero.
type Recording struct {
	Name     string
	Channels map[domain.Channel][]domain.Sample
}

// End is the timestamp of the last sample.
func (r *Recording) End() float64 {
	ecg := r.Channels[domain.ChannelECG]
	if len(ecg) == 0 {
		return 0
	}
	return ecg[len(ecg)-1].Time
}

// Len is the number of rows.
func (r *Recording) Len() int { return len(r.Channels[domain.ChannelECG]) }

// LoadCSV reads a recording from path.
func LoadCSV(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	rec, err := ParseCSV(f)
	if err != nil {
		return nil, err
	}
	rec.Name = path
	return rec, nil
}

type columnLayout struct {
	time, ecg, pleth, resp int
	names                  []string
}

// ParseCSV parses a time/voltage table with an optional header row. Rows
// must be numeric and strictly increasing in time.
func ParseCSV(r io.Reader) (*Recording, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &DataFormatError{Line: perr.Line, Reason: perr.Err.Error()}
		}
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if len(records) == 0 {
		return nil, &DataFormatError{Reason: "no rows"}
	}

	layout, header, err := detectLayout(records[0])
	if err != nil {
		return nil, err
	}
	rows := records
	lineOffset := 1
	if header {
		rows = records[1:]
		lineOffset = 2
	}
	if len(rows) == 0 {
		return nil, &DataFormatError{Reason: "no data rows"}
	}

	rec := &Recording{Channels: map[domain.Channel][]domain.Sample{
		domain.ChannelECG: make([]domain.Sample, 0, len(rows)),
	}}
	if layout.pleth >= 0 {
		rec.Channels[domain.ChannelPleth] = make([]domain.Sample, 0, len(rows))
	}
	if layout.resp >= 0 {
		rec.Channels[domain.ChannelResp] = make([]domain.Sample, 0, len(rows))
	}

	var origin, prev float64
	for i, row := range rows {
		line := i + lineOffset
		t, err := layout.field(row, layout.time, line)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			origin = t
		} else if t <= prev {
			return nil, &DataFormatError{
				Line:   line,
				Column: layout.name(layout.time),
				Reason: fmt.Sprintf("time %g does not increase (previous %g)", t, prev),
			}
		}
		prev = t

		v, err := layout.field(row, layout.ecg, line)
		if err != nil {
			return nil, err
		}
		rel := t - origin
		rec.Channels[domain.ChannelECG] = append(rec.Channels[domain.ChannelECG], domain.Sample{Time: rel, Value: v})

		for ch, idx := range map[domain.Channel]int{domain.ChannelPleth: layout.pleth, domain.ChannelResp: layout.resp} {
			if idx < 0 {
				continue
			}
			v, err := layout.field(row, idx, line)
			if err != nil {
				return nil, err
			}
			rec.Channels[ch] = append(rec.Channels[ch], domain.Sample{Time: rel, Value: v})
		}
	}

	return rec, nil
}

// detectLayout treats the first record as a header when its first field is
// not numeric.
func detectLayout(first []string) (columnLayout, bool, error) {
	if len(first) < 2 {
		return columnLayout{}, false, &DataFormatError{Line: 1, Reason: fmt.Sprintf("need at least 2 columns, got %d", len(first))}
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(first[0]), 64); err == nil {
		return columnLayout{time: 0, ecg: 1, pleth: -1, resp: -1}, false, nil
	}

	names := make([]string, len(first))
	for i, n := range first {
		names[i] = strings.ToLower(strings.TrimSpace(n))
	}
	layout := columnLayout{
		time:  indexOf(names, timeColumns),
		ecg:   indexOf(names, voltageColumns),
		pleth: indexOf(names, plethColumns),
		resp:  indexOf(names, respColumns),
		names: first,
	}
	if layout.time < 0 {
		layout.time = 0
	}
	if layout.ecg < 0 || layout.ecg == layout.time {
		layout.ecg = 1
		if layout.time == 1 {
			layout.ecg = 0
		}
	}
	return layout, true, nil
}

func indexOf(names, candidates []string) int {
	for _, c := range candidates {
		for i, n := range names {
			if n == c {
				return i
			}
		}
	}
	return -1
}

func (l columnLayout) name(idx int) string {
	if idx < len(l.names) {
		return strings.TrimSpace(l.names[idx])
	}
	return strconv.Itoa(idx + 1)
}

func (l columnLayout) field(row []string, idx, line int) (float64, error) {
	if idx >= len(row) {
		return 0, &DataFormatError{Line: line, Column: l.name(idx), Reason: "missing value"}
	}
	raw := strings.TrimSpace(row[idx])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &DataFormatError{Line: line, Column: l.name(idx), Reason: fmt.Sprintf("non-numeric value %q", raw)}
	}
	return v, nil
}

// FileSource replays a Recording.
type FileSource struct {
	rec    *Recording
	cursor map[domain.Channel]int
}

// NewFileSource wraps rec for playback from time zero.
func NewFileSource(rec *Recording) *FileSource {
	return &FileSource{rec: rec, cursor: make(map[domain.Channel]int, len(rec.Channels))}
}

// Recording returns the underlying data.
func (s *FileSource) Recording() *Recording { return s.rec }

// End is the last replayable timestamp.
func (s *FileSource) End() float64 { return s.rec.End() }

// Reset rewinds to time zero.
func (s *FileSource) Reset() {
	clear(s.cursor)
}

// Next returns the unread rows up to upTo, or ErrSourceExhausted once every
// row has been returned and upTo lies past the end.
func (s *FileSource) Next(upTo float64, _ domain.Rhythm) (domain.Chunk, error) {
	if upTo > s.End() && s.cursor[domain.ChannelECG] >= s.rec.Len() {
		return nil, ErrSourceExhausted
	}

	chunk := make(domain.Chunk, len(s.rec.Channels))
	for ch, samples := range s.rec.Channels {
		start := s.cursor[ch]
		end := start
		for end < len(samples) && samples[end].Time <= upTo {
			end++
		}
		chunk[ch] = samples[start:end:end]
		s.cursor[ch] = end
	}
	return chunk, nil
}
