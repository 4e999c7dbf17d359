package beats

import (
	"math"

	"patient-monitor/internal/domain"
)

const (
	defaultBuffer  = 5.0
	defaultHistory = 600
)

// Tracker runs the peak search over a sliding buffer of streamed samples and
// emits each beat once, after a full refractory window has followed it. The
// threshold spans the whole buffer; candidates start one refractory window
// after the last emitted beat.
type Tracker struct {
	opts    Options
	buffer  float64
	history int

	samples []domain.Sample
	beats   []domain.Beat
	emitted bool
	last    float64
}

// NewTracker keeps bufferSeconds of signal for detection and at most history
// beats. Non-positive values use the defaults.
func NewTracker(opts Options, bufferSeconds float64, history int) *Tracker {
	opts = opts.withDefaults()
	if bufferSeconds < 2*opts.Refractory {
		bufferSeconds = max(defaultBuffer, 2*opts.Refractory)
	}
	if history <= 0 {
		history = defaultHistory
	}
	return &Tracker{opts: opts, buffer: bufferSeconds, history: history}
}

// Feed appends newly produced samples and returns the beats confirmed by them.
func (t *Tracker) Feed(samples []domain.Sample) []domain.Beat {
	if len(samples) == 0 {
		return nil
	}
	t.samples = append(t.samples, samples...)

	end := t.samples[len(t.samples)-1].Time
	t.trim(end - t.buffer)

	threshold, ok := heightThreshold(t.samples, t.opts)
	if !ok {
		return nil
	}
	// Emitted beats are final; selection resumes one refractory window after the last.
	from := math.Inf(-1)
	if t.emitted {
		from = t.last + t.opts.Refractory
	}

	var fresh []domain.Beat
	for _, b := range selectPeaks(candidates(t.samples, threshold, from), t.opts.Refractory) {
		if b.Time > end-t.opts.Refractory {
			break
		}
		fresh = append(fresh, b)
		t.emitted = true
		t.last = b.Time
	}

	t.beats = append(t.beats, fresh...)
	if over := len(t.beats) - t.history; over > 0 {
		t.beats = append(t.beats[:0], t.beats[over:]...)
	}
	return fresh
}

func (t *Tracker) trim(from float64) {
	drop := 0
	for drop < len(t.samples) && t.samples[drop].Time < from {
		drop++
	}
	if drop > 0 {
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
}

// Beats returns a copy of the retained beat history.
func (t *Tracker) Beats() []domain.Beat {
	out := make([]domain.Beat, len(t.beats))
	copy(out, t.beats)
	return out
}

// Reset clears buffered signal and beat history.
func (t *Tracker) Reset() {
	t.samples = t.samples[:0]
	t.beats = t.beats[:0]
	t.emitted = false
	t.last = 0
}
