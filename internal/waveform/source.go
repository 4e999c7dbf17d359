package waveform

import (
	"errors"
	"fmt"

	"patient-monitor/internal/domain"
)

// ErrSourceExhausted is returned once a finite source has been consumed past its end.
var ErrSourceExhausted = errors.New("waveform: source exhausted")

// Source supplies timestamped samples per channel.
type Source interface {
	// Next returns every sample with Time <= upTo that has not been returned yet.
	// condition is the rhythm category the generator should render; replayed
	// recordings ignore it.
	Next(upTo float64, condition domain.Rhythm) (domain.Chunk, error)
	// Reset rewinds the source to time zero.
	Reset()
}

// Bounded is implemented by finite sources so callers can detect the end
// before asking for samples past it.
type Bounded interface {
	End() float64
}

// DataFormatError reports a malformed recording row.
type DataFormatError struct {
	Line   int
	Column string
	Reason string
}

func (e *DataFormatError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("data format: line %d column %s: %s", e.Line, e.Column, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("data format: line %d: %s", e.Line, e.Reason)
	default:
		return "data format: " + e.Reason
	}
}
