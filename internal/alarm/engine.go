package alarm

import (
	"strings"

	"patient-monitor/internal/domain"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/vitals"
)

// DefaultSilence is how long a silence action mutes active alarms, in simulated seconds.
const DefaultSilence = 30.0

// Status is the lifecycle position of one alarm.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
	StatusSilenced
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSilenced:
		return "silenced"
	default:
		return "inactive"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is owned by the Engine; callers receive copies.
type State struct {
	Status          Status  `json:"status"`
	LastTriggeredAt float64 `json:"last_triggered_at"`
	SilenceUntil    float64 `json:"silence_until"`
	// Message describes the latest abnormal reading.
	Message string  `json:"message,omitempty"`
	Value   float64 `json:"value"`
}

// Transition records one status change.
type Transition struct {
	Param   domain.Parameter `json:"param"`
	From    Status           `json:"from"`
	To      Status           `json:"to"`
	At      float64          `json:"at"`
	Message string           `json:"message"`
	Value   float64          `json:"value"`
}

// Activated reports whether the transition started or resumed an audible alarm.
func (t Transition) Activated() bool { return t.To == StatusActive }

// Color is the indicator color shown for a parameter.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// Indicator is the renderable alarm status of one parameter.
type Indicator struct {
	Color   Color `json:"color"`
	Audible bool  `json:"audible"`
}

// Engine runs one state machine per parameter with a shared silence action.
type Engine struct {
	ranges  vitals.Ranges
	silence float64
	states  map[domain.Parameter]*State
}

// New builds an engine with every alarm Inactive. silence <= 0 uses DefaultSilence.
func New(ranges vitals.Ranges, silence float64) *Engine {
	if ranges == nil {
		ranges = vitals.DefaultRanges()
	}
	if silence <= 0 {
		silence = DefaultSilence
	}
	e := &Engine{ranges: ranges, silence: silence}
	e.Reset()
	return e
}

// Reset returns every alarm to Inactive.
func (e *Engine) Reset() {
	e.states = make(map[domain.Parameter]*State, len(domain.Parameters))
	for _, p := range domain.Parameters {
		e.states[p] = &State{}
	}
}

// Evaluate advances every state machine to snap.Time. Parameters whose input
// is undefined keep their previous state.
func (e *Engine) Evaluate(snap vitals.Snapshot, res rhythm.Result) []Transition {
	now := snap.Time
	var out []Transition

	for _, p := range domain.Parameters {
		var (
			abnormal bool
			value    float64
			message  string
		)
		if p == domain.ParamECG {
			if !res.Defined {
				continue
			}
			abnormal = res.Class != domain.RhythmNormal
			value = res.HeartRate
			message = res.Class.Title() + " Detected"
		} else {
			r, ok := snap.Reading(p)
			if !ok || !r.Defined {
				continue
			}
			abnormal = !r.InRange
			value = r.Value
			message = Describe(p, r.Value, e.ranges)
		}
		if tr, ok := e.step(p, abnormal, now, value, message); ok {
			out = append(out, tr)
		}
	}
	return out
}

func (e *Engine) step(p domain.Parameter, abnormal bool, now, value float64, message string) (Transition, bool) {
	st := e.states[p]
	from := st.Status
	if abnormal {
		st.Message = message
		st.Value = value
	}

	switch st.Status {
	case StatusInactive:
		if abnormal {
			st.Status = StatusActive
			st.LastTriggeredAt = now
		}
	case StatusActive:
		if !abnormal {
			st.Status = StatusInactive
		}
	case StatusSilenced:
		switch {
		case !abnormal:
			st.Status = StatusInactive
			st.SilenceUntil = 0
		case now >= st.SilenceUntil:
			st.Status = StatusActive
			st.LastTriggeredAt = now
			st.SilenceUntil = 0
		}
	}

	if st.Status == from {
		return Transition{}, false
	}
	if !abnormal {
		message = st.Message
		value = st.Value
	}
	return Transition{Param: p, From: from, To: st.Status, At: now, Message: message, Value: value}, true
}

// Silence mutes every currently Active alarm until now plus the silence duration.
func (e *Engine) Silence(now float64) []Transition {
	var out []Transition
	for _, p := range domain.Parameters {
		st := e.states[p]
		if st.Status != StatusActive {
			continue
		}
		st.Status = StatusSilenced
		st.SilenceUntil = now + e.silence
		out = append(out, Transition{Param: p, From: StatusActive, To: StatusSilenced, At: now, Message: st.Message, Value: st.Value})
	}
	return out
}

// State returns a copy of the state of p.
func (e *Engine) State(p domain.Parameter) State {
	if st, ok := e.states[p]; ok {
		return *st
	}
	return State{}
}

// States returns a copy of every state.
func (e *Engine) States() map[domain.Parameter]State {
	out := make(map[domain.Parameter]State, len(e.states))
	for p, st := range e.states {
		out[p] = *st
	}
	return out
}

// View renders each parameter as an indicator. Only Active alarms are audible.
func (e *Engine) View() map[domain.Parameter]Indicator {
	out := make(map[domain.Parameter]Indicator, len(e.states))
	for p, st := range e.states {
		ind := Indicator{Color: ColorGreen}
		if st.Status != StatusInactive {
			ind.Color = ColorRed
		}
		ind.Audible = st.Status == StatusActive
		out[p] = ind
	}
	return out
}

// Audible reports whether any alarm is sounding.
func (e *Engine) Audible() bool {
	for _, st := range e.states {
		if st.Status == StatusActive {
			return true
		}
	}
	return false
}

// Messages lists the text of every alarm that is not Inactive, in parameter order.
func (e *Engine) Messages() []string {
	var out []string
	for _, p := range domain.Parameters {
		if st := e.states[p]; st.Status != StatusInactive {
			out = append(out, st.Message)
		}
	}
	return out
}

// Summary joins Messages for a status line.
func (e *Engine) Summary() string {
	return strings.Join(e.Messages(), " & ")
}
