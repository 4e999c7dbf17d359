package waveform

import (
	"math"
	"math/rand/v2"

	"patient-monitor/internal/domain"
)

const (
	defaultSampleRate = 250.0
	firstBeatAt       = 0.3
	// Beats further than this from the rendered instant contribute nothing visible.
	beatSupport = 0.7
)

// rhythmProfile drives beat spacing and the secondary channels for one condition.
type rhythmProfile struct {
	bpm      float64
	jitter   float64
	pWave    bool
	respRate float64
}

var profiles = map[domain.Rhythm]rhythmProfile{
	domain.RhythmNormal:             {bpm: 75, jitter: 0.02, pWave: true, respRate: 16},
	domain.RhythmBradycardia:        {bpm: 48, jitter: 0.02, pWave: true, respRate: 12},
	domain.RhythmTachycardia:        {bpm: 120, jitter: 0.02, pWave: true, respRate: 22},
	domain.RhythmAtrialFibrillation: {bpm: 90, jitter: 0.35, pWave: false, respRate: 18},
}

// leadWeights scale the P, R, Q/S and T components for a displayed lead.
type leadWeights struct {
	p, r, qs, t float64
}

var leads = map[domain.Lead]leadWeights{
	domain.LeadI:   {p: 0.6, r: 0.7, qs: 0.6, t: 0.6},
	domain.LeadII:  {p: 1, r: 1, qs: 1, t: 1},
	domain.LeadIII: {p: 0.5, r: 0.5, qs: 0.8, t: 0.45},
	domain.LeadV1:  {p: 0.5, r: 0.3, qs: 3, t: -0.3},
}

// SynthOptions parameterise live synthesis.
type SynthOptions struct {
	SampleRate float64
	Noise      float64
	Seed       uint64
	Lead       domain.Lead
}

// Synth generates an endless ECG, plethysmogram and respiration stream whose
// beat spacing follows the condition handed to Next.
type Synth struct {
	opts SynthOptions
	rng  *rand.Rand

	n         int64
	beats     []scheduledBeat
	respPhase float64
	lead      domain.Lead
}

type scheduledBeat struct {
	at    float64
	pWave bool
}

// NewSynth builds a synthesizer; zero options fall back to 250 Hz, lead II.
func NewSynth(opts SynthOptions) *Synth {
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.Lead == "" {
		opts.Lead = domain.LeadII
	}
	s := &Synth{opts: opts, lead: opts.Lead}
	s.Reset()
	return s
}

// SetLead changes the displayed morphology. The analysis channel is unaffected.
func (s *Synth) SetLead(lead domain.Lead) {
	if _, ok := leads[lead]; ok {
		s.lead = lead
	}
}

// Lead reports the displayed lead.
func (s *Synth) Lead() domain.Lead { return s.lead }

// SampleRate reports samples per second per channel.
func (s *Synth) SampleRate() float64 { return s.opts.SampleRate }

// Reset rewinds to time zero and reseeds the noise generator. The selected
// lead is kept.
func (s *Synth) Reset() {
	s.rng = rand.New(rand.NewPCG(s.opts.Seed, s.opts.Seed^0x9e3779b97f4a7c15))
	s.n = 0
	s.beats = s.beats[:0]
	s.respPhase = 0
}

// Next renders every sample up to upTo.
func (s *Synth) Next(upTo float64, condition domain.Rhythm) (domain.Chunk, error) {
	profile, ok := profiles[condition]
	if !ok {
		profile = profiles[domain.RhythmNormal]
	}

	fs := s.opts.SampleRate
	dt := 1 / fs
	count := int(math.Floor(upTo*fs)) - int(s.n) + 1
	if count <= 0 {
		return domain.Chunk{}, nil
	}

	chunk := domain.Chunk{
		domain.ChannelECG:     make([]domain.Sample, 0, count),
		domain.ChannelECGLead: make([]domain.Sample, 0, count),
		domain.ChannelPleth:   make([]domain.Sample, 0, count),
		domain.ChannelResp:    make([]domain.Sample, 0, count),
	}

	analysis := leads[domain.LeadII]
	display := leads[s.lead]

	for ; float64(s.n)/fs <= upTo; s.n++ {
		t := float64(s.n) / fs
		s.schedule(t, profile)
		s.prune(t)

		var ecg, lead, pleth float64
		for _, b := range s.beats {
			x := t - b.at
			if math.Abs(x) > beatSupport {
				continue
			}
			ecg += complexAt(x, b.pWave, analysis)
			lead += complexAt(x, b.pWave, display)
			pleth += pulseAt(x)
		}

		wander := 0.05 * math.Sin(2*math.Pi*0.2*t)
		noise := s.opts.Noise * s.rng.NormFloat64()
		ecg += wander + noise
		lead += wander + noise
		pleth += 0.02 * s.rng.NormFloat64() * s.opts.Noise * 10

		s.respPhase += profile.respRate / 60 * dt
		if s.respPhase >= 1 {
			s.respPhase--
		}
		resp := 0.5 * math.Sin(2*math.Pi*s.respPhase)

		chunk[domain.ChannelECG] = append(chunk[domain.ChannelECG], domain.Sample{Time: t, Value: ecg})
		chunk[domain.ChannelECGLead] = append(chunk[domain.ChannelECGLead], domain.Sample{Time: t, Value: lead})
		chunk[domain.ChannelPleth] = append(chunk[domain.ChannelPleth], domain.Sample{Time: t, Value: pleth})
		chunk[domain.ChannelResp] = append(chunk[domain.ChannelResp], domain.Sample{Time: t, Value: resp})
	}

	return chunk, nil
}

// schedule keeps at least one beat scheduled beyond the support window of t.
func (s *Synth) schedule(t float64, profile rhythmProfile) {
	if len(s.beats) == 0 {
		s.beats = append(s.beats, scheduledBeat{at: firstBeatAt, pWave: profile.pWave})
	}
	for s.beats[len(s.beats)-1].at < t+beatSupport {
		rr := 60 / profile.bpm
		rr *= 1 + profile.jitter*(2*s.rng.Float64()-1)
		last := s.beats[len(s.beats)-1].at
		s.beats = append(s.beats, scheduledBeat{at: last + rr, pWave: profile.pWave})
	}
}

func (s *Synth) prune(t float64) {
	keep := 0
	for keep < len(s.beats) && s.beats[keep].at < t-beatSupport {
		keep++
	}
	if keep > 0 {
		s.beats = append(s.beats[:0], s.beats[keep:]...)
	}
}

// complexAt renders one P-QRS-T complex at offset x seconds from its R peak.
func complexAt(x float64, pWave bool, w leadWeights) float64 {
	var v float64
	if pWave {
		v += w.p * 0.25 * bump(x, -0.2, 0.005)
	}
	v += w.qs * -0.3 * bump(x, -0.05, 0.002)
	v += w.r * 1.0 * bump(x, 0, 0.0005)
	v += w.qs * -0.3 * bump(x, 0.05, 0.002)
	v += w.t * 0.35 * bump(x, 0.3, 0.01)
	return v
}

// pulseAt renders the plethysmographic pulse that follows an R peak.
func pulseAt(x float64) float64 {
	return bump(x, 0.25, 0.004) + 0.35*bump(x, 0.45, 0.003)
}

func bump(x, center, width float64) float64 {
	d := x - center
	return math.Exp(-(d * d) / width)
}
