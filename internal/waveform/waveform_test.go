package waveform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/domain"
)

func TestSynthIsReproducible(t *testing.T) {
	a := NewSynth(SynthOptions{Seed: 7, Noise: 0.05})
	b := NewSynth(SynthOptions{Seed: 7, Noise: 0.05})

	ca, err := a.Next(2, domain.RhythmNormal)
	require.NoError(t, err)
	cb, err := b.Next(2, domain.RhythmNormal)
	require.NoError(t, err)

	assert.Equal(t, ca, cb)
	assert.Len(t, ca[domain.ChannelECG], 501)
}

func TestSynthNextIsLazyAndContinuous(t *testing.T) {
	s := NewSynth(SynthOptions{Seed: 1})

	first, err := s.Next(1, domain.RhythmNormal)
	require.NoError(t, err)
	second, err := s.Next(2, domain.RhythmNormal)
	require.NoError(t, err)
	again, err := s.Next(2, domain.RhythmNormal)
	require.NoError(t, err)

	ecg1 := first[domain.ChannelECG]
	ecg2 := second[domain.ChannelECG]
	require.NotEmpty(t, ecg2)
	assert.Greater(t, ecg2[0].Time, ecg1[len(ecg1)-1].Time)
	assert.LessOrEqual(t, ecg2[len(ecg2)-1].Time, 2.0)
	assert.Empty(t, again[domain.ChannelECG])

	for _, ch := range []domain.Channel{domain.ChannelECG, domain.ChannelECGLead, domain.ChannelPleth, domain.ChannelResp} {
		assert.Len(t, second[ch], len(ecg2), "channel %s", ch)
	}
}

func TestSynthResetRewinds(t *testing.T) {
	s := NewSynth(SynthOptions{Seed: 3, Noise: 0.05})
	before, err := s.Next(1.5, domain.RhythmTachycardia)
	require.NoError(t, err)

	s.Reset()
	after, err := s.Next(1.5, domain.RhythmTachycardia)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, 0.0, after[domain.ChannelECG][0].Time)
}

func TestSynthLeadOnlyAffectsDisplayChannel(t *testing.T) {
	ii := NewSynth(SynthOptions{Seed: 5})
	v1 := NewSynth(SynthOptions{Seed: 5})
	v1.SetLead(domain.LeadV1)

	a, err := ii.Next(2, domain.RhythmNormal)
	require.NoError(t, err)
	b, err := v1.Next(2, domain.RhythmNormal)
	require.NoError(t, err)

	assert.Equal(t, a[domain.ChannelECG], b[domain.ChannelECG])
	assert.NotEqual(t, a[domain.ChannelECGLead], b[domain.ChannelECGLead])
	assert.Equal(t, domain.LeadV1, v1.Lead())
}

func TestSynthResetKeepsLead(t *testing.T) {
	s := NewSynth(SynthOptions{Seed: 5})
	s.SetLead(domain.LeadV1)

	s.Reset()

	assert.Equal(t, domain.LeadV1, s.Lead())
	chunk, err := s.Next(1, domain.RhythmNormal)
	require.NoError(t, err)
	assert.NotEqual(t, chunk[domain.ChannelECG], chunk[domain.ChannelECGLead])
}

func TestSynthBeatSpacingFollowsCondition(t *testing.T) {
	peaks := func(cond domain.Rhythm) int {
		s := NewSynth(SynthOptions{Seed: 11})
		chunk, err := s.Next(10, cond)
		require.NoError(t, err)
		ecg := chunk[domain.ChannelECG]
		n := 0
		for i := 1; i < len(ecg)-1; i++ {
			if ecg[i].Value > 0.6 && ecg[i].Value > ecg[i-1].Value && ecg[i].Value >= ecg[i+1].Value {
				n++
			}
		}
		return n
	}

	brady := peaks(domain.RhythmBradycardia)
	normal := peaks(domain.RhythmNormal)
	tachy := peaks(domain.RhythmTachycardia)

	assert.Less(t, brady, normal)
	assert.Less(t, normal, tachy)
	assert.InDelta(t, 20, tachy, 2)
}

func TestParseCSVWithHeader(t *testing.T) {
	in := "time,ECG,pleth\n0.5,0.1,0.2\n0.504,0.3,0.25\n0.508,-0.1,0.3\n"

	rec, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	ecg := rec.Channels[domain.ChannelECG]
	require.Len(t, ecg, 3)
	assert.Equal(t, 0.0, ecg[0].Time)
	assert.InDelta(t, 0.008, rec.End(), 1e-9)
	assert.Equal(t, 0.3, ecg[1].Value)
	assert.Len(t, rec.Channels[domain.ChannelPleth], 3)
	assert.NotContains(t, rec.Channels, domain.ChannelResp)
}

func TestParseCSVWithoutHeaderUsesSecondColumn(t *testing.T) {
	rec, err := ParseCSV(strings.NewReader("0,1.5,9\n0.004,2.5,9\n"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, rec.Channels[domain.ChannelECG][1].Value)
}

func TestParseCSVRejectsMalformedRows(t *testing.T) {
	cases := map[string]struct {
		in     string
		line   int
		reason string
	}{
		"non-numeric":    {in: "time,ecg\n0,0.1\n0.004,abc\n", line: 3, reason: "non-numeric"},
		"non-monotonic":  {in: "0,0.1\n0.004,0.2\n0.004,0.3\n", line: 3, reason: "does not increase"},
		"single column":  {in: "0\n1\n", line: 1, reason: "at least 2 columns"},
		"missing value":  {in: "0,0.1\n0.004\n", line: 2, reason: "missing value"},
		"header only":    {in: "time,ecg\n", reason: "no data rows"},
		"time goes back": {in: "1,0\n0.5,0\n", line: 2, reason: "does not increase"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.in))
			var dfe *DataFormatError
			require.ErrorAs(t, err, &dfe)
			assert.Equal(t, tc.line, dfe.Line)
			assert.Contains(t, dfe.Error(), tc.reason)
		})
	}
}

func TestLoadCSVReportsMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	var dfe *DataFormatError
	assert.False(t, errors.As(err, &dfe))
}

func TestLoadCSVNamesRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strip.csv")
	require.NoError(t, os.WriteFile(path, []byte("t,signal\n0,0\n0.01,1\n"), 0o600))

	rec, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, path, rec.Name)
	assert.Equal(t, 2, rec.Len())
}

func TestFileSourceExhaustion(t *testing.T) {
	rec, err := ParseCSV(strings.NewReader("0,0\n0.5,1\n1.0,0\n"))
	require.NoError(t, err)
	src := NewFileSource(rec)

	chunk, err := src.Next(0.6, domain.RhythmNormal)
	require.NoError(t, err)
	assert.Len(t, chunk[domain.ChannelECG], 2)

	chunk, err = src.Next(5, domain.RhythmNormal)
	require.NoError(t, err)
	assert.Len(t, chunk[domain.ChannelECG], 1)

	_, err = src.Next(6, domain.RhythmNormal)
	assert.ErrorIs(t, err, ErrSourceExhausted)

	src.Reset()
	chunk, err = src.Next(1.0, domain.RhythmNormal)
	require.NoError(t, err)
	assert.Len(t, chunk[domain.ChannelECG], 3)
	assert.Equal(t, 1.0, src.End())
}

func TestDemoScenario(t *testing.T) {
	s := DemoScenario(false)
	assert.Equal(t, 60.0, s.Period())

	cases := map[float64]domain.Rhythm{
		0:    domain.RhythmNormal,
		19.9: domain.RhythmNormal,
		20:   domain.RhythmTachycardia,
		35:   domain.RhythmNormal,
		45:   domain.RhythmBradycardia,
		59.9: domain.RhythmNormal,
		85:   domain.RhythmTachycardia,
	}
	for at, want := range cases {
		got, ok := s.At(at)
		assert.True(t, ok)
		assert.Equal(t, want, got, "t=%v", at)
	}

	af := DemoScenario(true)
	got, _ := af.At(65)
	assert.Equal(t, domain.RhythmAtrialFibrillation, got)

	_, ok := Scenario{}.At(3)
	assert.False(t, ok)
}
