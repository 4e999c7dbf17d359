package control

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/domain"
)

type fakeController struct {
	calls    []string
	speed    float64
	lead     domain.Lead
	path     string
	startErr error
}

func (f *fakeController) Start() error { f.calls = append(f.calls, "start"); return f.startErr }
func (f *fakeController) Pause() { f.calls = append(f.calls, "pause") }
func (f *fakeController) Reset() error { f.calls = append(f.calls, "reset"); return nil }
func (f *fakeController) Silence() int { f.calls = append(f.calls, "silence"); return 2 }
func (f *fakeController) Status() string {
	f.calls = append(f.calls, "status")
	return "All parameters normal"
}

func (f *fakeController) SetDisplaySpeed(v float64) error {
	if v != 12.5 && v != 25 && v != 50 {
		return errors.New("bad speed")
	}
	f.speed = v
	return nil
}

func (f *fakeController) SetLead(l domain.Lead) error { f.lead = l; return nil }

func (f *fakeController) LoadRecording(path string) error { f.path = path; return nil }

func TestParse(t *testing.T) {
	cases := map[string]Command{
		"start":           {Kind: KindStart},
		"  PAUSE ":        {Kind: KindPause},
		"speed 12.5":      {Kind: KindSpeed, Speed: 12.5},
		"speed 50mm/s":    {Kind: KindSpeed, Speed: 50},
		"lead v1":         {Kind: KindLead, Lead: domain.LeadV1},
		"load my ecg.csv": {Kind: KindLoad, Path: "my ecg.csv"},
		"status":          {Kind: KindStatus},
	}
	for line, want := range cases {
		got, err := Parse(line)
		require.NoError(t, err, line)
		assert.Equal(t, want, got, line)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	for _, line := range []string{"jump", "speed", "speed fast", "lead V6", "load", "start now"} {
		_, err := Parse(line)
		assert.Error(t, err, line)
	}
}

func TestExecute(t *testing.T) {
	ctl := &fakeController{}

	msg, err := Execute(ctl, "silence")
	require.NoError(t, err)
	assert.Equal(t, "silenced 2 alarm(s)", msg)

	msg, err = Execute(ctl, "speed 50")
	require.NoError(t, err)
	assert.Equal(t, "speed 50 mm/s", msg)
	assert.Equal(t, 50.0, ctl.speed)

	_, err = Execute(ctl, "speed 40")
	assert.Error(t, err)
	assert.Equal(t, 50.0, ctl.speed)

	_, err = Execute(ctl, "lead III")
	require.NoError(t, err)
	assert.Equal(t, domain.LeadIII, ctl.lead)

	_, err = Execute(ctl, "load rec.csv")
	require.NoError(t, err)
	assert.Equal(t, "rec.csv", ctl.path)

	msg, err = Execute(ctl, "status")
	require.NoError(t, err)
	assert.Equal(t, "All parameters normal", msg)

	assert.Equal(t, []string{"silence", "status"}, ctl.calls)
}

func TestExecutePropagatesStartError(t *testing.T) {
	ctl := &fakeController{startErr: errors.New("exhausted")}

	_, err := Execute(ctl, "start")
	assert.EqualError(t, err, "exhausted")

	_, err = Execute(ctl, "bogus")
	assert.Error(t, err)
}
