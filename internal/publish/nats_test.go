package publish

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/vitals"
)

type recordedMsg struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []recordedMsg
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, recordedMsg{subject: subject, data: data})
	return nil
}

func (f *fakeConn) subjects() []string {
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.subject)
	}
	return out
}

func testFrame() monitor.Frame {
	return monitor.Frame{
		Time:    20.5,
		Running: true,
		Status:  "ALARM: High Heart Rate",
		Snapshot: vitals.Snapshot{
			HeartRate: vitals.Reading{Value: 120, Defined: true},
			SpO2:      vitals.Reading{Value: 96, Defined: true, InRange: true},
		},
		Rhythm: rhythm.Result{Class: domain.RhythmTachycardia, Defined: true},
		Transitions: []alarm.Transition{
			{Param: domain.ParamHeartRate, From: alarm.StatusInactive, To: alarm.StatusActive, At: 20.5, Message: "High Heart Rate", Value: 120},
		},
		Fresh: domain.Chunk{
			domain.ChannelECG:     {{Time: 20.4, Value: 1}},
			domain.ChannelECGLead: {{Time: 20.4, Value: 0.5}, {Time: 20.404, Value: -0.25}},
			domain.ChannelPleth:   {{Time: 20.4, Value: 0.3}},
		},
	}
}

func TestEncodeWaveRoundTrip(t *testing.T) {
	samples := []domain.Sample{{Value: 1.5}, {Value: -0.25}, {Value: 0}}

	data := EncodeWave(samples)

	require.Len(t, data, 12)
	assert.Equal(t, []float32{1.5, -0.25, 0}, DecodeWave(data))
}

func TestNewVitalsMessage(t *testing.T) {
	msg := NewVitalsMessage("bed-2", testFrame())

	require.NotNil(t, msg.HR)
	assert.Equal(t, 120.0, *msg.HR)
	assert.Equal(t, "tachycardia", msg.Rhythm)
	assert.Equal(t, "bed-2", msg.Bed)

	frame := testFrame()
	frame.Snapshot.HeartRate = vitals.Reading{}
	frame.Rhythm = rhythm.Result{}
	msg = NewVitalsMessage("bed-2", frame)
	assert.Nil(t, msg.HR)
	assert.Empty(t, msg.Rhythm)

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"hr":null`)
}

func TestPublishFrame(t *testing.T) {
	fc := &fakeConn{}
	pub := newPublisher(fc, "monitor.bed-2", "bed-2", zerolog.Nop())

	require.NoError(t, pub.PublishFrame(testFrame()))

	assert.Equal(t, []string{
		"monitor.bed-2.vitals",
		"monitor.bed-2.alarms",
		"monitor.bed-2.wave.ecg",
		"monitor.bed-2.wave.pleth",
	}, fc.subjects())

	var alarmMsg map[string]any
	require.NoError(t, json.Unmarshal(fc.msgs[1].data, &alarmMsg))
	assert.Equal(t, "hr", alarmMsg["param"])
	assert.Equal(t, "active", alarmMsg["to"])
	assert.Equal(t, "bed-2", alarmMsg["bed"])

	assert.Equal(t, []float32{0.5, -0.25}, DecodeWave(fc.msgs[2].data))
}

func TestPublishFrameError(t *testing.T) {
	fc := &fakeConn{err: errors.New("nats: connection closed")}
	pub := newPublisher(fc, "monitor", "bed-1", zerolog.Nop())

	err := pub.PublishFrame(testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish vitals")
}

func TestControlReply(t *testing.T) {
	ok := func(line string) (string, error) { return "did " + line, nil }
	fail := func(string) (string, error) { return "", errors.New("unknown command") }

	assert.Equal(t, "ok: did pause", ControlReply(ok, "pause"))
	assert.Equal(t, "error: unknown command", ControlReply(fail, "jump"))
}
