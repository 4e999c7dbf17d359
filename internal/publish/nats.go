package publish

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
)

// ConnectOptions configure the NATS connection.
type ConnectOptions struct {
	URL           string
	Name          string
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

// Connect dials NATS with reconnect settings suited to a long-running monitor.
func Connect(opts ConnectOptions) (*nats.Conn, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 500 * time.Millisecond
	}
	if opts.Name == "" {
		opts.Name = "patient-monitor"
	}
	nc, err := nats.Connect(
		opts.URL,
		nats.Name(opts.Name),
		nats.Timeout(opts.Timeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", opts.URL, err)
	}
	return nc, nil
}

// VitalsMessage is the JSON payload published on <subject>.vitals.
type VitalsMessage struct {
	Bed     string                               `json:"bed"`
	Time    float64                              `json:"t"`
	Rhythm  string                               `json:"rhythm"`
	HR      *float64                             `json:"hr"`
	SpO2    float64                              `json:"spo2"`
	Resp    float64                              `json:"resp"`
	Temp    float64                              `json:"temp"`
	BPSys   float64                              `json:"bp_sys"`
	BPDia   float64                              `json:"bp_dia"`
	Status  string                               `json:"status"`
	Running bool                                 `json:"running"`
	Alarms  map[domain.Parameter]alarm.Indicator `json:"alarms"`
}

// AlarmMessage is the JSON payload published on <subject>.alarms.
type AlarmMessage struct {
	Bed string `json:"bed"`
	alarm.Transition
}

// NewVitalsMessage flattens a frame for subscribers.
func NewVitalsMessage(bed string, frame monitor.Frame) VitalsMessage {
	msg := VitalsMessage{
		Bed:     bed,
		Time:    frame.Time,
		SpO2:    frame.Snapshot.SpO2.Value,
		Resp:    frame.Snapshot.RespRate.Value,
		Temp:    frame.Snapshot.Temp.Value,
		BPSys:   frame.Snapshot.BPSystolic.Value,
		BPDia:   frame.Snapshot.BPDiastolic.Value,
		Status:  frame.Status,
		Running: frame.Running,
		Alarms:  frame.Alarms,
	}
	if frame.Rhythm.Defined {
		msg.Rhythm = frame.Rhythm.Class.String()
	}
	if frame.Snapshot.HeartRate.Defined {
		hr := frame.Snapshot.HeartRate.Value
		msg.HR = &hr
	}
	return msg
}

// EncodeWave packs sample values as little-endian float32.
func EncodeWave(samples []domain.Sample) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(s.Value)))
	}
	return buf
}

// DecodeWave is the inverse of EncodeWave.
func DecodeWave(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher fans monitor frames out to NATS subjects under a common prefix.
type Publisher struct {
	nc      conn
	subject string
	bed     string
	logger  zerolog.Logger
}

// NewPublisher wraps a connection. subject is the prefix, e.g. "monitor.bed-1".
func NewPublisher(nc *nats.Conn, subject, bed string, logger zerolog.Logger) *Publisher {
	return newPublisher(nc, subject, bed, logger)
}

func newPublisher(nc conn, subject, bed string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		nc:      nc,
		subject: subject,
		bed:     bed,
		logger:  logger.With().Str("component", "publisher").Logger(),
	}
}

// Subject joins the prefix and a suffix.
func (p *Publisher) Subject(suffix string) string {
	return p.subject + "." + suffix
}

// PublishFrame sends vitals, alarm transitions and fresh waveform samples.
func (p *Publisher) PublishFrame(frame monitor.Frame) error {
	body, err := json.Marshal(NewVitalsMessage(p.bed, frame))
	if err != nil {
		return fmt.Errorf("marshal vitals: %w", err)
	}
	if err := p.nc.Publish(p.Subject("vitals"), body); err != nil {
		return fmt.Errorf("publish vitals: %w", err)
	}

	for _, tr := range frame.Transitions {
		body, err := json.Marshal(AlarmMessage{Bed: p.bed, Transition: tr})
		if err != nil {
			return fmt.Errorf("marshal alarm: %w", err)
		}
		if err := p.nc.Publish(p.Subject("alarms"), body); err != nil {
			return fmt.Errorf("publish alarm: %w", err)
		}
	}

	for _, ch := range []domain.Channel{domain.ChannelECGLead, domain.ChannelPleth, domain.ChannelResp} {
		samples := frame.Fresh[ch]
		if len(samples) == 0 {
			continue
		}
		name := string(ch)
		if ch == domain.ChannelECGLead {
			name = "ecg"
		}
		if err := p.nc.Publish(p.Subject("wave."+name), EncodeWave(samples)); err != nil {
			return fmt.Errorf("publish wave %s: %w", name, err)
		}
	}
	return nil
}

// ControlHandler executes one command line and returns the reply text.
type ControlHandler func(line string) (string, error)

// SubscribeControl listens on <subject>.control. Requests with a reply
// subject receive "ok: ..." or "error: ...".
func SubscribeControl(nc *nats.Conn, subject string, handle ControlHandler, logger zerolog.Logger) (*nats.Subscription, error) {
	logger = logger.With().Str("component", "control").Logger()
	sub, err := nc.Subscribe(subject+".control", func(msg *nats.Msg) {
		reply := ControlReply(handle, string(msg.Data))
		logger.Info().Str("command", string(msg.Data)).Str("reply", reply).Msg("remote command")
		if msg.Reply != "" {
			if err := msg.Respond([]byte(reply)); err != nil {
				logger.Error().Err(err).Msg("control reply failed")
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe control: %w", err)
	}
	return sub, nil
}

// ControlReply renders the outcome of one command.
func ControlReply(handle ControlHandler, line string) string {
	out, err := handle(line)
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok: " + out
}
