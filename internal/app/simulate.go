package app

import (
	"context"
	"errors"
	"fmt"

	"patient-monitor/internal/alarm"
	"patient-monitor/internal/domain"
	"patient-monitor/internal/monitor"
	"patient-monitor/internal/rhythm"
	"patient-monitor/internal/service"
	"patient-monitor/internal/vitals"
)

// SimulateOptions describe one synthetic abnormal reading.
type SimulateOptions struct {
	Param domain.Parameter
	Value float64
	// Rhythm is the classification used when Param is ecg; Value is its heart rate.
	Rhythm domain.Rhythm
}

// SimulateAlarm evaluates a single reading through a fresh alarm engine and
// dispatches the resulting notifications.
func (a *App) SimulateAlarm(ctx context.Context, opts SimulateOptions) ([]alarm.Transition, error) {
	if !a.Config.Alerting.Enabled {
		return nil, errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return nil, errors.New("no alert channel configured")
	}

	ranges, err := a.Config.Ranges()
	if err != nil {
		return nil, err
	}
	snap, res, err := syntheticReading(opts, ranges)
	if err != nil {
		return nil, err
	}

	engine := alarm.New(ranges, a.Config.Alarm.Silence.Seconds())
	transitions := engine.Evaluate(snap, res)
	if len(transitions) == 0 {
		return nil, fmt.Errorf("%s %g does not raise an alarm", opts.Param, opts.Value)
	}

	svc := service.New(a.Config, nil, nil, service.Deps{Notifier: notifier}, a.Logger)
	svc.HandleFrame(ctx, monitor.Frame{Time: snap.Time, Snapshot: snap, Rhythm: res, Transitions: transitions})
	return transitions, nil
}

func syntheticReading(opts SimulateOptions, ranges vitals.Ranges) (vitals.Snapshot, rhythm.Result, error) {
	snap := vitals.Snapshot{Time: 0}
	if opts.Param == domain.ParamECG {
		if opts.Rhythm == domain.RhythmNormal {
			return snap, rhythm.Result{}, errors.New("a normal rhythm does not raise an alarm")
		}
		return snap, rhythm.Result{Class: opts.Rhythm, Defined: true, HeartRate: opts.Value}, nil
	}

	reading := vitals.Reading{Value: opts.Value, Defined: true, InRange: ranges.Check(opts.Param, opts.Value)}
	switch opts.Param {
	case domain.ParamHeartRate:
		snap.HeartRate = reading
	case domain.ParamSpO2:
		snap.SpO2 = reading
	case domain.ParamResp:
		snap.RespRate = reading
	case domain.ParamTemp:
		snap.Temp = reading
	case domain.ParamBPSystolic:
		snap.BPSystolic = reading
	case domain.ParamBPDiastolic:
		snap.BPDiastolic = reading
	default:
		return snap, rhythm.Result{}, fmt.Errorf("unknown parameter %q", opts.Param)
	}
	return snap, rhythm.Result{}, nil
}
