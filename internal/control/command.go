package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"patient-monitor/internal/domain"
)

// Kind names an operator action.
type Kind string

const (
	KindStart   Kind = "start"
	KindPause   Kind = "pause"
	KindReset   Kind = "reset"
	KindSilence Kind = "silence"
	KindSpeed   Kind = "speed"
	KindLead    Kind = "lead"
	KindLoad    Kind = "load"
	KindStatus  Kind = "status"
)

// ErrEmpty is returned for blank input.
var ErrEmpty = errors.New("empty command")

// Command is one parsed operator action.
type Command struct {
	Kind  Kind
	Speed float64
	Lead  domain.Lead
	Path  string
}

// Controller is the set of operator actions a monitor session accepts.
type Controller interface {
	Start() error
	Pause()
	Reset() error
	Silence() int
	SetDisplaySpeed(mmPerSecond float64) error
	SetLead(lead domain.Lead) error
	LoadRecording(path string) error
	Status() string
}

// Parse reads one command line such as "speed 50" or "lead V1".
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmpty
	}
	kind := Kind(strings.ToLower(fields[0]))
	args := fields[1:]

	switch kind {
	case KindStart, KindPause, KindReset, KindSilence, KindStatus:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", kind)
		}
		return Command{Kind: kind}, nil
	case KindSpeed:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: speed <12.5|25|50>")
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "mm/s"), 64)
		if err != nil {
			return Command{}, fmt.Errorf("invalid speed %q", args[0])
		}
		return Command{Kind: kind, Speed: v}, nil
	case KindLead:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: lead <I|II|III|V1>")
		}
		lead, err := domain.ParseLead(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Lead: lead}, nil
	case KindLoad:
		if len(args) == 0 {
			return Command{}, fmt.Errorf("usage: load <file.csv>")
		}
		return Command{Kind: kind, Path: strings.Join(args, " ")}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", fields[0])
}

// Apply runs cmd against c and returns a short confirmation.
func Apply(c Controller, cmd Command) (string, error) {
	switch cmd.Kind {
	case KindStart:
		if err := c.Start(); err != nil {
			return "", err
		}
		return "started", nil
	case KindPause:
		c.Pause()
		return "paused", nil
	case KindReset:
		if err := c.Reset(); err != nil {
			return "", err
		}
		return "reset", nil
	case KindSilence:
		return fmt.Sprintf("silenced %d alarm(s)", c.Silence()), nil
	case KindSpeed:
		if err := c.SetDisplaySpeed(cmd.Speed); err != nil {
			return "", err
		}
		return fmt.Sprintf("speed %g mm/s", cmd.Speed), nil
	case KindLead:
		if err := c.SetLead(cmd.Lead); err != nil {
			return "", err
		}
		return fmt.Sprintf("lead %s", cmd.Lead), nil
	case KindLoad:
		if err := c.LoadRecording(cmd.Path); err != nil {
			return "", err
		}
		return fmt.Sprintf("loaded %s", cmd.Path), nil
	case KindStatus:
		return c.Status(), nil
	}
	return "", fmt.Errorf("unknown command %q", cmd.Kind)
}

// Execute parses and applies one line.
func Execute(c Controller, line string) (string, error) {
	cmd, err := Parse(line)
	if err != nil {
		return "", err
	}
	return Apply(c, cmd)
}
