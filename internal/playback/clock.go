package playback

import (
	"fmt"
	"time"
)

// DefaultSpeed is the standard paper speed in mm/s.
const DefaultSpeed = 25.0

var speedFactors = map[float64]float64{
	12.5: 0.5,
	25:   1.0,
	50:   2.0,
}

// Speeds lists the supported display speeds in ascending order.
func Speeds() []float64 { return []float64{12.5, 25, 50} }

// SpeedFactor maps a display speed to its time multiplier.
func SpeedFactor(mmPerSecond float64) (float64, error) {
	f, ok := speedFactors[mmPerSecond]
	if !ok {
		return 0, fmt.Errorf("unsupported display speed %g mm/s (want 12.5, 25 or 50)", mmPerSecond)
	}
	return f, nil
}

// Clock owns simulated time. Nothing else advances it.
type Clock struct {
	now     float64
	speed   float64
	factor  float64
	running bool
	hooks   []func()
}

// NewClock returns a stopped clock at time zero and the default speed.
func NewClock() *Clock {
	return &Clock{speed: DefaultSpeed, factor: speedFactors[DefaultSpeed]}
}

// OnReset registers a hook run by Reset, in registration order.
func (c *Clock) OnReset(fn func()) {
	c.hooks = append(c.hooks, fn)
}

// Tick converts real elapsed time into simulated seconds and advances the
// clock by that amount. A stopped clock returns zero.
func (c *Clock) Tick(realDelta time.Duration) float64 {
	if !c.running || realDelta <= 0 {
		return 0
	}
	sim := realDelta.Seconds() * c.factor
	c.now += sim
	return sim
}

// Now is the simulated time in seconds.
func (c *Clock) Now() float64 { return c.now }

// Speed is the display speed in mm/s.
func (c *Clock) Speed() float64 { return c.speed }

// Factor is the current time multiplier.
func (c *Clock) Factor() float64 { return c.factor }

// Running reports whether Tick advances time.
func (c *Clock) Running() bool { return c.running }

func (c *Clock) Start() { c.running = true }

func (c *Clock) Pause() { c.running = false }

// Reset zeroes simulated time, stops the clock and runs the reset hooks.
func (c *Clock) Reset() {
	c.now = 0
	c.running = false
	for _, fn := range c.hooks {
		fn()
	}
}

// SetSpeed selects one of the supported display speeds.
func (c *Clock) SetSpeed(mmPerSecond float64) error {
	f, err := SpeedFactor(mmPerSecond)
	if err != nil {
		return err
	}
	c.speed = mmPerSecond
	c.factor = f
	return nil
}

// Rewind moves simulated time back to limit when it ran past it. Finite
// sources use it to stop exactly at their end.
func (c *Clock) Rewind(limit float64) {
	if c.now > limit {
		c.now = limit
	}
}
