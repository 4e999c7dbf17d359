package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// butterworthQ is the quality factor of a maximally flat second-order section.
const butterworthQ = math.Sqrt2 / 2

// Biquad is a normalised second-order IIR section (a0 == 1).
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

func normalise(b0, b1, b2, a0, a1, a2 float64) Biquad {
	return Biquad{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

// LowPass is a second-order Butterworth low-pass at cutoff Hz.
func LowPass(cutoff, rate float64) Biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	return normalise((1-cos)/2, 1-cos, (1-cos)/2, 1+alpha, -2*cos, 1-alpha)
}

// HighPass is a second-order Butterworth high-pass at cutoff Hz.
func HighPass(cutoff, rate float64) Biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*butterworthQ)
	return normalise((1+cos)/2, -(1 + cos), (1+cos)/2, 1+alpha, -2*cos, 1-alpha)
}

// Notch rejects a narrow band around center Hz; q sets the bandwidth as center/q.
func Notch(center, q, rate float64) Biquad {
	w0 := 2 * math.Pi * center / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	return normalise(1, -2*cos, 1, 1+alpha, -2*cos, 1-alpha)
}

// Gain is the response to a constant input.
func (b Biquad) Gain() float64 {
	return (b.B0 + b.B1 + b.B2) / (1 + b.A1 + b.A2)
}

// Cascade applies its sections in order.
type Cascade []Biquad

// Bandpass keeps low..high Hz with a high-pass and a low-pass section.
func Bandpass(low, high, rate float64) Cascade {
	return Cascade{HighPass(low, rate), LowPass(high, rate)}
}

// Filter runs the cascade forward once. Section state starts as if x[0] had
// been applied forever, so constant signals pass without a start-up transient.
func (c Cascade) Filter(x []float64) []float64 {
	out := append([]float64(nil), x...)
	if len(out) == 0 {
		return out
	}
	for _, s := range c {
		u := out[0]
		y := s.Gain() * u
		z1, z2 := y-s.B0*u, s.B2*u-s.A2*y
		for i, v := range out {
			y := s.B0*v + z1
			z1 = s.B1*v - s.A1*y + z2
			z2 = s.B2*v - s.A2*y
			out[i] = y
		}
	}
	return out
}

// FiltFilt filters forward and backward for zero phase shift. The ends are
// padded with an odd reflection of the signal.
func (c Cascade) FiltFilt(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	pad := min(n-1, 3*(2*len(c)+1))

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i > 0; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := c.Filter(ext)
	floats.Reverse(y)
	y = c.Filter(y)
	floats.Reverse(y)
	return y[pad : pad+n]
}

// Diff returns the first difference; the result is one shorter than x.
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

// Square returns x with every element squared.
func Square(x []float64) []float64 {
	out := make([]float64, len(x))
	floats.MulTo(out, x, x)
	return out
}

// MovingAverage is a centred boxcar of width samples. Samples beyond the
// ends count as zero, so the output has the length of x.
func MovingAverage(x []float64, width int) []float64 {
	if width <= 1 {
		return append([]float64(nil), x...)
	}
	out := make([]float64, len(x))
	half := width / 2
	var sum float64
	// The window for out[i] covers x[i-half : i-half+width].
	for j := 0; j < width-half && j < len(x); j++ {
		sum += x[j]
	}
	for i := range out {
		out[i] = sum / float64(width)
		if add := i - half + width; add < len(x) {
			sum += x[add]
		}
		if drop := i - half; drop >= 0 {
			sum -= x[drop]
		}
	}
	return out
}

// Interp evaluates the piecewise-linear function through (xp, fp) at t.
// Points outside xp take the nearest end value; xp must be increasing.
func Interp(t, xp, fp []float64) []float64 {
	out := make([]float64, len(t))
	if len(xp) == 0 {
		return out
	}
	j := 0
	for i, v := range t {
		switch {
		case v <= xp[0]:
			out[i] = fp[0]
			continue
		case v >= xp[len(xp)-1]:
			out[i] = fp[len(fp)-1]
			continue
		}
		for j+1 < len(xp) && xp[j+1] < v {
			j++
		}
		frac := (v - xp[j]) / (xp[j+1] - xp[j])
		out[i] = fp[j] + frac*(fp[j+1]-fp[j])
	}
	return out
}

// Detrend removes the least-squares line from x.
func Detrend(x []float64) []float64 {
	n := len(x)
	out := append([]float64(nil), x...)
	if n < 2 {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	mt := float64(n-1) / 2
	mx := floats.Sum(x) / float64(n)
	var num, den float64
	for i, v := range x {
		d := float64(i) - mt
		num += d * (v - mx)
		den += d * d
	}
	slope := num / den
	for i, v := range x {
		out[i] = v - mx - slope*(float64(i)-mt)
	}
	return out
}
