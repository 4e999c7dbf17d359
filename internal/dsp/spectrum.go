package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Welch estimates the one-sided power spectral density of x sampled at rate
// Hz. Segments of segment samples overlap by half, are mean-removed and Hann
// windowed. A segment longer than x is shortened to len(x).
func Welch(x []float64, rate float64, segment int) (freqs, psd []float64) {
	segment = min(segment, len(x))
	if segment < 2 || rate <= 0 {
		return nil, nil
	}
	step := segment / 2

	window := make([]float64, segment)
	var power float64
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(segment))
		power += window[i] * window[i]
	}

	fft := fourier.NewFFT(segment)
	bins := segment/2 + 1
	psd = make([]float64, bins)
	buf := make([]float64, segment)
	var coeffs []complex128
	count := 0
	for start := 0; start+segment <= len(x); start += step {
		var mean float64
		for _, v := range x[start : start+segment] {
			mean += v
		}
		mean /= float64(segment)
		for i := range buf {
			buf[i] = (x[start+i] - mean) * window[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			psd[k] += real(c)*real(c) + imag(c)*imag(c)
		}
		count++
	}

	scale := 1 / (rate * power * float64(count))
	freqs = make([]float64, bins)
	for k := range psd {
		psd[k] *= scale
		if k > 0 && !(segment%2 == 0 && k == bins-1) {
			psd[k] *= 2
		}
		freqs[k] = fft.Freq(k) * rate
	}
	return freqs, psd
}

// BandPower sums psd over bins with low <= f <= high.
func BandPower(freqs, psd []float64, low, high float64) float64 {
	var sum float64
	for k, f := range freqs {
		if f >= low && f <= high {
			sum += psd[k]
		}
	}
	return sum
}

// Peak returns the frequency of the largest bin above zero Hz.
func Peak(freqs, psd []float64) float64 {
	best, at := math.Inf(-1), 0.0
	for k := 1; k < len(psd); k++ {
		if psd[k] > best {
			best, at = psd[k], freqs[k]
		}
	}
	return at
}
