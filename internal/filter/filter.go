// Package filter implements the signal conditioning operations applied to
// recordings: DC offset removal, Butterworth band-limiting, notch filtering,
// smoothing and downsampling. Band filters run as second-order biquad
// sections and operate in place on the EEG rows of a recording.
package filter

import (
	"fmt"
	"math"

	"github.com/openneurolab/neurostream/internal/dataset"
)

// biquad is one second-order IIR section with normalized coefficients.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// apply runs the section over x in place (direct form II transposed).
func (f biquad) apply(x []float64) {
	var z1, z2 float64
	for i, v := range x {
		y := f.b0*v + z1
		z1 = f.b1*v - f.a1*y + z2
		z2 = f.b2*v - f.a2*y
		x[i] = y
	}
}

// butterQ is the Q of a 2nd-order Butterworth section.
const butterQ = math.Sqrt2 / 2

func lowPassSection(rate, cutoff float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * butterQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosW0) / 2 / a0,
		b1: (1 - cosW0) / a0,
		b2: (1 - cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func highPassSection(rate, cutoff float64) biquad {
	w0 := 2 * math.Pi * cutoff / rate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * butterQ)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosW0) / 2 / a0,
		b1: -(1 + cosW0) / a0,
		b2: (1 + cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func notchSection(rate, low, high float64) biquad {
	center := math.Sqrt(low * high)
	w0 := 2 * math.Pi * center / rate
	cosW0 := math.Cos(w0)
	q := center / (high - low)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: 1 / a0,
		b1: -2 * cosW0 / a0,
		b2: 1 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

func validateCutoff(rate, cutoff float64) error {
	if cutoff <= 0 {
		return fmt.Errorf("cutoff frequency must be > 0, got %.2f", cutoff)
	}
	if cutoff >= rate/2 {
		return fmt.Errorf("cutoff frequency %.2f must be below the Nyquist frequency %.2f", cutoff, rate/2)
	}
	return nil
}

func validateBand(rate, low, high float64) error {
	if err := validateCutoff(rate, low); err != nil {
		return err
	}
	if err := validateCutoff(rate, high); err != nil {
		return err
	}
	if low >= high {
		return fmt.Errorf("low cutoff %.2f must be below high cutoff %.2f", low, high)
	}
	return nil
}

// removeMean subtracts the arithmetic mean from x in place.
func removeMean(x []float64) {
	if len(x) == 0 {
		return
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean := sum / float64(len(x))
	for i := range x {
		x[i] -= mean
	}
}

// RemoveDCOffset subtracts the per-channel mean from every EEG row.
func RemoveDCOffset(rec *dataset.Recording) {
	for _, row := range rec.EEGRows() {
		removeMean(rec.Row(row))
	}
}

// LowPass applies a 2nd-order Butterworth low-pass to every EEG row.
func LowPass(rec *dataset.Recording, cutoff float64) error {
	rate := float64(rec.Board().SampleRate)
	if err := validateCutoff(rate, cutoff); err != nil {
		return err
	}
	section := lowPassSection(rate, cutoff)
	for _, row := range rec.EEGRows() {
		section.apply(rec.Row(row))
	}
	return nil
}

// HighPass applies a 2nd-order Butterworth high-pass to every EEG row.
func HighPass(rec *dataset.Recording, cutoff float64) error {
	rate := float64(rec.Board().SampleRate)
	if err := validateCutoff(rate, cutoff); err != nil {
		return err
	}
	section := highPassSection(rate, cutoff)
	for _, row := range rec.EEGRows() {
		section.apply(rec.Row(row))
	}
	return nil
}

// BandPass restricts every EEG row to the [low, high] Hz band by cascading
// a high-pass at the low cutoff with a low-pass at the high cutoff.
func BandPass(rec *dataset.Recording, low, high float64) error {
	rate := float64(rec.Board().SampleRate)
	if err := validateBand(rate, low, high); err != nil {
		return err
	}
	hp := highPassSection(rate, low)
	lp := lowPassSection(rate, high)
	for _, row := range rec.EEGRows() {
		hp.apply(rec.Row(row))
		lp.apply(rec.Row(row))
	}
	return nil
}

// BandStop notches the [low, high] Hz band out of every EEG row. The usual
// use is mains interference, e.g. BandStop(rec, 48, 52).
func BandStop(rec *dataset.Recording, low, high float64) error {
	rate := float64(rec.Board().SampleRate)
	if err := validateBand(rate, low, high); err != nil {
		return err
	}
	section := notchSection(rate, low, high)
	for _, row := range rec.EEGRows() {
		section.apply(rec.Row(row))
	}
	return nil
}

// rollingMean replaces x with its centered moving average, window clamped at
// the edges.
func rollingMean(x []float64, window int) {
	if window <= 1 || len(x) == 0 {
		return
	}
	half := window / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(x) {
			hi = len(x) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	copy(x, out)
}

// RollingAverage smooths every EEG row with a centered moving average.
func RollingAverage(rec *dataset.Recording, window int) error {
	if window < 1 {
		return fmt.Errorf("window must be >= 1, got %d", window)
	}
	for _, row := range rec.EEGRows() {
		rollingMean(rec.Row(row), window)
	}
	return nil
}

// Downsample returns a new recording keeping every factor-th sample. EEG
// rows are low-passed below the new Nyquist frequency first so aliases do
// not fold into the result; sequence, accelerometer and timestamp rows are
// decimated as-is. The new recording reports a reduced sample rate.
func Downsample(rec *dataset.Recording, factor int) (*dataset.Recording, error) {
	if factor < 1 {
		return nil, fmt.Errorf("downsample factor must be >= 1, got %d", factor)
	}
	desc := rec.Board()
	if desc.SampleRate%factor != 0 {
		return nil, fmt.Errorf("downsample factor %d must divide the sample rate %d", factor, desc.SampleRate)
	}

	rate := float64(desc.SampleRate)
	newRate := desc.SampleRate / factor
	eeg := make(map[int]bool)
	for _, row := range rec.EEGRows() {
		eeg[row] = true
	}

	guard := lowPassSection(rate, 0.8*float64(newRate)/2)
	samples := (rec.Samples() + factor - 1) / factor
	matrix := make([][]float64, rec.Rows())
	for r := 0; r < rec.Rows(); r++ {
		src := rec.Row(r)
		if eeg[r] && factor > 1 {
			filtered := make([]float64, len(src))
			copy(filtered, src)
			guard.apply(filtered)
			src = filtered
		}
		row := make([]float64, 0, samples)
		for c := 0; c < len(src); c += factor {
			row = append(row, src[c])
		}
		matrix[r] = row
	}

	desc.SampleRate = newRate
	return dataset.New(desc, matrix)
}
