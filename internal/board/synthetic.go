package board

import (
	"math"
	"math/rand"
	"time"
)

// syntheticDriver simulates a board without hardware. Each EEG channel
// carries a sinusoid with a channel-specific frequency and amplitude plus a
// little gaussian noise, and the accelerometer rows carry a slow wobble.
// Reads are paced at the board sample rate against a wall-clock deadline so
// streaming behaves like a real device.
type syntheticDriver struct {
	desc   Descriptor
	rng    *rand.Rand
	seq    int
	sample int
	epoch  time.Time
	open   bool
}

func newSyntheticDriver(desc Descriptor, params Params) *syntheticDriver {
	if params.SampleRate > 0 {
		desc.SampleRate = params.SampleRate
	}
	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &syntheticDriver{
		desc: desc,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (d *syntheticDriver) Descriptor() Descriptor {
	return d.desc
}

func (d *syntheticDriver) Open() error {
	d.seq = 0
	d.sample = 0
	d.epoch = time.Now()
	d.open = true
	return nil
}

func (d *syntheticDriver) Read() ([]float64, error) {
	if !d.open {
		return nil, newError(CodeSessionNotReady, "synthetic driver is not open")
	}

	// Pace to the board sample rate.
	due := d.epoch.Add(time.Duration(d.sample) * time.Second / time.Duration(d.desc.SampleRate))
	if wait := time.Until(due); wait > 0 {
		time.Sleep(wait)
	}

	col := make([]float64, d.desc.PacketSize)
	col[0] = float64(d.seq)

	t := float64(d.sample) / float64(d.desc.SampleRate)
	for ch := 0; ch < d.desc.EEGChannels; ch++ {
		amplitude := 10.0 * float64(ch+1)
		freq := 5.0 * float64(ch+1)
		col[d.desc.EEGRowStart()+ch] = amplitude*math.Sin(2*math.Pi*freq*t) + d.rng.NormFloat64()
	}
	for ax := 0; ax < d.desc.AccelRows; ax++ {
		col[d.desc.EEGRowStart()+d.desc.EEGChannels+ax] = 0.1 * math.Sin(2*math.Pi*0.2*t+float64(ax))
	}

	d.seq = (d.seq + 1) % 256
	d.sample++
	return col, nil
}

func (d *syntheticDriver) Close() error {
	d.open = false
	return nil
}
