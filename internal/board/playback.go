package board

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// playbackDriver replays a previously saved recording as if a live board
// were producing it. Params.Port is the CSV path; each line of the file is
// one sample (packet values first, original timestamp last). The original
// timestamp column is dropped, the session stamps samples afresh. Replay
// loops at end of file and is paced at the board sample rate.
type playbackDriver struct {
	desc   Descriptor
	path   string
	cols   [][]float64
	pos    int
	sample int
	epoch  time.Time
}

func newPlaybackDriver(desc Descriptor, params Params) *playbackDriver {
	if params.SampleRate > 0 {
		desc.SampleRate = params.SampleRate
	}
	return &playbackDriver{desc: desc, path: params.Port}
}

func (d *playbackDriver) Descriptor() Descriptor {
	return d.desc
}

func (d *playbackDriver) Open() error {
	if d.path == "" {
		return newError(CodeInvalidArguments, "playback board requires a recording path as its port parameter")
	}

	f, err := os.Open(d.path)
	if err != nil {
		return wrapError(CodeFileOpen, err, "unable to open recording %s", d.path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return wrapError(CodeFileOpen, err, "unable to parse recording %s", d.path)
	}
	if len(records) == 0 {
		return newError(CodeEmptyBuffer, "recording %s has no samples", d.path)
	}

	cols := make([][]float64, 0, len(records))
	for i, record := range records {
		if len(record) < d.desc.PacketSize {
			return newError(CodeFileOpen, "recording %s line %d has %d values, board needs %d", d.path, i+1, len(record), d.desc.PacketSize)
		}
		col := make([]float64, d.desc.PacketSize)
		for j := 0; j < d.desc.PacketSize; j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return wrapError(CodeFileOpen, err, "recording %s line %d column %d", d.path, i+1, j+1)
			}
			col[j] = v
		}
		cols = append(cols, col)
	}

	d.cols = cols
	d.pos = 0
	d.sample = 0
	d.epoch = time.Now()
	return nil
}

func (d *playbackDriver) Read() ([]float64, error) {
	if d.cols == nil {
		return nil, newError(CodeSessionNotReady, "playback driver is not open")
	}

	due := d.epoch.Add(time.Duration(d.sample) * time.Second / time.Duration(d.desc.SampleRate))
	if wait := time.Until(due); wait > 0 {
		time.Sleep(wait)
	}

	src := d.cols[d.pos]
	col := make([]float64, len(src))
	copy(col, src)

	d.pos = (d.pos + 1) % len(d.cols)
	d.sample++
	return col, nil
}

func (d *playbackDriver) Close() error {
	d.cols = nil
	return nil
}
