package board

import (
	"strings"
)

// ID identifies a supported board model.
type ID int

const (
	IDPlayback  ID = -3
	IDSynthetic ID = -1
	IDCyton     ID = 0
)

// Descriptor describes the fixed properties of a board model: how fast it
// samples, how many EEG channels it carries and how a sample packet is laid
// out. One packet is a column of PacketSize values; sessions append a
// timestamp below it, so buffered matrices have PacketSize+1 rows.
type Descriptor struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	SampleRate  int    `json:"sample_rate"`
	EEGChannels int    `json:"eeg_channels"`
	AccelRows   int    `json:"accel_rows"`
	PacketSize  int    `json:"packet_size"`
}

// Rows returns the full row count of a buffered matrix, timestamp included.
func (d Descriptor) Rows() int {
	return d.PacketSize + 1
}

// EEGRowStart returns the index of the first EEG row. Row 0 is the packet
// sequence counter.
func (d Descriptor) EEGRowStart() int {
	return 1
}

// TimestampRow returns the index of the timestamp row.
func (d Descriptor) TimestampRow() int {
	return d.PacketSize
}

var descriptors = []Descriptor{
	{ID: IDCyton, Name: "cyton", SampleRate: 250, EEGChannels: 8, AccelRows: 3, PacketSize: 12},
	{ID: IDSynthetic, Name: "synthetic", SampleRate: 250, EEGChannels: 8, AccelRows: 3, PacketSize: 12},
	{ID: IDPlayback, Name: "playback", SampleRate: 250, EEGChannels: 8, AccelRows: 3, PacketSize: 12},
}

// Boards returns the descriptors of all supported board models.
func Boards() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup resolves a board name to its descriptor.
func Lookup(name string) (Descriptor, error) {
	for _, d := range descriptors {
		if d.Name == strings.ToLower(strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return Descriptor{}, newError(CodeUnsupportedBoard, "unsupported board type: %q", name)
}

// LookupID resolves a numeric board ID to its descriptor.
func LookupID(id ID) (Descriptor, error) {
	for _, d := range descriptors {
		if d.ID == id {
			return d, nil
		}
	}
	return Descriptor{}, newError(CodeUnsupportedBoard, "unsupported board id: %d", int(id))
}

// Params carries the connection parameters a driver needs. Which fields
// matter depends on the board: cyton needs Port (the serial device),
// playback needs Port (the CSV path), synthetic needs nothing.
type Params struct {
	Port       string
	Gain       float64
	SampleRate int
	Seed       int64
}

// Driver produces sample packets for one board. Read blocks until the next
// packet is available and returns a column of Descriptor().PacketSize values.
// Implementations pace Read at the board sample rate.
type Driver interface {
	Descriptor() Descriptor
	Open() error
	Read() ([]float64, error)
	Close() error
}

// NewDriver creates the driver for the named board.
func NewDriver(name string, params Params) (Driver, error) {
	desc, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	switch desc.ID {
	case IDSynthetic:
		return newSyntheticDriver(desc, params), nil
	case IDPlayback:
		return newPlaybackDriver(desc, params), nil
	case IDCyton:
		return newCytonDriver(desc, params), nil
	default:
		return nil, newError(CodeUnsupportedBoard, "no driver for board %q", name)
	}
}
