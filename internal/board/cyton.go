package board

import (
	"bufio"
	"io"
	"log/slog"
	"os"
)

// Cyton serial framing: 33-byte packets, 0xA0 header and 0xC0 footer, one
// sequence byte, 8 EEG channels as 24-bit big-endian two's complement and 3
// accelerometer axes as 16-bit values.
const (
	cytonPacketBytes = 33
	cytonHeaderByte  = 0xA0
	cytonFooterByte  = 0xC0

	cytonDefaultGain = 24.0
	cytonVRef        = 4.5
	cytonAccelScale  = 0.002 / 16.0
)

// cytonDriver reads sample packets from a Cyton dongle over its serial
// device. The device is expected to be configured for raw streaming; pacing
// comes from the hardware itself, one packet per sample period.
type cytonDriver struct {
	desc   Descriptor
	port   string
	gain   float64
	file   *os.File
	reader *bufio.Reader
}

func newCytonDriver(desc Descriptor, params Params) *cytonDriver {
	gain := params.Gain
	if gain <= 0 {
		gain = cytonDefaultGain
	}
	return &cytonDriver{desc: desc, port: params.Port, gain: gain}
}

func (d *cytonDriver) Descriptor() Descriptor {
	return d.desc
}

func (d *cytonDriver) Open() error {
	if d.port == "" {
		return newError(CodeInvalidArguments, "cyton board requires a serial port parameter")
	}

	f, err := os.OpenFile(d.port, os.O_RDWR, 0)
	if err != nil {
		return wrapError(CodePortOpen, err, "unable to open serial port %s", d.port)
	}
	d.file = f
	d.reader = bufio.NewReaderSize(f, 4*cytonPacketBytes)

	// Ask the dongle to start streaming.
	if _, err := f.Write([]byte{'b'}); err != nil {
		f.Close()
		d.file = nil
		return wrapError(CodePortOpen, err, "unable to start stream on %s", d.port)
	}
	return nil
}

func (d *cytonDriver) Read() ([]float64, error) {
	if d.file == nil {
		return nil, newError(CodeSessionNotReady, "cyton driver is not open")
	}

	frame, err := d.readFrame()
	if err != nil {
		return nil, wrapError(CodeStreamThread, err, "serial read failed on %s", d.port)
	}

	col := make([]float64, d.desc.PacketSize)
	col[0] = float64(frame[1])

	// 8 EEG channels, 3 bytes each, counts to microvolts.
	eegScale := cytonVRef / d.gain / float64(1<<23-1) * 1e6
	for ch := 0; ch < d.desc.EEGChannels; ch++ {
		off := 2 + 3*ch
		raw := int32(frame[off])<<16 | int32(frame[off+1])<<8 | int32(frame[off+2])
		if raw&0x800000 != 0 {
			raw |= ^int32(0xFFFFFF)
		}
		col[d.desc.EEGRowStart()+ch] = float64(raw) * eegScale
	}

	// 3 accelerometer axes, 2 bytes each, counts to g.
	for ax := 0; ax < d.desc.AccelRows; ax++ {
		off := 26 + 2*ax
		raw := int16(uint16(frame[off])<<8 | uint16(frame[off+1]))
		col[d.desc.EEGRowStart()+d.desc.EEGChannels+ax] = float64(raw) * cytonAccelScale
	}

	return col, nil
}

// readFrame scans to the next 0xA0 header and returns one validated packet,
// resynchronizing on corrupt footers.
func (d *cytonDriver) readFrame() ([]byte, error) {
	for {
		b, err := d.reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != cytonHeaderByte {
			continue
		}

		frame := make([]byte, cytonPacketBytes)
		frame[0] = b
		if _, err := io.ReadFull(d.reader, frame[1:]); err != nil {
			return nil, err
		}
		// Footer high nibble is 0xC; low nibble varies with accel packing.
		if frame[cytonPacketBytes-1]&0xF0 != cytonFooterByte {
			continue
		}
		return frame, nil
	}
}

func (d *cytonDriver) Close() error {
	if d.file == nil {
		return nil
	}

	// Best effort stop command before closing the port.
	if _, err := d.file.Write([]byte{'s'}); err != nil {
		slog.Debug("Cyton stop command failed", "port", d.port, "error", err)
	}

	err := d.file.Close()
	d.file = nil
	d.reader = nil
	if err != nil {
		return wrapError(CodePortOpen, err, "unable to close serial port %s", d.port)
	}
	return nil
}
