package board

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// writeTestRecording writes a CSV with the on-disk layout sessions save:
// one line per sample, packet values first, timestamp last.
func writeTestRecording(t *testing.T, desc Descriptor, samples int) string {
	t.Helper()

	var b strings.Builder
	for i := 0; i < samples; i++ {
		fields := make([]string, desc.Rows())
		fields[0] = strconv.Itoa(i % 256)
		for j := 1; j < desc.PacketSize; j++ {
			fields[j] = strconv.FormatFloat(float64(i*100+j), 'f', 6, 64)
		}
		fields[desc.TimestampRow()] = strconv.FormatFloat(1700000000+float64(i)*0.004, 'f', 6, 64)
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\n")
	}

	path := filepath.Join(t.TempDir(), "recording.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write test recording: %v", err)
	}
	return path
}

func TestPlaybackDriver_ReplaysFile(t *testing.T) {
	desc, _ := Lookup("playback")
	path := writeTestRecording(t, desc, 5)

	d := newPlaybackDriver(desc, Params{Port: path, SampleRate: 100000})
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	col, err := d.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(col) != desc.PacketSize {
		t.Fatalf("Expected %d values, got %d", desc.PacketSize, len(col))
	}
	if col[0] != 0 {
		t.Errorf("Expected first sequence value 0, got %f", col[0])
	}
	if col[1] != 1 {
		t.Errorf("Expected first channel value 1, got %f", col[1])
	}
}

func TestPlaybackDriver_LoopsAtEOF(t *testing.T) {
	desc, _ := Lookup("playback")
	path := writeTestRecording(t, desc, 3)

	d := newPlaybackDriver(desc, Params{Port: path, SampleRate: 100000})
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	var seqs []float64
	for i := 0; i < 7; i++ {
		col, err := d.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		seqs = append(seqs, col[0])
	}

	expected := []float64{0, 1, 2, 0, 1, 2, 0}
	for i := range expected {
		if seqs[i] != expected[i] {
			t.Errorf("Read %d: expected sequence %f, got %f", i, expected[i], seqs[i])
		}
	}
}

func TestPlaybackDriver_MissingFile(t *testing.T) {
	desc, _ := Lookup("playback")
	d := newPlaybackDriver(desc, Params{Port: "/nonexistent/recording.csv"})

	err := d.Open()
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if CodeOf(err) != CodeFileOpen {
		t.Errorf("Expected FILE_OPEN_ERROR, got %s", CodeOf(err))
	}
}

func TestPlaybackDriver_RequiresPath(t *testing.T) {
	desc, _ := Lookup("playback")
	d := newPlaybackDriver(desc, Params{})

	if err := d.Open(); err == nil {
		t.Error("Expected error when no path is given")
	}
}
