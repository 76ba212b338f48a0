package dataset

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/openneurolab/neurostream/internal/board"
)

func testMatrix(desc board.Descriptor, samples int) [][]float64 {
	matrix := make([][]float64, desc.Rows())
	for r := range matrix {
		matrix[r] = make([]float64, samples)
		for c := 0; c < samples; c++ {
			matrix[r][c] = float64(r*1000+c) + 0.25
		}
	}
	return matrix
}

func TestNew_ValidatesShape(t *testing.T) {
	desc, _ := board.Lookup("synthetic")

	if _, err := New(desc, make([][]float64, 3)); err == nil {
		t.Error("Expected error for wrong row count")
	}

	ragged := testMatrix(desc, 4)
	ragged[2] = ragged[2][:2]
	if _, err := New(desc, ragged); err == nil {
		t.Error("Expected error for ragged matrix")
	}

	if _, err := New(desc, testMatrix(desc, 4)); err != nil {
		t.Errorf("Expected valid matrix to be accepted, got: %v", err)
	}
}

func TestRecording_Accessors(t *testing.T) {
	desc, _ := board.Lookup("synthetic")
	rec, err := New(desc, testMatrix(desc, 6))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if rec.Samples() != 6 {
		t.Errorf("Expected 6 samples, got %d", rec.Samples())
	}
	if rec.Rows() != desc.Rows() {
		t.Errorf("Expected %d rows, got %d", desc.Rows(), rec.Rows())
	}

	eeg := rec.EEGRows()
	if len(eeg) != desc.EEGChannels {
		t.Fatalf("Expected %d EEG rows, got %d", desc.EEGChannels, len(eeg))
	}
	if eeg[0] != desc.EEGRowStart() {
		t.Errorf("Expected first EEG row %d, got %d", desc.EEGRowStart(), eeg[0])
	}

	ts := rec.Timestamps()
	if ts[0] != rec.Row(desc.TimestampRow())[0] {
		t.Error("Timestamps must return the timestamp row")
	}
}

func TestRecording_SaveAndLoad(t *testing.T) {
	desc, _ := board.Lookup("synthetic")
	rec, err := New(desc, testMatrix(desc, 10))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "session.csv")
	if err := rec.SaveCSV(path); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}

	loaded, err := Load(desc, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Samples() != rec.Samples() || loaded.Rows() != rec.Rows() {
		t.Fatalf("Shape changed: %dx%d -> %dx%d", rec.Rows(), rec.Samples(), loaded.Rows(), loaded.Samples())
	}

	for r := 0; r < rec.Rows(); r++ {
		for c := 0; c < rec.Samples(); c++ {
			if math.Abs(loaded.Row(r)[c]-rec.Row(r)[c]) > 1e-6 {
				t.Fatalf("Value drifted at [%d][%d]: %f vs %f", r, c, loaded.Row(r)[c], rec.Row(r)[c])
			}
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	desc, _ := board.Lookup("synthetic")
	if _, err := Load(desc, "/nonexistent/session.csv"); err == nil {
		t.Error("Expected error for missing file")
	}
}
