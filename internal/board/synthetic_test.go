package board

import (
	"math"
	"testing"
)

func TestSyntheticDriver_PacketShape(t *testing.T) {
	desc, err := Lookup("synthetic")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	d := newSyntheticDriver(desc, Params{Seed: 1})
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	col, err := d.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(col) != desc.PacketSize {
		t.Errorf("Expected %d values per packet, got %d", desc.PacketSize, len(col))
	}
}

func TestSyntheticDriver_SequenceWraps(t *testing.T) {
	desc, _ := Lookup("synthetic")

	// High sample rate so the paced reads do not slow the test down.
	d := newSyntheticDriver(desc, Params{Seed: 1, SampleRate: 100000})
	if err := d.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	var last float64 = -1
	for i := 0; i < 300; i++ {
		col, err := d.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		seq := col[0]
		if seq < 0 || seq > 255 {
			t.Fatalf("Sequence out of range: %f", seq)
		}
		if last >= 0 {
			expected := math.Mod(last+1, 256)
			if seq != expected {
				t.Fatalf("Expected sequence %f after %f, got %f", expected, last, seq)
			}
		}
		last = seq
	}
}

func TestSyntheticDriver_DeterministicWithSeed(t *testing.T) {
	desc, _ := Lookup("synthetic")

	read := func() []float64 {
		d := newSyntheticDriver(desc, Params{Seed: 7, SampleRate: 100000})
		if err := d.Open(); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer d.Close()
		col, err := d.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		return col
	}

	a := read()
	b := read()
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("Seeded drivers diverged at row %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestSyntheticDriver_ReadBeforeOpen(t *testing.T) {
	desc, _ := Lookup("synthetic")
	d := newSyntheticDriver(desc, Params{})

	if _, err := d.Read(); err == nil {
		t.Error("Expected error reading before open")
	}
}
