// Package dataset holds acquired sample matrices and their CSV persistence.
// A recording is a rows-by-samples matrix in the board's packet layout:
// sequence row, EEG rows, accelerometer rows, timestamp row. On disk the
// matrix is transposed, one CSV line per sample.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/openneurolab/neurostream/internal/board"
)

// Recording is a sample matrix tied to the board that produced it.
type Recording struct {
	board  board.Descriptor
	matrix [][]float64
}

// New builds a recording from a matrix in row-major layout. The matrix must
// have exactly the board's row count; every row must have the same length.
func New(desc board.Descriptor, matrix [][]float64) (*Recording, error) {
	if len(matrix) != desc.Rows() {
		return nil, fmt.Errorf("board %s expects %d rows, got %d", desc.Name, desc.Rows(), len(matrix))
	}
	samples := len(matrix[0])
	for i, row := range matrix {
		if len(row) != samples {
			return nil, fmt.Errorf("row %d has %d samples, row 0 has %d", i, len(row), samples)
		}
	}
	return &Recording{board: desc, matrix: matrix}, nil
}

// Load reads a recording saved by SaveCSV for the given board.
func Load(desc board.Descriptor, path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = desc.Rows()
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse recording %s: %w", path, err)
	}

	matrix := make([][]float64, desc.Rows())
	for r := range matrix {
		matrix[r] = make([]float64, len(records))
	}
	for c, record := range records {
		for r, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("recording %s line %d column %d: %w", path, c+1, r+1, err)
			}
			matrix[r][c] = v
		}
	}

	return &Recording{board: desc, matrix: matrix}, nil
}

// Board returns the descriptor of the board that produced the recording.
func (r *Recording) Board() board.Descriptor {
	return r.board
}

// Samples returns the number of sample columns.
func (r *Recording) Samples() int {
	return len(r.matrix[0])
}

// Rows returns the number of matrix rows, timestamp included.
func (r *Recording) Rows() int {
	return len(r.matrix)
}

// Row returns the i-th matrix row. The slice is the live backing array;
// conditioning operations mutate it in place.
func (r *Recording) Row(i int) []float64 {
	return r.matrix[i]
}

// Matrix returns the live row-major matrix.
func (r *Recording) Matrix() [][]float64 {
	return r.matrix
}

// EEGRows returns the indices of the EEG channel rows.
func (r *Recording) EEGRows() []int {
	rows := make([]int, r.board.EEGChannels)
	for i := range rows {
		rows[i] = r.board.EEGRowStart() + i
	}
	return rows
}

// Timestamps returns the live timestamp row (float64 Unix seconds).
func (r *Recording) Timestamps() []float64 {
	return r.matrix[r.board.TimestampRow()]
}

// SaveCSV writes the recording transposed, one line per sample. Values keep
// six fractional digits, which preserves microvolt readings and millisecond
// timestamps.
func (r *Recording) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	record := make([]string, r.Rows())
	for c := 0; c < r.Samples(); c++ {
		for row := 0; row < r.Rows(); row++ {
			record[row] = strconv.FormatFloat(r.matrix[row][c], 'f', 6, 64)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write recording: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}
	return nil
}
