package board

import (
	"sync"
)

// ring buffers sample columns with overwrite-oldest semantics: once the
// capacity is reached, pushing a new column drops the oldest one. Count never
// exceeds the capacity requested at stream start.
type ring struct {
	mu   sync.Mutex
	cols [][]float64
	head int // index of the oldest column
	size int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{cols: make([][]float64, capacity)}
}

// Push appends a column, overwriting the oldest one when full.
func (r *ring) Push(col []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.size) % len(r.cols)
	r.cols[tail] = col
	if r.size < len(r.cols) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.cols)
	}
}

// Count returns the number of buffered columns.
func (r *ring) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Drain returns all buffered columns oldest-first and empties the buffer.
func (r *ring) Drain() [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.cols[(r.head+i)%len(r.cols)]
	}
	r.head = 0
	r.size = 0
	return out
}

// Latest returns copies of up to n of the newest columns oldest-first,
// without removing anything. Asking for more than is buffered returns what
// is there.
func (r *ring) Latest(n int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	if n < 0 {
		n = 0
	}
	out := make([][]float64, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		src := r.cols[(r.head+start+i)%len(r.cols)]
		col := make([]float64, len(src))
		copy(col, src)
		out[i] = col
	}
	return out
}
