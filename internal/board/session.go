package board

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a session.
type Status string

const (
	StatusStandby   Status = "STANDBY"
	StatusPrepared  Status = "PREPARED"
	StatusStreaming Status = "STREAMING"
	StatusError     Status = "ERROR"
)

// SessionInfo contains information about the current acquisition session.
type SessionInfo struct {
	ID            string    `json:"id"`
	Board         string    `json:"board"`
	SampleRate    int       `json:"sample_rate"`
	StartTime     time.Time `json:"start_time"`
	BufferSamples int       `json:"buffer_samples"`
}

// DefaultBufferSeconds sizes the streaming buffer when the caller does not:
// one hour of samples at the board rate.
const DefaultBufferSeconds = 3600

// Session owns one connection to a board and the streaming buffer behind it.
// Lifecycle: STANDBY -> PrepareSession -> PREPARED -> StartStream ->
// STREAMING -> StopStream -> PREPARED -> ReleaseSession -> STANDBY. A driver
// failure while streaming moves the session to ERROR until released.
type Session struct {
	mutex  sync.RWMutex
	driver Driver
	desc   Descriptor
	status Status
	info   *SessionInfo
	buf    *ring

	stopChan chan struct{}
	doneChan chan struct{}
	readErr  error
}

// NewSession creates a session for the named board. The driver is not opened
// until PrepareSession.
func NewSession(boardName string, params Params) (*Session, error) {
	driver, err := NewDriver(boardName, params)
	if err != nil {
		return nil, err
	}

	return &Session{
		driver: driver,
		desc:   driver.Descriptor(),
		status: StatusStandby,
	}, nil
}

// Descriptor returns the descriptor of the session's board.
func (s *Session) Descriptor() Descriptor {
	return s.desc
}

// PrepareSession opens the board connection (STANDBY -> PREPARED).
func (s *Session) PrepareSession() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.status != StatusStandby {
		return newError(CodeSessionNotReady, "can only prepare from standby state, current: %s", s.status)
	}

	if err := s.driver.Open(); err != nil {
		s.status = StatusError
		return err
	}

	s.info = &SessionInfo{
		ID:         uuid.NewString(),
		Board:      s.desc.Name,
		SampleRate: s.desc.SampleRate,
	}
	s.status = StatusPrepared
	s.readErr = nil

	slog.Info("Session prepared", "board", s.desc.Name, "session_id", s.info.ID)
	return nil
}

// StartStream allocates the sample buffer and launches the acquisition
// goroutine (PREPARED -> STREAMING). bufferSamples <= 0 selects the default
// of DefaultBufferSeconds worth of samples.
func (s *Session) StartStream(bufferSamples int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.status {
	case StatusStreaming:
		return newError(CodeStreamAlreadyRunning, "stream is already running")
	case StatusPrepared:
	default:
		return newError(CodeSessionNotReady, "can only start stream from prepared state, current: %s", s.status)
	}

	if bufferSamples <= 0 {
		bufferSamples = DefaultBufferSeconds * s.desc.SampleRate
	}

	s.buf = newRing(bufferSamples)
	s.info.StartTime = time.Now()
	s.info.BufferSamples = bufferSamples
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.status = StatusStreaming

	go s.acquisitionLoop(s.stopChan, s.doneChan)

	slog.Info("Stream started", "board", s.desc.Name, "session_id", s.info.ID, "buffer_samples", bufferSamples)
	return nil
}

// acquisitionLoop pulls packets from the driver into the ring buffer until
// stopped, stamping each sample on arrival.
func (s *Session) acquisitionLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		col, err := s.driver.Read()
		if err != nil {
			s.mutex.Lock()
			if s.status == StatusStreaming {
				s.status = StatusError
				s.readErr = err
			}
			s.mutex.Unlock()
			slog.Error("Acquisition read failed", "board", s.desc.Name, "error", err)
			return
		}

		stamped := make([]float64, 0, len(col)+1)
		stamped = append(stamped, col...)
		stamped = append(stamped, float64(time.Now().UnixNano())/1e9)
		s.buf.Push(stamped)
	}
}

// StopStream stops the acquisition goroutine and waits for it to exit
// (STREAMING -> PREPARED). Buffered samples survive the stop and stay
// readable.
func (s *Session) StopStream() error {
	s.mutex.Lock()

	if s.status != StatusStreaming {
		s.mutex.Unlock()
		return newError(CodeSessionNotReady, "no stream in progress, current: %s", s.status)
	}

	close(s.stopChan)
	done := s.doneChan
	s.mutex.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("Acquisition goroutine did not exit within timeout", "board", s.desc.Name)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.status == StatusStreaming {
		s.status = StatusPrepared
	}
	slog.Info("Stream stopped", "board", s.desc.Name, "buffered", s.buf.Count())
	return nil
}

// ReleaseSession closes the board connection from any state, stopping the
// stream first if needed (-> STANDBY).
func (s *Session) ReleaseSession() error {
	s.mutex.Lock()
	streaming := s.status == StatusStreaming
	s.mutex.Unlock()

	if streaming {
		if err := s.StopStream(); err != nil {
			return err
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.status == StatusStandby {
		return nil
	}

	err := s.driver.Close()
	s.status = StatusStandby
	s.info = nil
	s.buf = nil

	if err != nil {
		return err
	}
	slog.Info("Session released", "board", s.desc.Name)
	return nil
}

// GetStatus returns the current status and a copy of the session info.
func (s *Session) GetStatus() (Status, *SessionInfo) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var infoCopy *SessionInfo
	if s.info != nil {
		c := *s.info
		infoCopy = &c
	}
	return s.status, infoCopy
}

// LastError returns the driver error that moved the session to ERROR, if any.
func (s *Session) LastError() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.readErr
}

// BufferCount returns the number of buffered samples.
func (s *Session) BufferCount() (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.buf == nil {
		return 0, newError(CodeSessionNotReady, "stream has not been started")
	}
	return s.buf.Count(), nil
}

// BoardData drains the buffer and returns a rows-by-samples matrix: packet
// rows first, timestamp row last. Draining an empty buffer yields a matrix
// with zero columns, not an error.
func (s *Session) BoardData() ([][]float64, error) {
	s.mutex.RLock()
	buf := s.buf
	s.mutex.RUnlock()

	if buf == nil {
		return nil, newError(CodeSessionNotReady, "stream has not been started")
	}
	return columnsToMatrix(buf.Drain(), s.desc.Rows()), nil
}

// CurrentBoardData returns the newest n samples without draining the buffer.
// Fewer than n buffered samples yields what is there.
func (s *Session) CurrentBoardData(n int) ([][]float64, error) {
	if n < 0 {
		return nil, newError(CodeInvalidArguments, "sample count must be >= 0, got %d", n)
	}

	s.mutex.RLock()
	buf := s.buf
	s.mutex.RUnlock()

	if buf == nil {
		return nil, newError(CodeSessionNotReady, "stream has not been started")
	}
	return columnsToMatrix(buf.Latest(n), s.desc.Rows()), nil
}

// ImmediateBoardData returns only the newest buffered sample, without
// removing it from the buffer.
func (s *Session) ImmediateBoardData() ([][]float64, error) {
	return s.CurrentBoardData(1)
}

// columnsToMatrix transposes buffered sample columns into the row-major
// channels-by-samples layout callers work with.
func columnsToMatrix(cols [][]float64, rows int) [][]float64 {
	matrix := make([][]float64, rows)
	for r := range matrix {
		matrix[r] = make([]float64, len(cols))
	}
	for c, col := range cols {
		for r := 0; r < rows && r < len(col); r++ {
			matrix[r][c] = col[r]
		}
	}
	return matrix
}
