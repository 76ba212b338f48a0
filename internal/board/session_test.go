package board

import (
	"errors"
	"testing"
	"time"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("synthetic", Params{Seed: 42})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestSession_Lifecycle(t *testing.T) {
	s := newTestSession(t)

	status, info := s.GetStatus()
	if status != StatusStandby || info != nil {
		t.Errorf("Expected STANDBY with no info, got %s %v", status, info)
	}

	if err := s.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	status, info = s.GetStatus()
	if status != StatusPrepared {
		t.Errorf("Expected PREPARED, got %s", status)
	}
	if info == nil || info.ID == "" || info.Board != "synthetic" {
		t.Errorf("Session info incomplete: %+v", info)
	}

	if err := s.StartStream(1000); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	status, _ = s.GetStatus()
	if status != StatusStreaming {
		t.Errorf("Expected STREAMING, got %s", status)
	}

	// 250 Hz board, 200ms should buffer a few dozen samples.
	time.Sleep(200 * time.Millisecond)

	count, err := s.BufferCount()
	if err != nil {
		t.Fatalf("BufferCount failed: %v", err)
	}
	if count < 10 {
		t.Errorf("Expected at least 10 buffered samples, got %d", count)
	}

	if err := s.StopStream(); err != nil {
		t.Fatalf("StopStream failed: %v", err)
	}
	status, _ = s.GetStatus()
	if status != StatusPrepared {
		t.Errorf("Expected PREPARED after stop, got %s", status)
	}

	if err := s.ReleaseSession(); err != nil {
		t.Fatalf("ReleaseSession failed: %v", err)
	}
	status, _ = s.GetStatus()
	if status != StatusStandby {
		t.Errorf("Expected STANDBY after release, got %s", status)
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	s := newTestSession(t)

	if err := s.StartStream(100); err == nil {
		t.Error("Expected error starting stream before prepare")
	} else if CodeOf(err) != CodeSessionNotReady {
		t.Errorf("Expected SESSION_NOT_READY, got %s", CodeOf(err))
	}

	if err := s.StopStream(); err == nil {
		t.Error("Expected error stopping stream before start")
	}

	if err := s.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	if err := s.PrepareSession(); err == nil {
		t.Error("Expected error preparing twice")
	}

	if err := s.StartStream(100); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	if err := s.StartStream(100); err == nil {
		t.Error("Expected error starting stream twice")
	} else if CodeOf(err) != CodeStreamAlreadyRunning {
		t.Errorf("Expected STREAM_ALREADY_RUNNING, got %s", CodeOf(err))
	}

	if err := s.ReleaseSession(); err != nil {
		t.Fatalf("ReleaseSession failed: %v", err)
	}
}

func TestSession_BoardDataDrains(t *testing.T) {
	s := newTestSession(t)
	if err := s.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	if err := s.StartStream(1000); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if err := s.StopStream(); err != nil {
		t.Fatalf("StopStream failed: %v", err)
	}

	matrix, err := s.BoardData()
	if err != nil {
		t.Fatalf("BoardData failed: %v", err)
	}

	desc := s.Descriptor()
	if len(matrix) != desc.Rows() {
		t.Fatalf("Expected %d rows, got %d", desc.Rows(), len(matrix))
	}
	samples := len(matrix[0])
	if samples < 10 {
		t.Errorf("Expected at least 10 samples, got %d", samples)
	}

	// Timestamps are appended last and must be increasing.
	ts := matrix[desc.TimestampRow()]
	for i := 1; i < len(ts); i++ {
		if ts[i] < ts[i-1] {
			t.Errorf("Timestamps not monotonic at %d: %f < %f", i, ts[i], ts[i-1])
			break
		}
	}

	count, err := s.BufferCount()
	if err != nil {
		t.Fatalf("BufferCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty buffer after drain, got %d", count)
	}

	// Draining again is not an error, just empty.
	matrix, err = s.BoardData()
	if err != nil {
		t.Fatalf("BoardData on empty buffer failed: %v", err)
	}
	if len(matrix[0]) != 0 {
		t.Errorf("Expected zero columns, got %d", len(matrix[0]))
	}

	if err := s.ReleaseSession(); err != nil {
		t.Fatalf("ReleaseSession failed: %v", err)
	}
}

func TestSession_CurrentBoardDataPeeks(t *testing.T) {
	s := newTestSession(t)
	if err := s.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	if err := s.StartStream(1000); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	before, err := s.BufferCount()
	if err != nil {
		t.Fatalf("BufferCount failed: %v", err)
	}

	matrix, err := s.CurrentBoardData(5)
	if err != nil {
		t.Fatalf("CurrentBoardData failed: %v", err)
	}
	if len(matrix[0]) > 5 {
		t.Errorf("Expected at most 5 samples, got %d", len(matrix[0]))
	}

	after, err := s.BufferCount()
	if err != nil {
		t.Fatalf("BufferCount failed: %v", err)
	}
	if after < before {
		t.Errorf("CurrentBoardData must not drain: count went %d -> %d", before, after)
	}

	if _, err := s.CurrentBoardData(-1); err == nil {
		t.Error("Expected error for negative sample count")
	}

	immediate, err := s.ImmediateBoardData()
	if err != nil {
		t.Fatalf("ImmediateBoardData failed: %v", err)
	}
	if len(immediate[0]) != 1 {
		t.Errorf("Expected exactly 1 immediate sample, got %d", len(immediate[0]))
	}
	count, err := s.BufferCount()
	if err != nil {
		t.Fatalf("BufferCount failed: %v", err)
	}
	if count < after {
		t.Errorf("ImmediateBoardData must not drain: count went %d -> %d", after, count)
	}

	if err := s.ReleaseSession(); err != nil {
		t.Fatalf("ReleaseSession failed: %v", err)
	}
}

func TestSession_ReleaseWhileStreaming(t *testing.T) {
	s := newTestSession(t)
	if err := s.PrepareSession(); err != nil {
		t.Fatalf("PrepareSession failed: %v", err)
	}
	if err := s.StartStream(100); err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := s.ReleaseSession(); err != nil {
		t.Fatalf("ReleaseSession while streaming failed: %v", err)
	}
	status, _ := s.GetStatus()
	if status != StatusStandby {
		t.Errorf("Expected STANDBY, got %s", status)
	}
}

func TestNewSession_UnsupportedBoard(t *testing.T) {
	_, err := NewSession("thinkgear", Params{})
	if err == nil {
		t.Fatal("Expected error for unsupported board")
	}

	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("Expected coded error, got %T: %v", err, err)
	}
	if be.Code != CodeUnsupportedBoard {
		t.Errorf("Expected UNSUPPORTED_BOARD_ERROR, got %s", be.Code)
	}
}
