package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openneurolab/neurostream/internal/board"
	"github.com/openneurolab/neurostream/internal/config"
	"github.com/openneurolab/neurostream/internal/dataset"
	"github.com/openneurolab/neurostream/internal/filter"
	"gopkg.in/yaml.v3"
)

// Service represents the core NeuroStream service interface
type Service interface {
	// Session operations
	PrepareSession() error
	StartStream() error
	StopStream() error
	ReleaseSession() error
	GetSessionStatus() (board.Status, *board.SessionInfo)
	BufferCount() (int, error)
	CurrentData(samples int) ([][]float64, error)

	// Capture runs the full acquisition pipeline: prepare, stream for the
	// given duration, drain, condition, save.
	Capture(name string, duration time.Duration) (*CaptureResult, error)

	// Conditioning operations
	Condition(rec *dataset.Recording) error

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	ListRecordings() ([]RecordingInfo, error)
	GetRecordingMeta(name string) (*SessionMeta, error)
	GetLastError() string
}

// CaptureResult describes a finished capture.
type CaptureResult struct {
	Name      string        `json:"name"`
	CSVPath   string        `json:"csv_path"`
	MetaPath  string        `json:"meta_path"`
	Samples   int           `json:"samples"`
	Duration  time.Duration `json:"duration"`
	SessionID string        `json:"session_id"`
}

// RecordingInfo contains information about a saved recording file
type RecordingInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	HasMeta      bool      `json:"has_meta"`
	DownloadURL  string    `json:"download_url"`
}

// SessionMeta is the sidecar written next to every recording, describing how
// the samples were acquired and conditioned.
type SessionMeta struct {
	SessionID   string `yaml:"session_id" json:"session_id"`
	Board       string `yaml:"board" json:"board"`
	SampleRate  int    `yaml:"sample_rate" json:"sample_rate"`
	EEGChannels int    `yaml:"eeg_channels" json:"eeg_channels"`
	Samples     int    `yaml:"samples" json:"samples"`
	StartTime   string `yaml:"start_time" json:"start_time"`
	DCOffset    bool   `yaml:"dc_offset" json:"dc_offset"`
	Bandpass    string `yaml:"bandpass,omitempty" json:"bandpass,omitempty"`
	Notch       string `yaml:"notch,omitempty" json:"notch,omitempty"`
	CreatedAt   string `yaml:"created_at" json:"created_at"`
}

// NeuroStreamService is the main service implementation
type NeuroStreamService struct {
	cfg        *config.Config
	configFile string

	// Session management
	sessionMutex sync.Mutex
	session      *board.Session

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new NeuroStream service instance
func New(cfg *config.Config, configFile string) Service {
	return &NeuroStreamService{
		cfg:        cfg,
		configFile: configFile,
	}
}

func boardParams(cfg *config.Config) board.Params {
	return board.Params{
		Port:       cfg.Board.Port,
		Gain:       cfg.Board.Gain,
		SampleRate: cfg.Board.SampleRate,
	}
}

// currentSession returns the live session, creating it on first use so a
// released session can be prepared again with fresh driver state.
func (s *NeuroStreamService) currentSession() (*board.Session, error) {
	if s.session == nil {
		session, err := board.NewSession(s.cfg.Board.Type, boardParams(s.cfg))
		if err != nil {
			return nil, err
		}
		s.session = session
	}
	return s.session, nil
}

// PrepareSession opens the configured board (STANDBY -> PREPARED)
func (s *NeuroStreamService) PrepareSession() error {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	s.clearLastError()
	session, err := s.currentSession()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to create session: %v", err))
		return err
	}

	if err := session.PrepareSession(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to prepare session: %v", err))
		return err
	}
	return nil
}

// StartStream starts acquisition with the configured buffer size
func (s *NeuroStreamService) StartStream() error {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	session, err := s.currentSession()
	if err != nil {
		return err
	}

	if err := session.StartStream(s.cfg.Stream.BufferSamples); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start stream: %v", err))
		return err
	}
	return nil
}

// StopStream stops the current acquisition
func (s *NeuroStreamService) StopStream() error {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	if s.session == nil {
		return fmt.Errorf("no session in progress")
	}

	if err := s.session.StopStream(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop stream: %v", err))
		return err
	}
	s.clearLastError()
	return nil
}

// ReleaseSession closes the board and discards the session
func (s *NeuroStreamService) ReleaseSession() error {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	if s.session == nil {
		return nil
	}

	err := s.session.ReleaseSession()
	s.session = nil
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to release session: %v", err))
		return err
	}
	return nil
}

// GetSessionStatus returns the current session status and session info
func (s *NeuroStreamService) GetSessionStatus() (board.Status, *board.SessionInfo) {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session == nil {
		return board.StatusStandby, nil
	}

	status, info := session.GetStatus()
	if status == board.StatusError {
		if err := session.LastError(); err != nil {
			s.setLastError(err.Error())
		}
	}
	return status, info
}

// BufferCount returns the number of buffered samples
func (s *NeuroStreamService) BufferCount() (int, error) {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session == nil {
		return 0, fmt.Errorf("no session in progress")
	}
	return session.BufferCount()
}

// CurrentData returns the newest samples without draining the buffer
func (s *NeuroStreamService) CurrentData(samples int) ([][]float64, error) {
	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()

	if session == nil {
		return nil, fmt.Errorf("no session in progress")
	}
	return session.CurrentBoardData(samples)
}

// Capture runs the full acquisition pipeline and leaves the session released.
func (s *NeuroStreamService) Capture(name string, duration time.Duration) (*CaptureResult, error) {
	if err := s.PrepareSession(); err != nil {
		return nil, err
	}
	// The board stays open only for the duration of the capture
	defer s.ReleaseSession()

	if err := s.StartStream(); err != nil {
		return nil, err
	}

	slog.Info("Capturing", "board", s.cfg.Board.Name, "duration", duration)
	time.Sleep(duration)

	if err := s.StopStream(); err != nil {
		return nil, err
	}

	s.sessionMutex.Lock()
	session := s.session
	s.sessionMutex.Unlock()
	if session == nil {
		return nil, fmt.Errorf("session disappeared during capture")
	}

	matrix, err := session.BoardData()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to read board data: %v", err))
		return nil, err
	}

	rec, err := dataset.New(session.Descriptor(), matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble recording: %w", err)
	}

	if err := s.Condition(rec); err != nil {
		s.setLastError(fmt.Sprintf("Conditioning failed: %v", err))
		return nil, err
	}

	_, info := session.GetStatus()

	result, err := s.saveRecording(name, rec, info)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
		return nil, err
	}
	result.Duration = duration

	slog.Info("Capture completed", "name", result.Name, "samples", result.Samples, "file", result.CSVPath)
	return result, nil
}

// Condition applies the configured filters to a recording in place
func (s *NeuroStreamService) Condition(rec *dataset.Recording) error {
	filters := s.cfg.Filters

	if filters.DCOffset {
		filter.RemoveDCOffset(rec)
	}
	if filters.Bandpass != nil {
		if err := filter.BandPass(rec, filters.Bandpass.Low, filters.Bandpass.High); err != nil {
			return fmt.Errorf("bandpass failed: %w", err)
		}
	}
	if filters.Notch != nil {
		if err := filter.BandStop(rec, filters.Notch.Low, filters.Notch.High); err != nil {
			return fmt.Errorf("notch failed: %w", err)
		}
	}
	return nil
}

// saveRecording writes the CSV and its yaml sidecar into the output directory.
func (s *NeuroStreamService) saveRecording(name string, rec *dataset.Recording, info *board.SessionInfo) (*CaptureResult, error) {
	cleanName := cleanFileName(name)
	if cleanName == "" {
		cleanName = "session_" + time.Now().Format("20060102_150405")
	}

	if err := os.MkdirAll(s.cfg.Output.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	csvPath := filepath.Join(s.cfg.Output.Directory, cleanName+".csv")
	if err := rec.SaveCSV(csvPath); err != nil {
		return nil, err
	}

	boardName := s.cfg.Board.Name
	if boardName == "" {
		boardName = rec.Board().Name
	}

	meta := &SessionMeta{
		Board:       boardName,
		SampleRate:  rec.Board().SampleRate,
		EEGChannels: rec.Board().EEGChannels,
		Samples:     rec.Samples(),
		DCOffset:    s.cfg.Filters.DCOffset,
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
	if info != nil {
		meta.SessionID = info.ID
		meta.StartTime = info.StartTime.Format(time.RFC3339)
	}
	if b := s.cfg.Filters.Bandpass; b != nil {
		meta.Bandpass = fmt.Sprintf("%.1f-%.1f Hz", b.Low, b.High)
	}
	if n := s.cfg.Filters.Notch; n != nil {
		meta.Notch = fmt.Sprintf("%.1f-%.1f Hz", n.Low, n.High)
	}

	metaPath := filepath.Join(s.cfg.Output.Directory, cleanName+".session.yaml")
	if err := saveSessionMeta(metaPath, meta); err != nil {
		return nil, err
	}

	return &CaptureResult{
		Name:      cleanName,
		CSVPath:   csvPath,
		MetaPath:  metaPath,
		Samples:   rec.Samples(),
		SessionID: meta.SessionID,
	}, nil
}

// LoadProfile loads a new configuration profile
func (s *NeuroStreamService) LoadProfile(profile string) error {
	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}

	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	// Drop any session built on the previous board settings
	if s.session != nil {
		if err := s.session.ReleaseSession(); err != nil {
			slog.Warn("Failed to release session during profile switch", "error", err)
		}
		s.session = nil
	}

	s.cfg = newCfg
	return nil
}

// GetConfig returns the current configuration
func (s *NeuroStreamService) GetConfig() *config.Config {
	return s.cfg
}

// ListRecordings returns all saved recordings in the output directory
func (s *NeuroStreamService) ListRecordings() ([]RecordingInfo, error) {
	recordingDir := s.cfg.Output.Directory

	// Create directory if it doesn't exist
	if err := os.MkdirAll(recordingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	files, err := os.ReadDir(recordingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext != ".csv" {
			continue
		}

		filePath := filepath.Join(recordingDir, file.Name())
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		base := strings.TrimSuffix(file.Name(), ext)
		_, metaErr := os.Stat(filepath.Join(recordingDir, base+".session.yaml"))

		recordings = append(recordings, RecordingInfo{
			Name:         file.Name(),
			Path:         filePath,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			HasMeta:      metaErr == nil,
			DownloadURL:  fmt.Sprintf("/api/recordings/download/%s", file.Name()),
		})
	}

	// Sort by modification time (newest first)
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// GetRecordingMeta reads the yaml sidecar of a saved recording
func (s *NeuroStreamService) GetRecordingMeta(name string) (*SessionMeta, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	metaPath := filepath.Join(s.cfg.Output.Directory, base+".session.yaml")

	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no session metadata for recording: %s", name)
		}
		return nil, fmt.Errorf("failed to read session metadata: %w", err)
	}

	var meta SessionMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	return &meta, nil
}

func saveSessionMeta(path string, meta *SessionMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}
	return nil
}

// GetLastError returns the last error message (thread-safe)
func (s *NeuroStreamService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *NeuroStreamService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	// Log all errors for debugging and monitoring
	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *NeuroStreamService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// Helper functions

func cleanFileName(name string) string {
	// Keep letters, digits, dashes and spaces; spaces become underscores
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == ' ' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
