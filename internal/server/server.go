package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openneurolab/neurostream/internal/board"
	"github.com/openneurolab/neurostream/internal/config"
	"github.com/openneurolab/neurostream/internal/service"
	"github.com/spf13/viper"
)

// Server represents the web server for controlling NeuroStream
type Server struct {
	service       service.Service
	cfg           *config.Config
	configFile    string
	port          string
	activeProfile string

	upgrader websocket.Upgrader
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status        string              `json:"status"`
	Message       string              `json:"message,omitempty"`
	Session       *board.SessionInfo  `json:"session,omitempty"`
	BufferedCount int                 `json:"buffered_samples"`
	Config        *ResolvedConfigInfo `json:"resolved_config"`
	ActiveProfile string              `json:"active_profile"`
	LastError     string              `json:"last_error,omitempty"`
}

// ResolvedConfigInfo contains configuration information for the UI
type ResolvedConfigInfo struct {
	ActiveProfile string     `json:"active_profile"`
	Board         BoardInfo  `json:"board"`
	Stream        StreamInfo `json:"stream"`
	Filters       FilterInfo `json:"filters"`
	OutputDir     string     `json:"output_dir"`
	Format        string     `json:"format"`
}

// BoardInfo represents board information for the UI
type BoardInfo struct {
	Ref         string  `json:"ref"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Port        string  `json:"port,omitempty"`
	Gain        float64 `json:"gain"`
	Inheritance string  `json:"inheritance"` // "inherited" or "profile-specific"
}

// StreamInfo represents stream settings for the UI
type StreamInfo struct {
	DurationSeconds int `json:"duration_seconds"`
	BufferSamples   int `json:"buffer_samples"`
}

// FilterInfo represents the conditioning settings for the UI
type FilterInfo struct {
	DCOffset bool   `json:"dc_offset"`
	Bandpass string `json:"bandpass,omitempty"`
	Notch    string `json:"notch,omitempty"`
}

// DataResponse represents the JSON response for sample data endpoints
type DataResponse struct {
	Rows    int         `json:"rows"`
	Samples int         `json:"samples"`
	Data    [][]float64 `json:"data"`
}

// CaptureRequest represents a request to run a full capture
type CaptureRequest struct {
	Name            string `json:"name"`
	DurationSeconds int    `json:"duration_seconds"`
}

// RecordingsResponse represents the JSON response for the recordings endpoint
type RecordingsResponse struct {
	Recordings          []service.RecordingInfo `json:"recordings"`
	TotalCount          int                     `json:"total_count"`
	RecordingsDirectory string                  `json:"recordings_directory"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// feedWriteWait bounds how long a feed write may block on a slow or dead peer
const feedWriteWait = 5 * time.Second

// feedFrame is one websocket message on the live feed
type feedFrame struct {
	Timestamp float64     `json:"timestamp"`
	Rows      int         `json:"rows"`
	Samples   int         `json:"samples"`
	Data      [][]float64 `json:"data"`
}

// New creates a new web server instance
func New(configFile string, port string) (*Server, error) {
	// Load configuration with active profile from config file
	cfg, err := config.LoadWithProfile(configFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Determine the actual active profile name
	activeProfileName := getActiveProfileName(configFile)

	svc := service.New(cfg, configFile)

	return &Server{
		service:       svc,
		cfg:           cfg,
		configFile:    configFile,
		port:          port,
		activeProfile: activeProfileName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
			// The dashboard may be served from another host on the LAN
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Start starts the web server
func (s *Server) Start() error {
	http.HandleFunc("/", s.handleIndex)
	http.HandleFunc("/status", s.handleStatus)
	http.HandleFunc("/prepare", s.handlePrepare)
	http.HandleFunc("/start", s.handleStartStream)
	http.HandleFunc("/stop", s.handleStopStream)
	http.HandleFunc("/release", s.handleRelease)
	http.HandleFunc("/config/profiles", s.handleProfiles)
	http.HandleFunc("/config/select", s.handleSelectProfile)
	http.HandleFunc("/api/capture", s.handleCapture)
	http.HandleFunc("/api/data/current", s.handleCurrentData)
	http.HandleFunc("/api/recordings", s.handleRecordings)
	http.HandleFunc("/api/recordings/download/", s.handleRecordingDownload)
	http.HandleFunc("/api/recordings/meta/", s.handleRecordingMeta)
	http.HandleFunc("/ws/feed", s.handleFeed)

	// Get local IP address
	localIP := getLocalIP()

	slog.Info("Starting NeuroStream Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, nil)
}

// handleIndex serves a minimal endpoint index. The API is JSON only.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>NeuroStream</title>
</head>
<body>
    <h1>NeuroStream</h1>
    <h2>API Endpoints:</h2>
    <ul>
        <li>POST /prepare - Open the board</li>
        <li>POST /start - Start streaming</li>
        <li>POST /stop - Stop streaming</li>
        <li>POST /release - Close the board</li>
        <li>GET /status - Get session status</li>
        <li>POST /api/capture - Run a full capture</li>
        <li>GET /api/data/current?samples=N - Peek at buffered samples</li>
        <li>GET /api/recordings - List saved recordings</li>
        <li>GET /ws/feed - Live sample feed (websocket)</li>
    </ul>
</body>
</html>`

// handleStatus returns the current session status and resolved configuration
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status, session := s.service.GetSessionStatus()
	buffered, _ := s.service.BufferCount()

	response := StatusResponse{
		Status:        string(status),
		Message:       statusMessage(status, session),
		Session:       session,
		BufferedCount: buffered,
		Config:        s.getResolvedConfigInfo(),
		ActiveProfile: s.activeProfile,
		LastError:     s.service.GetLastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func statusMessage(status board.Status, session *board.SessionInfo) string {
	switch status {
	case board.StatusStandby:
		return "No session, board closed"
	case board.StatusPrepared:
		return "Board open, ready to stream"
	case board.StatusStreaming:
		if session != nil {
			return fmt.Sprintf("Streaming from %s since %s", session.Board, session.StartTime.Format("15:04:05"))
		}
		return "Streaming"
	case board.StatusError:
		return "Acquisition failed, release the session to recover"
	}
	return ""
}

// handlePrepare opens the configured board (STANDBY -> PREPARED)
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.PrepareSession(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to prepare session: %v", err),
			"operation", "prepare")
		return
	}

	s.sendSuccessResponse(w, "Session prepared")
}

// handleStartStream starts acquisition (PREPARED -> STREAMING)
func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.StartStream(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to start stream: %v", err),
			"operation", "start_stream")
		return
	}

	s.sendSuccessResponse(w, "Stream started")
}

// handleStopStream stops acquisition (STREAMING -> PREPARED)
func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.StopStream(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop stream: %v", err),
			"operation", "stop_stream")
		return
	}

	s.sendSuccessResponse(w, "Stream stopped")
}

// handleRelease closes the board (-> STANDBY)
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.ReleaseSession(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to release session: %v", err),
			"operation", "release")
		return
	}

	s.sendSuccessResponse(w, "Session released")
}

// handleCapture runs the full acquisition pipeline and saves the recording
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse request body")
		return
	}

	if req.Name == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Recording name is required", "operation", "capture")
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = time.Duration(s.cfg.Stream.DurationSeconds) * time.Second
	}

	slog.Info("Server: starting capture", "name", req.Name, "duration", duration)
	result, err := s.service.Capture(req.Name, duration)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Capture failed: %v", err),
			"name", req.Name, "operation", "capture")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Capture completed",
		"result":  result,
	})
}

// handleCurrentData returns the newest buffered samples without draining
func (s *Server) handleCurrentData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	samples := 250
	if v := r.URL.Query().Get("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendErrorResponse(w, http.StatusBadRequest, "samples must be a non-negative integer")
			return
		}
		samples = n
	}

	matrix, err := s.service.CurrentData(samples)
	if err != nil {
		s.sendErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Failed to read current data: %v", err),
			"operation", "current_data")
		return
	}

	response := DataResponse{Rows: len(matrix), Data: matrix}
	if len(matrix) > 0 {
		response.Samples = len(matrix[0])
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRecordings lists the saved recordings
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recordings, err := s.service.ListRecordings()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list recordings: %v", err),
			"operation", "list_recordings")
		return
	}

	response := RecordingsResponse{
		Recordings:          recordings,
		TotalCount:          len(recordings),
		RecordingsDirectory: s.cfg.Output.Directory,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRecordingDownload serves a saved recording file
func (s *Server) handleRecordingDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract filename from URL
	filename := r.URL.Path[len("/api/recordings/download/"):]
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	// Validate filename (prevent path traversal)
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	if strings.ToLower(filepath.Ext(filename)) != ".csv" {
		http.Error(w, "File type not supported", http.StatusForbidden)
		return
	}

	filePath := filepath.Join(s.cfg.Output.Directory, filename)
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error accessing file", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))

	file, err := os.Open(filePath)
	if err != nil {
		http.Error(w, "Error opening file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		slog.Error("Error serving recording download", "file", filename, "error", err)
	}
}

// handleRecordingMeta returns the session sidecar of a recording
func (s *Server) handleRecordingMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filename := r.URL.Path[len("/api/recordings/meta/"):]
	if filename == "" || strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	meta, err := s.service.GetRecordingMeta(filename)
	if err != nil {
		s.sendErrorResponse(w, http.StatusNotFound,
			fmt.Sprintf("Failed to read recording metadata: %v", err),
			"file", filename)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

// handleFeed streams buffered samples over a websocket while a session is
// streaming. Each frame carries the newest samples since the previous frame.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	slog.Info("Feed client connected", "remote", r.RemoteAddr)

	// The client never sends data frames, but reading is what notices close
	// frames and dropped peers. The pump closes done on the first read error.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// One frame per interval, sized to the board rate
	interval := 100 * time.Millisecond
	window := s.cfg.Board.SampleRate / 10
	if window <= 0 {
		window = 25
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			slog.Info("Feed client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
		}

		matrix, err := s.service.CurrentData(window)
		if err != nil {
			// No session yet; ping so a dead peer is still detected
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Info("Feed client disconnected", "remote", r.RemoteAddr, "error", err)
				return
			}
			continue
		}

		frame := feedFrame{
			Timestamp: float64(time.Now().UnixNano()) / 1e9,
			Rows:      len(matrix),
			Data:      matrix,
		}
		if len(matrix) > 0 {
			frame.Samples = len(matrix[0])
		}

		conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			slog.Info("Feed client disconnected", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	profiles := s.getAvailableProfiles()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"profiles": profiles,
		"active":   s.activeProfile,
	})
}

// handleSelectProfile switches the active configuration profile
func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "operation", "select_profile")
		return
	}

	// A streaming session holds the previous board; refuse the switch
	if status, _ := s.service.GetSessionStatus(); status == board.StatusStreaming {
		s.sendErrorResponse(w, http.StatusConflict,
			"Cannot switch profile while streaming",
			"profile", profile, "operation", "select_profile")
		return
	}

	if err := s.service.LoadProfile(profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to load profile '%s': %v", profile, err),
			"profile", profile, "operation", "select_profile")
		return
	}

	if err := config.UpdateActiveConfig(s.configFile, profile); err != nil {
		slog.Warn("Failed to persist active profile", "profile", profile, "error", err)
	}

	s.cfg = s.service.GetConfig()
	s.activeProfile = profile

	s.sendSuccessResponse(w, fmt.Sprintf("Profile '%s' selected", profile))
}

// getResolvedConfigInfo builds configuration information for the UI
func (s *Server) getResolvedConfigInfo() *ResolvedConfigInfo {
	boardInheritance := "profile-specific"
	if s.cfg.Inheritance != nil && s.cfg.Inheritance.Board.Selection == "inherited" {
		boardInheritance = "inherited"
	}

	info := &ResolvedConfigInfo{
		ActiveProfile: s.activeProfile,
		Board: BoardInfo{
			Ref:         s.cfg.Board.Ref,
			Name:        s.cfg.Board.Name,
			Type:        s.cfg.Board.Type,
			Port:        s.cfg.Board.Port,
			Gain:        s.cfg.Board.Gain,
			Inheritance: boardInheritance,
		},
		Stream: StreamInfo{
			DurationSeconds: s.cfg.Stream.DurationSeconds,
			BufferSamples:   s.cfg.Stream.BufferSamples,
		},
		Filters: FilterInfo{
			DCOffset: s.cfg.Filters.DCOffset,
		},
		OutputDir: s.cfg.Output.Directory,
		Format:    s.cfg.Output.Format,
	}

	if b := s.cfg.Filters.Bandpass; b != nil {
		info.Filters.Bandpass = fmt.Sprintf("%.1f-%.1f Hz", b.Low, b.High)
	}
	if n := s.cfg.Filters.Notch; n != nil {
		info.Filters.Notch = fmt.Sprintf("%.1f-%.1f Hz", n.Low, n.High)
	}

	return info
}

// getAvailableProfiles reads the profile names from the config file
func (s *Server) getAvailableProfiles() []string {
	rootConfig, err := config.ValidateConfigurationFormat(s.configFile)
	if err != nil {
		slog.Warn("Failed to read profiles from config file", "error", err)
		return nil
	}

	profiles := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles
}

// getActiveProfileName returns the active profile name from config file
func getActiveProfileName(configFile string) string {
	if configFile == "" {
		return "default"
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return "default"
	}

	if active := v.GetString("active_config"); active != "" {
		return active
	}
	return "default"
}

// sendSuccessResponse sends a generic JSON success response
func (s *Server) sendSuccessResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GenericResponse{Success: true, Message: message})
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	// Send JSON error response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
