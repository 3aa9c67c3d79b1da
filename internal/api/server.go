package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/netspec/alertbatch/internal/alerter"
	"github.com/netspec/alertbatch/internal/config"
	"github.com/netspec/alertbatch/internal/types"
	"github.com/netspec/alertbatch/internal/webui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// AlertSubscriber is the part of the alert subscriber the API drives
type AlertSubscriber interface {
	Report(alert types.Alert)
	Pending() map[types.AlertType]int
	LastCycle() alerter.CycleResult
	Trigger() bool
}

// RecoveryRecorder records alert recoveries reported by producers
type RecoveryRecorder interface {
	MarkRecovered(ctx context.Context, key string, at time.Time) error
}

// ConfigReloadFunc is called when policy reload is requested
type ConfigReloadFunc func() (*config.PolicyConfig, error)

// Server provides HTTP API endpoints and the status page
type Server struct {
	subscriber AlertSubscriber
	recoveries RecoveryRecorder
	logger     zerolog.Logger
	port       string
	logBuffer  *webui.LogBuffer
	startTime  time.Time
	interval   time.Duration
	reloadFunc ConfigReloadFunc
	version    string
	commit     string
	buildDate  string
	versionMu  sync.RWMutex
}

// NewServer creates a new API server
func NewServer(subscriber AlertSubscriber, recoveries RecoveryRecorder, logger zerolog.Logger, port string) *Server {
	return &Server{
		subscriber: subscriber,
		recoveries: recoveries,
		logger:     logger.With().Str("component", "api").Logger(),
		port:       port,
		startTime:  time.Now(),
	}
}

// SetLogBuffer sets the log buffer for the status page
func (s *Server) SetLogBuffer(lb *webui.LogBuffer) {
	s.logBuffer = lb
}

// SetInterval sets the flush interval shown on the status page
func (s *Server) SetInterval(d time.Duration) {
	s.interval = d
}

// SetReloadFunc sets the function to call when policy reload is requested
func (s *Server) SetReloadFunc(fn ConfigReloadFunc) {
	s.reloadFunc = fn
}

// SetVersion sets the version information
func (s *Server) SetVersion(version, commit, buildDate string) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.version = version
	s.commit = commit
	s.buildDate = buildDate
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Ingestion
	mux.HandleFunc("/api/v1/alerts", s.handleReport)
	mux.HandleFunc("/api/v1/recoveries", s.handleRecoveries)
	mux.HandleFunc("/api/v1/flush", s.handleFlush)

	// Operations
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/logs", s.handleLogsAPI)
	mux.HandleFunc("/api/reload", s.handleReload)
	mux.Handle("/metrics", promhttp.Handler())

	// Status page
	mux.HandleFunc("/", s.handleWebUI)

	return mux
}

// Start serves the API until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := ":" + s.port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}()

	s.logger.Info().
		Str("address", addr).
		Msg("Starting API server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// alertRequest is one alert in a report request
type alertRequest struct {
	Type     string            `json:"type"`
	Device   string            `json:"device"`
	Entity   string            `json:"entity"`
	Severity string            `json:"severity"`
	Message  string            `json:"message"`
	Labels   map[string]string `json:"labels"`
	FiredAt  time.Time         `json:"fired_at"`
}

// recoveryRequest is one recovery in a recoveries request
type recoveryRequest struct {
	Type        string    `json:"type"`
	Device      string    `json:"device"`
	Entity      string    `json:"entity"`
	RecoveredAt time.Time `json:"recovered_at"`
}

// handleReport accepts one alert or an array of alerts
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqs []alertRequest
	if err := decodeOneOrMany(r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for i, req := range reqs {
		if req.Type == "" || req.Device == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("alert %d: type and device are required", i))
			return
		}
	}

	for _, req := range reqs {
		s.subscriber.Report(types.Alert{
			Type:     types.AlertType(req.Type),
			Device:   req.Device,
			Entity:   req.Entity,
			Severity: req.Severity,
			Message:  req.Message,
			Labels:   req.Labels,
			FiredAt:  req.FiredAt,
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": len(reqs),
	})
}

// handleRecoveries records recoveries so pending alerts are dropped at flush
func (s *Server) handleRecoveries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqs []recoveryRequest
	if err := decodeOneOrMany(r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	for i, req := range reqs {
		if req.Type == "" || req.Device == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("recovery %d: type and device are required", i))
			return
		}
		key := types.Key(types.AlertType(req.Type), req.Device, req.Entity)
		if err := s.recoveries.MarkRecovered(r.Context(), key, req.RecoveredAt); err != nil {
			s.logger.Error().Err(err).Str("alert_key", key).Msg("Failed to record recovery")
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"recorded": len(reqs),
	})
}

// handleFlush requests an immediate flush cycle
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	triggered := s.subscriber.Trigger()
	s.logger.Info().Bool("triggered", triggered).Msg("Flush requested via API")

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"triggered": triggered,
	})
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns pending alerts and the last flush cycle
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pending := s.subscriber.Pending()

	s.versionMu.RLock()
	version := s.version
	commit := s.commit
	buildDate := s.buildDate
	s.versionMu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending":       pending,
		"pending_total": total(pending),
		"last_cycle":    s.subscriber.LastCycle(),
		"interval":      s.interval.String(),
		"time":          time.Now().UTC().Format(time.RFC3339),
		"uptime":        time.Since(s.startTime).String(),
		"version":       version,
		"commit":        commit,
		"build_date":    buildDate,
	})
}

// handleLogsAPI returns recent log entries as JSON
func (s *Server) handleLogsAPI(w http.ResponseWriter, r *http.Request) {
	var entries []webui.LogEntry
	if s.logBuffer != nil {
		entries = s.logBuffer.GetRecentEntries(200)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleReload handles policy reload requests
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.reloadFunc == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"error":   "Config reload not configured",
		})
		return
	}

	s.logger.Info().Msg("Policy reload requested via API")

	policies, err := s.reloadFunc()
	if err != nil {
		s.logger.Error().Err(err).Msg("Policy reload failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"routes":  len(policies.Routes),
	})
}

// PageData holds all data for the status page template
type PageData struct {
	Version      string
	Uptime       string
	Interval     string
	Pending      map[types.AlertType]int
	PendingTotal int
	LastCycle    alerter.CycleResult
	Logs         []webui.LogEntry
}

// handleWebUI renders the status page
func (s *Server) handleWebUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.versionMu.RLock()
	version := s.version
	s.versionMu.RUnlock()

	pending := s.subscriber.Pending()
	data := PageData{
		Version:      version,
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		Interval:     s.interval.String(),
		Pending:      pending,
		PendingTotal: total(pending),
		LastCycle:    s.subscriber.LastCycle(),
	}
	if s.logBuffer != nil {
		data.Logs = s.logBuffer.GetRecentEntries(50)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := webui.Templates.ExecuteTemplate(w, "status", data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render status page")
	}
}

// decodeOneOrMany decodes either a JSON object or an array of objects into out.
func decodeOneOrMany[T any](r *http.Request, out *[]T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if err := json.Unmarshal(body, out); err == nil {
		if len(*out) == 0 {
			return errors.New("empty request")
		}
		return nil
	}

	var one T
	if err := json.Unmarshal(body, &one); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	*out = []T{one}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func total(pending map[types.AlertType]int) int {
	n := 0
	for _, c := range pending {
		n += c
	}
	return n
}
