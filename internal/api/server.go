// Package api exposes the read-only status surface plus a few admin
// knobs over HTTP. The realtime data path never goes through here; this
// is for dashboards and operators.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cogsense/internal/alerts"
	"cogsense/internal/config"
	"cogsense/internal/metrics"
	"cogsense/internal/model"
	"cogsense/internal/session"
)

type Server struct {
	cfg     *config.Manager
	metrics *metrics.Store
	nudges  *alerts.Store
	manager *session.Manager
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status      string             `json:"status"`
	Time        string             `json:"time"`
	Version     string             `json:"version"`
	ConfigPath  string             `json:"config_path"`
	Uptime      string             `json:"uptime"`
	Sessions    int                `json:"sessions"`
	Ingest      ingestStatus       `json:"ingest"`
	API         apiStatus          `json:"api"`
	Calibration calibrationStatus  `json:"calibration"`
	Nudge       config.NudgeConfig `json:"nudge"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	TCPStream bool `json:"tcp_stream"`
	WebSocket bool `json:"websocket"`
	MQTT      bool `json:"mqtt"`
	Kafka     bool `json:"kafka"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type calibrationStatus struct {
	TargetSamples int    `json:"target_samples"`
	MinSamples    int    `json:"min_samples"`
	Timeout       string `json:"timeout"`
}

type sessionInfo struct {
	SessionID   string                  `json:"session_id"`
	Calibration model.CalibrationStatus `json:"calibration"`
	Summary     model.SessionSummary    `json:"summary"`
}

func Start(ctx context.Context, cfg *config.Manager, metricsStore *metrics.Store, nudgeStore *alerts.Store, manager *session.Manager, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		metrics: metricsStore,
		nudges:  nudgeStore,
		manager: manager,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/metrics", server.handleMetrics)
	mux.HandleFunc("/metrics/", server.handleMetrics)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/sessions", server.handleSessions)
	mux.HandleFunc("/sessions/", server.handleSessionOp)
	mux.HandleFunc("/config/nudge", server.handleNudgeConfig)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.HandleFunc("/admin/restart", server.handleRestart)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Uptime:     time.Since(s.manager.Started()).Round(time.Second).String(),
		Sessions:   len(s.manager.Sessions()),
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			WebSocket: cfg.Ingest.WebSocket.Enabled,
			MQTT:      cfg.Ingest.MQTT.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
		},
		API: apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Calibration: calibrationStatus{
			TargetSamples: cfg.Calibration.TargetSamples,
			MinSamples:    cfg.Calibration.MinSamples,
			Timeout:       cfg.Calibration.Timeout.String(),
		},
		Nudge: cfg.Nudge,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/metrics")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		out, updated, ok := s.metrics.Get(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": path,
			"updated_at": updated.Format(time.RFC3339Nano),
			"output":     out,
		})
		return
	}
	all := s.metrics.GetAll()
	writeJSON(w, http.StatusOK, map[string]any{
		"outputs": all,
		"count":   len(all),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Nudge
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.nudges.Since(ts)
	} else {
		list = s.nudges.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nudges": list,
		"count":  len(list),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	now := time.Now().UTC()
	live := s.manager.Sessions()
	list := make([]sessionInfo, 0, len(live))
	for _, sess := range live {
		list = append(list, sessionInfo{
			SessionID:   sess.ID,
			Calibration: sess.CalibrationStatus(now),
			Summary:     sess.Summary(now),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": list,
		"count":    len(list),
	})
}

// handleSessionOp serves /sessions/{id}/recalibrate.
func (s *Server) handleSessionOp(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "recalibrate" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.manager.Recalibrate(parts[0], time.Now().UTC()) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleNudgeConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"nudge": s.cfg.Get().Nudge,
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var nc config.NudgeConfig
		if err := json.Unmarshal(body, &nc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := s.cfg.Get()
		next := *current
		next.Nudge = nc
		if err := s.cfg.Update(&next); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if s.manager != nil {
			s.manager.UpdateConfig(&next)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.metrics != nil {
			s.metrics.Clear()
		}
		if s.nudges != nil {
			s.nudges.Clear()
		}
	case "nudges", "alerts":
		if s.nudges != nil {
			s.nudges.Clear()
		}
	case "metrics":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.manager != nil {
		s.manager.Reset()
	}
	if s.metrics != nil {
		s.metrics.Clear()
	}
	if s.nudges != nil {
		s.nudges.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
