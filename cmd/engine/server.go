package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hireflow-engine/internal/config"
	"hireflow-engine/internal/controller"
	"hireflow-engine/internal/domain"
	"hireflow-engine/internal/events"
	"hireflow-engine/internal/secrets"
	"hireflow-engine/internal/store"
)

type server struct {
	ctx     context.Context
	db      *store.DB
	ctrl    *controller.Controller
	hub     *events.Hub
	box     *secrets.Box
	cfgPath string
	log     *zap.Logger

	mu  sync.Mutex
	cfg config.Config
}

func newServer(ctx context.Context, db *store.DB, ctrl *controller.Controller, hub *events.Hub, box *secrets.Box, cfgPath string, cfg config.Config, log *zap.Logger) http.Handler {
	s := &server{
		ctx:     ctx,
		db:      db,
		ctrl:    ctrl,
		hub:     hub,
		box:     box,
		cfgPath: cfgPath,
		cfg:     cfg,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/accounts", s.handleAccounts)
	mux.HandleFunc("/accounts/", s.handleAccountByID)
	mux.HandleFunc("/automation/start", s.handleStart)
	mux.HandleFunc("/automation/stop", s.handleStop)
	mux.HandleFunc("/automation/settings", s.handleSettings)
	return cors(mux)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	apps, err := s.db.CountApplications(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, map[string]any{
		"state":           st.State,
		"active_accounts": st.ActiveAccounts,
		"empty_cycles":    st.EmptyCycles,
		"applications":    apps,
		"subscribers":     s.hub.Subscribers(),
	})
}

// handleEvents streams pipeline events over SSE.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // safe for localhost UI

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", 500)
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	// initial ping
	fmt.Fprintf(w, "event: ping\ndata: %s\n\n", `{"type":"ping"}`)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

type accountView struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	AutomationEnabled bool   `json:"automation_enabled"`
	Active            bool   `json:"active"`
	LastChecked       string `json:"last_checked,omitempty"`
	TotalProcessed    int64  `json:"total_processed"`
	TotalImported     int64  `json:"total_imported"`
	LastError         string `json:"last_error,omitempty"`
}

func viewOf(a domain.MailAccount) accountView {
	v := accountView{
		ID:                a.ID,
		Name:              a.Name,
		Provider:          a.Provider,
		Host:              a.Host,
		Port:              a.Port,
		Username:          a.Username,
		AutomationEnabled: a.AutomationEnabled,
		Active:            a.Active,
		TotalProcessed:    a.TotalProcessed,
		TotalImported:     a.TotalImported,
		LastError:         a.LastError,
	}
	if !a.LastChecked.IsZero() {
		v.LastChecked = a.LastChecked.Format(time.RFC3339)
	}
	return v
}

func (s *server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := s.db.ListAccounts(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		out := make([]accountView, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, viewOf(a))
		}
		writeJSON(w, out)

	case http.MethodPost:
		var req struct {
			Name              string `json:"name"`
			Provider          string `json:"provider"`
			Host              string `json:"host"`
			Port              int    `json:"port"`
			Username          string `json:"username"`
			Password          string `json:"password"`
			AutomationEnabled bool   `json:"automation_enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), 400)
			return
		}
		if req.Host == "" || req.Username == "" || req.Password == "" {
			http.Error(w, "host, username and password are required", 400)
			return
		}
		sealed, err := s.box.Encrypt(req.Password)
		if err != nil {
			http.Error(w, "password encryption failed", 500)
			return
		}
		acct := domain.MailAccount{
			Name:              req.Name,
			Provider:          req.Provider,
			Host:              req.Host,
			Port:              req.Port,
			Username:          req.Username,
			EncryptedPassword: sealed,
			AutomationEnabled: req.AutomationEnabled,
			Active:            true,
		}
		id, err := s.db.CreateAccount(r.Context(), acct)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		acct.ID = id
		s.log.Info("account created", zap.String("account_id", id), zap.String("name", acct.Name))
		// the monitor tick picks a newly eligible account up on its own
		writeJSON(w, viewOf(acct))

	default:
		http.Error(w, "GET or POST only", 405)
	}
}

func (s *server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/accounts/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", 404)
		return
	}
	switch r.Method {
	case http.MethodGet:
		acct, err := s.db.GetAccount(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if acct == nil {
			http.Error(w, "not found", 404)
			return
		}
		writeJSON(w, viewOf(*acct))

	case http.MethodPut:
		var req struct {
			AutomationEnabled *bool `json:"automation_enabled"`
			Active            *bool `json:"active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), 400)
			return
		}
		acct, err := s.db.GetAccount(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if acct == nil {
			http.Error(w, "not found", 404)
			return
		}
		enabled, active := acct.AutomationEnabled, acct.Active
		if req.AutomationEnabled != nil {
			enabled = *req.AutomationEnabled
		}
		if req.Active != nil {
			active = *req.Active
		}
		if err := s.db.UpdateAccountFlags(r.Context(), id, enabled, active); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		acct.AutomationEnabled, acct.Active = enabled, active
		s.log.Info("account flags updated",
			zap.String("account_id", id),
			zap.Bool("automation_enabled", enabled),
			zap.Bool("active", active),
		)
		writeJSON(w, viewOf(*acct))

	case http.MethodDelete:
		if err := s.db.DeleteAccount(r.Context(), id); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		s.log.Info("account deleted", zap.String("account_id", id))
		writeJSON(w, map[string]any{"deleted": id})

	default:
		http.Error(w, "GET, PUT or DELETE only", 405)
	}
}

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", 405)
		return
	}
	if err := s.ctrl.Start(s.ctx); err != nil {
		http.Error(w, err.Error(), 409)
		return
	}
	writeJSON(w, map[string]any{"state": s.ctrl.Status().State})
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", 405)
		return
	}
	if r.URL.Query().Get("force") == "1" {
		s.ctrl.ForceStop()
	} else {
		s.ctrl.Stop()
	}
	writeJSON(w, map[string]any{"state": s.ctrl.Status().State})
}

// handleSettings hot-updates the automation cadence. Changed intervals
// restart the running timer; the new config is persisted atomically.
func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		auto := s.cfg.Automation
		s.mu.Unlock()
		writeJSON(w, settingsView(auto))

	case http.MethodPut:
		var req struct {
			CheckIntervalMinutes      *int `json:"check_interval_minutes"`
			BatchSize                 *int `json:"batch_size"`
			BatchDelaySeconds         *int `json:"batch_delay_seconds"`
			MaxEmailsPerCheck         *int `json:"max_emails_per_check"`
			MaxConsecutiveEmptyChecks *int `json:"max_consecutive_empty_checks"`
			MonitorIntervalMinutes    *int `json:"monitor_interval_minutes"`
			MessageTimeoutSeconds     *int `json:"message_timeout_seconds"`
			LookbackDays              *int `json:"lookback_days"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), 400)
			return
		}

		s.mu.Lock()
		next := s.cfg
		apply(&next.Automation.CheckIntervalMinutes, req.CheckIntervalMinutes)
		apply(&next.Automation.BatchSize, req.BatchSize)
		apply(&next.Automation.BatchDelaySeconds, req.BatchDelaySeconds)
		apply(&next.Automation.MaxEmailsPerCheck, req.MaxEmailsPerCheck)
		apply(&next.Automation.MaxConsecutiveEmptyChecks, req.MaxConsecutiveEmptyChecks)
		apply(&next.Automation.MonitorIntervalMinutes, req.MonitorIntervalMinutes)
		apply(&next.Automation.MessageTimeoutSeconds, req.MessageTimeoutSeconds)
		apply(&next.Automation.LookbackDays, req.LookbackDays)

		next, report := config.NormalizeAndValidate(next)
		if !report.OK() {
			s.mu.Unlock()
			http.Error(w, strings.Join(report.Errors, "; "), 400)
			return
		}
		if err := config.SaveAtomic(s.cfgPath, next); err != nil {
			s.mu.Unlock()
			http.Error(w, "config save failed: "+err.Error(), 500)
			return
		}
		s.cfg = next
		s.mu.Unlock()

		s.ctrl.UpdateSettings(controller.SettingsFromConfig(next))
		s.log.Info("automation settings updated")
		writeJSON(w, settingsView(next.Automation))

	default:
		http.Error(w, "GET or PUT only", 405)
	}
}

func settingsView(a config.Automation) map[string]any {
	return map[string]any{
		"enabled":                      a.Enabled,
		"check_interval_minutes":       a.CheckIntervalMinutes,
		"batch_size":                   a.BatchSize,
		"batch_delay_seconds":          a.BatchDelaySeconds,
		"max_emails_per_check":         a.MaxEmailsPerCheck,
		"max_consecutive_empty_checks": a.MaxConsecutiveEmptyChecks,
		"monitor_interval_minutes":     a.MonitorIntervalMinutes,
		"message_timeout_seconds":      a.MessageTimeoutSeconds,
		"lookback_days":                a.LookbackDays,
	}
}

func apply(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
