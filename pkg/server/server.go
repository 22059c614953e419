// Package server exposes the local control surface: settings messages,
// the scheduled alarm list, manual sync and a websocket feed of fired alarms.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/lookcw/Google-Meet-Autocall/pkg/reconcile"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds control message payloads
const maxBodyBytes = 1 << 16

// Engine is the reconciliation engine driven by the control surface
type Engine interface {
	HandleMessage(ctx context.Context, msg models.ControlMessage) error
	Reconcile(ctx context.Context) (reconcile.PassResult, error)
	JoinURL(name string) (string, bool)
}

// AlarmLister enumerates scheduled alarms
type AlarmLister interface {
	GetAll(ctx context.Context) ([]models.ScheduledAlarm, error)
}

// SettingsReader reads the current reminder settings
type SettingsReader interface {
	Load() models.Settings
}

// AlarmView is one pending meeting alarm as listed by GET /alarms
type AlarmView struct {
	Name   string    `json:"name"`
	URL    string    `json:"url"`
	FireAt time.Time `json:"fireAt"`
}

// Server routes control requests to the engine
type Server struct {
	engine   Engine
	alarms   AlarmLister
	settings SettingsReader
	hub      *Hub
	router   *httprouter.Router
	logger   zerolog.Logger
}

// New creates a Server and its route table
func New(engine Engine, alarms AlarmLister, settings SettingsReader, hub *Hub, logger zerolog.Logger) *Server {
	s := &Server{
		engine:   engine,
		alarms:   alarms,
		settings: settings,
		hub:      hub,
		router:   httprouter.New(),
		logger:   logger.With().Str("component", "server").Logger(),
	}
	s.setupHandlers()
	return s
}

func (s *Server) setupHandlers() {
	s.router.GET("/settings", s.getSettings)
	s.router.POST("/messages", s.postMessage)
	s.router.GET("/alarms", s.getAlarms)
	s.router.POST("/sync", s.postSync)
	s.router.GET("/ws", s.hub.ServeWS)
}

// Handler returns the HTTP handler of the control surface
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("control server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.settings.Load())
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var msg models.ControlMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.HandleMessage(r.Context(), msg); err != nil {
		// the setting is stored even when the rebuild failed
		s.logger.Warn().Err(err).Str("type", msg.Type).Msg("rebuild after settings change failed")
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Load())
}

func (s *Server) getAlarms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	alarms, err := s.alarms.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := []AlarmView{}
	for _, alarm := range alarms {
		joinURL, ok := s.engine.JoinURL(alarm.Name)
		if !ok || alarm.Fired() {
			continue
		}
		views = append(views, AlarmView{Name: alarm.Name, URL: joinURL, FireAt: alarm.FireAt})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].FireAt.Before(views[j].FireAt) })
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) postSync(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	result, err := s.engine.Reconcile(r.Context())
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, reconcile.ErrFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
