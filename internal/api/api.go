// Package api is the thin command surface over the control loops and
// the auxiliary relays: get/set target, calibration, on/off mode, and
// manual relay triggers. It validates and delegates; the loops own the
// rules.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/poolhouse/poolhouse-controller/internal/command"
	"github.com/poolhouse/poolhouse-controller/internal/controlloop"
	"github.com/poolhouse/poolhouse-controller/internal/history"
	"github.com/poolhouse/poolhouse-controller/internal/relay"
	"github.com/poolhouse/poolhouse-controller/internal/scheduler"
)

// Loop is the slice of a control loop the API needs.
type Loop interface {
	Status() controlloop.Status
	SetTarget(v float64) error
	SetCalibration(v float64) error
	TurnOn()
	TurnOff()
}

// AmbientSource exposes the latest ambient reading.
type AmbientSource interface {
	Ambient() scheduler.AmbientReading
}

type Server struct {
	loops   map[string]Loop
	relays  *relay.Gateway
	db      *sql.DB
	ambient AmbientSource
	now     func() time.Time
}

func NewServer(loops map[string]Loop, relays *relay.Gateway, db *sql.DB, ambient AmbientSource) *Server {
	return &Server{
		loops:   loops,
		relays:  relays,
		db:      db,
		ambient: ambient,
		now:     time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/loops/{id}/target", s.setTarget).Methods(http.MethodPut)
	r.HandleFunc("/api/loops/{id}/calibration", s.setCalibration).Methods(http.MethodPut)
	r.HandleFunc("/api/loops/{id}/mode", s.setMode).Methods(http.MethodPut)
	r.HandleFunc("/api/relays/command", s.relayCommand).Methods(http.MethodPost)
	r.HandleFunc("/api/history/transitions", s.recentTransitions).Methods(http.MethodGet)
	return r
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting API server")
	return http.ListenAndServe(addr, s.Router())
}

type statusResponse struct {
	Loops   []controlloop.Status     `json:"loops"`
	Relays  map[int]bool             `json:"relays"`
	Ambient scheduler.AmbientReading `json:"ambient"`
}

type targetRequest struct {
	Target float64 `json:"target"`
}

type calibrationRequest struct {
	Calibration float64 `json:"calibration"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type relayCommandRequest struct {
	Command string `json:"command"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Relays: s.relays.Snapshot()}
	for _, l := range s.loops {
		resp.Loops = append(resp.Loops, l.Status())
	}
	if s.ambient != nil {
		resp.Ambient = s.ambient.Ambient()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loop(w http.ResponseWriter, r *http.Request) (Loop, bool) {
	id := mux.Vars(r)["id"]
	l, ok := s.loops[id]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown loop %q", id))
		return nil, false
	}
	return l, true
}

func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loop(w, r)
	if !ok {
		return
	}
	var req targetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := l.SetTarget(req.Target); err != nil {
		if errors.Is(err, controlloop.ErrOutOfRange) {
			s.writeError(w, http.StatusBadRequest, err.Error())
		} else {
			log.Error().Err(err).Msg("Failed to set target")
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) setCalibration(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loop(w, r)
	if !ok {
		return
	}
	var req calibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := l.SetCalibration(req.Calibration); err != nil {
		if errors.Is(err, controlloop.ErrOutOfRange) {
			s.writeError(w, http.StatusBadRequest, err.Error())
		} else {
			log.Error().Err(err).Msg("Failed to set calibration")
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusOK)
}

// setMode accepts "on" and "off". A request that does not apply in the
// loop's current state is a no-op success, per the loop contract.
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loop(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	switch req.Mode {
	case "on":
		l.TurnOn()
	case "off":
		l.TurnOff()
	default:
		s.writeError(w, http.StatusBadRequest, `mode must be "on" or "off"`)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) relayCommand(w http.ResponseWriter, r *http.Request) {
	var req relayCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	cmd, err := command.Parse(req.Command)
	if err != nil {
		log.Warn().Err(err).Str("command", req.Command).Msg("Rejected relay command")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := command.Apply(cmd, s.relays, s.now()); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) recentTransitions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if _, err := fmt.Sscanf(q, "%d", &limit); err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	transitions, err := history.RecentTransitions(s.db, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query transitions")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, transitions)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
