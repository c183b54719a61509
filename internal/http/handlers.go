package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/roadside-dispatch/internal/coordinator"
	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/geo"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/money"
	"github.com/example/roadside-dispatch/internal/notify"
	"github.com/example/roadside-dispatch/internal/observability"
	"github.com/example/roadside-dispatch/internal/settlement"
	"github.com/example/roadside-dispatch/internal/store"
)

type Server struct {
	Coord      *coordinator.Coordinator
	Geo        geo.Index
	WSReg      *notify.WSRegistry
	Locations  func(models.Provider) // optional hook forwarding to kafka
	ProviderID string                // observer identity for this agent

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(coord *coordinator.Coordinator, gidx geo.Index, wsreg *notify.WSRegistry, providerID string, logger *slog.Logger) *Server {
	s := &Server{Coord: coord, Geo: gidx, WSReg: wsreg, ProviderID: providerID, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/emergencies", s.handleReport).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/visible", s.handleVisible).Methods("GET")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/offers", s.handleExpressInterest).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/complete", s.handleComplete).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/payment/confirm", s.handleConfirmPayment).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies/{id}/settlement", s.handleSettlement).Methods("GET")
	s.mux.HandleFunc("/api/v1/offers/{id}/hide", s.handleHideOffer).Methods("POST")
	s.mux.HandleFunc("/internal/provider/locations", s.handleProviderLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{session_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ReporterID      string       `json:"reporter_id"`
		VehicleCategory string       `json:"vehicle_category"`
		Cause           string       `json:"cause"`
		Attachments     []string     `json:"attachments"`
		Loc             models.Coord `json:"loc"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.Coord.Report(r.Context(), coordinator.ReportInput{
		ReporterID:      in.ReporterID,
		VehicleCategory: in.VehicleCategory,
		Cause:           in.Cause,
		Attachments:     in.Attachments,
		Loc:             in.Loc,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleVisible(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Coord.Visible())
}

func (s *Server) handleExpressInterest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ProviderID string       `json:"provider_id"`
		Loc        models.Coord `json:"loc"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o, err := s.Coord.ExpressInterest(r.Context(), id, in.ProviderID, in.Loc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ProviderID    string       `json:"provider_id"`
		Loc           models.Coord `json:"loc"`
		LaborEstimate money.Amount `json:"labor_estimate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := s.Coord.Accept(r.Context(), id, in.ProviderID, in.Loc, in.LaborEstimate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ProviderID string             `json:"provider_id"`
		LaborCost  money.Amount       `json:"labor_cost"`
		Extras     []models.ExtraItem `json:"extras"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := s.Coord.Complete(r.Context(), id, in.ProviderID, settlement.Invoice{LaborCost: in.LaborCost, Extras: in.Extras})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ProviderID string `json:"provider_id"`
		Option     string `json:"option"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := s.Coord.CancelByProvider(r.Context(), id, in.ProviderID, settlement.CancelOption(in.Option), in.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, err := s.Coord.ConfirmPayment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := s.Coord.Settlement(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHideOffer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ProviderID string `json:"provider_id"`
		Hidden     bool   `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Coord.HideOffer(r.Context(), id, in.ProviderID, in.Hidden); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProviderLocation(w http.ResponseWriter, r *http.Request) {
	var p models.Provider
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.Online = true
	if s.Locations != nil {
		s.Locations(p)
	}
	if s.Geo != nil {
		s.Geo.Upsert(p)
	}
	if p.ID != "" && p.ID == s.ProviderID {
		s.Coord.SetObserverPosition(p.Loc)
	}
	observability.ProvidersOnline.Inc()
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["session_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)
}

// writeError maps the fault taxonomy onto status codes: malformed input
// 422, lost races 409, transient IO 503.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case faults.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case faults.IsConflict(err):
		status = http.StatusConflict
	case faults.IsTransient(err):
		status = http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		s.logger.Error("unhandled error", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
