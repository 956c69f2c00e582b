package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	apiJSON(w, map[string]string{"error": msg}, code)
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// infeasibleResponse is the 422 body for a rejected scheduling request.
type infeasibleResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason"`
	Kind          string `json:"kind,omitempty"`
	SuggestedTime string `json:"suggested_time,omitempty"`
}

// apiFail maps engine errors to status codes.
func apiFail(w http.ResponseWriter, action string, err error) {
	var infeasible *viewing.InfeasibleError
	switch {
	case errors.As(err, &infeasible):
		apiJSON(w, infeasibleResponse{
			Error:         infeasible.Error(),
			Reason:        infeasible.Reason,
			Kind:          string(infeasible.Kind),
			SuggestedTime: infeasible.SuggestedTime,
		}, http.StatusUnprocessableEntity)
	case errors.Is(err, db.ErrNotFound):
		apiError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, viewing.ErrInvalidTransition):
		apiError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, viewing.ErrNoAlternative):
		apiError(w, viewing.ErrNoAlternative.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, viewing.ErrInvalidTime):
		apiError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("api request failed", "action", action, "error", err)
		apiError(w, fmt.Sprintf("%s: %v", action, err), http.StatusInternalServerError)
	}
}

// pathID parses the {id} route variable. Routes constrain it to digits.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// queryID parses an optional numeric query parameter; 0 when absent.
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// apiListProperties returns properties, optionally for one agent.
func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	agentID, err := queryID(r, "agent_id")
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	props, err := s.propRepo.List(property.ListOptions{AgentID: agentID})
	if err != nil {
		apiFail(w, "listing properties", err)
		return
	}
	if props == nil {
		props = make([]*property.Property, 0)
	}
	apiJSON(w, props, http.StatusOK)
}

// apiAddProperty adds a property, geocoding its postcode when needed.
func (s *Server) apiAddProperty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Postcode string `json:"postcode"`
		AgentID  int64  `json:"agent_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Postcode) == "" {
		apiError(w, "name and postcode are required", http.StatusBadRequest)
		return
	}
	if _, err := s.agents.GetByID(req.AgentID); err != nil {
		apiFail(w, "loading agent", err)
		return
	}

	p, err := s.propService.Add(r.Context(), req.Name, req.Postcode, req.AgentID)
	if err != nil {
		apiFail(w, "adding property", err)
		return
	}
	apiJSON(w, p, http.StatusCreated)
}

// apiGetProperty returns a single property with its cluster.
func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.propRepo.GetByID(pathID(r))
	if err != nil {
		apiFail(w, "loading property", err)
		return
	}

	type response struct {
		*property.Property
		Cluster string `json:"cluster"`
	}
	apiJSON(w, response{Property: p, Cluster: string(p.Cluster())}, http.StatusOK)
}

// apiAvailableSlots lists the bookable slots for a property.
func (s *Server) apiAvailableSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.manager.AvailableSlots(pathID(r))
	if err != nil {
		apiFail(w, "listing slots", err)
		return
	}
	if slots == nil {
		slots = make([]viewing.AvailableSlot, 0)
	}
	apiJSON(w, slots, http.StatusOK)
}

// apiFindAlternative returns the requested time or the first alternative.
func (s *Server) apiFindAlternative(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	at := q.Get("time")
	if at == "" {
		apiError(w, "time is required (HH:MM)", http.StatusBadRequest)
		return
	}
	sameCluster := false
	if v := q.Get("same_cluster"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apiError(w, "same_cluster must be true or false", http.StatusBadRequest)
			return
		}
		sameCluster = b
	}

	slot, err := s.manager.FindAlternative(pathID(r), at, sameCluster)
	if err != nil {
		apiFail(w, "finding alternative", err)
		return
	}
	apiJSON(w, slot, http.StatusOK)
}

// apiCheckFeasibility evaluates a (property, time) pair without booking.
func (s *Server) apiCheckFeasibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PropertyID int64  `json:"property_id"`
		Time       string `json:"time"`
	}
	if !decode(w, r, &req) {
		return
	}

	v, err := s.manager.Check(req.PropertyID, req.Time)
	if err != nil {
		apiFail(w, "checking feasibility", err)
		return
	}

	type response struct {
		Feasible      bool   `json:"feasible"`
		Reason        string `json:"reason,omitempty"`
		Kind          string `json:"kind,omitempty"`
		SuggestedTime string `json:"suggested_time,omitempty"`
	}
	apiJSON(w, response{Feasible: v.Feasible, Reason: v.Reason, Kind: string(v.Kind), SuggestedTime: v.Suggested()}, http.StatusOK)
}

// apiListAgents returns all agents.
func (s *Server) apiListAgents(w http.ResponseWriter, _ *http.Request) {
	agents, err := s.agents.List()
	if err != nil {
		apiFail(w, "listing agents", err)
		return
	}
	apiJSON(w, nonNil(agents), http.StatusOK)
}

// apiAgentCalendar returns an agent's confirmed viewings in time order.
func (s *Server) apiAgentCalendar(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.agents.GetByID(id); err != nil {
		apiFail(w, "loading agent", err)
		return
	}

	cal, err := s.manager.Calendar(id)
	if err != nil {
		apiFail(w, "loading calendar", err)
		return
	}
	apiJSON(w, nonNil(cal), http.StatusOK)
}

// apiListTenants returns all tenants.
func (s *Server) apiListTenants(w http.ResponseWriter, _ *http.Request) {
	tenants, err := s.tenants.List()
	if err != nil {
		apiFail(w, "listing tenants", err)
		return
	}
	apiJSON(w, nonNil(tenants), http.StatusOK)
}

// apiAddTenant registers a tenant.
func (s *Server) apiAddTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.Tenant
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apiError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.TravelTolerance != nil && *req.TravelTolerance < 0 {
		apiError(w, "travel_tolerance must not be negative", http.StatusBadRequest)
		return
	}

	t, err := s.tenants.Create(&req)
	if err != nil {
		apiFail(w, "adding tenant", err)
		return
	}
	apiJSON(w, t, http.StatusCreated)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return make([]T, 0)
	}
	return items
}
