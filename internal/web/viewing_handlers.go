package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// apiListViewings returns viewings filtered by status, agent and tenant.
func (s *Server) apiListViewings(w http.ResponseWriter, r *http.Request) {
	opts := viewing.ListOptions{Status: viewing.Status(r.URL.Query().Get("status"))}
	if opts.Status != "" && !opts.Status.IsValid() {
		apiError(w, "status must be pending, suggested, confirmed or declined", http.StatusBadRequest)
		return
	}

	var err error
	if opts.AgentID, err = queryID(r, "agent_id"); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.TenantID, err = queryID(r, "tenant_id"); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	viewings, err := s.manager.List(opts)
	if err != nil {
		apiFail(w, "listing viewings", err)
		return
	}
	apiJSON(w, nonNil(viewings), http.StatusOK)
}

// apiRequestViewing books a pending viewing. Infeasible requests get 422
// with a reason and, when computable, a suggested time.
func (s *Server) apiRequestViewing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID   int64  `json:"tenant_id"`
		PropertyID int64  `json:"property_id"`
		Time       string `json:"time"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.TenantID <= 0 || req.PropertyID <= 0 || req.Time == "" {
		apiError(w, "tenant_id, property_id and time are required", http.StatusBadRequest)
		return
	}

	v, err := s.manager.Request(req.TenantID, req.PropertyID, req.Time)
	if err != nil {
		apiFail(w, "requesting viewing", err)
		return
	}
	apiJSON(w, v, http.StatusCreated)
}

// apiGetViewing returns a single viewing.
func (s *Server) apiGetViewing(w http.ResponseWriter, r *http.Request) {
	v, err := s.manager.Get(pathID(r))
	if err != nil {
		apiFail(w, "loading viewing", err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

// apiViewingFeasibility recomputes a viewing's feasibility label.
func (s *Server) apiViewingFeasibility(w http.ResponseWriter, r *http.Request) {
	a, err := s.manager.FeasibilityOf(pathID(r))
	if err != nil {
		apiFail(w, "assessing viewing", err)
		return
	}
	apiJSON(w, a, http.StatusOK)
}

// apiSuggest proposes an alternative time for a pending viewing.
func (s *Server) apiSuggest(w http.ResponseWriter, r *http.Request) {
	v, slot, err := s.manager.Suggest(pathID(r))
	if err != nil {
		apiFail(w, "suggesting alternative", err)
		return
	}

	type response struct {
		Viewing *viewing.Viewing `json:"viewing"`
		Slot    interface{}      `json:"slot"`
	}
	apiJSON(w, response{Viewing: v, Slot: slot}, http.StatusOK)
}

// apiTransition applies confirm, accept, decline or decline-suggestion.
func (s *Server) apiTransition(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	action := mux.Vars(r)["action"]

	var (
		v   *viewing.Viewing
		err error
	)
	switch action {
	case "confirm":
		v, err = s.manager.Confirm(id)
	case "accept":
		v, err = s.manager.AcceptSuggested(id)
	case "decline":
		v, err = s.manager.Decline(id)
	case "decline-suggestion":
		v, err = s.manager.DeclineSuggested(id)
	default:
		apiError(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		apiFail(w, action+" viewing", err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

// apiMetrics returns the reporting summary.
func (s *Server) apiMetrics(w http.ResponseWriter, _ *http.Request) {
	report, err := s.metrics.Report()
	if err != nil {
		apiFail(w, "building report", err)
		return
	}
	apiJSON(w, report, http.StatusOK)
}

// apiEvents returns recent lifecycle events, oldest first.
func (s *Server) apiEvents(w http.ResponseWriter, _ *http.Request) {
	apiJSON(w, s.history.Recent(), http.StatusOK)
}
