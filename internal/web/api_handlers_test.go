package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/evcraddock/viewing-scheduler/internal/agent"
	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

var testTravel = geotime.Fixed{
	Minutes: map[[2]string]int{
		{"W2 4DX", "W1D 4HT"}:  15,
		{"W2 4DX", "W11 2BQ"}:  10,
		{"W11 2BQ", "W1D 4HT"}: 20,
	},
	Default: 30,
}

type testEnv struct {
	srv     *Server
	history *notify.History

	agentID                       int64
	paddington, nottingHill, soho int64
	sarah, tom                    int64
}

// stubGeocoder resolves every postcode to the same point.
type stubGeocoder struct{}

func (stubGeocoder) Lookup(context.Context, string) (geotime.Coord, error) {
	return geotime.Coord{Lat: 51.5, Lon: -0.1}, nil
}

func testAPIServer(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	agents := agent.NewRepository(d)
	tenants := tenant.NewRepository(d)
	props := property.NewRepository(d)
	store := viewing.NewRepository(d)
	history := notify.NewHistory(10)

	checker := feasibility.NewChecker(feasibility.DefaultPolicy, testTravel, props)
	finder := reschedule.NewFinder(checker, geotime.DefaultGrid, reschedule.DefaultWindow, geotime.DefaultCoords())
	manager := viewing.NewManager(viewing.Deps{
		Store:      store,
		Properties: props,
		Tenants:    tenants,
		Checker:    checker,
		TenantRule: feasibility.NewTenantRule(feasibility.DefaultTenantPolicy, feasibility.DefaultPolicy, testTravel),
		Finder:     finder,
		Events:     historyPublisher{history},
	})

	env := &testEnv{
		history: history,
		srv: NewServer(Deps{
			Manager:     manager,
			Properties:  props,
			PropService: property.NewService(props, property.NewCoordRepository(d), stubGeocoder{}),
			Agents:      agents,
			Tenants:     tenants,
			Metrics:     metrics.NewService(store, props, testTravel, finder),
			History:     history,
		}),
	}

	a, err := agents.Create("Agent Alex", "alex@agency.test")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	env.agentID = a.ID

	for _, p := range []struct {
		id       *int64
		name     string
		postcode string
	}{
		{&env.paddington, "Modern Flat in Paddington", "W2 4DX"},
		{&env.nottingHill, "Notting Hill Mews", "W11 2BQ"},
		{&env.soho, "Soho Loft", "W1D 4HT"},
	} {
		saved, err := props.Insert(&property.Property{Name: p.name, Postcode: p.postcode, AgentID: a.ID})
		if err != nil {
			t.Fatalf("insert property: %v", err)
		}
		*p.id = saved.ID
	}

	for _, tn := range []struct {
		id   *int64
		name string
	}{{&env.sarah, "Sarah"}, {&env.tom, "Tom"}} {
		saved, err := tenants.Create(&tenant.Tenant{Name: tn.name})
		if err != nil {
			t.Fatalf("create tenant: %v", err)
		}
		*tn.id = saved.ID
	}

	return env
}

// historyPublisher records events synchronously so tests can read them.
type historyPublisher struct{ h *notify.History }

func (p historyPublisher) Publish(e notify.Event) error {
	p.h.Add(e)
	return nil
}

func apiRequest(t *testing.T, srv http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	reqBody := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (env *testEnv) request(t *testing.T, tenantID, propertyID int64, at string) *viewing.Viewing {
	t.Helper()
	w := apiRequest(t, env.srv, "POST", "/api/viewings", map[string]interface{}{
		"tenant_id": tenantID, "property_id": propertyID, "time": at,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("request viewing: status = %d, body = %s", w.Code, w.Body.String())
	}
	var v viewing.Viewing
	decodeBody(t, w, &v)
	return &v
}

func (env *testEnv) post(t *testing.T, id int64, action string, want int) *httptest.ResponseRecorder {
	t.Helper()
	w := apiRequest(t, env.srv, "POST", fmt.Sprintf("/api/viewings/%d/%s", id, action), nil)
	if w.Code != want {
		t.Fatalf("%s: status = %d, want %d, body = %s", action, w.Code, want, w.Body.String())
	}
	return w
}

func TestHealth(t *testing.T) {
	env := testAPIServer(t)

	w := apiRequest(t, env.srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPIListAndGetProperties(t *testing.T) {
	env := testAPIServer(t)

	w := apiRequest(t, env.srv, "GET", "/api/properties", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var props []*property.Property
	decodeBody(t, w, &props)
	if len(props) != 3 {
		t.Errorf("got %d properties, want 3", len(props))
	}

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/properties/%d", env.soho), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got struct {
		Postcode string `json:"postcode"`
		Cluster  string `json:"cluster"`
	}
	decodeBody(t, w, &got)
	if got.Postcode != "W1D 4HT" || got.Cluster != string(geotime.West) {
		t.Errorf("got %+v", got)
	}

	w = apiRequest(t, env.srv, "GET", "/api/properties/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing property: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = apiRequest(t, env.srv, "GET", "/api/properties?agent_id=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad agent_id: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIAddProperty(t *testing.T) {
	env := testAPIServer(t)

	w := apiRequest(t, env.srv, "POST", "/api/properties", map[string]interface{}{
		"name": "Islington Terrace", "postcode": "n1 9gu", "agent_id": env.agentID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var p property.Property
	decodeBody(t, w, &p)
	if p.Postcode != "N1 9GU" {
		t.Errorf("postcode = %q, want normalised", p.Postcode)
	}

	w = apiRequest(t, env.srv, "POST", "/api/properties", map[string]interface{}{
		"name": "Nowhere", "postcode": "N1 9GU", "agent_id": 9999,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown agent: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = apiRequest(t, env.srv, "POST", "/api/properties", map[string]interface{}{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIViewingLifecycle(t *testing.T) {
	env := testAPIServer(t)

	v := env.request(t, env.sarah, env.paddington, "10:00")
	if v.Status != viewing.StatusPending {
		t.Fatalf("status = %q, want pending", v.Status)
	}

	w := env.post(t, v.ID, "confirm", http.StatusOK)
	var confirmed viewing.Viewing
	decodeBody(t, w, &confirmed)
	if confirmed.ConfirmedTime != "10:00" {
		t.Errorf("confirmed_time = %q, want 10:00", confirmed.ConfirmedTime)
	}

	env.post(t, v.ID, "confirm", http.StatusConflict)
	env.post(t, v.ID, "accept", http.StatusConflict)

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/agents/%d/calendar", env.agentID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("calendar: status = %d", w.Code)
	}
	var cal []*viewing.Viewing
	decodeBody(t, w, &cal)
	if len(cal) != 1 || cal[0].ID != v.ID {
		t.Errorf("calendar = %+v", cal)
	}

	events := env.history.Recent()
	if len(events) != 2 || events[1].Type != notify.EventConfirmed {
		t.Errorf("events = %+v", events)
	}
}

func TestAPISuggestAcceptAndDecline(t *testing.T) {
	env := testAPIServer(t)

	v := env.request(t, env.sarah, env.paddington, "10:00")
	w := env.post(t, v.ID, "suggest", http.StatusOK)
	var suggested struct {
		Viewing viewing.Viewing `json:"viewing"`
		Slot    reschedule.Slot `json:"slot"`
	}
	decodeBody(t, w, &suggested)
	if suggested.Viewing.Status != viewing.StatusSuggested || suggested.Slot.Time != "10:30" {
		t.Fatalf("suggest = %+v", suggested)
	}

	w = env.post(t, v.ID, "accept", http.StatusOK)
	var accepted viewing.Viewing
	decodeBody(t, w, &accepted)
	if accepted.ConfirmedTime != "10:30" {
		t.Errorf("confirmed_time = %q, want 10:30", accepted.ConfirmedTime)
	}

	other := env.request(t, env.tom, env.paddington, "14:00")
	env.post(t, other.ID, "decline-suggestion", http.StatusConflict)
	env.post(t, other.ID, "decline", http.StatusOK)
	env.post(t, other.ID, "confirm", http.StatusConflict)

	env.post(t, 9999, "confirm", http.StatusNotFound)
}

func TestAPIRequestInfeasible(t *testing.T) {
	env := testAPIServer(t)
	v := env.request(t, env.sarah, env.paddington, "10:00")
	env.post(t, v.ID, "confirm", http.StatusOK)

	w := apiRequest(t, env.srv, "POST", "/api/viewings", map[string]interface{}{
		"tenant_id": env.tom, "property_id": env.soho, "time": "10:40",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var body infeasibleResponse
	decodeBody(t, w, &body)
	if body.SuggestedTime != "10:45" {
		t.Errorf("suggested_time = %q, want 10:45", body.SuggestedTime)
	}
	if body.Reason != "insufficient travel time from W2 4DX" {
		t.Errorf("reason = %q", body.Reason)
	}

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"bad time", map[string]interface{}{"tenant_id": env.tom, "property_id": env.soho, "time": "25:99"}, http.StatusBadRequest},
		{"signed time", map[string]interface{}{"tenant_id": env.tom, "property_id": env.soho, "time": "+1:+5"}, http.StatusBadRequest},
		{"missing fields", map[string]interface{}{"tenant_id": env.tom}, http.StatusBadRequest},
		{"unknown property", map[string]interface{}{"tenant_id": env.tom, "property_id": 9999, "time": "12:00"}, http.StatusNotFound},
		{"unknown tenant", map[string]interface{}{"tenant_id": 9999, "property_id": env.soho, "time": "12:00"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, "POST", "/api/viewings", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAPIProbes(t *testing.T) {
	env := testAPIServer(t)
	v := env.request(t, env.sarah, env.paddington, "10:00")
	env.post(t, v.ID, "confirm", http.StatusOK)

	w := apiRequest(t, env.srv, "POST", "/api/feasibility", map[string]interface{}{"property_id": env.soho, "time": "10:45"})
	if w.Code != http.StatusOK {
		t.Fatalf("feasibility: status = %d", w.Code)
	}
	var verdict struct {
		Feasible bool `json:"feasible"`
	}
	decodeBody(t, w, &verdict)
	if !verdict.Feasible {
		t.Error("10:45 at W1D 4HT should be feasible")
	}

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/properties/%d/slots", env.soho), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("slots: status = %d", w.Code)
	}
	var slots []viewing.AvailableSlot
	decodeBody(t, w, &slots)
	for _, s := range slots {
		if s.Time == "10:00" || s.Time == "10:30" {
			t.Errorf("slot %s should be unavailable", s.Time)
		}
	}

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/properties/%d/alternative?time=10:40", env.soho), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("alternative: status = %d", w.Code)
	}
	var slot reschedule.Slot
	decodeBody(t, w, &slot)
	if slot.Time != "11:00" || !slot.Adjusted {
		t.Errorf("alternative = %+v", slot)
	}

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/properties/%d/alternative", env.soho), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing time: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = apiRequest(t, env.srv, "GET", fmt.Sprintf("/api/viewings/%d/feasibility", v.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("viewing feasibility: status = %d", w.Code)
	}
	var a viewing.Assessment
	decodeBody(t, w, &a)
	if a.Status != feasibility.StatusOK {
		t.Errorf("assessment = %+v", a)
	}
}

func TestAPIListViewingsFilters(t *testing.T) {
	env := testAPIServer(t)
	v := env.request(t, env.sarah, env.paddington, "10:00")
	env.post(t, v.ID, "confirm", http.StatusOK)
	env.request(t, env.tom, env.soho, "14:00")

	tests := []struct {
		query string
		want  int
		code  int
	}{
		{"", 2, http.StatusOK},
		{"?status=pending", 1, http.StatusOK},
		{fmt.Sprintf("?tenant_id=%d", env.sarah), 1, http.StatusOK},
		{fmt.Sprintf("?agent_id=%d&status=confirmed", env.agentID), 1, http.StatusOK},
		{"?status=cancelled", 0, http.StatusBadRequest},
		{"?tenant_id=-1", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := apiRequest(t, env.srv, "GET", "/api/viewings"+tt.query, nil)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var vs []*viewing.Viewing
			decodeBody(t, w, &vs)
			if len(vs) != tt.want {
				t.Errorf("got %d viewings, want %d", len(vs), tt.want)
			}
		})
	}
}

func TestAPIMetricsAndEvents(t *testing.T) {
	env := testAPIServer(t)
	a := env.request(t, env.sarah, env.paddington, "10:00")
	env.post(t, a.ID, "confirm", http.StatusOK)
	b := env.request(t, env.tom, env.soho, "11:00")
	env.post(t, b.ID, "confirm", http.StatusOK)

	w := apiRequest(t, env.srv, "GET", "/api/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d", w.Code)
	}
	var report metrics.Report
	decodeBody(t, w, &report)
	if report.Confirmed != 2 || report.TotalTravelMinutes != 15 {
		t.Errorf("report = %+v", report)
	}

	w = apiRequest(t, env.srv, "GET", "/api/events", nil)
	var events []notify.Event
	decodeBody(t, w, &events)
	if len(events) != 4 {
		t.Errorf("got %d events, want 4", len(events))
	}
}

func TestAPITenants(t *testing.T) {
	env := testAPIServer(t)

	w := apiRequest(t, env.srv, "POST", "/api/tenants", map[string]interface{}{"name": "Una", "travel_tolerance": 25})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, env.srv, "POST", "/api/tenants", map[string]interface{}{"name": "Vic", "travel_tolerance": -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative tolerance: status = %d", w.Code)
	}

	w = apiRequest(t, env.srv, "GET", "/api/tenants", nil)
	var tenants []*tenant.Tenant
	decodeBody(t, w, &tenants)
	if len(tenants) != 3 {
		t.Errorf("got %d tenants, want 3", len(tenants))
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	env := testAPIServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"DELETE", "/api/viewings", http.StatusMethodNotAllowed},
		{"PUT", "/api/properties", http.StatusMethodNotAllowed},
		{"POST", "/api/viewings/1", http.StatusMethodNotAllowed},
		{"GET", "/api/viewings/1/confirm", http.StatusMethodNotAllowed},
		{"DELETE", "/api/metrics", http.StatusMethodNotAllowed},
		{"GET", "/api/nope", http.StatusNotFound},
		{"POST", "/api/viewings/1/cancel", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := apiRequest(t, env.srv, tt.method, tt.path, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
