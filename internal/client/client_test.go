package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

func writeJSON(t *testing.T, w http.ResponseWriter, code int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestListProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/properties" {
			t.Errorf("path = %q, want /api/properties", r.URL.Path)
		}
		if got := r.URL.Query().Get("agent_id"); got != "7" {
			t.Errorf("agent_id = %q, want 7", got)
		}
		writeJSON(t, w, http.StatusOK, []*property.Property{{ID: 1, Name: "Soho Loft", Postcode: "W1D 4HT"}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	props, err := c.ListProperties(7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("got %d props, want 1", len(props))
	}
	if props[0].Postcode != "W1D 4HT" {
		t.Errorf("postcode = %q", props[0].Postcode)
	}
}

func TestGetProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/properties/42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"id": 42, "name": "Mews", "postcode": "W11 2BQ", "cluster": "West London"})
	}))
	defer srv.Close()

	p, err := New(srv.URL).GetProperty(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != 42 || p.Cluster != "West London" {
		t.Errorf("got %+v", p)
	}
}

func TestAddProperty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s", r.Method)
		}
		var req struct {
			Name     string `json:"name"`
			Postcode string `json:"postcode"`
			AgentID  int64  `json:"agent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Postcode != "E1 6AN" || req.AgentID != 3 {
			t.Errorf("req = %+v", req)
		}
		writeJSON(t, w, http.StatusCreated, &property.Property{ID: 1, Name: req.Name, Postcode: req.Postcode, AgentID: req.AgentID})
	}))
	defer srv.Close()

	p, err := New(srv.URL).AddProperty("Warehouse", "E1 6AN", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Name != "Warehouse" {
		t.Errorf("name = %q", p.Name)
	}
}

func TestFindAlternative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/properties/5/alternative" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("time") != "10:40" || q.Get("same_cluster") != "true" {
			t.Errorf("query = %v", q)
		}
		writeJSON(t, w, http.StatusOK, reschedule.Slot{Time: "11:00", Adjusted: true})
	}))
	defer srv.Close()

	slot, err := New(srv.URL).FindAlternative(5, "10:40", true)
	if err != nil {
		t.Fatalf("alternative: %v", err)
	}
	if slot.Time != "11:00" || !slot.Adjusted {
		t.Errorf("slot = %+v", slot)
	}
}

func TestRequestViewingInfeasible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{
			"error":          "agent has viewing at this time (next available 10:30)",
			"reason":         "agent has viewing at this time",
			"suggested_time": "10:30",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).RequestViewing(1, 2, "10:10")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.SuggestedTime != "10:30" {
		t.Errorf("suggested = %q", apiErr.SuggestedTime)
	}
	if apiErr.Reason != "agent has viewing at this time" {
		t.Errorf("reason = %q", apiErr.Reason)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		call func(*Client) (*viewing.Viewing, error)
		path string
	}{
		{"confirm", func(c *Client) (*viewing.Viewing, error) { return c.Confirm(9) }, "/api/viewings/9/confirm"},
		{"accept", func(c *Client) (*viewing.Viewing, error) { return c.AcceptSuggestion(9) }, "/api/viewings/9/accept"},
		{"decline", func(c *Client) (*viewing.Viewing, error) { return c.Decline(9) }, "/api/viewings/9/decline"},
		{"decline suggestion", func(c *Client) (*viewing.Viewing, error) { return c.DeclineSuggestion(9) }, "/api/viewings/9/decline-suggestion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "POST" || r.URL.Path != tt.path {
					t.Errorf("%s %s, want POST %s", r.Method, r.URL.Path, tt.path)
				}
				writeJSON(t, w, http.StatusOK, &viewing.Viewing{ID: 9, Status: viewing.StatusConfirmed})
			}))
			defer srv.Close()

			v, err := tt.call(New(srv.URL))
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if v.ID != 9 {
				t.Errorf("id = %d", v.ID)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, Suggestion{
			Viewing: &viewing.Viewing{ID: 3, Status: viewing.StatusSuggested, SuggestedTime: "11:30"},
			Slot:    reschedule.Slot{Time: "11:30", Adjusted: true, Reason: reschedule.ReasonSameCluster},
		})
	}))
	defer srv.Close()

	s, err := New(srv.URL).Suggest(3)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if s.Viewing.SuggestedTime != "11:30" || s.Slot.Reason != reschedule.ReasonSameCluster {
		t.Errorf("suggestion = %+v", s)
	}
}

func TestListViewingsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "pending" || q.Get("tenant_id") != "4" || q.Has("agent_id") {
			t.Errorf("query = %v", q)
		}
		writeJSON(t, w, http.StatusOK, []*viewing.Viewing{})
	}))
	defer srv.Close()

	if _, err := New(srv.URL).ListViewings(ViewingFilter{Status: "pending", TenantID: 4}); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, metrics.Report{Total: 4, Confirmed: 2, AverageTravelMinutes: 15})
	}))
	defer srv.Close()

	r, err := New(srv.URL).Metrics()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if r.Total != 4 || r.AverageTravelMinutes != 15 {
		t.Errorf("report = %+v", r)
	}
}

func TestServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).Health()
	if err == nil || err.Error() != "server error: Bad Gateway" {
		t.Errorf("err = %v", err)
	}
}
