// Package client provides an HTTP client for the viewing scheduler REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/agent"
	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// Client is an HTTP client for the viewing scheduler API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx API response. Reason and SuggestedTime are set for
// infeasible scheduling requests.
type Error struct {
	StatusCode    int
	Message       string
	Reason        string
	SuggestedTime string
}

func (e *Error) Error() string {
	return e.Message
}

// PropertyDetail is the response from GET /api/properties/{id}.
type PropertyDetail struct {
	property.Property
	Cluster string `json:"cluster"`
}

// Feasibility is the response from POST /api/feasibility.
type Feasibility struct {
	Feasible      bool   `json:"feasible"`
	Reason        string `json:"reason,omitempty"`
	Kind          string `json:"kind,omitempty"`
	SuggestedTime string `json:"suggested_time,omitempty"`
}

// Suggestion is the response from POST /api/viewings/{id}/suggest.
type Suggestion struct {
	Viewing *viewing.Viewing `json:"viewing"`
	Slot    reschedule.Slot  `json:"slot"`
}

// ListProperties returns all properties, or one agent's when agentID > 0.
func (c *Client) ListProperties(agentID int64) ([]*property.Property, error) {
	q := url.Values{}
	if agentID > 0 {
		q.Set("agent_id", strconv.FormatInt(agentID, 10))
	}

	var props []*property.Property
	if err := c.get(withQuery("/api/properties", q), &props); err != nil {
		return nil, err
	}
	return props, nil
}

// GetProperty returns a property with its cluster.
func (c *Client) GetProperty(id int64) (*PropertyDetail, error) {
	var p PropertyDetail
	if err := c.get(fmt.Sprintf("/api/properties/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProperty adds a property for an agent (server geocodes the postcode).
func (c *Client) AddProperty(name, postcode string, agentID int64) (*property.Property, error) {
	body := map[string]interface{}{"name": name, "postcode": postcode, "agent_id": agentID}
	var p property.Property
	if err := c.post("/api/properties", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AvailableSlots lists the bookable slots for a property.
func (c *Client) AvailableSlots(propertyID int64) ([]viewing.AvailableSlot, error) {
	var slots []viewing.AvailableSlot
	if err := c.get(fmt.Sprintf("/api/properties/%d/slots", propertyID), &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// FindAlternative returns the requested time or the first alternative slot.
func (c *Client) FindAlternative(propertyID int64, at string, sameClusterOnly bool) (*reschedule.Slot, error) {
	q := url.Values{"time": {at}}
	if sameClusterOnly {
		q.Set("same_cluster", "true")
	}

	var slot reschedule.Slot
	if err := c.get(withQuery(fmt.Sprintf("/api/properties/%d/alternative", propertyID), q), &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// CheckFeasibility evaluates a property and time without booking.
func (c *Client) CheckFeasibility(propertyID int64, at string) (*Feasibility, error) {
	body := map[string]interface{}{"property_id": propertyID, "time": at}
	var f Feasibility
	if err := c.post("/api/feasibility", body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListAgents returns all agents.
func (c *Client) ListAgents() ([]*agent.Agent, error) {
	var agents []*agent.Agent
	if err := c.get("/api/agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Calendar returns an agent's confirmed viewings in time order.
func (c *Client) Calendar(agentID int64) ([]*viewing.Viewing, error) {
	var cal []*viewing.Viewing
	if err := c.get(fmt.Sprintf("/api/agents/%d/calendar", agentID), &cal); err != nil {
		return nil, err
	}
	return cal, nil
}

// ListTenants returns all tenants.
func (c *Client) ListTenants() ([]*tenant.Tenant, error) {
	var tenants []*tenant.Tenant
	if err := c.get("/api/tenants", &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

// AddTenant registers a tenant.
func (c *Client) AddTenant(t *tenant.Tenant) (*tenant.Tenant, error) {
	var saved tenant.Tenant
	if err := c.post("/api/tenants", t, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ViewingFilter narrows ListViewings. Zero fields are ignored.
type ViewingFilter struct {
	Status   string
	AgentID  int64
	TenantID int64
}

// ListViewings returns viewings matching f.
func (c *Client) ListViewings(f ViewingFilter) ([]*viewing.Viewing, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.AgentID > 0 {
		q.Set("agent_id", strconv.FormatInt(f.AgentID, 10))
	}
	if f.TenantID > 0 {
		q.Set("tenant_id", strconv.FormatInt(f.TenantID, 10))
	}

	var viewings []*viewing.Viewing
	if err := c.get(withQuery("/api/viewings", q), &viewings); err != nil {
		return nil, err
	}
	return viewings, nil
}

// RequestViewing books a pending viewing.
func (c *Client) RequestViewing(tenantID, propertyID int64, at string) (*viewing.Viewing, error) {
	body := map[string]interface{}{"tenant_id": tenantID, "property_id": propertyID, "time": at}
	var v viewing.Viewing
	if err := c.post("/api/viewings", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetViewing returns a single viewing.
func (c *Client) GetViewing(id int64) (*viewing.Viewing, error) {
	var v viewing.Viewing
	if err := c.get(fmt.Sprintf("/api/viewings/%d", id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ViewingFeasibility recomputes a viewing's feasibility label.
func (c *Client) ViewingFeasibility(id int64) (*viewing.Assessment, error) {
	var a viewing.Assessment
	if err := c.get(fmt.Sprintf("/api/viewings/%d/feasibility", id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Suggest proposes an alternative time for a pending viewing.
func (c *Client) Suggest(id int64) (*Suggestion, error) {
	var s Suggestion
	if err := c.post(fmt.Sprintf("/api/viewings/%d/suggest", id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Confirm accepts a pending viewing at its requested time.
func (c *Client) Confirm(id int64) (*viewing.Viewing, error) {
	return c.transition(id, "confirm")
}

// AcceptSuggestion confirms a suggested viewing at its suggested time.
func (c *Client) AcceptSuggestion(id int64) (*viewing.Viewing, error) {
	return c.transition(id, "accept")
}

// Decline rejects a pending viewing.
func (c *Client) Decline(id int64) (*viewing.Viewing, error) {
	return c.transition(id, "decline")
}

// DeclineSuggestion rejects a suggested viewing.
func (c *Client) DeclineSuggestion(id int64) (*viewing.Viewing, error) {
	return c.transition(id, "decline-suggestion")
}

func (c *Client) transition(id int64, action string) (*viewing.Viewing, error) {
	var v viewing.Viewing
	if err := c.post(fmt.Sprintf("/api/viewings/%d/%s", id, action), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Metrics returns the reporting summary.
func (c *Client) Metrics() (*metrics.Report, error) {
	var r metrics.Report
	if err := c.get("/api/metrics", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Events returns recent lifecycle events.
func (c *Client) Events() ([]notify.Event, error) {
	var events []notify.Event
	if err := c.get("/api/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Health checks that the server is up.
func (c *Client) Health() error {
	return c.get("/health", nil)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with an optional JSON body and decodes the response.
func (c *Client) post(path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp struct {
			Error         string `json:"error"`
			Reason        string `json:"reason"`
			SuggestedTime string `json:"suggested_time"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Reason = errResp.Reason
			apiErr.SuggestedTime = errResp.SuggestedTime
		} else {
			apiErr.Message = fmt.Sprintf("server error: %s", http.StatusText(resp.StatusCode))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
