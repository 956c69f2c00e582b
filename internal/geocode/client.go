// Package geocode resolves UK postcodes to coordinates through a
// postcodes.io compatible HTTP API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// DefaultURL is the public postcodes.io endpoint.
const DefaultURL = "https://api.postcodes.io"

const userAgent = "viewing-scheduler"

// ErrUnknownPostcode is returned when the API has no record of a postcode.
var ErrUnknownPostcode = errors.New("unknown postcode")

// Client looks up postcode coordinates.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client against baseURL. An empty baseURL uses
// DefaultURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// lookupResponse is the postcodes.io single-postcode response.
type lookupResponse struct {
	Status int `json:"status"`
	Result *struct {
		Postcode  string   `json:"postcode"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
	Error string `json:"error"`
}

// Lookup returns the coordinates of postcode.
func (c *Client) Lookup(ctx context.Context, postcode string) (coord geotime.Coord, err error) {
	postcode = geotime.NormalizePostcode(postcode)
	if postcode == "" {
		return geotime.Coord{}, fmt.Errorf("postcode is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/postcodes/"+url.PathEscape(postcode), nil)
	if err != nil {
		return geotime.Coord{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geotime.Coord{}, fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = fmt.Errorf("%w (also failed to close body: %v)", err, closeErr)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return geotime.Coord{}, fmt.Errorf("%s: %w", postcode, ErrUnknownPostcode)
	}
	if resp.StatusCode != http.StatusOK {
		return geotime.Coord{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return geotime.Coord{}, fmt.Errorf("decoding response: %w", err)
	}

	if result.Result == nil || result.Result.Latitude == nil || result.Result.Longitude == nil {
		return geotime.Coord{}, fmt.Errorf("%s: %w", postcode, ErrUnknownPostcode)
	}

	return geotime.Coord{Lat: *result.Result.Latitude, Lon: *result.Result.Longitude}, nil
}
