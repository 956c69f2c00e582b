package property

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evcraddock/viewing-scheduler/internal/geotime"
)

// Geocoder resolves a postcode to coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, postcode string) (geotime.Coord, error)
}

// Service provides property business logic.
type Service struct {
	repo     *Repository
	coords   *CoordRepository
	geocoder Geocoder
}

// NewService creates a property service. geocoder may be nil, in which
// case unknown postcodes are stored without coordinates.
func NewService(repo *Repository, coords *CoordRepository, geocoder Geocoder) *Service {
	return &Service{repo: repo, coords: coords, geocoder: geocoder}
}

// Add stores a property for agentID. When the postcode has no stored
// coordinates and a geocoder is configured, it is geocoded first. This is
// the only operation that hits external APIs; a failed lookup is logged
// and the property falls back to the fixed travel estimate.
func (s *Service) Add(ctx context.Context, name, postcode string, agentID int64) (*Property, error) {
	name = strings.TrimSpace(name)
	postcode = geotime.NormalizePostcode(postcode)
	if name == "" {
		return nil, fmt.Errorf("property name is required")
	}
	if postcode == "" {
		return nil, fmt.Errorf("postcode is required")
	}

	if err := s.ensureCoords(ctx, postcode); err != nil {
		return nil, err
	}

	saved, err := s.repo.Insert(&Property{Name: name, Postcode: postcode, AgentID: agentID})
	if err != nil {
		return nil, fmt.Errorf("saving property: %w", err)
	}

	return saved, nil
}

func (s *Service) ensureCoords(ctx context.Context, postcode string) error {
	if s.geocoder == nil {
		return nil
	}

	table, err := s.coords.Load()
	if err != nil {
		return err
	}
	if _, ok := table.Lookup(postcode); ok {
		return nil
	}

	c, err := s.geocoder.Lookup(ctx, postcode)
	if err != nil {
		slog.Warn("geocoding postcode failed, using fallback travel time", "postcode", postcode, "error", err)
		return nil
	}

	return s.coords.Upsert(postcode, c)
}
