package exchange

import (
	"fmt"
	"strings"

	"github.com/keidrun/coinietrade/internal/domain"
)

// VenueID is the enumerated identifier of a supported trading venue.
type VenueID string

const (
	VenueBitflyer VenueID = "bitflyer"
	VenueZaif     VenueID = "zaif"
)

// ParseVenueID resolves a rule's site name into a VenueID.
func ParseVenueID(name string) (VenueID, error) {
	switch VenueID(strings.ToLower(strings.TrimSpace(name))) {
	case VenueBitflyer:
		return VenueBitflyer, nil
	case VenueZaif:
		return VenueZaif, nil
	}
	return "", fmt.Errorf("exchange: %w: %q", domain.ErrUnknownVenue, name)
}

// Factory constructs an adapter for one venue from credentials and the pair
// to trade.
type Factory func(creds Credentials, pair Pair) (Exchange, error)

// Registry maps venue identifiers to adapter factories. It replaces
// selection by raw name string with a typed lookup.
type Registry struct {
	factories map[VenueID]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[VenueID]Factory)}
}

// Register adds a factory for the given venue, replacing any previous one.
func (r *Registry) Register(id VenueID, f Factory) {
	r.factories[id] = f
}

// Build resolves the site name and constructs the adapter.
func (r *Registry) Build(siteName string, creds Credentials, pair Pair) (Exchange, error) {
	id, err := ParseVenueID(siteName)
	if err != nil {
		return nil, err
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("exchange: %w: no factory for %q", domain.ErrUnknownVenue, id)
	}
	return f(creds, pair)
}
