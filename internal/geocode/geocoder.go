package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborstay/api/internal/platform/requestctx"
)

// Region is the administrative area resolved from a free-form address. All
// fields may be empty: geocoding is best-effort and callers must treat an
// empty Region as "unknown", never as an error.
type Region struct {
	StateName string `json:"stateName,omitempty"`
	StateCode string `json:"stateCode,omitempty"`
	Country   string `json:"country,omitempty"`
}

// IsZero reports whether no region information was resolved.
func (r Region) IsZero() bool {
	return r.StateName == "" && r.StateCode == "" && r.Country == ""
}

// Geocoder resolves an address string to a Region. Implementations return an
// error only for lookup failures; an address that resolves to nothing yields a
// zero Region and nil error.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Region, error)
}

const defaultHTTPTimeout = 10 * time.Second

func httpClientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// Chain tries each geocoder in order and returns the first non-empty result.
// Individual failures are logged and skipped; the chain as a whole never
// returns an error.
type Chain struct {
	geocoders []Geocoder
}

// NewChain builds a Chain from the provided geocoders, ignoring nil entries.
func NewChain(geocoders ...Geocoder) *Chain {
	filtered := make([]Geocoder, 0, len(geocoders))
	for _, g := range geocoders {
		if g != nil {
			filtered = append(filtered, g)
		}
	}
	return &Chain{geocoders: filtered}
}

// Geocode resolves the address through the chain. A blank address or an
// exhausted chain yields the zero Region.
func (c *Chain) Geocode(ctx context.Context, address string) (Region, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Region{}, nil
	}

	logger := requestctx.Logger(ctx)
	for _, g := range c.geocoders {
		region, err := g.Geocode(ctx, address)
		if err != nil {
			logger.Warn("geocode lookup failed", zap.Error(err))
			continue
		}
		if !region.IsZero() {
			return region, nil
		}
	}
	return Region{}, nil
}
