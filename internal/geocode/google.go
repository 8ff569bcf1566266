package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGoogleEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder resolves addresses via the Google Maps Geocoding API.
type GoogleGeocoder struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// GoogleOption customises the GoogleGeocoder.
type GoogleOption func(*GoogleGeocoder)

// WithGoogleEndpoint overrides the API endpoint, used by tests.
func WithGoogleEndpoint(endpoint string) GoogleOption {
	return func(g *GoogleGeocoder) {
		if endpoint != "" {
			g.endpoint = endpoint
		}
	}
}

// WithGoogleHTTPClient overrides the HTTP client.
func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleGeocoder) {
		g.client = client
	}
}

// NewGoogleGeocoder constructs a GoogleGeocoder. Returns nil when the API key
// is empty so the caller can skip it in the chain.
func NewGoogleGeocoder(apiKey string, opts ...GoogleOption) *GoogleGeocoder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	g := &GoogleGeocoder{
		apiKey:   apiKey,
		endpoint: defaultGoogleEndpoint,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.client = httpClientOrDefault(g.client)
	return g
}

type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Geocode resolves the address, extracting the first administrative area and country.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (Region, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Region{}, fmt.Errorf("geocode: build google request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Region{}, fmt.Errorf("geocode: google request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Region{}, fmt.Errorf("geocode: google responded %d", resp.StatusCode)
	}

	var payload googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Region{}, fmt.Errorf("geocode: decode google response: %w", err)
	}
	if payload.Status != "OK" || len(payload.Results) == 0 {
		return Region{}, nil
	}

	var region Region
	for _, component := range payload.Results[0].AddressComponents {
		for _, t := range component.Types {
			switch t {
			case "administrative_area_level_1":
				region.StateName = component.LongName
				region.StateCode = strings.ToUpper(component.ShortName)
			case "country":
				if component.ShortName != "" {
					region.Country = strings.ToUpper(component.ShortName)
				} else {
					region.Country = component.LongName
				}
			}
		}
	}
	return region, nil
}
