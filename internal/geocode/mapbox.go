package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultMapboxEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxGeocoder resolves addresses via the Mapbox Geocoding API.
type MapboxGeocoder struct {
	accessToken string
	endpoint    string
	client      *http.Client
}

// MapboxOption customises the MapboxGeocoder.
type MapboxOption func(*MapboxGeocoder)

// WithMapboxEndpoint overrides the API endpoint, used by tests.
func WithMapboxEndpoint(endpoint string) MapboxOption {
	return func(m *MapboxGeocoder) {
		if endpoint != "" {
			m.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithMapboxHTTPClient overrides the HTTP client.
func WithMapboxHTTPClient(client *http.Client) MapboxOption {
	return func(m *MapboxGeocoder) {
		m.client = client
	}
}

// NewMapboxGeocoder constructs a MapboxGeocoder. Returns nil when the access
// token is empty so the caller can skip it in the chain.
func NewMapboxGeocoder(accessToken string, opts ...MapboxOption) *MapboxGeocoder {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil
	}
	m := &MapboxGeocoder{
		accessToken: accessToken,
		endpoint:    defaultMapboxEndpoint,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.client = httpClientOrDefault(m.client)
	return m
}

type mapboxResponse struct {
	Features []struct {
		Context []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			ShortCode string `json:"short_code"`
		} `json:"context"`
	} `json:"features"`
}

// Geocode resolves the address, extracting the region and country context entries.
func (m *MapboxGeocoder) Geocode(ctx context.Context, address string) (Region, error) {
	query := url.Values{}
	query.Set("access_token", m.accessToken)
	query.Set("limit", "1")

	endpoint := fmt.Sprintf("%s/%s.json?%s", m.endpoint, url.PathEscape(address), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Region{}, fmt.Errorf("geocode: build mapbox request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return Region{}, fmt.Errorf("geocode: mapbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Region{}, fmt.Errorf("geocode: mapbox responded %d", resp.StatusCode)
	}

	var payload mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Region{}, fmt.Errorf("geocode: decode mapbox response: %w", err)
	}
	if len(payload.Features) == 0 {
		return Region{}, nil
	}

	var region Region
	for _, item := range payload.Features[0].Context {
		switch {
		case strings.HasPrefix(item.ID, "region."):
			region.StateName = item.Text
			if item.ShortCode != "" {
				region.StateCode = strings.ToUpper(item.ShortCode)
			} else {
				region.StateCode = item.Text
			}
		case strings.HasPrefix(item.ID, "country."):
			if item.ShortCode != "" {
				region.Country = strings.ToUpper(item.ShortCode)
			} else {
				region.Country = item.Text
			}
		}
	}
	return region, nil
}
