package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

// NominatimClient performs reverse lookups against a Nominatim-compatible
// HTTP server.
type NominatimClient struct {
	Endpoint string
	Client   *http.Client
}

func NewNominatimClient(endpoint string) *NominatimClient {
	return &NominatimClient{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

// ReverseGeocode queries /reverse and returns the display name.
func (n *NominatimClient) ReverseGeocode(ctx context.Context, c models.Coord) (string, error) {
	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%.6f&lon=%.6f", n.Endpoint, c.Lat, c.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocode status %d", resp.StatusCode)
	}
	var out struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != "" || out.DisplayName == "" {
		return "", fmt.Errorf("geocode no result: %v", out.Error)
	}
	return out.DisplayName, nil
}
