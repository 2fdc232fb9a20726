package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	appErr "github.com/xxxsen/estate/internal/pkg/errors"
)

const defaultGoogleURL = "https://maps.googleapis.com"

type googleConfig struct {
	BaseURL string `json:"base_url"`
	Key     string `json:"key"`
	Region  string `json:"region"`
}

type googleProvider struct {
	cfg    googleConfig
	client *http.Client
}

func newGoogleProvider(args ProviderArgs) (Provider, error) {
	cfg := googleConfig{}
	if err := decodeConfig(args.Data, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, fmt.Errorf("google geocode key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleURL
	}
	return &googleProvider{cfg: cfg, client: args.Client}, nil
}

func (g *googleProvider) Name() string {
	return "google"
}

type googleResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *googleProvider) Geocode(ctx context.Context, address string) (*Location, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.cfg.Key)
	if g.cfg.Region != "" {
		params.Set("region", g.cfg.Region)
	}
	endpoint := strings.TrimSuffix(g.cfg.BaseURL, "/") + "/maps/api/geocode/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("google geocode failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, appErr.ErrNotFound
	default:
		return nil, fmt.Errorf("google geocode status %s: %s", out.Status, out.ErrorMessage)
	}
	if len(out.Results) == 0 {
		return nil, appErr.ErrNotFound
	}
	first := out.Results[0]
	return &Location{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
		Provider:         g.Name(),
	}, nil
}

func init() {
	Register("google", newGoogleProvider)
}
