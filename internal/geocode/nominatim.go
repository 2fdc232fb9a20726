package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/estate/internal/pkg/errors"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org"

type nominatimConfig struct {
	BaseURL      string  `json:"base_url"`
	UserAgent    string  `json:"user_agent"`
	Email        string  `json:"email"`
	CountryCodes string  `json:"country_codes"`
	RPS          float64 `json:"rps"`
}

// nominatimProvider talks to the OpenStreetMap search API. The public instance
// allows one request per second and requires an identifying User-Agent.
type nominatimProvider struct {
	cfg     nominatimConfig
	client  *http.Client
	limiter *rate.Limiter
}

func newNominatimProvider(args ProviderArgs) (Provider, error) {
	cfg := nominatimConfig{}
	if err := decodeConfig(args.Data, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("nominatim user_agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNominatimURL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	return &nominatimProvider{
		cfg:     cfg,
		client:  args.Client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}, nil
}

func (n *nominatimProvider) Name() string {
	return "nominatim"
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *nominatimProvider) Geocode(ctx context.Context, address string) (*Location, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	if n.cfg.Email != "" {
		params.Set("email", n.cfg.Email)
	}
	if n.cfg.CountryCodes != "" {
		params.Set("countrycodes", n.cfg.CountryCodes)
	}
	endpoint := strings.TrimSuffix(n.cfg.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("nominatim search failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, appErr.ErrNotFound
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim bad latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim bad longitude %q: %w", results[0].Lon, err)
	}
	return &Location{
		Latitude:         lat,
		Longitude:        lng,
		FormattedAddress: results[0].DisplayName,
		Provider:         n.Name(),
	}, nil
}

func init() {
	Register("nominatim", newNominatimProvider)
}
