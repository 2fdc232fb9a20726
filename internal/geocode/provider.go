package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/estate/internal/config"
)

type Location struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
	Provider         string  `json:"provider"`
}

// Provider turns a free-form address into coordinates. It returns ErrNotFound
// when the address is understood but has no match.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Location, error)
}

type ProviderArgs struct {
	Data   interface{}
	Client *http.Client
}

type ProviderFactory func(args ProviderArgs) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args ProviderArgs) (Provider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("geocode provider is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported geocode provider: %s", name)
	}
	if args.Client == nil {
		args.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return factory(args)
}

// New builds the configured providers into a fallback chain behind an LRU cache.
func New(cfg config.GeocodeConfig) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no geocode provider configured")
	}
	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, item := range cfg.Providers {
		p, err := NewProvider(item.Name, ProviderArgs{Data: item.Data, Client: client})
		if err != nil {
			return nil, fmt.Errorf("init geocode provider %s: %w", item.Name, err)
		}
		providers = append(providers, p)
	}
	var p Provider = NewChain(providers...)
	return WrapLruCache(p, cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second), nil
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode geocode config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode geocode config: %w", err)
	}
	return nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
