package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/estate/internal/pkg/errors"
)

// Chain asks each provider in order and returns the first hit.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Geocode(ctx context.Context, address string) (*Location, error) {
	if strings.TrimSpace(address) == "" {
		return nil, appErr.ErrInvalid
	}
	if len(c.providers) == 0 {
		return nil, appErr.ErrGeocodeUnavailable
	}
	var errs []error
	allNotFound := true
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loc, err := p.Geocode(ctx, address)
		if err == nil && loc != nil {
			if loc.Provider == "" {
				loc.Provider = p.Name()
			}
			return loc, nil
		}
		if err == nil {
			err = appErr.ErrNotFound
		}
		if !errors.Is(err, appErr.ErrNotFound) {
			allNotFound = false
		}
		logutil.GetLogger(ctx).Warn("geocode provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if allNotFound {
		return nil, appErr.ErrNotFound
	}
	return nil, fmt.Errorf("%w: %w", appErr.ErrGeocodeUnavailable, errors.Join(errs...))
}
