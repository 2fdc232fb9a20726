package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/estate/internal/geocode"
	"github.com/xxxsen/estate/internal/model"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/pkg/timeutil"
	"github.com/xxxsen/estate/internal/repo"
)

const (
	defaultListLimit     = 20
	maxListLimit         = 100
	defaultNearbyRadius  = 5.0
	maxNearbyRadius      = 100.0
	nearbyCandidateLimit = 500
	maxImagesPerProperty = 20
)

// Actor is the authenticated caller of a write operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) owns(p *model.Property) bool {
	return a.Role == model.RoleAdmin || (a.UserID != "" && a.UserID == p.OwnerID)
}

type PropertyInput struct {
	Title        string
	Description  string
	ListingType  string
	PropertyType string
	Price        int64
	Bedrooms     int
	Bathrooms    int
	AreaSqft     int
	Address      string
	City         string
	State        string
	Country      string
	PostalCode   string
	Latitude     *float64
	Longitude    *float64
}

type PropertyPage struct {
	Items []*model.Property `json:"items"`
	Total int64             `json:"total"`
}

type NearbyProperty struct {
	*model.Property
	DistanceKm float64 `json:"distance_km"`
}

type PropertyService struct {
	properties PropertyStore
	images     PropertyImageStore
	geocoder   geocode.Provider
}

// NewPropertyService builds the listing service. geocoder may be nil, in which case
// listings without explicit coordinates are stored ungeocoded.
func NewPropertyService(properties PropertyStore, images PropertyImageStore, geocoder geocode.Provider) *PropertyService {
	return &PropertyService{properties: properties, images: images, geocoder: geocoder}
}

func (in *PropertyInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ListingType = strings.ToLower(strings.TrimSpace(in.ListingType))
	in.PropertyType = strings.ToLower(strings.TrimSpace(in.PropertyType))
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Country = strings.TrimSpace(in.Country)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
}

func (in *PropertyInput) validate() error {
	if in.Title == "" || in.Price <= 0 {
		return appErr.ErrInvalid
	}
	if !model.IsListingType(in.ListingType) || !model.IsPropertyType(in.PropertyType) {
		return appErr.ErrInvalid
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 || in.AreaSqft < 0 {
		return appErr.ErrInvalid
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return appErr.ErrInvalid
	}
	if in.Latitude != nil && !geocode.ValidCoordinates(*in.Latitude, *in.Longitude) {
		return appErr.ErrInvalid
	}
	return nil
}

func (in *PropertyInput) apply(p *model.Property) {
	p.Title = in.Title
	p.Description = in.Description
	p.ListingType = in.ListingType
	p.PropertyType = in.PropertyType
	p.Price = in.Price
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.AreaSqft = in.AreaSqft
	p.Address = in.Address
	p.City = in.City
	p.State = in.State
	p.Country = in.Country
	p.PostalCode = in.PostalCode
}

func fullAddress(p *model.Property) string {
	parts := make([]string, 0, 5)
	for _, v := range []string{p.Address, p.City, p.State, p.PostalCode, p.Country} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *PropertyService) Create(ctx context.Context, ownerID string, input PropertyInput) (*model.Property, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	p := &model.Property{
		ID:      newID(),
		OwnerID: ownerID,
		Status:  model.PropertyStatusActive,
		Ctime:   now,
		Mtime:   now,
	}
	input.apply(p)
	s.locate(ctx, p, input)
	if err := s.properties.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// locate fills coordinates from the input or the geocoder. Geocoding failures leave
// the listing ungeocoded rather than failing the write.
func (s *PropertyService) locate(ctx context.Context, p *model.Property, input PropertyInput) {
	if input.Latitude != nil {
		p.Latitude, p.Longitude, p.Geocoded = *input.Latitude, *input.Longitude, 1
		return
	}
	p.Latitude, p.Longitude, p.Geocoded = 0, 0, 0
	address := fullAddress(p)
	if s.geocoder == nil || address == "" {
		return
	}
	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		logutil.GetLogger(ctx).Warn("geocode listing failed",
			zap.String("property_id", p.ID),
			zap.Error(err),
		)
		return
	}
	p.Latitude, p.Longitude, p.Geocoded = loc.Latitude, loc.Longitude, 1
}

func (s *PropertyService) Get(ctx context.Context, id string) (*model.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachImages(ctx, []*model.Property{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PropertyService) List(ctx context.Context, filter repo.PropertyFilter) (*PropertyPage, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Status == model.PropertyStatusDeleted {
		return nil, appErr.ErrInvalid
	}
	if filter.MinPrice > 0 && filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return nil, appErr.ErrInvalid
	}
	total, err := s.properties.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, err := s.properties.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.attachImages(ctx, items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Property{}
	}
	return &PropertyPage{Items: items, Total: total}, nil
}

func (s *PropertyService) loadOwned(ctx context.Context, actor Actor, id string) (*model.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(p) {
		return nil, appErr.ErrForbidden
	}
	return p, nil
}

func (s *PropertyService) Update(ctx context.Context, actor Actor, id string, input PropertyInput) (*model.Property, error) {
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}
	p, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	oldAddress := fullAddress(p)
	wasGeocoded := p.Geocoded == 1
	input.apply(p)
	if input.Latitude != nil || oldAddress != fullAddress(p) || !wasGeocoded {
		s.locate(ctx, p, input)
	}
	p.Mtime = timeutil.NowUnix()
	if err := s.properties.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PropertyService) UpdateStatus(ctx context.Context, actor Actor, id, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !model.IsPropertyStatus(status) {
		return appErr.ErrInvalid
	}
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return err
	}
	return s.properties.UpdateStatus(ctx, id, status, timeutil.NowUnix())
}

func (s *PropertyService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return err
	}
	return s.properties.UpdateStatus(ctx, id, model.PropertyStatusDeleted, timeutil.NowUnix())
}

func (s *PropertyService) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*NearbyProperty, error) {
	if !geocode.ValidCoordinates(lat, lng) || radiusKm < 0 {
		return nil, appErr.ErrInvalid
	}
	if radiusKm == 0 {
		radiusKm = defaultNearbyRadius
	}
	if radiusKm > maxNearbyRadius {
		radiusKm = maxNearbyRadius
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	minLat, maxLat, minLng, maxLng := geocode.Box(lat, lng, radiusKm)
	candidates, err := s.properties.ListNearest(ctx, repo.BoundingBox{
		MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng,
	}, lat, lng, nearbyCandidateLimit)
	if err != nil {
		return nil, err
	}
	out := make([]*NearbyProperty, 0, len(candidates))
	for _, p := range candidates {
		d := geocode.DistanceKm(lat, lng, p.Latitude, p.Longitude)
		if d > radiusKm {
			continue
		}
		out = append(out, &NearbyProperty{Property: p, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	if len(out) > limit {
		out = out[:limit]
	}
	items := make([]*model.Property, 0, len(out))
	for _, item := range out {
		items = append(items, item.Property)
	}
	if err := s.attachImages(ctx, items); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PropertyService) AddImage(ctx context.Context, actor Actor, id, fileKey, url string) (*model.PropertyImage, error) {
	if fileKey == "" || url == "" {
		return nil, appErr.ErrInvalid
	}
	count, err := s.imageSlot(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	img := &model.PropertyImage{
		ID:         newID(),
		PropertyID: id,
		FileKey:    fileKey,
		URL:        url,
		Sort:       count,
		Ctime:      timeutil.NowUnix(),
	}
	if err := s.images.Create(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// CheckCanAddImage runs the AddImage checks (ownership and the image cap) so callers can
// reject an upload before storing the file.
func (s *PropertyService) CheckCanAddImage(ctx context.Context, actor Actor, id string) error {
	_, err := s.imageSlot(ctx, actor, id)
	return err
}

// imageSlot returns the current image count of a listing actor owns.
func (s *PropertyService) imageSlot(ctx context.Context, actor Actor, id string) (int, error) {
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return 0, err
	}
	count, err := s.images.CountByProperty(ctx, id)
	if err != nil {
		return 0, err
	}
	if count >= maxImagesPerProperty {
		return 0, appErr.ErrTooMany
	}
	return count, nil
}

func (s *PropertyService) Geocode(ctx context.Context, address string) (*geocode.Location, error) {
	if s.geocoder == nil {
		return nil, appErr.ErrGeocodeUnavailable
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, appErr.ErrInvalid
	}
	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil && !errors.Is(err, appErr.ErrNotFound) && !errors.Is(err, appErr.ErrInvalid) {
		logutil.GetLogger(ctx).Error("geocode failed", zap.Error(err))
	}
	return loc, err
}

// BackfillGeocode retries geocoding for up to limit active listings stored without
// coordinates. It returns how many were located.
func (s *PropertyService) BackfillGeocode(ctx context.Context, limit int) (int, error) {
	if s.geocoder == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	items, err := s.properties.ListUngeocoded(ctx, uint(limit))
	if err != nil {
		return 0, err
	}
	located := 0
	for _, p := range items {
		if ctx.Err() != nil {
			return located, ctx.Err()
		}
		address := fullAddress(p)
		if address == "" {
			continue
		}
		loc, err := s.geocoder.Geocode(ctx, address)
		if err != nil {
			logutil.GetLogger(ctx).Debug("backfill geocode miss",
				zap.String("property_id", p.ID),
				zap.Error(err),
			)
			continue
		}
		if err := s.properties.SetCoordinates(ctx, p.ID, loc.Latitude, loc.Longitude, timeutil.NowUnix()); err != nil {
			if errors.Is(err, appErr.ErrNotFound) {
				continue
			}
			return located, err
		}
		located++
	}
	return located, nil
}

func (s *PropertyService) attachImages(ctx context.Context, items []*model.Property) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}
	images, err := s.images.ListByProperties(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range items {
		p.Images = images[p.ID]
	}
	return nil
}
