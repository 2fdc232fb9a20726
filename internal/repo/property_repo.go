package repo

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/estate/internal/model"
	"github.com/xxxsen/estate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
)

var propertyColumns = []string{
	"id", "owner_id", "title", "description", "listing_type", "property_type", "price",
	"bedrooms", "bathrooms", "area_sqft", "address", "city", "state", "country", "postal_code",
	"latitude", "longitude", "geocoded", "status", "ctime", "mtime",
}

type PropertyFilter struct {
	OwnerID      string
	City         string
	ListingType  string
	PropertyType string
	Status       string
	Query        string
	MinPrice     int64
	MaxPrice     int64
	MinBedrooms  int
	Limit        uint
	Offset       uint
}

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

type PropertyRepo struct {
	db *sql.DB
}

func NewPropertyRepo(db *sql.DB) *PropertyRepo {
	return &PropertyRepo{db: db}
}

func propertyData(p *model.Property) map[string]interface{} {
	return map[string]interface{}{
		"title":         p.Title,
		"description":   p.Description,
		"listing_type":  p.ListingType,
		"property_type": p.PropertyType,
		"price":         p.Price,
		"bedrooms":      p.Bedrooms,
		"bathrooms":     p.Bathrooms,
		"area_sqft":     p.AreaSqft,
		"address":       p.Address,
		"city":          p.City,
		"state":         p.State,
		"country":       p.Country,
		"postal_code":   p.PostalCode,
		"latitude":      p.Latitude,
		"longitude":     p.Longitude,
		"geocoded":      p.Geocoded,
		"status":        p.Status,
		"mtime":         p.Mtime,
	}
}

func (r *PropertyRepo) Create(ctx context.Context, p *model.Property) error {
	data := propertyData(p)
	data["id"] = p.ID
	data["owner_id"] = p.OwnerID
	data["ctime"] = p.Ctime
	sqlStr, args, err := builder.BuildInsert("properties", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *PropertyRepo) Update(ctx context.Context, p *model.Property) error {
	where := map[string]interface{}{
		"id":        p.ID,
		"status !=": model.PropertyStatusDeleted,
	}
	return r.update(ctx, where, propertyData(p))
}

func (r *PropertyRepo) UpdateStatus(ctx context.Context, id, status string, mtime int64) error {
	where := map[string]interface{}{
		"id":        id,
		"status !=": model.PropertyStatusDeleted,
	}
	return r.update(ctx, where, map[string]interface{}{"status": status, "mtime": mtime})
}

// SetCoordinates stores a geocoding result for a listing that is still active and
// ungeocoded. Only location columns change, so concurrent edits survive.
func (r *PropertyRepo) SetCoordinates(ctx context.Context, id string, lat, lng float64, mtime int64) error {
	where := map[string]interface{}{
		"id":       id,
		"geocoded": 0,
		"status":   model.PropertyStatusActive,
	}
	update := map[string]interface{}{
		"latitude":  lat,
		"longitude": lng,
		"geocoded":  1,
		"mtime":     mtime,
	}
	return r.update(ctx, where, update)
}

func (r *PropertyRepo) update(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("properties", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *PropertyRepo) GetByID(ctx context.Context, id string) (*model.Property, error) {
	where := map[string]interface{}{
		"id":        id,
		"status !=": model.PropertyStatusDeleted,
		"_limit":    []uint{0, 1},
	}
	items, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return items[0], nil
}

func buildPropertyWhere(filter PropertyFilter) map[string]interface{} {
	where := map[string]interface{}{}
	status := filter.Status
	if status == "" {
		status = model.PropertyStatusActive
	}
	where["status"] = status
	if filter.OwnerID != "" {
		where["owner_id"] = filter.OwnerID
	}
	if filter.City != "" {
		where["city"] = filter.City
	}
	if filter.ListingType != "" {
		where["listing_type"] = filter.ListingType
	}
	if filter.PropertyType != "" {
		where["property_type"] = filter.PropertyType
	}
	if filter.MinPrice > 0 {
		where["price >="] = filter.MinPrice
	}
	if filter.MaxPrice > 0 {
		where["price <="] = filter.MaxPrice
	}
	if filter.MinBedrooms > 0 {
		where["bedrooms >="] = filter.MinBedrooms
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where["lower(title) like"] = "%" + escapeLike(strings.ToLower(q)) + "%"
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes user text match literally under LIKE's default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *PropertyRepo) List(ctx context.Context, filter PropertyFilter) ([]*model.Property, error) {
	where := buildPropertyWhere(filter)
	where["_orderby"] = "ctime desc"
	if filter.Limit > 0 {
		where["_limit"] = []uint{filter.Offset, filter.Limit}
	}
	return r.query(ctx, where)
}

func (r *PropertyRepo) Count(ctx context.Context, filter PropertyFilter) (int64, error) {
	where := buildPropertyWhere(filter)
	sqlStr, args, err := builder.BuildSelect("properties", where, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var total int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListNearest returns geocoded active listings inside box, closest to (lat, lng) first.
// The ordering is a flat-earth approximation; callers refine by exact distance.
func (r *PropertyRepo) ListNearest(ctx context.Context, box BoundingBox, lat, lng float64, limit uint) ([]*model.Property, error) {
	where := map[string]interface{}{
		"status":       model.PropertyStatusActive,
		"geocoded":     1,
		"latitude >=":  box.MinLat,
		"latitude <=":  box.MaxLat,
		"longitude >=": box.MinLng,
		"longitude <=": box.MaxLng,
		"_orderby":     nearestOrder(lat, lng),
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	return r.query(ctx, where)
}

// nearestOrder builds an ORDER BY on squared planar distance. Longitude is scaled by
// cos(lat) so east-west degrees weigh the same as north-south ones.
func nearestOrder(lat, lng float64) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	scale := math.Cos(lat * math.Pi / 180)
	return "power(latitude - " + f(lat) + ", 2) + power((longitude - " + f(lng) + ") * " + f(scale) + ", 2) asc, id asc"
}

func (r *PropertyRepo) ListUngeocoded(ctx context.Context, limit uint) ([]*model.Property, error) {
	where := map[string]interface{}{
		"status":   model.PropertyStatusActive,
		"geocoded": 0,
		"_orderby": "ctime asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	return r.query(ctx, where)
}

func (r *PropertyRepo) query(ctx context.Context, where map[string]interface{}) ([]*model.Property, error) {
	sqlStr, args, err := builder.BuildSelect("properties", where, propertyColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Property
	for rows.Next() {
		var p model.Property
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.ListingType, &p.PropertyType, &p.Price,
			&p.Bedrooms, &p.Bathrooms, &p.AreaSqft, &p.Address, &p.City, &p.State, &p.Country, &p.PostalCode,
			&p.Latitude, &p.Longitude, &p.Geocoded, &p.Status, &p.Ctime, &p.Mtime,
		); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
