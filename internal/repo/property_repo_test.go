package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/estate/internal/model"
	appErr "github.com/xxxsen/estate/internal/pkg/errors"
	"github.com/xxxsen/estate/internal/pkg/timeutil"
	"github.com/xxxsen/estate/internal/repo"
	"github.com/xxxsen/estate/internal/testutil"
)

func newProperty(owner, city string, price int64, lat, lng float64, geocoded int) *model.Property {
	now := timeutil.NowUnix()
	return &model.Property{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		Title:        "Listing in " + city,
		ListingType:  model.ListingTypeSale,
		PropertyType: model.PropertyTypeHouse,
		Price:        price,
		Bedrooms:     3,
		City:         city,
		Latitude:     lat,
		Longitude:    lng,
		Geocoded:     geocoded,
		Status:       model.PropertyStatusActive,
		Ctime:        now,
		Mtime:        now,
	}
}

func TestPropertyRepoFiltersAndStatus(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	props := repo.NewPropertyRepo(db)
	ctx := context.Background()
	owner := uuid.NewString()
	city := "City-" + uuid.NewString()

	cheap := newProperty(owner, city, 100000, 10, 10, 1)
	pricey := newProperty(owner, city, 900000, 10.01, 10.01, 1)
	require.NoError(t, props.Create(ctx, cheap))
	require.NoError(t, props.Create(ctx, pricey))

	filter := repo.PropertyFilter{OwnerID: owner, City: city, MaxPrice: 500000, Limit: 10}
	items, err := props.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, cheap.ID, items[0].ID)

	total, err := props.Count(ctx, repo.PropertyFilter{OwnerID: owner})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	inBox, err := props.ListNearest(ctx, repo.BoundingBox{MinLat: 9.9, MaxLat: 10.1, MinLng: 9.9, MaxLng: 10.1}, 10, 10, 500)
	require.NoError(t, err)
	var found int
	for _, p := range inBox {
		if p.OwnerID == owner {
			found++
		}
	}
	require.Equal(t, 2, found)

	require.NoError(t, props.UpdateStatus(ctx, pricey.ID, model.PropertyStatusSold, timeutil.NowUnix()))
	total, err = props.Count(ctx, repo.PropertyFilter{OwnerID: owner, Status: model.PropertyStatusSold})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	require.NoError(t, props.UpdateStatus(ctx, cheap.ID, model.PropertyStatusDeleted, timeutil.NowUnix()))
	_, err = props.GetByID(ctx, cheap.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, props.Update(ctx, cheap), appErr.ErrNotFound)
}

func TestPropertyRepoUngeocodedAndImages(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	props := repo.NewPropertyRepo(db)
	images := repo.NewPropertyImageRepo(db)
	ctx := context.Background()
	p := newProperty(uuid.NewString(), "Nowhere", 1000, 0, 0, 0)
	require.NoError(t, props.Create(ctx, p))

	pending, err := props.ListUngeocoded(ctx, 1000)
	require.NoError(t, err)
	var ids []string
	for _, item := range pending {
		ids = append(ids, item.ID)
	}
	require.Contains(t, ids, p.ID)

	for i := 0; i < 2; i++ {
		require.NoError(t, images.Create(ctx, &model.PropertyImage{
			ID:         uuid.NewString(),
			PropertyID: p.ID,
			FileKey:    uuid.NewString() + ".jpg",
			URL:        "http://example.com/x.jpg",
			Sort:       i,
			Ctime:      timeutil.NowUnix(),
		}))
	}
	count, err := images.CountByProperty(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	byProperty, err := images.ListByProperties(ctx, []string{p.ID})
	require.NoError(t, err)
	require.Len(t, byProperty[p.ID], 2)
	require.Equal(t, 0, byProperty[p.ID][0].Sort)
}

func TestPropertyRepoNearestAndSearch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	props := repo.NewPropertyRepo(db)
	ctx := context.Background()
	owner := uuid.NewString()
	far := newProperty(owner, "Edge", 1000, -71.05, 30.05, 1)
	near := newProperty(owner, "Edge", 1000, -71.001, 30.001, 1)
	far.Title = "100% Sea_View Villa"
	require.NoError(t, props.Create(ctx, far))
	require.NoError(t, props.Create(ctx, near))

	box := repo.BoundingBox{MinLat: -71.1, MaxLat: -70.9, MinLng: 29.9, MaxLng: 30.1}
	items, err := props.ListNearest(ctx, box, -71, 30, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, near.ID, items[0].ID)

	items, err = props.List(ctx, repo.PropertyFilter{OwnerID: owner, Query: "sea_view"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, far.ID, items[0].ID)

	items, err = props.List(ctx, repo.PropertyFilter{OwnerID: owner, Query: "100%"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = props.List(ctx, repo.PropertyFilter{OwnerID: owner, Query: "sea%villa"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestPropertyRepoSetCoordinatesSkipsChangedListings(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	props := repo.NewPropertyRepo(db)
	ctx := context.Background()
	pending := newProperty(uuid.NewString(), "Nowhere", 1000, 0, 0, 0)
	sold := newProperty(uuid.NewString(), "Nowhere", 1000, 0, 0, 0)
	require.NoError(t, props.Create(ctx, pending))
	require.NoError(t, props.Create(ctx, sold))
	require.NoError(t, props.UpdateStatus(ctx, sold.ID, model.PropertyStatusSold, timeutil.NowUnix()))

	require.NoError(t, props.SetCoordinates(ctx, pending.ID, 1.5, 2.5, timeutil.NowUnix()))
	require.ErrorIs(t, props.SetCoordinates(ctx, pending.ID, 3, 4, timeutil.NowUnix()), appErr.ErrNotFound)
	require.ErrorIs(t, props.SetCoordinates(ctx, sold.ID, 1.5, 2.5, timeutil.NowUnix()), appErr.ErrNotFound)

	got, err := props.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Geocoded)
	require.Equal(t, 1.5, got.Latitude)
	got, err = props.GetByID(ctx, sold.ID)
	require.NoError(t, err)
	require.Equal(t, model.PropertyStatusSold, got.Status)
	require.Equal(t, 0, got.Geocoded)
}
