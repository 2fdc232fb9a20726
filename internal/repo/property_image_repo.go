package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/estate/internal/model"
	"github.com/xxxsen/estate/internal/pkg/dbutil"
)

type PropertyImageRepo struct {
	db *sql.DB
}

func NewPropertyImageRepo(db *sql.DB) *PropertyImageRepo {
	return &PropertyImageRepo{db: db}
}

func (r *PropertyImageRepo) Create(ctx context.Context, img *model.PropertyImage) error {
	data := map[string]interface{}{
		"id":          img.ID,
		"property_id": img.PropertyID,
		"file_key":    img.FileKey,
		"url":         img.URL,
		"sort":        img.Sort,
		"ctime":       img.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("property_images", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *PropertyImageRepo) ListByProperties(ctx context.Context, propertyIDs []string) (map[string][]*model.PropertyImage, error) {
	out := make(map[string][]*model.PropertyImage, len(propertyIDs))
	if len(propertyIDs) == 0 {
		return out, nil
	}
	ids := make([]interface{}, 0, len(propertyIDs))
	for _, id := range propertyIDs {
		ids = append(ids, id)
	}
	where := map[string]interface{}{
		"property_id in": ids,
		"_orderby":       "sort asc, ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("property_images", where, []string{"id", "property_id", "file_key", "url", "sort", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var img model.PropertyImage
		if err := rows.Scan(&img.ID, &img.PropertyID, &img.FileKey, &img.URL, &img.Sort, &img.Ctime); err != nil {
			return nil, err
		}
		out[img.PropertyID] = append(out[img.PropertyID], &img)
	}
	return out, rows.Err()
}

func (r *PropertyImageRepo) CountByProperty(ctx context.Context, propertyID string) (int, error) {
	where := map[string]interface{}{"property_id": propertyID}
	sqlStr, args, err := builder.BuildSelect("property_images", where, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var total int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
