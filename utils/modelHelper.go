package utils

import (
	"context"

	"bitbucket.org/atolyemoda/satis_backend/config"
)

/* DB fetching */

// fetch model from db by primary key
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
func FetchAllModels[T any](ctx context.Context, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// count models matching a condition
func ResourceCountWhere[T any](ctx context.Context, query string, args ...any) (int64, error) {
	db := config.GetDB()
	var v T
	var count int64
	err := db.WithContext(ctx).Model(&v).Where(query, args...).Count(&count).Error
	return count, err
}

// validate a column value is unique among rows other than id (id = 0 for create)
func ValidateUnique[T any](ctx context.Context, field string, value string, id int) error {
	db := config.GetDB()
	var v T
	var count int64
	dbCtx := db.WithContext(ctx).Model(&v).Where(field+" = ?", value)
	if id > 0 {
		dbCtx = dbCtx.Where("id <> ?", id)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrorDuplicateValue(field)
	}
	return nil
}

// DereferencePtr returns the zero value for nil pointers.
func DereferencePtr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func Ptr[T any](v T) *T {
	return &v
}
