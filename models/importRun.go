package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// ImportRun is one submission of one feed file. Counters are the operator's
// at-a-glance answer to "what did this upload actually do".
type ImportRun struct {
	ID             int        `gorm:"primary_key" json:"id"`
	Source         string     `gorm:"size:16;not null;index" json:"source"`
	FileName       string     `gorm:"size:255" json:"file_name"`
	DryRun         bool       `gorm:"default:false" json:"dry_run"`
	RowsTotal      int        `gorm:"default:0" json:"rows_total"`
	RowsCreated    int        `gorm:"default:0" json:"rows_created"`
	RowsUpdated    int        `gorm:"default:0" json:"rows_updated"`
	RowsSkipped    int        `gorm:"default:0" json:"rows_skipped"`
	RowsUnmatched  int        `gorm:"default:0" json:"rows_unmatched"`
	RowsDuplicate  int        `gorm:"default:0" json:"rows_duplicate"`
	RowsError      int        `gorm:"default:0" json:"rows_error"`
	StartedAt      time.Time  `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ImportRow is the per-row audit trail and the idempotency anchor: the row
// hash identifies this exact content, and a terminal prior outcome makes a
// re-submitted identical row a duplicate instead of a re-execution.
type ImportRow struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ImportRunId    int             `gorm:"not null;index" json:"import_run_id"`
	RowIndex       int             `gorm:"not null" json:"row_index"`
	RowHash        string          `gorm:"size:64;not null;index" json:"row_hash"`
	Source         string          `gorm:"size:16;not null" json:"source"`
	MappedJson     string          `gorm:"type:text" json:"mapped_json"`
	Status         ImportRowStatus `gorm:"size:16;not null;index" json:"status"`
	Message        string          `gorm:"type:text" json:"message"`
	ClientId       *int            `gorm:"index" json:"client_id"`
	OrderId        *int            `gorm:"index" json:"order_id"`
	PaymentId      *int            `json:"payment_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FindTerminalRowByHash returns the prior terminal outcome for this exact row
// content, if any. Error and skipped outcomes do not count: the row may be
// retried after the operator fixes the cause.
func FindTerminalRowByHash(tx *gorm.DB, hash string) (*ImportRow, error) {
	var rows []*ImportRow
	err := tx.Where("row_hash = ?", hash).Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Status.IsTerminalForDuplicateCheck() {
			return row, nil
		}
	}
	return nil, nil
}

func (run *ImportRun) bump(status ImportRowStatus) {
	switch status {
	case ImportRowCreated:
		run.RowsCreated++
	case ImportRowUpdated:
		run.RowsUpdated++
	case ImportRowSkipped:
		run.RowsSkipped++
	case ImportRowUnmatched:
		run.RowsUnmatched++
	case ImportRowDuplicate:
		run.RowsDuplicate++
	case ImportRowError:
		run.RowsError++
	}
}

// ListImportRuns returns runs newest first.
func ListImportRuns(ctx context.Context, limit int) ([]*ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	db := config.GetDB()
	var runs []*ImportRun
	err := db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetImportRun loads one run with its rows.
func GetImportRun(ctx context.Context, id int) (*ImportRun, []*ImportRow, error) {
	run, err := utils.FetchModel[ImportRun](ctx, id)
	if err != nil {
		return nil, nil, err
	}
	db := config.GetDB()
	var rows []*ImportRow
	err = db.WithContext(ctx).Where("import_run_id = ?", id).Order("row_index ASC").Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	return run, rows, nil
}
