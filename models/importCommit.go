package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// RunSummary aggregates one batch's per-row outcomes for the caller. Preview
// runs also carry the first mapped rows so the operator can eyeball the
// header mapping before committing.
type RunSummary struct {
	RunId      int                `json:"run_id"`
	DryRun     bool               `json:"dry_run"`
	Total      int                `json:"total"`
	Created    int                `json:"created"`
	Updated    int                `json:"updated"`
	Skipped    int                `json:"skipped"`
	Unmatched  int                `json:"unmatched"`
	Duplicates int                `json:"duplicates"`
	Errors     int                `json:"errors"`
	Sample     []*importer.Record `json:"sample,omitempty"`
}

const previewSampleSize = 5

var errPreviewRollback = errors.New("preview rollback")

// CommitImport drives one uploaded batch: hash, duplicate-check, dispatch and
// audit each row in order, then persist the run counters. One bad row never
// aborts the batch; every row ends with exactly one terminal status.
//
// A best-effort redis lock keeps two uploads of the same feed from
// interleaving; the row-hash check in the database is the authoritative
// replay guard either way.
func CommitImport(ctx context.Context, source string, fileName string, records []*importer.Record) (*RunSummary, error) {
	dryRun, _ := utils.GetDryRunFromContext(ctx)

	lock, err := config.ObtainRunLock(ctx, source, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("an import for feed %q is already running", source)
	}
	if lock != nil {
		defer lock.Release(context.Background())
	}

	summary := &RunSummary{DryRun: dryRun, Total: len(records)}
	if dryRun {
		n := len(records)
		if n > previewSampleSize {
			n = previewSampleSize
		}
		summary.Sample = records[:n]
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run := &ImportRun{Source: source, FileName: fileName, DryRun: dryRun, RowsTotal: len(records)}
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		summary.RunId = run.ID

		for i, rec := range records {
			out := commitRow(tx, run, i, source, rec)
			run.bump(out.Status)
		}

		now := time.Now().UTC()
		run.FinishedAt = &now
		if err := tx.Save(run).Error; err != nil {
			return err
		}
		summary.Created = run.RowsCreated
		summary.Updated = run.RowsUpdated
		summary.Skipped = run.RowsSkipped
		summary.Unmatched = run.RowsUnmatched
		summary.Duplicates = run.RowsDuplicate
		summary.Errors = run.RowsError

		if dryRun {
			return errPreviewRollback
		}
		return nil
	})
	if err != nil && err != errPreviewRollback {
		return nil, err
	}
	return summary, nil
}

// PreviewImport runs the batch and rolls everything back, returning the
// counters the commit would produce plus the first mapped rows. Read-only
// from the caller's point of view.
func PreviewImport(ctx context.Context, source string, fileName string, records []*importer.Record) (*RunSummary, error) {
	return CommitImport(utils.SetDryRunInContext(ctx, true), source, fileName, records)
}

// commitRow processes one row inside its own savepoint so a failing row rolls
// back its partial writes without touching the rest of the run. Panics are
// recovered at this boundary and recorded as row errors.
func commitRow(tx *gorm.DB, run *ImportRun, index int, source string, rec *importer.Record) *RowOutcome {
	logger := config.GetLogger()

	hash, err := utils.ComputeRowHash(rec)
	if err != nil {
		return recordRow(tx, run, index, source, "", rec, outcome(ImportRowError, err.Error()))
	}
	prior, err := FindTerminalRowByHash(tx, hash)
	if err != nil {
		return recordRow(tx, run, index, source, hash, rec, outcome(ImportRowError, err.Error()))
	}
	if prior != nil {
		out := outcome(ImportRowDuplicate, fmt.Sprintf("row already processed in run %d", prior.ImportRunId))
		out.ClientId = prior.ClientId
		out.OrderId = prior.OrderId
		return recordRow(tx, run, index, source, hash, rec, out)
	}

	var out *RowOutcome
	err = tx.Transaction(func(rowTx *gorm.DB) (txErr error) {
		defer func() {
			if r := recover(); r != nil {
				txErr = fmt.Errorf("%v", r)
			}
		}()
		switch source {
		case importer.SourceBizim:
			out, txErr = ProcessBizimRow(rowTx, rec)
		case importer.SourceKargo:
			out, txErr = ProcessKargoRow(rowTx, rec)
		case importer.SourceReturns:
			out, txErr = ProcessReturnsRow(rowTx, rec)
		default:
			txErr = fmt.Errorf("unknown feed source %q", source)
		}
		return txErr
	})
	if err != nil {
		config.LogError(logger, "importCommit", "commitRow", "row processing failed", map[string]any{
			"run_id": run.ID, "row": index, "source": source,
		}, err)
		out = outcome(ImportRowError, err.Error())
	}
	return recordRow(tx, run, index, source, hash, rec, out)
}

// recordRow appends the row's audit record. The audit write itself failing is
// logged and folded into the outcome; it must never break the loop.
func recordRow(tx *gorm.DB, run *ImportRun, index int, source string, hash string, rec *importer.Record, out *RowOutcome) *RowOutcome {
	mapped, err := utils.StableDumps(rec)
	if err != nil {
		mapped = ""
	}
	row := &ImportRow{
		ImportRunId: run.ID,
		RowIndex:    index,
		RowHash:     hash,
		Source:      source,
		MappedJson:  mapped,
		Status:      out.Status,
		Message:     out.Message,
		ClientId:    out.ClientId,
		OrderId:     out.OrderId,
		PaymentId:   out.PaymentId,
	}
	if err := tx.Create(row).Error; err != nil {
		config.LogError(config.GetLogger(), "importCommit", "recordRow", "audit write failed", map[string]any{
			"run_id": run.ID, "row": index,
		}, err)
		out.Status = ImportRowError
		out.Message = err.Error()
	}
	return out
}
