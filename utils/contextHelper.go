package utils

import (
	"context"

	"bitbucket.org/atolyemoda/satis_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyImportRunId   = appctx.ContextKeyImportRunId
	ContextKeyFeedSource    = appctx.ContextKeyFeedSource
	ContextKeyDryRun        = appctx.ContextKeyDryRun
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetImportRunIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyImportRunId)
}

func SetImportRunIdInContext(ctx context.Context, runId int) context.Context {
	return appctx.Set(ctx, ContextKeyImportRunId, runId)
}

func GetFeedSourceFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyFeedSource)
}

func SetFeedSourceInContext(ctx context.Context, source string) context.Context {
	return appctx.Set(ctx, ContextKeyFeedSource, source)
}

func GetDryRunFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyDryRun)
}

func SetDryRunInContext(ctx context.Context, dryRun bool) context.Context {
	return appctx.Set(ctx, ContextKeyDryRun, dryRun)
}
