package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/models"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

const maxImportSizeBytes int64 = 20 * 1024 * 1024

var tracer = otel.Tracer("satis-backend")

// importCommitHandler accepts one feed workbook as multipart "file" and runs
// the batch. preview (or ?dry_run=true) processes and rolls back, returning
// the counters a real commit would produce.
func importCommitHandler(source string, preview bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
			return
		}
		if fileHeader.Size > maxImportSizeBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			config.LogError(logger, "imports.go", "importCommitHandler", "open upload", fileHeader.Filename, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		var records []*importer.Record
		switch source {
		case importer.SourceBizim:
			records, err = importer.ReadBizimFile(file)
		case importer.SourceKargo:
			records, err = importer.ReadKargoFile(file)
		case importer.SourceReturns:
			records, err = importer.ReadReturnsFile(file)
		}
		if err != nil {
			config.LogError(logger, "imports.go", "importCommitHandler", "read workbook", fileHeader.Filename, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "import."+source)
		defer span.End()
		ctx = utils.SetFeedSourceInContext(ctx, source)
		dryRun := preview || strings.EqualFold(c.Query("dry_run"), "true")

		var summary *models.RunSummary
		if dryRun {
			summary, err = models.PreviewImport(ctx, source, fileHeader.Filename, records)
		} else {
			summary, err = models.CommitImport(ctx, source, fileHeader.Filename, records)
		}
		if err != nil {
			config.LogError(logger, "imports.go", "importCommitHandler", "commit batch", fileHeader.Filename, err)
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func importRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		runs, err := models.ListImportRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func importRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		run, rows, err := models.GetImportRun(c.Request.Context(), id)
		if err == utils.ErrorRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "rows": rows})
	}
}

func listMappingRulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := models.ListItemMappingRules(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func createMappingRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewItemMappingRule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rule, err := models.CreateItemMappingRule(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, rule)
	}
}

func updateMappingRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
			return
		}
		var input models.NewItemMappingRule
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rule, err := models.UpdateItemMappingRule(c.Request.Context(), id, &input)
		if err == utils.ErrorRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func deleteMappingRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
			return
		}
		rule, err := models.DeleteItemMappingRule(c.Request.Context(), id)
		if err == utils.ErrorRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

func stockReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		stock, err := models.GetStockMap(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stock)
	}
}

func overpaidReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		rows, err := models.FindOverpaidOrders(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProducts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// unmatchedRowsHandler is the operator triage view: rows where no mapping
// rule fired, with the overall count.
func unmatchedRowsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		count, err := utils.ResourceCountWhere[models.ImportRow](ctx, "status = ?", models.ImportRowUnmatched)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var rows []*models.ImportRow
		err = config.GetDB().WithContext(ctx).
			Where("status = ?", models.ImportRowUnmatched).
			Order("id DESC").Limit(100).Find(&rows).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": count, "rows": rows})
	}
}

// reconcileCandidatesHandler ranks stored clients against ad-hoc row data so
// an operator can resolve an ambiguous identity by hand.
func reconcileCandidatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := &importer.Record{
			Name:    c.Query("name"),
			Address: c.Query("address"),
			City:    c.Query("city"),
		}
		if rec.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		db := config.GetDB().WithContext(c.Request.Context())
		scored, err := models.FindClientCandidates(db, nil, rec, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, scored)
	}
}

type recalcRequest struct {
	ProductId *int   `json:"product_id"`
	Since     string `json:"since"`
	DryRun    bool   `json:"dry_run"`
}

func recalcHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recalcRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter := models.RecalcFilter{ProductId: req.ProductId}
		if req.Since != "" {
			// an explicitly supplied date that fails to parse is a malformed request
			since, err := time.Parse("2006-01-02", req.Since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
				return
			}
			filter.Since = &since
		}
		summary, err := models.RecalcOrders(c.Request.Context(), filter, req.DryRun)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

type rehomeRequest struct {
	CrossClient bool `json:"cross_client"`
	DryRun      bool `json:"dry_run"`
}

func rehomePaymentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rehomeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		results, err := models.RehomeSweep(c.Request.Context(), req.CrossClient, req.DryRun)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"moved": len(results), "results": results})
	}
}
