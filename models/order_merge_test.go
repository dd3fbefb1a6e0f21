package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/models"
)

func TestAppendNote(t *testing.T) {
	o := models.Order{}
	o.AppendNote("DERİ CEKET(170,65)")
	o.AppendNote("")
	o.AppendNote("AliciKodu:AB12")
	assert.Equal(t, "DERİ CEKET(170,65) | AliciKodu:AB12", o.Notes)
}

func TestMergeRecordIntoOrderNonDestructive(t *testing.T) {
	shipped := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	known := decimal.NewFromInt(1200)
	incoming := decimal.NewFromInt(900)

	order := models.Order{
		TrackingNo:  "TR123456",
		TotalAmount: &known,
		Notes:       "DERİ CEKET(170,65)",
	}
	rec := &importer.Record{
		TrackingNo:   "TR999999",
		TotalAmount:  &incoming,
		ShipmentDate: &shipped,
		Notes:        "1 KOLİ TEKSTİL",
	}
	models.MergeRecordIntoOrder(&order, rec)

	assert.Equal(t, "TR123456", order.TrackingNo, "existing tracking survives")
	assert.True(t, order.TotalAmount.Equal(known), "existing amount survives")
	assert.Equal(t, &shipped, order.ShipmentDate, "empty field is filled")
	assert.Contains(t, order.Notes, "DERİ CEKET(170,65)", "original description survives")
	assert.Contains(t, order.Notes, "1 KOLİ TEKSTİL")
}

func TestMergeRecordFillsEmptyOrder(t *testing.T) {
	shipped := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(750)

	order := models.Order{}
	rec := &importer.Record{
		TrackingNo:    "TR555",
		TotalAmount:   &amount,
		ShipmentDate:  &shipped,
		RecipientCode: "XY99",
	}
	models.MergeRecordIntoOrder(&order, rec)

	assert.Equal(t, "TR555", order.TrackingNo)
	assert.True(t, order.TotalAmount.Equal(amount))
	assert.Equal(t, &shipped, order.ShipmentDate)
	assert.Equal(t, &shipped, order.DataDate, "shipment date seeds the empty origin date")
	assert.Contains(t, order.Notes, "AliciKodu:XY99")
}

func TestVariantSku(t *testing.T) {
	p := &models.Product{Name: "Deri Ceket", Slug: "deri-ceket"}
	assert.Equal(t, "deri-ceket-xl-siyah", models.VariantSku(p, "XL", "Siyah", ""))
	assert.Equal(t, "deri-ceket", models.VariantSku(p, "", "", ""))
	assert.Equal(t, "deri-ceket-m-2li", models.VariantSku(p, "M", "", "2li"))
}

func TestOutcomeHelpers(t *testing.T) {
	assert.True(t, models.ImportRowCreated.IsTerminalForDuplicateCheck())
	assert.True(t, models.ImportRowDuplicate.IsTerminalForDuplicateCheck())
	assert.False(t, models.ImportRowError.IsTerminalForDuplicateCheck(), "errors stay retryable")
	assert.False(t, models.ImportRowSkipped.IsTerminalForDuplicateCheck())

	assert.True(t, models.IsCancelLike(models.OrderStatusRefunded))
	assert.True(t, models.IsCancelLike(models.OrderStatusSwitched))
	assert.False(t, models.IsCancelLike(models.OrderStatusOpen))
}
