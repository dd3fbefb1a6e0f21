package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// RecalcFilter bounds one replay pass so a long recalculation stays chunkable.
type RecalcFilter struct {
	ProductId *int       `json:"product_id"`
	Since     *time.Time `json:"since"`
}

type RecalcSummary struct {
	DryRun          bool `json:"dry_run"`
	OrdersProcessed int  `json:"orders_processed"`
	OrdersUpdated   int  `json:"orders_updated"`
	ItemsRewritten  int  `json:"items_rewritten"`
}

// RecalcOrders replays historical origin-feed rows through the current
// mapping rules without re-reading any spreadsheet: each order's stored audit
// payload is re-resolved, the resulting line items are compared to the
// current ones, and only the difference is applied. Line items are updated in
// place and the ledger receives compensating movements for the quantity
// delta; inbound receipts are never touched. Running twice with unchanged
// rules writes nothing the second time.
func RecalcOrders(ctx context.Context, filter RecalcFilter, dryRun bool) (*RecalcSummary, error) {
	summary := &RecalcSummary{DryRun: dryRun}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderIds, err := recalcCandidateOrders(tx, filter)
		if err != nil {
			return err
		}
		for _, orderId := range orderIds {
			updated, rewritten, err := recalcOrder(tx, orderId, filter, dryRun)
			if err != nil {
				return err
			}
			summary.OrdersProcessed++
			if updated {
				summary.OrdersUpdated++
				summary.ItemsRewritten += rewritten
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// recalcCandidateOrders lists distinct orders that have origin-feed audit
// rows, bounded by the since-date when given.
func recalcCandidateOrders(tx *gorm.DB, filter RecalcFilter) ([]int, error) {
	q := tx.Model(&ImportRow{}).
		Distinct("import_rows.order_id").
		Joins("JOIN orders ON orders.id = import_rows.order_id").
		Where("import_rows.source = ? AND import_rows.order_id IS NOT NULL", importer.SourceBizim).
		Where("orders.merged_into_id IS NULL").
		Order("import_rows.order_id ASC")
	if filter.Since != nil {
		q = q.Where("orders.data_date >= ? OR orders.shipment_date >= ?", filter.Since, filter.Since)
	}
	var ids []int
	err := q.Pluck("import_rows.order_id", &ids).Error
	return ids, err
}

func recalcOrder(tx *gorm.DB, orderId int, filter RecalcFilter, dryRun bool) (updated bool, rewritten int, err error) {
	var order Order
	if err := tx.First(&order, orderId).Error; err != nil {
		return false, 0, err
	}
	if IsCancelLike(order.Status) || order.Status == OrderStatusMerged {
		return false, 0, nil
	}

	desired, err := desiredLines(tx, orderId)
	if err != nil {
		return false, 0, err
	}
	if desired == nil {
		return false, 0, nil
	}

	current, err := GetOrderLineItems(tx, orderId)
	if err != nil {
		return false, 0, err
	}

	if filter.ProductId != nil {
		touches, err := touchesProduct(tx, *filter.ProductId, desired, current)
		if err != nil || !touches {
			return false, 0, err
		}
	}

	currentQty := make(map[int]int, len(current))
	for _, li := range current {
		currentQty[li.ItemId] += li.Quantity
	}
	desiredQty := make(map[int]int, len(desired))
	for _, line := range desired {
		desiredQty[line.Item.ID] += line.Quantity
	}
	if mapsEqual(desiredQty, currentQty) {
		return false, 0, nil
	}
	if dryRun {
		return true, lineDiffCount(desiredQty, currentQty), nil
	}

	rewritten, err = applyLineItemDiff(tx, orderId, desiredQty, current)
	if err != nil {
		return false, 0, err
	}
	if err := applyLedgerDiff(tx, orderId, desired); err != nil {
		return false, 0, err
	}

	lineItems, err := GetOrderLineItems(tx, orderId)
	if err != nil {
		return false, 0, err
	}
	cost, err := CalculateOrderCost(tx, &order, lineItems)
	if err != nil {
		return false, 0, err
	}
	if !cost.Equal(order.TotalCost) {
		if err := tx.Model(&order).Update("TotalCost", cost).Error; err != nil {
			return false, 0, err
		}
	}
	return true, rewritten, nil
}

// desiredLines re-resolves the order's stored origin-feed payloads through
// the current rules and aggregates the resulting (item, quantity) pairs.
// Returns nil when no payload re-resolves, so the order is left alone rather
// than stripped.
func desiredLines(tx *gorm.DB, orderId int) ([]ResolvedLine, error) {
	var rows []*ImportRow
	err := tx.Where("order_id = ? AND source = ?", orderId, importer.SourceBizim).
		Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	var lines []ResolvedLine
	for _, row := range rows {
		// duplicate rows replay content an earlier row already contributed
		switch row.Status {
		case ImportRowCreated, ImportRowUpdated, ImportRowUnmatched:
		default:
			continue
		}
		var rec importer.Record
		if err := json.Unmarshal([]byte(row.MappedJson), &rec); err != nil {
			continue
		}
		qty := 1
		if rec.Quantity != nil && *rec.Quantity > 0 {
			qty = *rec.Quantity
		}
		base, _, _, _ := utils.ParseItemDetails(rec.ItemName)
		outputs, _, err := ResolveMapping(tx, rec.ItemName)
		if err != nil {
			return nil, err
		}
		var rowLines []ResolvedLine
		if len(outputs) > 0 {
			rowLines, err = MaterializeOutputs(tx, outputs, base)
			if err == utils.ErrorRecordNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			for i := range rowLines {
				rowLines[i].Quantity *= qty
			}
		} else if base != "" {
			item, _, err := FindOrCreateFallbackItem(tx, base)
			if err != nil {
				continue
			}
			rowLines = []ResolvedLine{{Item: item, Quantity: qty}}
		} else {
			// empty descriptions committed against the generic item; replay
			// must resolve them the same way or recalc would strip the line
			item, _, err := FindOrCreateFallbackItem(tx, genericItemName)
			if err != nil {
				continue
			}
			rowLines = []ResolvedLine{{Item: item, Quantity: qty}}
		}
		lines = append(lines, rowLines...)
	}
	return lines, nil
}

func touchesProduct(tx *gorm.DB, productId int, desired []ResolvedLine, current []*OrderLineItem) (bool, error) {
	for _, line := range desired {
		if line.Item.ProductId != nil && *line.Item.ProductId == productId {
			return true, nil
		}
	}
	for _, li := range current {
		var item Item
		if err := tx.First(&item, li.ItemId).Error; err != nil {
			return false, err
		}
		if item.ProductId != nil && *item.ProductId == productId {
			return true, nil
		}
	}
	return false, nil
}

func mapsEqual(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func lineDiffCount(desired, current map[int]int) int {
	count := 0
	for k, v := range desired {
		if current[k] != v {
			count++
		}
	}
	for k := range current {
		if _, ok := desired[k]; !ok {
			count++
		}
	}
	return count
}

// applyLineItemDiff reshapes the stored line items into the desired aggregate
// with the minimum of writes: updates in place, inserts what is missing,
// deletes what no longer resolves.
func applyLineItemDiff(tx *gorm.DB, orderId int, desired map[int]int, current []*OrderLineItem) (int, error) {
	rewritten := 0
	seen := make(map[int]bool, len(desired))
	for _, li := range current {
		want, ok := desired[li.ItemId]
		switch {
		case !ok || seen[li.ItemId]:
			if err := tx.Delete(li).Error; err != nil {
				return 0, err
			}
			rewritten++
		case li.Quantity != want:
			if err := tx.Model(li).Update("Quantity", want).Error; err != nil {
				return 0, err
			}
			rewritten++
			seen[li.ItemId] = true
		default:
			seen[li.ItemId] = true
		}
	}
	for itemId, qty := range desired {
		if seen[itemId] {
			continue
		}
		li := OrderLineItem{OrderId: orderId, ItemId: itemId, Quantity: qty}
		if err := tx.Create(&li).Error; err != nil {
			return 0, err
		}
		rewritten++
	}
	return rewritten, nil
}

// applyLedgerDiff appends compensating movements so the order's net ledger
// effect per item equals the desired outbound quantities. Append-only: the
// original movements stay in history, the correction is its own movement.
func applyLedgerDiff(tx *gorm.DB, orderId int, desired []ResolvedLine) error {
	var rows []itemOnHand
	err := tx.Model(&StockMovement{}).
		Select("item_id, SUM(qty_delta) AS total").
		Where("related_order_id = ?", orderId).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	currentNet := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		currentNet[row.ItemId] = row.Total
	}

	desiredNet := make(map[int]decimal.Decimal, len(desired))
	for _, line := range desired {
		mult := line.Item.PairMultiplier
		if mult < 1 {
			mult = 1
		}
		qty := decimal.NewFromInt(int64(line.Quantity * mult)).Neg()
		desiredNet[line.Item.ID] = desiredNet[line.Item.ID].Add(qty)
	}

	for itemId, want := range desiredNet {
		delta := want.Sub(currentNet[itemId])
		if err := AdjustStock(tx, itemId, delta, "recalc", &orderId); err != nil {
			return err
		}
	}
	for itemId, have := range currentNet {
		if _, ok := desiredNet[itemId]; ok {
			continue
		}
		if err := AdjustStock(tx, itemId, have.Neg(), "recalc", &orderId); err != nil {
			return err
		}
	}
	return nil
}
