package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
)

const stockMapRedisKey = "stock-map"

// StockMovement is the append-only inventory ledger. On-hand quantity is
// always the sum of movements, never a mutable counter. Corrections are new
// compensating movements; rows are never edited or deleted.
type StockMovement struct {
	ID             string            `gorm:"primary_key;size:36" json:"id"`
	ItemId         int               `gorm:"not null;index" json:"item_id"`
	Direction      MovementDirection `gorm:"size:8;not null" json:"direction"`
	QtyDelta       decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"qty_delta"`
	Reason         string            `gorm:"size:64" json:"reason"`
	RelatedOrderId *int              `gorm:"index" json:"related_order_id"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// AdjustStock appends one ledger movement. Positive qty is an inbound
// movement, negative an outbound one; zero is a no-op.
func AdjustStock(tx *gorm.DB, itemId int, qty decimal.Decimal, reason string, relatedOrderId *int) error {
	if qty.IsZero() {
		return nil
	}
	direction := MovementIn
	if qty.IsNegative() {
		direction = MovementOut
	}
	movement := StockMovement{
		ItemId:         itemId,
		Direction:      direction,
		QtyDelta:       qty,
		Reason:         reason,
		RelatedOrderId: relatedOrderId,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return err
	}
	// the cached stock map is stale the moment the ledger grows
	return config.RemoveRedisKey(stockMapRedisKey)
}

// OnHand sums the ledger for one item.
func OnHand(tx *gorm.DB, itemId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&StockMovement{}).
		Where("item_id = ?", itemId).
		Select("SUM(qty_delta)").Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

type itemOnHand struct {
	ItemId int             `json:"item_id"`
	Total  decimal.Decimal `json:"total"`
}

// OnHandForItems sums the ledger per item in one query. Items with no
// movements are absent from the result.
func OnHandForItems(tx *gorm.DB, itemIds []int) (map[int]decimal.Decimal, error) {
	q := tx.Model(&StockMovement{}).
		Select("item_id, SUM(qty_delta) AS total").
		Group("item_id")
	if len(itemIds) > 0 {
		q = q.Where("item_id IN ?", itemIds)
	}
	var rows []itemOnHand
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		result[row.ItemId] = row.Total
	}
	return result, nil
}

// GetStockMap returns on-hand per item for every item with ledger activity,
// served from redis when the cached copy is still fresh.
func GetStockMap(tx *gorm.DB) (map[int]decimal.Decimal, error) {
	cached := map[int]decimal.Decimal{}
	if found, err := config.GetRedisObject(stockMapRedisKey, &cached); err == nil && found {
		return cached, nil
	}
	result, err := OnHandForItems(tx, nil)
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(stockMapRedisKey, result, 5*time.Minute)
	return result, nil
}

// CalculateOrderCost prices the order's line items at each item's current
// purchase price. Refunded, switched and cancelled orders cost zero: their
// stock came back, so they must not carry cost of goods.
func CalculateOrderCost(tx *gorm.DB, order *Order, lines []*OrderLineItem) (decimal.Decimal, error) {
	if IsCancelLike(order.Status) {
		return decimal.Zero, nil
	}
	total := decimal.Zero
	for _, line := range lines {
		var item Item
		if err := tx.First(&item, line.ItemId).Error; err != nil {
			return decimal.Zero, err
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		total = total.Add(item.PurchasePrice.Mul(qty))
	}
	return total, nil
}

// WriteOutboundMovements appends the "out" movements for an order's line
// items, respecting each item's pair multiplier (a 2-pack consumes two units
// of the underlying item per line quantity).
func WriteOutboundMovements(tx *gorm.DB, orderId int, lines []ResolvedLine, reason string) error {
	for _, line := range lines {
		mult := line.Item.PairMultiplier
		if mult < 1 {
			mult = 1
		}
		qty := decimal.NewFromInt(int64(line.Quantity * mult)).Neg()
		if err := AdjustStock(tx, line.Item.ID, qty, reason, &orderId); err != nil {
			return err
		}
	}
	return nil
}

// ReverseOrderMovements appends compensating movements that bring the
// order's net ledger effect per item back to zero. Used when a return or
// switch brings stock back. Net-based, so processing the same return twice
// appends nothing the second time.
func ReverseOrderMovements(tx *gorm.DB, orderId int, reason string) error {
	var rows []itemOnHand
	err := tx.Model(&StockMovement{}).
		Select("item_id, SUM(qty_delta) AS total").
		Where("related_order_id = ?", orderId).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := AdjustStock(tx, row.ItemId, row.Total.Neg(), reason, &orderId); err != nil {
			return err
		}
	}
	return nil
}
