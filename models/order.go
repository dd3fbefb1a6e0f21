package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/importer"
)

// Matching windows. These mirror the business's observed day-to-day
// tolerances; they are tunable, not a correctness guarantee.
const (
	clientDateWindowDays    = 7
	placeholderTrailingDays = 3
)

// Order is one commercial transaction. DataDate is the origin-feed date and
// ShipmentDate the courier-feed date; the two must never be conflated.
type Order struct {
	ID                 int              `gorm:"primary_key" json:"id"`
	TrackingNo         string           `gorm:"size:64;index" json:"tracking_no"`
	ClientId           int              `gorm:"not null;index" json:"client_id"`
	Quantity           int              `gorm:"default:1" json:"quantity"`
	UnitPrice          *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	TotalAmount        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_amount"`
	TotalCost          decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	ShippingFee        decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"shipping_fee"`
	DataDate           *time.Time       `gorm:"index" json:"data_date"`
	ShipmentDate       *time.Time       `gorm:"index" json:"shipment_date"`
	ReturnOrSwitchDate *time.Time       `json:"return_or_switch_date"`
	Source             OrderSource      `gorm:"size:16;not null;index" json:"source"`
	Status             OrderStatus      `gorm:"size:16;index" json:"status"`
	Notes              string           `gorm:"type:text" json:"notes"`
	MergedIntoId       *int             `gorm:"index" json:"merged_into_id"`
	PaidByBankTransfer bool             `gorm:"default:false" json:"paid_by_bank_transfer"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderLineItem is the materialized result of resolving the order's free-text
// description through the mapper. Fully replaceable: the recalculation engine
// rewrites these rows when mapping rules change.
type OrderLineItem struct {
	ID       int `gorm:"primary_key" json:"id"`
	OrderId  int `gorm:"not null;index" json:"order_id"`
	ItemId   int `gorm:"not null;index" json:"item_id"`
	Quantity int `gorm:"not null;default:1" json:"quantity"`
}

// AppendNote adds text to the order's notes without ever replacing what is
// already there; provenance of the original description must survive merging.
func (o *Order) AppendNote(note string) {
	if note == "" {
		return
	}
	if o.Notes != "" {
		o.Notes = o.Notes + " | " + note
	} else {
		o.Notes = note
	}
}

// mergeEligible reports whether an order found by tracking number may absorb
// new feed data: courier placeholders and orders without a finalized status.
func (o *Order) mergeEligible() bool {
	switch o.Status {
	case "", OrderStatusOpen, OrderStatusPlaceholder:
		return true
	}
	return false
}

// FindOrderByTracking matches on the courier tracking number. Returns nil
// when the match exists but is not merge-eligible.
func FindOrderByTracking(tx *gorm.DB, trackingNo string) (*Order, error) {
	if trackingNo == "" {
		return nil, nil
	}
	var o Order
	err := tx.Where("tracking_no = ?", trackingNo).Order("id DESC").First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.mergeEligible() {
		return nil, nil
	}
	return &o, nil
}

// FindOrderByClientAndDate finds an order for the client whose origin or
// courier date falls within +-7 days of the given date. Among candidates an
// origin-feed order beats a courier placeholder; ties break by most recent
// qualifying date, then highest id.
func FindOrderByClientAndDate(tx *gorm.DB, clientId int, date *time.Time) (*Order, error) {
	if date == nil {
		return nil, nil
	}
	from := date.AddDate(0, 0, -clientDateWindowDays)
	to := date.AddDate(0, 0, clientDateWindowDays)

	var candidates []*Order
	err := tx.Where("client_id = ? AND merged_into_id IS NULL", clientId).
		Where("(data_date BETWEEN ? AND ?) OR (shipment_date BETWEEN ? AND ?)", from, to, from, to).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if orderBeats(c, best, from, to) {
			best = c
		}
	}
	return best, nil
}

func orderBeats(a, b *Order, from, to time.Time) bool {
	aOrigin := a.Source == OrderSourceBizim
	bOrigin := b.Source == OrderSourceBizim
	if aOrigin != bOrigin {
		return aOrigin
	}
	ad := qualifyingDate(a, from, to)
	bd := qualifyingDate(b, from, to)
	if !ad.Equal(bd) {
		return ad.After(bd)
	}
	return a.ID > b.ID
}

// qualifyingDate picks the latest of the order's two dates that lies inside
// the window.
func qualifyingDate(o *Order, from, to time.Time) time.Time {
	var best time.Time
	for _, d := range []*time.Time{o.DataDate, o.ShipmentDate} {
		if d == nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		if d.After(best) {
			best = *d
		}
	}
	return best
}

// FindRecentCourierPlaceholder returns the most recent open courier
// placeholder for the client within a short trailing window. Used when the
// origin-feed row carries no usable date.
func FindRecentCourierPlaceholder(tx *gorm.DB, clientId int) (*Order, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -placeholderTrailingDays)
	var o Order
	err := tx.Where("client_id = ? AND source = ? AND status = ? AND merged_into_id IS NULL", clientId, OrderSourceKargo, OrderStatusPlaceholder).
		Where("created_at >= ?", cutoff).
		Order("id DESC").First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MergeRecordIntoOrder enriches an existing order from an incoming courier
// record. Strictly additive: an incoming value lands only in empty fields.
func MergeRecordIntoOrder(order *Order, rec *importer.Record) {
	if rec.TrackingNo != "" && order.TrackingNo == "" {
		order.TrackingNo = rec.TrackingNo
	}
	if rec.TotalAmount != nil && (order.TotalAmount == nil || order.TotalAmount.IsZero()) {
		order.TotalAmount = rec.TotalAmount
	}
	if rec.ShipmentDate != nil && order.ShipmentDate == nil {
		order.ShipmentDate = rec.ShipmentDate
	}
	if rec.ShipmentDate != nil && order.DataDate == nil {
		order.DataDate = rec.ShipmentDate
	}
	if rec.RecipientCode != "" {
		order.AppendNote("AliciKodu:" + rec.RecipientCode)
	}
	if rec.Notes != "" {
		order.AppendNote(rec.Notes)
	}
}

// HasDuplicateOrder is the last guard before insert: an order already exists
// for the same (client, date, item) triple, so a row processed twice must not
// create a second one.
func HasDuplicateOrder(tx *gorm.DB, clientId int, date *time.Time, itemId int) (bool, error) {
	if date == nil || itemId == 0 {
		return false, nil
	}
	var count int64
	err := tx.Model(&Order{}).
		Joins("JOIN order_line_items ON order_line_items.order_id = orders.id").
		Where("orders.client_id = ? AND order_line_items.item_id = ?", clientId, itemId).
		Where("orders.data_date = ? OR orders.shipment_date = ?", date, date).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplaceOrderLineItems rewrites the order's line items wholesale.
func ReplaceOrderLineItems(tx *gorm.DB, orderId int, lines []ResolvedLine) error {
	if err := tx.Where("order_id = ?", orderId).Delete(&OrderLineItem{}).Error; err != nil {
		return err
	}
	for _, line := range lines {
		li := OrderLineItem{OrderId: orderId, ItemId: line.Item.ID, Quantity: line.Quantity}
		if err := tx.Create(&li).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetOrderLineItems loads the order's current line items.
func GetOrderLineItems(tx *gorm.DB, orderId int) ([]*OrderLineItem, error) {
	var lines []*OrderLineItem
	err := tx.Where("order_id = ?", orderId).Order("id ASC").Find(&lines).Error
	return lines, err
}
