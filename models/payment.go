package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/config"
)

// Rehoming limits. A payment may move when its order clearly should not hold
// it and exactly one nearby order clearly should.
const (
	rehomeDateWindowDays   = 14
	rehomeTolerancePercent = 2
	rehomeToleranceMinimum = 5
)

// Payment is one COD settlement from the courier feed. NetAmount is what the
// seller actually receives after the courier's deductions.
type Payment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	OrderId         int             `gorm:"not null;index" json:"order_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	FeeCommission   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_commission"`
	FeeService      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_service"`
	FeeCourier      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_courier"`
	FeeReturn       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_return"`
	FeeEarlyPayment decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_early_payment"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"net_amount"`
	Method          string          `gorm:"size:32" json:"method"`
	PaymentDate     *time.Time      `gorm:"index" json:"payment_date"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) computeNet() {
	p.NetAmount = p.Amount.
		Sub(p.FeeCommission).
		Sub(p.FeeService).
		Sub(p.FeeCourier).
		Sub(p.FeeReturn).
		Sub(p.FeeEarlyPayment)
}

// UpsertCourierPayment records a settlement idempotently per (order, date).
// The courier sheet is cumulative, so a bigger amount for the same day
// replaces the stored one in place; a smaller or equal amount is a re-read of
// data already booked and changes nothing.
func UpsertCourierPayment(tx *gorm.DB, incoming *Payment) (payment *Payment, created bool, err error) {
	incoming.computeNet()

	var existing Payment
	q := tx.Where("order_id = ?", incoming.OrderId)
	if incoming.PaymentDate != nil {
		q = q.Where("payment_date = ?", incoming.PaymentDate)
	} else {
		q = q.Where("payment_date IS NULL")
	}
	err = q.First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := tx.Create(incoming).Error; err != nil {
			return nil, false, err
		}
		return incoming, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if incoming.Amount.GreaterThan(existing.Amount) {
		existing.Amount = incoming.Amount
		existing.FeeCommission = incoming.FeeCommission
		existing.FeeService = incoming.FeeService
		existing.FeeCourier = incoming.FeeCourier
		existing.FeeReturn = incoming.FeeReturn
		existing.FeeEarlyPayment = incoming.FeeEarlyPayment
		existing.Method = incoming.Method
		existing.computeNet()
		if err := tx.Save(&existing).Error; err != nil {
			return nil, false, err
		}
	}
	return &existing, false, nil
}

// TotalPaid sums payment amounts booked against the order.
func TotalPaid(tx *gorm.DB, orderId int) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.Model(&Payment{}).
		Where("order_id = ?", orderId).
		Select("SUM(amount)").Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// RefreshOrderPaymentStatus recomputes the order's paid/partial status from
// its booked payments. Finalized statuses are left alone.
func RefreshOrderPaymentStatus(tx *gorm.DB, order *Order) error {
	if IsCancelLike(order.Status) || order.Status == OrderStatusMerged {
		return nil
	}
	paid, err := TotalPaid(tx, order.ID)
	if err != nil {
		return err
	}
	status := order.Status
	switch {
	case paid.IsZero():
		if status == OrderStatusPaid || status == OrderStatusPartial {
			status = OrderStatusOpen
		}
	case order.TotalAmount != nil && paid.GreaterThanOrEqual(*order.TotalAmount):
		status = OrderStatusPaid
	default:
		status = OrderStatusPartial
	}
	if status == order.Status {
		return nil
	}
	order.Status = status
	return tx.Model(order).Update("Status", status).Error
}

// rehomeTolerance is how far a payment amount may sit from an order total and
// still count as "matching": the larger of a flat floor and a percentage of
// the amount, absorbing rounding and petty fee noise.
func rehomeTolerance(amount decimal.Decimal) decimal.Decimal {
	pct := amount.Mul(decimal.NewFromInt(rehomeTolerancePercent)).Div(decimal.NewFromInt(100))
	floor := decimal.NewFromInt(rehomeToleranceMinimum)
	if pct.GreaterThan(floor) {
		return pct
	}
	return floor
}

// safeToVacate reports whether the payment's current order can give it up:
// the order never expected money, no longer expects it, or holds more than
// its total even after this payment leaves.
func safeToVacate(tx *gorm.DB, payment *Payment, holder *Order) (bool, error) {
	if IsCancelLike(holder.Status) || holder.Status == OrderStatusPlaceholder {
		return true, nil
	}
	if holder.TotalAmount == nil || !holder.TotalAmount.IsPositive() {
		return true, nil
	}
	paid, err := TotalPaid(tx, holder.ID)
	if err != nil {
		return false, err
	}
	return paid.Sub(payment.Amount).GreaterThanOrEqual(*holder.TotalAmount), nil
}

// rehomeCandidate checks one order as a destination: unpaid, expecting an
// amount within tolerance of the payment, and dated within the window.
func rehomeCandidate(tx *gorm.DB, payment *Payment, order *Order) (bool, error) {
	if order.Status == OrderStatusMerged || IsCancelLike(order.Status) {
		return false, nil
	}
	if order.TotalAmount == nil || order.TotalAmount.IsZero() {
		return false, nil
	}
	diff := payment.Amount.Sub(*order.TotalAmount).Abs()
	if diff.GreaterThan(rehomeTolerance(payment.Amount)) {
		return false, nil
	}
	if payment.PaymentDate != nil {
		d := qualifyingDate(order,
			payment.PaymentDate.AddDate(0, 0, -rehomeDateWindowDays),
			payment.PaymentDate.AddDate(0, 0, rehomeDateWindowDays))
		if d.IsZero() {
			return false, nil
		}
	}
	paid, err := TotalPaid(tx, order.ID)
	if err != nil {
		return false, err
	}
	return paid.IsZero(), nil
}

// RehomeResult describes one proposed or executed payment move.
type RehomeResult struct {
	PaymentId   int    `json:"payment_id"`
	FromOrderId int    `json:"from_order_id"`
	ToOrderId   int    `json:"to_order_id"`
	Reason      string `json:"reason"`
}

// RehomePayment moves the payment to a better-matching order of the same
// client, if and only if the current holder can safely give it up and exactly
// one candidate fits. A payment moves at most once per pass; ambiguity leaves
// it where it is.
func RehomePayment(tx *gorm.DB, payment *Payment, dryRun bool) (*RehomeResult, error) {
	var holder Order
	if err := tx.First(&holder, payment.OrderId).Error; err != nil {
		return nil, err
	}
	ok, err := safeToVacate(tx, payment, &holder)
	if err != nil || !ok {
		return nil, err
	}

	var siblings []*Order
	err = tx.Where("client_id = ? AND id <> ? AND merged_into_id IS NULL", holder.ClientId, holder.ID).
		Find(&siblings).Error
	if err != nil {
		return nil, err
	}

	target, err := pickRehomeTarget(tx, payment, siblings)
	if err != nil || target == nil {
		return nil, err
	}
	return executeRehome(tx, payment, &holder, target, "same-client", dryRun)
}

// RehomePaymentCrossClient extends the search to clients with the same exact
// name (case-insensitive). Covers the same person imported twice under
// different phone formats before identity resolution caught up.
func RehomePaymentCrossClient(tx *gorm.DB, payment *Payment, dryRun bool) (*RehomeResult, error) {
	var holder Order
	if err := tx.First(&holder, payment.OrderId).Error; err != nil {
		return nil, err
	}
	ok, err := safeToVacate(tx, payment, &holder)
	if err != nil || !ok {
		return nil, err
	}

	var client Client
	if err := tx.First(&client, holder.ClientId).Error; err != nil {
		return nil, err
	}
	var twins []*Client
	err = tx.Where("LOWER(name) = ? AND id <> ?", strings.ToLower(strings.TrimSpace(client.Name)), client.ID).
		Find(&twins).Error
	if err != nil {
		return nil, err
	}
	if len(twins) == 0 {
		return nil, nil
	}
	twinIds := make([]int, 0, len(twins))
	for _, t := range twins {
		twinIds = append(twinIds, t.ID)
	}

	var candidates []*Order
	err = tx.Where("client_id IN ? AND merged_into_id IS NULL", twinIds).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	target, err := pickRehomeTarget(tx, payment, candidates)
	if err != nil || target == nil {
		return nil, err
	}
	return executeRehome(tx, payment, &holder, target, "same-name", dryRun)
}

// pickRehomeTarget filters candidates and scores the survivors: closest
// amount, then closest date, then highest id.
func pickRehomeTarget(tx *gorm.DB, payment *Payment, orders []*Order) (*Order, error) {
	var best *Order
	for _, o := range orders {
		ok, err := rehomeCandidate(tx, payment, o)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if best == nil || rehomeBeats(payment, o, best) {
			best = o
		}
	}
	return best, nil
}

func rehomeBeats(payment *Payment, a, b *Order) bool {
	ad := payment.Amount.Sub(*a.TotalAmount).Abs()
	bd := payment.Amount.Sub(*b.TotalAmount).Abs()
	if !ad.Equal(bd) {
		return ad.LessThan(bd)
	}
	if payment.PaymentDate != nil {
		ag := dateGap(payment.PaymentDate, a)
		bg := dateGap(payment.PaymentDate, b)
		if ag != bg {
			return ag < bg
		}
	}
	return a.ID > b.ID
}

func dateGap(ref *time.Time, o *Order) int {
	best := -1
	for _, d := range []*time.Time{o.DataDate, o.ShipmentDate} {
		if d == nil {
			continue
		}
		gap := int(ref.Sub(*d).Hours() / 24)
		if gap < 0 {
			gap = -gap
		}
		if best < 0 || gap < best {
			best = gap
		}
	}
	if best < 0 {
		return 1 << 30
	}
	return best
}

func executeRehome(tx *gorm.DB, payment *Payment, from, to *Order, reason string, dryRun bool) (*RehomeResult, error) {
	result := &RehomeResult{
		PaymentId:   payment.ID,
		FromOrderId: from.ID,
		ToOrderId:   to.ID,
		Reason:      reason,
	}
	if dryRun {
		return result, nil
	}
	if err := tx.Model(payment).Update("OrderId", to.ID).Error; err != nil {
		return nil, err
	}
	payment.OrderId = to.ID
	if err := RefreshOrderPaymentStatus(tx, from); err != nil {
		return nil, err
	}
	if err := RefreshOrderPaymentStatus(tx, to); err != nil {
		return nil, err
	}
	return result, nil
}

// RehomePaymentsForClient runs the same-client rehomer over every payment
// currently booked against the client's orders. Called after an order gains a
// confirmed total, when stranded placeholder payments may finally have a
// proper home. At most one payment moves per sweep.
func RehomePaymentsForClient(tx *gorm.DB, clientId int, dryRun bool) (*RehomeResult, error) {
	var payments []*Payment
	err := tx.Joins("JOIN orders ON orders.id = payments.order_id").
		Where("orders.client_id = ?", clientId).
		Order("payments.id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		result, err := RehomePayment(tx, p, dryRun)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RehomeSweep runs the rehomer over every payment in the store, the
// operator-triggered cleanup after a large backfill. Same-client moves are
// tried first; the cross-client variant only when asked for.
func RehomeSweep(ctx context.Context, crossClient bool, dryRun bool) ([]*RehomeResult, error) {
	var results []*RehomeResult
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payments []*Payment
		if err := tx.Order("id ASC").Find(&payments).Error; err != nil {
			return err
		}
		for _, p := range payments {
			result, err := RehomePayment(tx, p, dryRun)
			if err != nil {
				return err
			}
			if result == nil && crossClient {
				result, err = RehomePaymentCrossClient(tx, p, dryRun)
				if err != nil {
					return err
				}
			}
			if result != nil {
				results = append(results, result)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// OverpaidOrder is one row of the overpayment report.
type OverpaidOrder struct {
	OrderId     int             `json:"order_id"`
	ClientId    int             `json:"client_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Excess      decimal.Decimal `json:"excess"`
}

// FindOverpaidOrders reports orders holding more money than they expect, the
// operator's worklist for payments the rehomer could not place on its own.
func FindOverpaidOrders(tx *gorm.DB) ([]OverpaidOrder, error) {
	var rows []OverpaidOrder
	err := tx.Model(&Order{}).
		Select("orders.id AS order_id, orders.client_id, orders.total_amount, SUM(payments.amount) AS total_paid, SUM(payments.amount) - orders.total_amount AS excess").
		Joins("JOIN payments ON payments.order_id = orders.id").
		Where("orders.total_amount IS NOT NULL AND orders.total_amount > 0").
		Where("orders.merged_into_id IS NULL").
		Group("orders.id").
		Having("SUM(payments.amount) > orders.total_amount").
		Order("excess DESC").
		Scan(&rows).Error
	return rows, err
}
