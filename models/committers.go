package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// RowOutcome is the result of committing one normalized feed row. Every row
// gets exactly one terminal status; errors are attached here, never swallowed.
type RowOutcome struct {
	Status    ImportRowStatus `json:"status"`
	Message   string          `json:"message"`
	ClientId  *int            `json:"client_id"`
	OrderId   *int            `json:"order_id"`
	PaymentId *int            `json:"payment_id"`
}

func outcome(status ImportRowStatus, message string) *RowOutcome {
	return &RowOutcome{Status: status, Message: message}
}

func decOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// genericItemName backs rows whose item description is empty: the sale still
// lands as an order, flagged unmatched for operator triage.
const genericItemName = "Genel Ürün"

// ProcessBizimRow commits one origin-feed row: resolve the client, resolve
// the item description, find-or-create the order, write ledger movements and
// cost.
func ProcessBizimRow(tx *gorm.DB, rec *importer.Record) (*RowOutcome, error) {
	if !rec.HasIdentity() {
		return outcome(ImportRowSkipped, "row has no name or phone"), nil
	}

	client, _, _, err := ResolveClient(tx, rec, ClientStatusMissingKargo)
	if err != nil {
		return nil, err
	}
	if err := markClientSeen(tx, client, ClientStatusMissingBizim); err != nil {
		return nil, err
	}

	base, heightCm, weightKg, detailNotes := utils.ParseItemDetails(rec.ItemName)
	if heightCm != nil || weightKg != nil {
		if err := BackfillClientMetrics(tx, client, heightCm, weightKg); err != nil {
			return nil, err
		}
	}

	qty := 1
	if rec.Quantity != nil && *rec.Quantity > 0 {
		qty = *rec.Quantity
	}

	unmatched := false
	unmatchedMsg := "no mapping rule matched; fallback item used"
	outputs, _, err := ResolveMapping(tx, rec.ItemName)
	if err != nil {
		return nil, err
	}
	var lines []ResolvedLine
	if len(outputs) > 0 {
		lines, err = MaterializeOutputs(tx, outputs, base)
		if err == utils.ErrorRecordNotFound {
			out := outcome(ImportRowSkipped, "mapping output names a missing or retired item")
			out.ClientId = &client.ID
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		for i := range lines {
			lines[i].Quantity *= qty
		}
	} else if base != "" {
		item, _, err := FindOrCreateFallbackItem(tx, base)
		if err != nil {
			out := outcome(ImportRowSkipped, err.Error())
			out.ClientId = &client.ID
			return out, nil
		}
		unmatched = true
		lines = []ResolvedLine{{Item: item, Quantity: qty}}
	} else {
		item, _, err := FindOrCreateFallbackItem(tx, genericItemName)
		if err != nil {
			out := outcome(ImportRowSkipped, err.Error())
			out.ClientId = &client.ID
			return out, nil
		}
		unmatched = true
		unmatchedMsg = "row has no item description; generic item used"
		lines = []ResolvedLine{{Item: item, Quantity: qty}}
	}

	order, err := FindOrderByTracking(tx, rec.TrackingNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		order, err = FindOrderByClientAndDate(tx, client.ID, rec.ShipmentDate)
		if err != nil {
			return nil, err
		}
	}
	if order == nil && rec.ShipmentDate == nil {
		order, err = FindRecentCourierPlaceholder(tx, client.ID)
		if err != nil {
			return nil, err
		}
	}

	created := order == nil
	if created {
		dup, err := HasDuplicateOrder(tx, client.ID, rec.ShipmentDate, lines[0].Item.ID)
		if err != nil {
			return nil, err
		}
		if dup {
			out := outcome(ImportRowDuplicate, "order already exists for this client, date and item")
			out.ClientId = &client.ID
			return out, nil
		}
		order = &Order{
			ClientId:   client.ID,
			TrackingNo: rec.TrackingNo,
			Quantity:   qty,
			UnitPrice:  rec.UnitPrice,
			Source:     OrderSourceBizim,
			Status:     OrderStatusOpen,
			DataDate:   rec.ShipmentDate,
		}
		if rec.TotalAmount != nil {
			order.TotalAmount = rec.TotalAmount
		}
		if err := tx.Create(order).Error; err != nil {
			return nil, err
		}
	} else {
		enrichOrderFromBizim(order, rec, qty)
	}
	order.AppendNote(rec.ItemName)
	for _, n := range detailNotes {
		order.AppendNote(n)
	}

	hasLines, err := orderHasLineItems(tx, order.ID)
	if err != nil {
		return nil, err
	}
	if !hasLines {
		if err := ReplaceOrderLineItems(tx, order.ID, lines); err != nil {
			return nil, err
		}
		if err := WriteOutboundMovements(tx, order.ID, lines, "satis"); err != nil {
			return nil, err
		}
	}

	lineItems, err := GetOrderLineItems(tx, order.ID)
	if err != nil {
		return nil, err
	}
	cost, err := CalculateOrderCost(tx, order, lineItems)
	if err != nil {
		return nil, err
	}
	order.TotalCost = cost
	if err := tx.Save(order).Error; err != nil {
		return nil, err
	}

	if err := RefreshOrderPaymentStatus(tx, order); err != nil {
		return nil, err
	}
	if order.TotalAmount != nil && !order.TotalAmount.IsZero() {
		if _, err := RehomePaymentsForClient(tx, client.ID, false); err != nil {
			return nil, err
		}
	}

	status := ImportRowCreated
	if !created {
		status = ImportRowUpdated
	}
	if unmatched {
		status = ImportRowUnmatched
	}
	out := outcome(status, "")
	if unmatched {
		out.Message = unmatchedMsg
	}
	out.ClientId = &client.ID
	out.OrderId = &order.ID
	return out, nil
}

// enrichOrderFromBizim fills the origin feed's fields into a matched order.
// Additive only, and a courier placeholder graduates to a real open order.
func enrichOrderFromBizim(order *Order, rec *importer.Record, qty int) {
	if rec.TrackingNo != "" && order.TrackingNo == "" {
		order.TrackingNo = rec.TrackingNo
	}
	if rec.ShipmentDate != nil && order.DataDate == nil {
		order.DataDate = rec.ShipmentDate
	}
	if rec.UnitPrice != nil && order.UnitPrice == nil {
		order.UnitPrice = rec.UnitPrice
	}
	if rec.TotalAmount != nil && (order.TotalAmount == nil || order.TotalAmount.IsZero()) {
		order.TotalAmount = rec.TotalAmount
	}
	if order.Quantity <= 1 && qty > 1 {
		order.Quantity = qty
	}
	if order.Status == OrderStatusPlaceholder {
		order.Status = OrderStatusOpen
		order.Source = OrderSourceBizim
	}
}

func orderHasLineItems(tx *gorm.DB, orderId int) (bool, error) {
	var count int64
	err := tx.Model(&OrderLineItem{}).Where("order_id = ?", orderId).Count(&count).Error
	return count > 0, err
}

// ProcessKargoRow commits one courier-feed row: match by tracking number or
// client+date, create a placeholder when nothing matches, and book the
// collected payment idempotently.
func ProcessKargoRow(tx *gorm.DB, rec *importer.Record) (*RowOutcome, error) {
	if !rec.HasIdentity() && rec.TrackingNo == "" {
		return outcome(ImportRowSkipped, "row has no identity and no tracking number"), nil
	}

	order, err := FindOrderByTracking(tx, rec.TrackingNo)
	if err != nil {
		return nil, err
	}

	var client *Client
	if order != nil {
		var c Client
		if err := tx.First(&c, order.ClientId).Error; err != nil {
			return nil, err
		}
		client = &c
	} else {
		if !rec.HasIdentity() {
			return outcome(ImportRowSkipped, "tracking number unknown and row has no identity"), nil
		}
		client, _, _, err = ResolveClient(tx, rec, ClientStatusMissingBizim)
		if err != nil {
			return nil, err
		}
		if err := markClientSeen(tx, client, ClientStatusMissingKargo); err != nil {
			return nil, err
		}
		date := rec.DeliveryDate
		if date == nil {
			date = rec.ShipmentDate
		}
		order, err = FindOrderByClientAndDate(tx, client.ID, date)
		if err != nil {
			return nil, err
		}
	}

	created := order == nil
	if created {
		order = &Order{
			ClientId:     client.ID,
			TrackingNo:   rec.TrackingNo,
			TotalAmount:  rec.TotalAmount,
			ShipmentDate: rec.ShipmentDate,
			Source:       OrderSourceKargo,
			Status:       OrderStatusPlaceholder,
		}
		if rec.Quantity != nil && *rec.Quantity > 0 {
			order.Quantity = *rec.Quantity
		}
		order.AppendNote(rec.Notes)
		if rec.RecipientCode != "" {
			order.AppendNote("AliciKodu:" + rec.RecipientCode)
		}
		if err := tx.Create(order).Error; err != nil {
			return nil, err
		}
	} else {
		MergeRecordIntoOrder(order, rec)
		if err := tx.Save(order).Error; err != nil {
			return nil, err
		}
	}

	out := outcome(ImportRowCreated, "")
	if !created {
		out.Status = ImportRowUpdated
	}
	out.ClientId = &client.ID
	out.OrderId = &order.ID

	if rec.PaymentAmount != nil && rec.PaymentAmount.IsPositive() {
		paymentDate := rec.DeliveryDate
		if paymentDate == nil {
			paymentDate = rec.ShipmentDate
		}
		payment := &Payment{
			OrderId:         order.ID,
			Amount:          *rec.PaymentAmount,
			FeeCommission:   decOrZero(rec.FeeCommission),
			FeeService:      decOrZero(rec.FeeService),
			FeeCourier:      decOrZero(rec.FeeCourier),
			FeeReturn:       decOrZero(rec.FeeReturn),
			FeeEarlyPayment: decOrZero(rec.FeeEarlyPayment),
			Method:          rec.PaymentMethod,
			PaymentDate:     paymentDate,
		}
		payment, _, err = UpsertCourierPayment(tx, payment)
		if err != nil {
			return nil, err
		}
		out.PaymentId = &payment.ID
		if err := RefreshOrderPaymentStatus(tx, order); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ProcessReturnsRow commits one returns-sheet row: locate the client's order
// around the return date and mark it refunded or switched, restocking via
// compensating ledger movements. Returns never create clients or orders.
func ProcessReturnsRow(tx *gorm.DB, rec *importer.Record) (*RowOutcome, error) {
	if !rec.HasIdentity() {
		return outcome(ImportRowSkipped, "row has no name or phone"), nil
	}
	if rec.Action == "" {
		return outcome(ImportRowSkipped, "row has no recognizable action"), nil
	}

	client, err := lookupClient(tx, rec)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return outcome(ImportRowUnmatched, "no client found for return row"), nil
	}

	order, err := FindOrderByClientAndDate(tx, client.ID, rec.Date)
	if err != nil {
		return nil, err
	}
	if order == nil {
		order, err = latestActiveOrder(tx, client.ID)
		if err != nil {
			return nil, err
		}
	}
	if order == nil {
		out := outcome(ImportRowUnmatched, "no order found for return row")
		out.ClientId = &client.ID
		return out, nil
	}
	if IsCancelLike(order.Status) {
		out := outcome(ImportRowDuplicate, "order already finalized as "+string(order.Status))
		out.ClientId = &client.ID
		out.OrderId = &order.ID
		return out, nil
	}

	switch rec.Action {
	case importer.ActionRefund:
		order.Status = OrderStatusRefunded
	case importer.ActionSwitch:
		order.Status = OrderStatusSwitched
	default:
		return outcome(ImportRowSkipped, "unknown return action: "+rec.Action), nil
	}
	order.ReturnOrSwitchDate = rec.Date
	order.TotalCost = decimal.Zero
	order.AppendNote(rec.Action + ": " + rec.ItemName)
	if rec.Amount != nil {
		order.AppendNote("iade tutari " + rec.Amount.StringFixed(2))
	}
	if err := tx.Save(order).Error; err != nil {
		return nil, err
	}
	if err := ReverseOrderMovements(tx, order.ID, rec.Action); err != nil {
		return nil, err
	}

	out := outcome(ImportRowUpdated, "")
	out.ClientId = &client.ID
	out.OrderId = &order.ID
	return out, nil
}

// markClientSeen closes the client's missing-counterpart state once the other
// feed has confirmed the same person.
func markClientSeen(tx *gorm.DB, client *Client, pendingStatus ClientStatus) error {
	if client.Status != pendingStatus {
		return nil
	}
	client.Status = ClientStatusMerged
	return tx.Model(client).Update("Status", ClientStatusMerged).Error
}

// lookupClient is the find-only variant of ResolveClient used by the returns
// feed: the same key ladder, but an unknown person stays unknown.
func lookupClient(tx *gorm.DB, rec *importer.Record) (*Client, error) {
	if key := utils.ClientUniqueKey(rec.Name, rec.Phone); key != "" {
		client, err := findClientByKey(tx, key)
		if err != nil || client != nil {
			return client, err
		}
	}
	if key := utils.LegacyClientUniqueKey(rec.Name); key != "" {
		client, err := findClientByKey(tx, key)
		if err != nil || client != nil {
			return client, err
		}
	}
	if rec.Name != "" {
		return findClientByNameFallback(tx, rec.Name)
	}
	return nil, nil
}

// latestActiveOrder is the returns-feed fallback when the row's date matches
// nothing: the client's most recent order that is still open to a return.
func latestActiveOrder(tx *gorm.DB, clientId int) (*Order, error) {
	var orders []*Order
	err := tx.Where("client_id = ? AND merged_into_id IS NULL", clientId).
		Order("id DESC").Limit(10).Find(&orders).Error
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.Status == OrderStatusMerged || IsCancelLike(o.Status) {
			continue
		}
		return o, nil
	}
	return nil, nil
}
