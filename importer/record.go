package importer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Feed sources. "bizim" is the seller's own sales log, "kargo" the courier
// collection-on-delivery settlement log, "iade" the manual returns sheet.
const (
	SourceBizim   = "bizim"
	SourceKargo   = "kargo"
	SourceReturns = "iade"
)

// Record is the canonical typed row shared by all feeds after header mapping.
// Fields a feed does not know stay at their zero value; nullable scalars are
// pointers so "absent" and "zero" stay distinguishable. The JSON form of a
// Record is both the audit payload and the idempotency-hash input, so field
// names must never change meaning.
type Record struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`

	// ItemName is only ever set by the origin and returns feeds. The courier
	// feed demotes its free text to Notes so freight descriptions can never
	// reach inventory resolution.
	ItemName     string `json:"item_name,omitempty"`
	ItemNameBase string `json:"item_name_base,omitempty"`
	Notes        string `json:"notes,omitempty"`

	Quantity    *int             `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`

	TrackingNo    string `json:"tracking_no,omitempty"`
	RecipientCode string `json:"recipient_code,omitempty"`

	PaymentAmount   *decimal.Decimal `json:"payment_amount,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	FeeCommission   *decimal.Decimal `json:"fee_commission,omitempty"`
	FeeService      *decimal.Decimal `json:"fee_service,omitempty"`
	FeeCourier      *decimal.Decimal `json:"fee_courier,omitempty"`
	FeeReturn       *decimal.Decimal `json:"fee_return,omitempty"`
	FeeEarlyPayment *decimal.Decimal `json:"fee_early_payment,omitempty"`

	ShipmentDate *time.Time `json:"shipment_date,omitempty"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`

	// Returns feed only.
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Action string           `json:"action,omitempty"`
	Date   *time.Time       `json:"date,omitempty"`

	// UniqueKey is the client identity hint derived at mapping time.
	UniqueKey string `json:"unique_key,omitempty"`
}

// HasIdentity reports whether the row names a person at all. Rows without a
// name and phone are unactionable and get skipped by the orchestrator.
func (r *Record) HasIdentity() bool {
	return r.Name != "" || r.Phone != ""
}
