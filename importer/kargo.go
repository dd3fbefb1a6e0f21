package importer

import (
	"io"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// Courier-feed (collection-on-delivery settlement) header map.
var kargoHeaderMap = map[string]string{
	"takip no":              "tracking_no",
	"kargo takip no":        "tracking_no",
	"alıcı":                 "name",
	"alici":                 "name",
	"adres":                 "address",
	"il":                    "city",
	"sehir":                 "city",
	"acıklama":              "item_text",
	"aciklama":              "item_text",
	"urun":                  "item_text",
	"adet":                  "quantity",
	"tutar":                 "total_amount",
	"tarih":                 "shipment_date",
	"teslim tarihi":         "delivery_date",
	"odenen":                "payment_amount",
	"tahsilat":              "payment_amount",
	"komisyon":              "fee_commission",
	"hizmet bedeli":         "fee_service",
	"kargo ucreti":          "fee_courier",
	"iade bedeli":           "fee_return",
	"erken odeme kesintisi": "fee_early_payment",
	"odeme sekli":           "payment_method",
	"alıcı kodu":            "recipient_code",
	"alici kodu":            "recipient_code",
}

// MapKargoRow maps one raw courier-feed row to the canonical record.
// Contract: the courier feed never yields an ItemName. Whatever free text it
// carries is freight description, which goes to Notes (in column order) so it
// can never be mistaken for a sellable item.
func MapKargoRow(headers []string, row []string) *Record {
	raw := RowToMap(headers, row)
	rec := &Record{}
	ForEachColumn(headers, raw, func(h, v string) {
		switch kargoHeaderMap[h] {
		case "tracking_no":
			rec.TrackingNo = v
		case "name":
			rec.Name = v
		case "address":
			rec.Address = v
		case "city":
			rec.City = v
		case "item_text":
			if v != "" {
				if rec.Notes != "" {
					rec.Notes = rec.Notes + " | " + v
				} else {
					rec.Notes = v
				}
			}
		case "quantity":
			rec.Quantity = ParseInt(v)
		case "total_amount":
			rec.TotalAmount = ParseDecimal(v)
		case "shipment_date":
			rec.ShipmentDate = ParseDate(v)
		case "delivery_date":
			rec.DeliveryDate = ParseDate(v)
		case "payment_amount":
			rec.PaymentAmount = ParseDecimal(v)
		case "fee_commission":
			rec.FeeCommission = ParseDecimal(v)
		case "fee_service":
			rec.FeeService = ParseDecimal(v)
		case "fee_courier":
			rec.FeeCourier = ParseDecimal(v)
		case "fee_return":
			rec.FeeReturn = ParseDecimal(v)
		case "fee_early_payment":
			rec.FeeEarlyPayment = ParseDecimal(v)
		case "payment_method":
			rec.PaymentMethod = v
		case "recipient_code":
			rec.RecipientCode = v
		}
	})
	if rec.Quantity == nil {
		rec.Quantity = utils.Ptr(1)
	}
	return rec
}

// ReadKargoFile reads a full courier-feed workbook into canonical records.
func ReadKargoFile(r io.Reader) ([]*Record, error) {
	headers, rows, err := ReadSheet(r)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, MapKargoRow(headers, row))
	}
	return records, nil
}
