package importer

import (
	"io"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// Origin-feed (internal sales log) header map, keyed by normalized header.
// Unknown columns are dropped.
var bizimHeaderMap = map[string]string{
	"alıcı":           "name",
	"alici":           "name",
	"alıcının adı":    "name",
	"telefon":         "phone",
	"tel":             "phone",
	"adres":           "address",
	"il":              "city",
	"sehir":           "city",
	"urun":            "item_name",
	"acıklama":        "item_name",
	"aciklama":        "item_name",
	"adet":            "quantity",
	"birim fiyat":     "unit_price",
	"tutar":           "total_amount",
	"tarih":           "shipment_date",
	"gonderim tarihi": "shipment_date",
	"takip no":        "tracking_no",
	"kargo takip no":  "tracking_no",
}

// MapBizimRow maps one raw origin-feed row to the canonical record. Columns
// are visited in sheet order so the mapped record is deterministic.
func MapBizimRow(headers []string, row []string) *Record {
	raw := RowToMap(headers, row)
	rec := &Record{}
	ForEachColumn(headers, raw, func(h, v string) {
		switch bizimHeaderMap[h] {
		case "name":
			rec.Name = v
		case "phone":
			rec.Phone = v
		case "address":
			rec.Address = v
		case "city":
			rec.City = v
		case "item_name":
			rec.ItemName = v
		case "quantity":
			rec.Quantity = ParseInt(v)
		case "unit_price":
			rec.UnitPrice = ParseDecimal(v)
		case "total_amount":
			rec.TotalAmount = ParseDecimal(v)
		case "shipment_date":
			rec.ShipmentDate = ParseDate(v)
		case "tracking_no":
			rec.TrackingNo = v
		}
	})
	if rec.Quantity == nil {
		rec.Quantity = utils.Ptr(1)
	}
	rec.UniqueKey = utils.ClientUniqueKey(rec.Name, rec.Phone)
	return rec
}

// ReadBizimFile reads a full origin-feed workbook into canonical records.
func ReadBizimFile(r io.Reader) ([]*Record, error) {
	headers, rows, err := ReadSheet(r)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, MapBizimRow(headers, row))
	}
	return records, nil
}
