package importer

import (
	"io"
	"regexp"
	"strings"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// Returns-feed actions after normalization.
const (
	ActionRefund = "refund"
	ActionSwitch = "switch"
)

var returnsHeaderMap = map[string]string{
	"ad-soyad":          "name",
	"ad soyad":          "name",
	"ad":                "name",
	"soyad":             "name",
	"telefon":           "phone",
	"tel":               "phone",
	"urun":              "item_name",
	"urun adı":          "item_name",
	"urun adi":          "item_name",
	"urunadi":           "item_name",
	"kac tl geri geldi": "amount",
	"degisim-iade":      "action",
	"degisim iade":      "action",
	"iade-degisim":      "action",
	"acıklama":          "notes",
	"aciklama":          "notes",
	"tarih":             "date",
}

// leading size token like "XL-", "30 - " ahead of the product name
var leadingSizeRe = regexp.MustCompile(`(?i)^(?:\d{2,3}|xs|s|m|l|xl|xxl|3xl)\s*[- ]\s*`)

// NormalizeAction folds free-form Turkish action text ("İade", "Değişim", ...)
// to a canonical action, or "" when unrecognized.
func NormalizeAction(val string) string {
	s := utils.NormalizeText(val)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "iade") {
		return ActionRefund
	}
	if strings.Contains(s, "degis") {
		return ActionSwitch
	}
	return ""
}

// StripLeadingSizeToken drops a size prefix so returns text like
// "XL-DERİ CEKET" still matches the order's item by base name.
func StripLeadingSizeToken(s string) string {
	out := strings.TrimSpace(leadingSizeRe.ReplaceAllString(strings.TrimSpace(s), ""))
	if out == "" {
		return strings.TrimSpace(s)
	}
	return out
}

// MapReturnsRow maps one raw returns-sheet row to the canonical record.
// Split "ad"/"soyad" name columns join in sheet column order.
func MapReturnsRow(headers []string, row []string) *Record {
	raw := RowToMap(headers, row)
	rec := &Record{}
	ForEachColumn(headers, raw, func(h, v string) {
		switch returnsHeaderMap[h] {
		case "name":
			if rec.Name != "" {
				rec.Name = rec.Name + " " + v
			} else {
				rec.Name = v
			}
		case "phone":
			rec.Phone = v
		case "item_name":
			rec.ItemName = utils.StripParentheticalSuffix(v)
		case "amount":
			rec.Amount = ParseDecimal(v)
		case "action":
			rec.Action = NormalizeAction(v)
		case "notes":
			rec.Notes = v
		case "date":
			rec.Date = ParseDate(v)
		}
	})
	if rec.ItemName != "" {
		rec.ItemNameBase = StripLeadingSizeToken(rec.ItemName)
	}
	rec.UniqueKey = utils.ClientUniqueKey(rec.Name, rec.Phone)
	return rec
}

// ReadReturnsFile reads a returns workbook; rows without any meaningful
// content (name, phone, item, action) are dropped.
func ReadReturnsFile(r io.Reader) ([]*Record, error) {
	headers, rows, err := ReadSheet(r)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec := MapReturnsRow(headers, row)
		if rec.Name == "" && rec.Phone == "" && rec.ItemName == "" && rec.Action == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
