package importer

import (
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// Accepted date layouts, in trial order. Feed operators switch locales
// between uploads, so every known format is tried and failure yields nil.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
}

// ReadSheet reads the first worksheet of an xlsx stream. The first row is
// returned as normalized headers, the rest as raw cell strings.
func ReadSheet(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = NormalizeHeader(h)
	}
	return headers, rows[1:], nil
}

func NormalizeHeader(h string) string {
	return utils.NormalizeText(h)
}

// RowToMap pairs one raw row with the sheet's normalized headers.
// Cells under an empty header are dropped.
func RowToMap(headers []string, row []string) map[string]string {
	data := make(map[string]string, len(headers))
	for idx, h := range headers {
		if h == "" {
			continue
		}
		if idx < len(row) {
			data[h] = strings.TrimSpace(row[idx])
		}
	}
	return data
}

// ForEachColumn visits one row's cells in sheet column order, at most once
// per distinct header. Mapper output must never depend on map iteration
// order: the same row always produces the same record, so its content hash
// stays stable across runs.
func ForEachColumn(headers []string, raw map[string]string, visit func(header, value string)) {
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		if v, ok := raw[h]; ok {
			visit(h, v)
		}
	}
}

// ParseDecimal parses an amount that may carry locale separators
// ("1.234,56", "1,234.56", "1234,5"). Returns nil on failure, never an error.
func ParseDecimal(value string) *decimal.Decimal {
	s := strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if s == "" {
		return nil
	}
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// comma is the decimal separator
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// ParseInt parses an integer, tolerating float renderings like "2.0".
// Returns nil on failure.
func ParseInt(value string) *int {
	d := ParseDecimal(value)
	if d == nil {
		return nil
	}
	n := int(d.IntPart())
	return &n
}

// ParseDate tries each known layout and fails to nil rather than erroring.
func ParseDate(value string) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}
