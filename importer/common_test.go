package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"1234,5":   "1234.5",
		"12.50":    "12.5",
		"1200":     "1200",
	}
	for in, want := range cases {
		d := ParseDecimal(in)
		require.NotNil(t, d, "input %q", in)
		assert.Equal(t, want, d.String(), "input %q", in)
	}
	assert.Nil(t, ParseDecimal(""))
	assert.Nil(t, ParseDecimal("yok"))
}

func TestParseInt(t *testing.T) {
	n := ParseInt("2")
	require.NotNil(t, n)
	assert.Equal(t, 2, *n)

	n = ParseInt("2.0")
	require.NotNil(t, n)
	assert.Equal(t, 2, *n)

	assert.Nil(t, ParseInt("iki"))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"01.11.2025", "2025-11-01", "01/11/2025"} {
		d := ParseDate(in)
		require.NotNil(t, d, "input %q", in)
		assert.True(t, d.Equal(want), "input %q parsed to %v", in, d)
	}
	assert.Nil(t, ParseDate("dun"))
	assert.Nil(t, ParseDate(""))
}

func TestRowToMap(t *testing.T) {
	headers := []string{"alıcı", "", "tutar"}
	row := []string{" Ayşe Yılmaz ", "ignored", "1200"}
	m := RowToMap(headers, row)
	assert.Equal(t, "Ayşe Yılmaz", m["alıcı"])
	assert.Equal(t, "1200", m["tutar"])
	assert.Len(t, m, 2)
}
