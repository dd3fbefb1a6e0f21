package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "ayse yılmaz", NormalizeText("  Ayşe   Yılmaz "))
	assert.Equal(t, "corek", NormalizeText("ÇÖREK"))
	assert.Equal(t, "umit guler", NormalizeText("Ümit Güler"))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "05321234567", DigitsOnly("0 (532) 123-45-67"))
	assert.Equal(t, "", DigitsOnly("yok"))
}

func TestNormalizePhone(t *testing.T) {
	// the three forms the feeds actually produce must collapse to one key
	assert.Equal(t, "5321234567", NormalizePhone("0532 123 45 67"))
	assert.Equal(t, "5321234567", NormalizePhone("+90 532 123 45 67"))
	assert.Equal(t, "5321234567", NormalizePhone("532 123 45 67"))
	assert.Equal(t, "", NormalizePhone(""))
	assert.Equal(t, "", NormalizePhone("yok"))
}

func TestClientUniqueKey(t *testing.T) {
	assert.Equal(t, "ayse yılmaz|5321234567", ClientUniqueKey("Ayşe Yılmaz", "0532 123 45 67"))
	assert.Equal(t, "ayse yılmaz|", ClientUniqueKey("Ayşe Yılmaz", ""))
	assert.Equal(t, "", ClientUniqueKey("", ""))
	assert.Equal(t, "ayse yılmaz", LegacyClientUniqueKey("AYŞE   YILMAZ"))
}

func TestStripParentheticalSuffix(t *testing.T) {
	assert.Equal(t, "DERİ CEKET", StripParentheticalSuffix("DERİ CEKET (170,65)"))
	assert.Equal(t, "DERİ CEKET", StripParentheticalSuffix("DERİ CEKET(170,65)(hediye)"))
	assert.Equal(t, "ELBİSE (mavi) MODEL", StripParentheticalSuffix("ELBİSE (mavi) MODEL"))
	assert.Equal(t, "ELBİSE", StripParentheticalSuffix("ELBİSE"))
}

func TestParseItemDetails(t *testing.T) {
	base, h, w, notes := ParseItemDetails("DERİ CEKET(170,65)")
	assert.Equal(t, "DERİ CEKET", base)
	require.NotNil(t, h)
	require.NotNil(t, w)
	assert.Equal(t, 170, *h)
	assert.Equal(t, 65, *w)
	assert.Empty(t, notes)

	base, h, w, notes = ParseItemDetails("PANTOLON (34,70) (kapıda teslim)")
	assert.Equal(t, "PANTOLON", base)
	require.NotNil(t, h)
	assert.Equal(t, 34, *h)
	assert.Equal(t, 70, *w)
	assert.Equal(t, []string{"kapıda teslim"}, notes)

	base, h, w, notes = ParseItemDetails("ELBİSE (hediye paketi)")
	assert.Equal(t, "ELBİSE", base)
	assert.Nil(t, h)
	assert.Nil(t, w)
	assert.Equal(t, []string{"hediye paketi"}, notes)

	base, h, w, notes = ParseItemDetails("")
	assert.Equal(t, "", base)
	assert.Nil(t, h)
	assert.Nil(t, w)
	assert.Nil(t, notes)
}
