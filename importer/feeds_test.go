package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/atolyemoda/satis_backend/utils"
)

func TestMapBizimRow(t *testing.T) {
	headers := []string{"alıcı", "telefon", "urun", "adet", "tutar", "tarih"}
	row := []string{"Ayşe Yılmaz", "0532 123 45 67", "DERİ CEKET(170,65)", "", "1.200,00", "01.11.2025"}

	rec := MapBizimRow(headers, row)
	assert.Equal(t, "Ayşe Yılmaz", rec.Name)
	assert.Equal(t, "DERİ CEKET(170,65)", rec.ItemName)
	require.NotNil(t, rec.Quantity)
	assert.Equal(t, 1, *rec.Quantity, "missing quantity defaults to 1")
	require.NotNil(t, rec.TotalAmount)
	assert.Equal(t, "1200", rec.TotalAmount.String())
	require.NotNil(t, rec.ShipmentDate)
	assert.Equal(t, "ayse yılmaz|5321234567", rec.UniqueKey)
}

func TestMapKargoRowNeverSetsItemName(t *testing.T) {
	headers := []string{"alıcı", "acıklama", "odenen", "komisyon", "teslim tarihi", "takip no"}
	row := []string{"Ayşe Yılmaz", "1 KOLİ TEKSTİL", "1200", "36,50", "02.11.2025", "TR123456"}

	rec := MapKargoRow(headers, row)
	assert.Empty(t, rec.ItemName, "courier free text must never reach the item field")
	assert.Equal(t, "1 KOLİ TEKSTİL", rec.Notes)
	assert.Equal(t, "TR123456", rec.TrackingNo)
	require.NotNil(t, rec.PaymentAmount)
	assert.Equal(t, "1200", rec.PaymentAmount.String())
	require.NotNil(t, rec.FeeCommission)
	assert.Equal(t, "36.5", rec.FeeCommission.String())
	require.NotNil(t, rec.DeliveryDate)
}

// Multi-column fields (split name columns, competing item columns, courier
// free-text notes) must assemble in sheet column order every time, so the
// same row always produces the same record and the same content hash.
func TestMapRowsDeterministic(t *testing.T) {
	returnsHeaders := []string{"ad", "soyad", "telefon"}
	returnsRow := []string{"Ayşe", "Yılmaz", "0532 123 45 67"}
	bizimHeaders := []string{"alıcı", "urun", "aciklama"}
	bizimRow := []string{"Ayşe Yılmaz", "DERİ CEKET", "2 ADET GONDERIM"}
	kargoHeaders := []string{"takip no", "acıklama", "urun"}
	kargoRow := []string{"TR123456", "1 KOLİ TEKSTİL", "DERİ CEKET"}

	first := MapReturnsRow(returnsHeaders, returnsRow)
	assert.Equal(t, "Ayşe Yılmaz", first.Name, "name parts join in column order")
	firstHash, err := utils.ComputeRowHash(first)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		rec := MapReturnsRow(returnsHeaders, returnsRow)
		assert.Equal(t, first.Name, rec.Name)
		hash, err := utils.ComputeRowHash(rec)
		require.NoError(t, err)
		assert.Equal(t, firstHash, hash, "identical row must always hash identically")

		brec := MapBizimRow(bizimHeaders, bizimRow)
		assert.Equal(t, "2 ADET GONDERIM", brec.ItemName, "last item column wins, every run")

		krec := MapKargoRow(kargoHeaders, kargoRow)
		assert.Equal(t, "1 KOLİ TEKSTİL | DERİ CEKET", krec.Notes, "notes append in column order")
	}
}

func TestNormalizeAction(t *testing.T) {
	assert.Equal(t, ActionRefund, NormalizeAction("İade"))
	assert.Equal(t, ActionRefund, NormalizeAction("iade edildi"))
	assert.Equal(t, ActionSwitch, NormalizeAction("Değişim"))
	assert.Equal(t, ActionSwitch, NormalizeAction("degisim yapıldı"))
	assert.Equal(t, "", NormalizeAction("kayboldu"))
	assert.Equal(t, "", NormalizeAction(""))
}

func TestStripLeadingSizeToken(t *testing.T) {
	assert.Equal(t, "DERİ CEKET", StripLeadingSizeToken("XL-DERİ CEKET"))
	assert.Equal(t, "DERİ CEKET", StripLeadingSizeToken("38 - DERİ CEKET"))
	assert.Equal(t, "DERİ CEKET", StripLeadingSizeToken("DERİ CEKET"))
}

func TestMapReturnsRow(t *testing.T) {
	headers := []string{"ad-soyad", "telefon", "urun", "degisim-iade", "tarih", "kac tl geri geldi"}
	row := []string{"Ayşe Yılmaz", "0532 123 45 67", "XL-DERİ CEKET (170,65)", "İade", "05.11.2025", "-1200"}

	rec := MapReturnsRow(headers, row)
	assert.Equal(t, ActionRefund, rec.Action)
	assert.Equal(t, "XL-DERİ CEKET", rec.ItemName, "trailing parenthetical stripped")
	assert.Equal(t, "DERİ CEKET", rec.ItemNameBase, "leading size token stripped")
	require.NotNil(t, rec.Amount)
	assert.True(t, rec.Amount.IsNegative())
	require.NotNil(t, rec.Date)
}
