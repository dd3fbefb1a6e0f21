package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bitbucket.org/atolyemoda/satis_backend/importer"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestOrderBeatsPrefersOriginFeed(t *testing.T) {
	from := time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)

	origin := &Order{ID: 1, Source: OrderSourceBizim, DataDate: day(2025, 10, 28)}
	placeholder := &Order{ID: 2, Source: OrderSourceKargo, ShipmentDate: day(2025, 11, 1)}

	assert.True(t, orderBeats(origin, placeholder, from, to))
	assert.False(t, orderBeats(placeholder, origin, from, to))
}

func TestOrderBeatsTieBreaks(t *testing.T) {
	from := time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)

	older := &Order{ID: 1, Source: OrderSourceBizim, DataDate: day(2025, 10, 28)}
	newer := &Order{ID: 2, Source: OrderSourceBizim, DataDate: day(2025, 11, 2)}
	assert.True(t, orderBeats(newer, older, from, to), "most recent qualifying date wins")

	sameDayLowId := &Order{ID: 3, Source: OrderSourceBizim, DataDate: day(2025, 11, 2)}
	assert.False(t, orderBeats(sameDayLowId, newer, from, to))
	higher := &Order{ID: 9, Source: OrderSourceBizim, DataDate: day(2025, 11, 2)}
	assert.True(t, orderBeats(higher, newer, from, to), "highest id wins the final tie")
}

func TestQualifyingDateIgnoresOutOfWindow(t *testing.T) {
	from := time.Date(2025, 10, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 11, 8, 0, 0, 0, 0, time.UTC)

	o := &Order{DataDate: day(2025, 9, 1), ShipmentDate: day(2025, 11, 1)}
	assert.Equal(t, *day(2025, 11, 1), qualifyingDate(o, from, to))

	none := &Order{DataDate: day(2025, 9, 1)}
	assert.True(t, qualifyingDate(none, from, to).IsZero())
}

func TestImportRowStatusTerminality(t *testing.T) {
	// unmatched rows created an order on the fallback item, so replaying the
	// same content must be a duplicate, not a second order
	for _, s := range []ImportRowStatus{ImportRowCreated, ImportRowUpdated, ImportRowUnmatched, ImportRowDuplicate} {
		assert.True(t, s.IsTerminalForDuplicateCheck(), "%s must block re-dispatch", s)
	}
	for _, s := range []ImportRowStatus{ImportRowSkipped, ImportRowError} {
		assert.False(t, s.IsTerminalForDuplicateCheck(), "%s must stay retryable", s)
	}
}

func TestRehomeTolerance(t *testing.T) {
	// flat floor below 250, 2% above
	assert.True(t, rehomeTolerance(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(5)))
	assert.True(t, rehomeTolerance(decimal.NewFromInt(250)).Equal(decimal.NewFromInt(5)))
	assert.True(t, rehomeTolerance(decimal.NewFromInt(1200)).Equal(decimal.NewFromInt(24)))
}

func TestComputeNet(t *testing.T) {
	p := Payment{
		Amount:          decimal.NewFromInt(1200),
		FeeCommission:   decimal.NewFromFloat(36.5),
		FeeService:      decimal.NewFromInt(10),
		FeeCourier:      decimal.NewFromInt(45),
		FeeEarlyPayment: decimal.NewFromFloat(8.5),
	}
	p.computeNet()
	assert.True(t, p.NetAmount.Equal(decimal.NewFromInt(1100)), "net = %s", p.NetAmount)
}

func TestRehomeBeats(t *testing.T) {
	paid := decimal.NewFromInt(1200)
	date := day(2025, 11, 2)
	payment := &Payment{Amount: paid, PaymentDate: date}

	exact := decimal.NewFromInt(1200)
	near := decimal.NewFromInt(1190)
	a := &Order{ID: 1, TotalAmount: &exact, DataDate: day(2025, 11, 1)}
	b := &Order{ID: 2, TotalAmount: &near, DataDate: day(2025, 11, 1)}
	assert.True(t, rehomeBeats(payment, a, b), "closest amount wins")

	sameAmount := decimal.NewFromInt(1200)
	c := &Order{ID: 3, TotalAmount: &sameAmount, DataDate: day(2025, 10, 20)}
	assert.True(t, rehomeBeats(payment, a, c), "closest date breaks amount ties")
	assert.True(t, rehomeBeats(payment, &Order{ID: 9, TotalAmount: &sameAmount, DataDate: day(2025, 11, 1)}, a),
		"highest id breaks the final tie")
}

func TestLevenshteinScorer(t *testing.T) {
	scorer := LevenshteinScorer{}

	rec := &importer.Record{Name: "Ayşe Yılmaz", Address: "Cumhuriyet Mah. No:5", City: "İzmir"}
	same := &Client{Name: "AYŞE YILMAZ", Address: "Cumhuriyet   Mah. No:5", City: "izmir"}
	other := &Client{Name: "Mehmet Kaya", Address: "Atatürk Cad.", City: "Ankara"}

	assert.Equal(t, 100, scorer.ScoreCandidate(rec, same))
	assert.Greater(t, scorer.ScoreCandidate(rec, same), scorer.ScoreCandidate(rec, other))
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100, tokenSortRatio("Yılmaz Ayşe", "ayse yılmaz"), "word order must not matter")
	assert.Equal(t, 0, tokenSortRatio("", ""))
	assert.Less(t, tokenSortRatio("ayse", "mehmet"), 50)
}
