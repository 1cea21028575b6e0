package services

import (
	"sort"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/arrxxhh/Payment-gateway/security"
	"github.com/shopspring/decimal"
)

// Aggregator computes ledger analytics. It decrypts amounts only.
type Aggregator struct {
	cipher *security.FieldCipher
	loc    *time.Location
}

// NewAggregator groups daily trends by calendar day in loc.
func NewAggregator(cipher *security.FieldCipher, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{cipher: cipher, loc: loc}
}

func (a *Aggregator) Summarize(txns []models.Transaction) models.Summary {
	sum := models.Summary{Revenue: decimal.Zero, Trends: []models.TrendPoint{}}
	byDay := make(map[string]*models.TrendPoint)

	for i := range txns {
		t := &txns[i]
		sum.Total++
		switch t.Status {
		case models.StatusSuccess:
			sum.Success++
		case models.StatusFailed:
			sum.Failed++
		case models.StatusPending:
			sum.Pending++
		case models.StatusRefunded:
			sum.Refunded++
		}
		if t.IsSettled() {
			sum.Settled++
		}

		day := t.Timestamp.In(a.loc).Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &models.TrendPoint{Date: day, Revenue: decimal.Zero}
			byDay[day] = point
		}
		point.Total++

		if t.IsSuccessful() {
			amount := decryptAmount(a.cipher, t)
			sum.Revenue = sum.Revenue.Add(amount)
			point.Revenue = point.Revenue.Add(amount)
		}
	}

	for _, p := range byDay {
		sum.Trends = append(sum.Trends, *p)
	}
	sort.Slice(sum.Trends, func(i, j int) bool { return sum.Trends[i].Date < sum.Trends[j].Date })
	return sum
}

// ByMethod always reports both methods. Revenue counts successful records only.
func (a *Aggregator) ByMethod(txns []models.Transaction) map[models.PaymentMethod]models.MethodStats {
	out := map[models.PaymentMethod]models.MethodStats{
		models.MethodUPI:  {Revenue: decimal.Zero},
		models.MethodCard: {Revenue: decimal.Zero},
	}
	for i := range txns {
		t := &txns[i]
		stats, ok := out[t.Method]
		if !ok {
			continue
		}
		stats.Count++
		if t.IsSuccessful() {
			stats.Revenue = stats.Revenue.Add(decryptAmount(a.cipher, t))
		}
		out[t.Method] = stats
	}
	return out
}

// SettlementRatioOf is settled/total, or 0 for an empty ledger.
func SettlementRatioOf(total, settled int64) models.SettlementRatio {
	r := models.SettlementRatio{Total: total, Settled: settled}
	if total > 0 {
		r.Ratio = float64(settled) / float64(total)
	}
	return r
}
