package services

import (
	"math/rand/v2"
	"sync"

	"github.com/arrxxhh/Payment-gateway/models"
	"github.com/shopspring/decimal"
)

const (
	successCutoff = 0.80
	failedCutoff  = 0.95
)

// RandomSource yields uniform draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

type defaultSource struct{}

func (defaultSource) Float64() float64 { return rand.Float64() }

// Outcome is the simulated result of a checkout.
type Outcome struct {
	Status   models.TransactionStatus
	RiskFlag bool
}

// OutcomePolicy decides how a new transaction resolves.
type OutcomePolicy interface {
	Decide(amount decimal.Decimal) Outcome
}

// SimulatedOutcomePolicy resolves 80% of checkouts as SUCCESS, 15% as FAILED
// and 5% as PENDING. Amounts at or above the high-value threshold are always
// flagged; the rest are flagged at the noise rate.
type SimulatedOutcomePolicy struct {
	mu        sync.Mutex
	src       RandomSource
	highValue decimal.Decimal
	noiseRate float64
}

func NewSimulatedOutcomePolicy(src RandomSource, highValue decimal.Decimal, noiseRate float64) *SimulatedOutcomePolicy {
	if src == nil {
		src = defaultSource{}
	}
	return &SimulatedOutcomePolicy{src: src, highValue: highValue, noiseRate: noiseRate}
}

func (p *SimulatedOutcomePolicy) Decide(amount decimal.Decimal) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out Outcome
	switch r := p.src.Float64(); {
	case r < successCutoff:
		out.Status = models.StatusSuccess
	case r < failedCutoff:
		out.Status = models.StatusFailed
	default:
		out.Status = models.StatusPending
	}

	// second draw only below the threshold
	out.RiskFlag = amount.GreaterThanOrEqual(p.highValue) || p.src.Float64() < p.noiseRate
	return out
}

// FixedOutcomePolicy always returns the same outcome.
type FixedOutcomePolicy struct {
	Outcome Outcome
}

func (p FixedOutcomePolicy) Decide(decimal.Decimal) Outcome {
	return p.Outcome
}
