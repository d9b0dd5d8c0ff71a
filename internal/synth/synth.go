// Package synth builds the open-interest-weighted synthetic daily record
// for one commodity from its same-day expiry contracts.
//
// The synthesizer is the one calculator that refuses to degrade: when no
// contract carries positive open interest there is no meaningful weighting
// basis, and silently defaulting would corrupt the continuous price series.
//
// All price values use shopspring/decimal — never float64 for money.
package synth

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/seatflow/position-engine/internal/model"
)

// ErrNoQualifyingData is returned when no same-day contract has positive
// open interest, so no weighted record can be synthesized.
var ErrNoQualifyingData = errors.New("synth: no contracts with positive open interest")

// PriceScale is the number of decimal places for weighted price rounding.
var PriceScale int32 = 2

// Weights returns the open-interest weight of each qualifying contract
// (open interest > 0), in input order. Weights sum to 1 up to decimal
// division precision.
func Weights(records []model.MarketRecord) ([]decimal.Decimal, error) {
	var total int64
	for _, r := range records {
		if r.OpenInterest > 0 {
			total += r.OpenInterest
		}
	}
	if total == 0 {
		return nil, ErrNoQualifyingData
	}

	totalDec := decimal.NewFromInt(total)
	weights := make([]decimal.Decimal, 0, len(records))
	for _, r := range records {
		if r.OpenInterest <= 0 {
			continue
		}
		weights = append(weights, decimal.NewFromInt(r.OpenInterest).Div(totalDec))
	}
	return weights, nil
}

// Synthesize combines one commodity's same-day contract records into a
// single weighted record. Price fields are open-interest-weighted averages
// rounded to PriceScale; volume and open interest are plain sums over the
// qualifying contracts. Contracts with zero open interest are excluded from
// both the weighting and the sums.
//
// Returns ErrNoQualifyingData when the qualifying set is empty or its total
// open interest is zero.
func Synthesize(commodity string, records []model.MarketRecord) (*model.WeightedContract, error) {
	qualifying := make([]model.MarketRecord, 0, len(records))
	for _, r := range records {
		if r.OpenInterest > 0 {
			qualifying = append(qualifying, r)
		}
	}
	if len(qualifying) == 0 {
		return nil, ErrNoQualifyingData
	}

	weights, err := Weights(qualifying)
	if err != nil {
		return nil, err
	}

	out := &model.WeightedContract{
		Date:         qualifying[0].Date,
		Commodity:    commodity,
		ContractUnit: qualifying[0].ContractUnit,
	}

	var open, high, low, closep, settle decimal.Decimal
	for i, r := range qualifying {
		w := weights[i]
		open = open.Add(r.Open.Mul(w))
		high = high.Add(r.High.Mul(w))
		low = low.Add(r.Low.Mul(w))
		closep = closep.Add(r.Close.Mul(w))
		settle = settle.Add(r.Settle.Mul(w))
		out.Volume += r.Volume
		out.OpenInterest += r.OpenInterest
	}

	out.Open = open.Round(PriceScale)
	out.High = high.Round(PriceScale)
	out.Low = low.Round(PriceScale)
	out.Close = closep.Round(PriceScale)
	out.Settle = settle.Round(PriceScale)

	return out, nil
}
