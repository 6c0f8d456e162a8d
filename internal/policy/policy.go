// Package policy implements the pure ContractPolicy functions of spec §4.4
// step 5: inventory-aware size reduction curves, non-crossing clamps, and
// price/size rounding.
//
// Grounded on _examples/original_source/contract_manager.py's ContractParams
// (long_reduction_func/short_reduction_func) and
// _examples/original_source/quote_gen_gateio.py's
// calculate_buy_size/calculate_sell_size, with the short-side formula
// corrected to a monotone piecewise-linear taper — see DESIGN.md Open
// Question 2. The Python source's short_reduction_func mixes an additive
// -10-0.1*pos term and a flat -default_short_size branch with inconsistent
// signs as current_position approaches max_short from either side; this
// replaces both branches with a single linear interpolation.
package policy

import (
	"github.com/shopspring/decimal"

	"marketmaker/pkg/types"
)

// LongSize returns the bid size to quote given current signed position and
// policy. It tapers linearly from DefaultLongSize at position <= 0 to zero
// at position == MaxLong, and is zero beyond MaxLong.
func LongSize(policy types.ContractPolicy, position decimal.Decimal) decimal.Decimal {
	if !policy.EnableLongQuotes {
		return decimal.Zero
	}
	if policy.MaxLong.IsZero() {
		return decimal.Zero
	}
	if position.IsNegative() {
		position = decimal.Zero
	}
	if position.GreaterThanOrEqual(policy.MaxLong) {
		return decimal.Zero
	}
	remaining := policy.MaxLong.Sub(position).Div(policy.MaxLong)
	return RoundSize(policy, policy.DefaultLongSize.Mul(remaining))
}

// ShortSize returns the ask size to quote given current signed position and
// policy. It tapers linearly from DefaultShortSize at position >= 0 to zero
// at position == -MaxShort, and is zero beyond -MaxShort. Mirrors LongSize's
// shape exactly, using the magnitude of a negative position.
func ShortSize(policy types.ContractPolicy, position decimal.Decimal) decimal.Decimal {
	if !policy.EnableShortQuotes {
		return decimal.Zero
	}
	if policy.MaxShort.IsZero() {
		return decimal.Zero
	}
	shortExposure := position.Neg()
	if shortExposure.IsNegative() {
		shortExposure = decimal.Zero
	}
	if shortExposure.GreaterThanOrEqual(policy.MaxShort) {
		return decimal.Zero
	}
	remaining := policy.MaxShort.Sub(shortExposure).Div(policy.MaxShort)
	return RoundSize(policy, policy.DefaultShortSize.Mul(remaining))
}

// bpsDivisor converts a basis-point distance into a fractional multiplier.
var bpsDivisor = decimal.NewFromInt(10000)

// BidPrice computes the raw bid price: mid reduced by
// PositiveQuoteDistanceBps.
func BidPrice(policy types.ContractPolicy, mid decimal.Decimal) decimal.Decimal {
	distance := mid.Mul(decimal.NewFromInt(policy.PositiveQuoteDistanceBps)).Div(bpsDivisor)
	return RoundPrice(policy, mid.Sub(distance))
}

// AskPrice computes the raw ask price: mid increased by
// NegativeQuoteDistanceBps.
func AskPrice(policy types.ContractPolicy, mid decimal.Decimal) decimal.Decimal {
	distance := mid.Mul(decimal.NewFromInt(policy.NegativeQuoteDistanceBps)).Div(bpsDivisor)
	return RoundPrice(policy, mid.Add(distance))
}

// ClampNonCrossing reports whether bid < ask (spec §4.4 step 4). When it
// returns false, quote.Generator collapses both sides to zero size rather
// than resting a crossing order.
func ClampNonCrossing(bidPrice, askPrice decimal.Decimal) bool {
	return bidPrice.LessThan(askPrice)
}

// ClampBid enforces spec §4.4 step 3 against the book's real top of book: if
// the mid-derived bid would meet or improve on the current best bid, it is
// pulled back to one price step behind it rather than resting inside (or
// crossing) the live market.
func ClampBid(bidPrice, bestBid, priceStep decimal.Decimal) decimal.Decimal {
	if bestBid.IsZero() {
		return bidPrice
	}
	if bidPrice.GreaterThanOrEqual(bestBid) {
		return bestBid.Sub(priceStep)
	}
	return bidPrice
}

// ClampAsk is ClampBid's mirror on the ask side.
func ClampAsk(askPrice, bestAsk, priceStep decimal.Decimal) decimal.Decimal {
	if bestAsk.IsZero() {
		return askPrice
	}
	if askPrice.LessThanOrEqual(bestAsk) {
		return bestAsk.Add(priceStep)
	}
	return askPrice
}

// RoundPrice rounds a price down to the contract's PriceStep /
// PriceRoundingPrecision.
func RoundPrice(policy types.ContractPolicy, price decimal.Decimal) decimal.Decimal {
	if policy.PriceStep.IsPositive() {
		steps := price.Div(policy.PriceStep).Floor()
		price = steps.Mul(policy.PriceStep)
	}
	return price.Round(policy.PriceRoundingPrecision)
}

// RoundSize rounds a size down to the contract's QuoteStepSize.
func RoundSize(policy types.ContractPolicy, size decimal.Decimal) decimal.Decimal {
	if policy.QuoteStepSize.IsPositive() {
		steps := size.Div(policy.QuoteStepSize).Floor()
		return steps.Mul(policy.QuoteStepSize)
	}
	return size
}

// ExceedsThreshold reports whether moving from oldPrice to newPrice exceeds
// thresholdBps of oldPrice — spec §4.4's per-side requote gate:
// |new-old|/old >= thresholdBps/10000.
func ExceedsThreshold(oldPrice, newPrice decimal.Decimal, thresholdBps int64) bool {
	if oldPrice.IsZero() {
		return true
	}
	moveBps := newPrice.Sub(oldPrice).Abs().Mul(bpsDivisor).Div(oldPrice)
	return moveBps.GreaterThanOrEqual(decimal.NewFromInt(thresholdBps))
}
