package agents

import (
	"math"

	"github.com/apxr/marketsim/pkg/book"
)

// NoiseParams are the calibrated noise-trader probabilities and volume
// distribution parameters.
type NoiseParams struct {
	Delta         float64 // actuation probability
	MarketProb    float64 // m
	LimitProb     float64 // l
	MuMarket      float64 // lognormal mean, market volume
	SigmaMarket   float64
	MuLimit       float64 // lognormal mean, limit volume
	SigmaLimit    float64
	CrossProb     float64
	InsideProb    float64
	SpreadProb    float64
	XMin          float64 // off-spread power-law scale
	Beta          float64 // off-spread power-law exponent
	DefaultPrice  float64 // quote seed when a side is empty
	DefaultSpread float64
}

// DefaultNoiseParams returns the model calibration.
func DefaultNoiseParams() NoiseParams {
	return NoiseParams{
		Delta:         0.75,
		MarketProb:    0.03,
		LimitProb:     0.54,
		MuMarket:      7,
		SigmaMarket:   0.1,
		MuLimit:       8,
		SigmaLimit:    0.7,
		CrossProb:     0.003,
		InsideProb:    0.098,
		SpreadProb:    0.173,
		XMin:          0.005,
		Beta:          2.72,
		DefaultPrice:  100,
		DefaultSpread: 0.05,
	}
}

// Noise is the liquidity-providing random trader. It also serves as the
// scheduler's bootstrap agent: when a book side is empty it re-establishes
// two-sided quoting before doing anything else.
type Noise struct {
	Base
	p NoiseParams
}

// StrategyNoise tags noise traders in TraderIDs and output.
const StrategyNoise = "noise"

func NewNoise(index int, b *book.Book, seed int64, p NoiseParams) *Noise {
	return &Noise{Base: NewBase(StrategyNoise, index, b, seed), p: p}
}

func (n *Noise) Actuate() {
	bid, hasBid := n.book.BidPx()
	ask, hasAsk := n.book.AskPx()
	if !hasBid || !hasAsk {
		n.seedQuotes(bid, hasBid, ask, hasAsk)
		return
	}

	if n.rng.Float64() >= n.p.Delta {
		return
	}
	side := book.Buy
	if n.rng.Float64() < 0.5 {
		side = book.Sell
	}

	action := n.rng.Float64()
	switch {
	case action < n.p.MarketProb:
		n.marketOrder(side)
	case action < n.p.MarketProb+n.p.LimitProb:
		n.limitOrder(side, bid, ask)
	default:
		if len(n.outstanding) > 0 {
			n.cancelNewest()
		}
	}
}

// seedQuotes re-establishes quoting on whichever sides are empty.
func (n *Noise) seedQuotes(bid book.Px, hasBid bool, ask book.Px, hasAsk bool) {
	tick := n.book.Tick()
	vol := n.limitVolume()
	switch {
	case !hasBid && !hasAsk:
		n.submitLimit(book.Buy, n.book.Px(n.p.DefaultPrice), vol)
		n.submitLimit(book.Sell, n.book.Px(n.p.DefaultPrice+n.p.DefaultSpread), n.limitVolume())
	case !hasBid:
		n.submitLimit(book.Buy, n.book.Px(ask.Float(tick)-n.p.DefaultSpread), vol)
	default:
		n.submitLimit(book.Sell, n.book.Px(bid.Float(tick)+n.p.DefaultSpread), vol)
	}
}

// marketOrder sizes against half the opposite touch so a single noise order
// cannot routinely sweep the level.
func (n *Noise) marketOrder(side book.Side) {
	opp := n.book.AskSize()
	if side == book.Sell {
		opp = n.book.BidSize()
	}
	draw := math.Exp(n.p.MuMarket + n.p.SigmaMarket*n.rng.NormFloat64())
	vol := int64(math.Min(float64(opp)/2, draw))
	if vol < 1 {
		vol = 1
	}
	n.submitMarket(side, vol)
}

func (n *Noise) limitOrder(side book.Side, bid, ask book.Px) {
	tick := n.book.Tick()
	vol := n.limitVolume()
	draw := n.rng.Float64()
	var px book.Px
	switch {
	case draw < n.p.CrossProb:
		// Cross the touch.
		if side == book.Buy {
			px = ask
		} else {
			px = bid
		}
	case draw < n.p.CrossProb+n.p.InsideProb:
		px = n.insidePx(side, bid, ask)
	case draw < n.p.CrossProb+n.p.InsideProb+n.p.SpreadProb:
		// Join the own-side touch.
		if side == book.Buy {
			px = bid
		} else {
			px = ask
		}
	default:
		// Off-spread, power-law distance behind the touch.
		spread := (ask - bid).Float(tick)
		offset := spread + n.p.XMin*math.Pow(1-n.rng.Float64(), -1/(n.p.Beta-1))
		if side == book.Buy {
			px = n.book.Px(bid.Float(tick) - offset)
		} else {
			px = n.book.Px(ask.Float(tick) + offset)
		}
	}
	n.submitLimit(side, px, vol)
}

// insidePx draws uniformly on the tick grid strictly between the touches,
// falling back to the own-side touch when the spread has no interior.
func (n *Noise) insidePx(side book.Side, bid, ask book.Px) book.Px {
	interior := int64(ask-bid) - 1
	if interior <= 0 {
		if side == book.Buy {
			return bid
		}
		return ask
	}
	return bid + 1 + book.Px(n.rng.Int63n(interior))
}

func (n *Noise) limitVolume() int64 {
	v := int64(math.Round(math.Exp(n.p.MuLimit + n.p.SigmaLimit*n.rng.NormFloat64())))
	if v < 1 {
		v = 1
	}
	return v
}
