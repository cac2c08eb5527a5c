package agents

import (
	"math"

	"github.com/apxr/marketsim/pkg/book"
)

// MeanReversionParams tune the EMA-deviation reversion trader.
type MeanReversionParams struct {
	Delta  float64 // actuation probability
	Volume int64   // shares per order
	K      float64 // deviation threshold in standard deviations
	Alpha  float64 // EMA weight
}

func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		Delta:  0.4,
		Volume: 1,
		K:      1,
		Alpha:  0.94,
	}
}

// StrategyMeanReversion tags mean-reversion traders in TraderIDs and output.
const StrategyMeanReversion = "mean_reversion"

// MeanReversion fades deviations of the last trade price from its EMA,
// posting one-share limits a tick inside the touch. Dispersion comes from a
// Welford running variance over every trade of the run.
type MeanReversion struct {
	Base
	p MeanReversionParams

	// Welford accumulator over trade prices.
	n int64
	m float64
	s float64

	ema     float64
	emaInit bool
	last    float64
}

func NewMeanReversion(index int, b *book.Book, seed int64, p MeanReversionParams) *MeanReversion {
	return &MeanReversion{Base: NewBase(StrategyMeanReversion, index, b, seed), p: p}
}

// OnOrderbookEvent folds each executed trade price into the running
// mean/variance and the EMA.
func (mr *MeanReversion) OnOrderbookEvent(e book.Event) {
	if !e.Transaction {
		return
	}
	p := e.Price.Float(mr.book.Tick())
	mr.last = p

	mr.n++
	if mr.n == 1 {
		mr.m = p
		mr.s = 0
	} else {
		prev := mr.m
		mr.m += (p - prev) / float64(mr.n)
		mr.s += (p - prev) * (p - mr.m)
	}

	if !mr.emaInit {
		mr.ema = p
		mr.emaInit = true
	} else {
		mr.ema += mr.p.Alpha * (p - mr.ema)
	}
}

func (mr *MeanReversion) Actuate() {
	if mr.rng.Float64() >= mr.p.Delta {
		return
	}
	if mr.n < 2 {
		return
	}
	bid, hasBid := mr.book.BidPx()
	ask, hasAsk := mr.book.AskPx()
	if !hasBid || !hasAsk {
		return
	}
	sigma := math.Sqrt(mr.s / float64(mr.n-1))
	dev := mr.last - mr.ema

	switch {
	case dev >= mr.p.K*sigma:
		mr.submitLimit(book.Sell, ask-1, mr.p.Volume)
	case -dev >= mr.p.K*sigma:
		mr.submitLimit(book.Buy, bid+1, mr.p.Volume)
	}
}
