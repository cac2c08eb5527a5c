package agents

import (
	"github.com/apxr/marketsim/pkg/book"
)

// LiquidityConsumerParams tune the day-target liquidity consumer.
type LiquidityConsumerParams struct {
	Delta            float64 // per-step execution probability
	MaxInitialVolume int64
}

func DefaultLiquidityConsumerParams() LiquidityConsumerParams {
	return LiquidityConsumerParams{
		Delta:            0.1,
		MaxInitialVolume: 100_000,
	}
}

// StrategyLiquidityConsumer tags liquidity consumers in TraderIDs and output.
const StrategyLiquidityConsumer = "liquidity_consumer"

// LiquidityConsumer works a fixed parent volume on one random side across
// the day, never taking more than the opposite touch shows. The target
// decays by the available size whether or not an order went out, so missed
// opportunities are abandoned rather than carried.
type LiquidityConsumer struct {
	Base
	p         LiquidityConsumerParams
	side      book.Side
	remaining int64
}

func NewLiquidityConsumer(index int, b *book.Book, seed int64, p LiquidityConsumerParams) *LiquidityConsumer {
	lc := &LiquidityConsumer{
		Base: NewBase(StrategyLiquidityConsumer, index, b, seed),
		p:    p,
	}
	lc.side = book.Buy
	if lc.rng.Float64() < 0.5 {
		lc.side = book.Sell
	}
	lc.remaining = 1 + lc.rng.Int63n(p.MaxInitialVolume)
	return lc
}

// Remaining returns the unworked parent volume.
func (lc *LiquidityConsumer) Remaining() int64 { return lc.remaining }

func (lc *LiquidityConsumer) Actuate() {
	if lc.remaining <= 0 {
		return
	}
	opp := lc.book.AskSize()
	if lc.side == book.Sell {
		opp = lc.book.BidSize()
	}
	slice := min(lc.remaining, opp)
	if slice <= 0 {
		return
	}
	if lc.rng.Float64() < lc.p.Delta {
		lc.submitMarket(lc.side, slice)
	}
	lc.remaining -= slice
}
