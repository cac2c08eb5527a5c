package agents

import (
	"math"

	"github.com/apxr/marketsim/pkg/book"
)

// MomentumParams tune the rate-of-change trend follower.
type MomentumParams struct {
	Delta     float64 // actuation probability
	Window    int     // trade-price window length
	Threshold float64 // k, minimum |ROC| to trade
}

func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		Delta:     0.4,
		Window:    5,
		Threshold: 0.001,
	}
}

// StrategyMomentum tags momentum traders in TraderIDs and output.
const StrategyMomentum = "momentum"

// Momentum chases short-horizon trends: it watches executed trade prices
// and crosses the spread when the rate of change over its window clears the
// threshold, sizing by cash at risk.
type Momentum struct {
	Base
	p      MomentumParams
	prices []float64 // newest last
}

func NewMomentum(index int, b *book.Book, seed int64, p MomentumParams) *Momentum {
	return &Momentum{
		Base:   NewBase(StrategyMomentum, index, b, seed),
		p:      p,
		prices: make([]float64, 0, p.Window),
	}
}

// OnOrderbookEvent tracks executed trade prices.
func (m *Momentum) OnOrderbookEvent(e book.Event) {
	if !e.Transaction {
		return
	}
	m.prices = append(m.prices, e.Price.Float(m.book.Tick()))
	if len(m.prices) > m.p.Window {
		m.prices = m.prices[len(m.prices)-m.p.Window:]
	}
}

func (m *Momentum) Actuate() {
	if m.rng.Float64() >= m.p.Delta {
		return
	}
	if len(m.prices) < 2 {
		return
	}
	tail := m.prices[0]
	now := m.prices[len(m.prices)-1]
	if tail == 0 {
		return
	}
	roc := (now - tail) / tail

	switch {
	case roc >= m.p.Threshold:
		if vol := int64(math.Round(roc * m.cash)); vol > 0 {
			m.submitMarket(book.Buy, vol)
		}
	case roc <= -m.p.Threshold:
		if vol := int64(math.Round(math.Abs(roc) * m.cash)); vol > 0 {
			m.submitMarket(book.Sell, vol)
		}
	}
}
