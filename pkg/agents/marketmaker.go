package agents

import (
	"github.com/apxr/marketsim/pkg/book"
)

// MarketMakerParams tune the order-flow-prediction market maker.
type MarketMakerParams struct {
	Delta     float64 // actuation probability
	Window    int     // order-side history length
	MaxVolume int64
	MinVolume int64
}

func DefaultMarketMakerParams() MarketMakerParams {
	return MarketMakerParams{
		Delta:     0.1,
		Window:    50,
		MaxVolume: 200_000,
		MinVolume: 1,
	}
}

// StrategyMarketMaker tags market makers in TraderIDs and output.
const StrategyMarketMaker = "market_maker"

// MarketMaker quotes both touches, skewing size toward the side its sliding
// window of recent order flow predicts. It watches the public feed for new
// orders; fills and everything else on the feed are ignored.
type MarketMaker struct {
	Base
	p     MarketMakerParams
	sides []int // 0 = buy, 1 = sell, newest last
}

func NewMarketMaker(index int, b *book.Book, seed int64, p MarketMakerParams) *MarketMaker {
	return &MarketMaker{
		Base:  NewBase(StrategyMarketMaker, index, b, seed),
		p:     p,
		sides: make([]int, 0, p.Window),
	}
}

// OnOrderbookEvent appends new-order sides to the sliding window.
func (m *MarketMaker) OnOrderbookEvent(e book.Event) {
	if e.Type != book.EventNewMarketOrder && e.Type != book.EventNewLimitOrder {
		return
	}
	m.sides = append(m.sides, int(e.Direction))
	if len(m.sides) > m.p.Window {
		m.sides = m.sides[len(m.sides)-m.p.Window:]
	}
}

func (m *MarketMaker) Actuate() {
	if len(m.sides) == 0 {
		return
	}
	if m.rng.Float64() >= m.p.Delta {
		return
	}
	bid, hasBid := m.book.BidPx()
	ask, hasAsk := m.book.AskPx()
	if !hasBid || !hasAsk {
		return
	}

	var sum int
	for _, s := range m.sides {
		sum += s
	}
	prediction := float64(sum) / float64(len(m.sides))

	m.cancelAll()

	large := m.p.MinVolume + m.rng.Int63n(m.p.MaxVolume-m.p.MinVolume+1)
	var bidVol, askVol int64
	if prediction < 0.5 {
		// Flow has been buy-heavy; expect it to keep lifting the ask.
		askVol, bidVol = large, m.p.MinVolume
	} else {
		bidVol, askVol = large, m.p.MinVolume
	}

	m.submitLimit(book.Buy, bid, bidVol)
	m.submitLimit(book.Sell, ask, askVol)

	tick := m.book.Tick()
	m.debit(ask.Float(tick)*float64(askVol) + bid.Float(tick)*float64(bidVol))
}
