package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportRec struct {
	order Order
	kind  ReportKind
}

// stubTrader records every execution report it receives.
type stubTrader struct {
	id      TraderID
	reports []reportRec
}

func newStub(strategy string, index int) *stubTrader {
	return &stubTrader{id: TraderID{Strategy: strategy, Index: index}}
}

func (s *stubTrader) TraderID() TraderID { return s.id }

func (s *stubTrader) ExecutionReport(o Order, k ReportKind) {
	s.reports = append(s.reports, reportRec{order: o, kind: k})
}

func (s *stubTrader) kinds() []ReportKind {
	out := make([]ReportKind, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.kind
	}
	return out
}

// capture collects published events.
type capture struct {
	events []Event
}

func (c *capture) Publish(e Event) { c.events = append(c.events, e) }

func (c *capture) ofType(t EventType) []Event {
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// impactCapture collects price-impact records.
type impactCapture struct {
	recs []impactRecord
}

func (i *impactCapture) PriceImpact(ts int64, orderID uint64, volume int64, before, after float64) {
	i.recs = append(i.recs, impactRecord{
		timestep: ts, orderID: orderID, volume: volume,
		midBefore: before, midAfter: after,
	})
}

func newTestBook() (*Book, *capture, *impactCapture) {
	pub := &capture{}
	imp := &impactCapture{}
	b := New(Config{
		Venue:     "apxr",
		Ticker:    "apxr",
		Tick:      0.01,
		LastPrice: 100.0,
		LastSize:  1,
	}, pub, imp, nil)
	return b, pub, imp
}

func TestEmptyBookLimitInsertion(t *testing.T) {
	b, pub, _ := newTestBook()
	t1 := newStub("noise", 1)

	o, err := b.BuyLimitOrder(t1, b.Px(99.99), 100)
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, "99.99", b.BidPrice().StringFixed(2))
	assert.Equal(t, int64(100), b.BidSize())
	_, hasAsk := b.AskPx()
	assert.False(t, hasAsk)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventNewLimitOrder, pub.events[0].Type)
	assert.Equal(t, int64(100), pub.events[0].Volume)
	assert.False(t, pub.events[0].Transaction)
}

func TestCrossingMarketBuy(t *testing.T) {
	b, pub, imp := newTestBook()
	t1 := newStub("noise", 1)
	t2 := newStub("noise", 2)

	_, err := b.SellLimitOrder(t2, b.Px(100.01), 100)
	require.NoError(t, err)

	o, err := b.BuyMarketOrder(t1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.Volume)

	_, hasAsk := b.AskPx()
	assert.False(t, hasAsk)
	assert.Equal(t, "100.01", b.LastPrice().StringFixed(2))
	assert.Equal(t, int64(100), b.LastSize())

	fills := pub.ofType(EventFullFillBuyOrder)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(100), fills[0].Volume)
	assert.True(t, fills[0].Transaction)
	assert.Equal(t, Buy, fills[0].Direction)

	// Both counterparties see a full fill.
	require.Len(t, t1.reports, 1)
	assert.Equal(t, ReportFullFill, t1.reports[0].kind)
	require.Len(t, t2.reports, 1)
	assert.Equal(t, ReportFullFill, t2.reports[0].kind)

	require.Len(t, imp.recs, 1)
	assert.Equal(t, o.ID, imp.recs[0].orderID)
	assert.Equal(t, int64(100), imp.recs[0].volume)
}

func TestPartialFillThenRest(t *testing.T) {
	b, pub, _ := newTestBook()
	t1 := newStub("noise", 1)
	t2 := newStub("noise", 2)

	_, err := b.SellLimitOrder(t2, b.Px(100.01), 40)
	require.NoError(t, err)
	_, err = b.SellLimitOrder(t2, b.Px(100.02), 30)
	require.NoError(t, err)

	o, err := b.BuyLimitOrder(t1, b.Px(100.01), 100)
	require.NoError(t, err)

	// 40 executed at 100.01, the remaining 60 rests as the new best bid.
	assert.Equal(t, int64(60), o.Volume)
	assert.Equal(t, "100.01", b.BidPrice().StringFixed(2))
	assert.Equal(t, int64(60), b.BidSize())
	assert.Equal(t, "100.02", b.AskPrice().StringFixed(2))
	assert.Equal(t, int64(30), b.AskSize())

	fills := pub.ofType(EventFullFillBuyOrder)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(40), fills[0].Volume)
	assert.Equal(t, "100.01", fills[0].Price.Decimal(b.tickD).StringFixed(2))

	// T2: full fill on the 100.01 order, nothing touches 100.02.
	require.Len(t, t2.reports, 1)
	assert.Equal(t, ReportFullFill, t2.reports[0].kind)
	assert.Equal(t, int64(40), t2.reports[0].order.Volume)

	// T1: a partial-fill report for the sweep.
	require.Contains(t, t1.kinds(), ReportPartialFill)
}

func TestFIFOWithinLevel(t *testing.T) {
	b, _, _ := newTestBook()
	ta := newStub("noise", 1)
	tb := newStub("noise", 2)
	tc := newStub("noise", 3)

	o1, err := b.BuyLimitOrder(ta, b.Px(100.00), 10)
	require.NoError(t, err)
	o2, err := b.BuyLimitOrder(tb, b.Px(100.00), 10)
	require.NoError(t, err)
	require.Less(t, o1.ID, o2.ID)

	_, err = b.SellMarketOrder(tc, 15)
	require.NoError(t, err)

	// O1 fully filled, O2 partially: 5 of 10 remain.
	assert.Equal(t, int64(5), b.BidSize())
	require.Len(t, ta.reports, 1)
	assert.Equal(t, ReportFullFill, ta.reports[0].kind)
	require.Len(t, tb.reports, 1)
	assert.Equal(t, ReportPartialFill, tb.reports[0].kind)
	assert.Equal(t, int64(5), tb.reports[0].order.Volume)

	lv := b.bids.best()
	require.NotNil(t, lv)
	assert.Equal(t, o2.ID, lv.head().ID)
}

func TestCancellation(t *testing.T) {
	b, pub, _ := newTestBook()
	t1 := newStub("noise", 1)

	o, err := b.SellLimitOrder(t1, b.Px(100.50), 25)
	require.NoError(t, err)

	b.CancelOrder(*o)

	_, hasAsk := b.AskPx()
	assert.False(t, hasAsk)

	cancels := pub.ofType(EventCancelLimitOrder)
	require.Len(t, cancels, 1)
	assert.Equal(t, int64(25), cancels[0].Volume)
	require.Len(t, t1.reports, 1)
	assert.Equal(t, ReportCancelled, t1.reports[0].kind)

	// Second cancel is a successful no-op.
	b.CancelOrder(*o)
	assert.Len(t, pub.ofType(EventCancelLimitOrder), 1)
	assert.Len(t, t1.reports, 1)
}

func TestRejectionHasNoSideEffects(t *testing.T) {
	b, pub, imp := newTestBook()
	t1 := newStub("noise", 1)

	_, err := b.BuyLimitOrder(t1, b.Px(100.00), 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = b.BuyLimitOrder(t1, b.Px(-1), 10)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = b.SellMarketOrder(t1, -5)
	assert.ErrorIs(t, err, ErrInvalidSize)

	assert.Empty(t, pub.events)
	assert.Empty(t, imp.recs)
	assert.Empty(t, t1.reports)
	bidLevels, askLevels := b.Depth()
	assert.Zero(t, bidLevels)
	assert.Zero(t, askLevels)
}

func TestMarketOrderOnEmptyBookIsDiscarded(t *testing.T) {
	b, pub, imp := newTestBook()
	t1 := newStub("noise", 1)

	o, err := b.BuyMarketOrder(t1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), o.Volume)

	// Accepted (and announced) but nothing rested, nothing matched.
	assert.Len(t, pub.ofType(EventNewMarketOrder), 1)
	bidLevels, askLevels := b.Depth()
	assert.Zero(t, bidLevels)
	assert.Zero(t, askLevels)
	assert.Empty(t, imp.recs)
}

func TestBestFiveOutwardOrdered(t *testing.T) {
	b, _, _ := newTestBook()
	t1 := newStub("noise", 1)

	for _, p := range []float64{99.95, 99.96, 99.97, 99.98, 99.99, 99.94} {
		_, err := b.BuyLimitOrder(t1, b.Px(p), 10)
		require.NoError(t, err)
	}
	for _, p := range []float64{100.01, 100.02, 100.03} {
		_, err := b.SellLimitOrder(t1, b.Px(p), 20)
		require.NoError(t, err)
	}

	bids := b.HighestBidPrices()
	require.Len(t, bids, 5)
	assert.Equal(t, "99.95", bids[0].StringFixed(2))
	assert.Equal(t, "99.99", bids[4].StringFixed(2))
	assert.Equal(t, []int64{10, 10, 10, 10, 10}, b.HighestBidSizes())

	asks := b.LowestAskPrices()
	require.Len(t, asks, 3)
	assert.Equal(t, "100.03", asks[0].StringFixed(2))
	assert.Equal(t, "100.01", asks[2].StringFixed(2))
	assert.Equal(t, []int64{20, 20, 20}, b.LowestAskSizes())
}

func TestSweepAcrossLevelsRecordsImpact(t *testing.T) {
	b, _, imp := newTestBook()
	maker := newStub("noise", 1)
	taker := newStub("noise", 2)

	_, err := b.BuyLimitOrder(maker, b.Px(99.99), 10)
	require.NoError(t, err)
	_, err = b.SellLimitOrder(maker, b.Px(100.01), 30)
	require.NoError(t, err)
	_, err = b.SellLimitOrder(maker, b.Px(100.02), 30)
	require.NoError(t, err)

	_, err = b.BuyMarketOrder(taker, 45)
	require.NoError(t, err)

	// Swept 100.01 entirely and part of 100.02.
	assert.Equal(t, "100.02", b.AskPrice().StringFixed(2))
	assert.Equal(t, int64(15), b.AskSize())
	assert.Equal(t, "100.02", b.LastPrice().StringFixed(2))
	assert.Equal(t, int64(15), b.LastSize())

	require.Len(t, imp.recs, 1)
	rec := imp.recs[0]
	assert.Equal(t, int64(45), rec.volume)
	assert.InDelta(t, (99.99+100.01)/2, rec.midBefore, 1e-9)
	assert.InDelta(t, (99.99+100.02)/2, rec.midAfter, 1e-9)
}

func TestTradePriceIsRestingPrice(t *testing.T) {
	b, pub, _ := newTestBook()
	maker := newStub("noise", 1)
	taker := newStub("noise", 2)

	_, err := b.SellLimitOrder(maker, b.Px(100.05), 10)
	require.NoError(t, err)

	// Aggressive buy limit above the resting ask executes at the ask.
	_, err = b.BuyLimitOrder(taker, b.Px(100.10), 10)
	require.NoError(t, err)

	fills := pub.ofType(EventFullFillBuyOrder)
	require.Len(t, fills, 1)
	assert.Equal(t, b.Px(100.05), fills[0].Price)
}

func TestTickRoundingHalfDown(t *testing.T) {
	b, _, _ := newTestBook()

	assert.Equal(t, Px(10000), b.Px(100.005)) // exact half rounds down
	assert.Equal(t, Px(10001), b.Px(100.006))
	assert.Equal(t, Px(10000), b.Px(100.004))
	assert.Equal(t, Px(0), b.Px(0.004))
}

func TestLastTradeSeededFromConfig(t *testing.T) {
	b, _, _ := newTestBook()
	assert.Equal(t, "100.00", b.LastPrice().StringFixed(2))
	assert.Equal(t, int64(1), b.LastSize())
}
