package book

import (
	"errors"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/apxr/marketsim/pkg/metrics"
)

// Errors
var (
	ErrInvalidSize  = errors.New("invalid size")
	ErrInvalidPrice = errors.New("invalid price")
)

// Publisher receives every orderbook event in production order.
type Publisher interface {
	Publish(Event)
}

// ImpactSink receives one price-impact measurement per aggressing market
// order: the mid immediately before its first match and the mid after the
// whole order has been processed.
type ImpactSink interface {
	PriceImpact(timestep int64, orderID uint64, volume int64, midBefore, midAfter float64)
}

// Config sets up a book for one venue/ticker.
type Config struct {
	Venue     string
	Ticker    string
	Tick      float64
	LastPrice float64 // seeds last_price before any trade
	LastSize  int64   // seeds last_size before any trade
}

// Book is a two-sided limit order book with price-time priority matching.
// All state is mutated under a single lock; events and execution reports are
// staged during an operation and delivered after the lock is released, so
// callbacks can never observe a half-settled book.
type Book struct {
	mu     sync.Mutex
	venue  string
	ticker string
	tick   float64
	tickD  decimal.Decimal

	bids *bookSide
	asks *bookSide

	lastPrice Px
	lastSize  int64

	nextOrderID  uint64
	nextEventUID uint64
	timestep     int64
	epoch        time.Time

	ordersAccepted uint64
	tradesMatched  uint64

	pub     Publisher
	impact  ImpactSink
	logger  log.Logger
	metrics *metrics.SimMetrics
}

// New creates an empty book. Publisher, impact sink, and metrics are all
// optional; a nil publisher drops events on the floor.
func New(cfg Config, pub Publisher, impact ImpactSink, m *metrics.SimMetrics) *Book {
	tickD := decimal.NewFromFloat(cfg.Tick)
	return &Book{
		venue:     cfg.Venue,
		ticker:    cfg.Ticker,
		tick:      cfg.Tick,
		tickD:     tickD,
		bids:      newBookSide(Buy),
		asks:      newBookSide(Sell),
		lastPrice: PxFromFloat(cfg.LastPrice, cfg.Tick),
		lastSize:  cfg.LastSize,
		epoch:     time.Now(),
		pub:       pub,
		impact:    impact,
		logger:    log.Root().New("module", "book"),
		metrics:   m,
	}
}

// Tick returns the tick size as a raw float for agent price arithmetic.
func (b *Book) Tick() float64 { return b.tick }

// TickSize returns the tick size for the venue/ticker pair.
func (b *Book) TickSize(venue, ticker string) decimal.Decimal { return b.tickD }

// Px snaps a raw price onto this book's tick grid, rounding half-down.
func (b *Book) Px(price float64) Px { return PxFromFloat(price, b.tick) }

// SetTimestep stamps subsequent events and impact records.
func (b *Book) SetTimestep(t int64) {
	b.mu.Lock()
	b.timestep = t
	b.mu.Unlock()
	b.metrics.SetTimestep(t)
}

// Stats returns orders accepted and pairs matched so far.
func (b *Book) Stats() (orders, trades uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ordersAccepted, b.tradesMatched
}

// --- Quotes ---

// BidPx returns the best bid in ticks; ok is false when the side is empty.
func (b *Book) BidPx() (Px, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lv := b.bids.best(); lv != nil {
		return lv.price, true
	}
	return 0, false
}

// AskPx returns the best ask in ticks; ok is false when the side is empty.
func (b *Book) AskPx() (Px, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lv := b.asks.best(); lv != nil {
		return lv.price, true
	}
	return 0, false
}

// BidPrice returns the best bid, zero when the side is empty.
func (b *Book) BidPrice() decimal.Decimal {
	if px, ok := b.BidPx(); ok {
		return px.Decimal(b.tickD)
	}
	return decimal.Zero
}

// AskPrice returns the best ask, zero when the side is empty.
func (b *Book) AskPrice() decimal.Decimal {
	if px, ok := b.AskPx(); ok {
		return px.Decimal(b.tickD)
	}
	return decimal.Zero
}

// MidPrice returns the mid rounded to two decimals.
func (b *Book) MidPrice() decimal.Decimal {
	return decimal.NewFromFloat(b.MidFloat()).Round(2)
}

// MidFloat returns the unrounded mid. An absent side contributes zero, the
// same convention as the single-sided price queries.
func (b *Book) MidFloat() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.midLocked()
}

func (b *Book) midLocked() float64 {
	var bid, ask float64
	if lv := b.bids.best(); lv != nil {
		bid = lv.price.Float(b.tick)
	}
	if lv := b.asks.best(); lv != nil {
		ask = lv.price.Float(b.tick)
	}
	return (bid + ask) / 2
}

// BidSize returns the aggregate resting volume at the best bid.
func (b *Book) BidSize() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lv := b.bids.best(); lv != nil {
		return lv.volume
	}
	return 0
}

// AskSize returns the aggregate resting volume at the best ask.
func (b *Book) AskSize() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lv := b.asks.best(); lv != nil {
		return lv.volume
	}
	return 0
}

// HighestBidPrices returns up to five best bid prices, worst first.
func (b *Book) HighestBidPrices() []decimal.Decimal {
	return b.levelPrices(b.bids)
}

// HighestBidSizes returns the volumes aligned with HighestBidPrices.
func (b *Book) HighestBidSizes() []int64 {
	return b.levelSizes(b.bids)
}

// LowestAskPrices returns up to five best ask prices, worst first.
func (b *Book) LowestAskPrices() []decimal.Decimal {
	return b.levelPrices(b.asks)
}

// LowestAskSizes returns the volumes aligned with LowestAskPrices.
func (b *Book) LowestAskSizes() []int64 {
	return b.levelSizes(b.asks)
}

const depthLevels = 5

func (b *Book) levelPrices(s *bookSide) []decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	levels := s.bestN(depthLevels)
	out := make([]decimal.Decimal, 0, len(levels))
	for _, lv := range levels {
		out = append(out, lv.price.Decimal(b.tickD))
	}
	return out
}

func (b *Book) levelSizes(s *bookSide) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	levels := s.bestN(depthLevels)
	out := make([]int64, 0, len(levels))
	for _, lv := range levels {
		out = append(out, lv.volume)
	}
	return out
}

// LastPrice returns the price of the most recent trade.
func (b *Book) LastPrice() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice.Decimal(b.tickD)
}

// LastPx returns the most recent trade price in ticks.
func (b *Book) LastPx() Px {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice
}

// LastSize returns the volume of the most recent trade.
func (b *Book) LastSize() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSize
}

// Depth returns the current level counts per side.
func (b *Book) Depth() (bidLevels, askLevels int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids.levels), len(b.asks.levels)
}

// --- Order entry ---

// BuyMarketOrder submits a market buy. The remainder of an order that
// exhausts the ask side is discarded, never rested.
func (b *Book) BuyMarketOrder(t Trader, volume int64) (*Order, error) {
	return b.marketOrder(t, Buy, volume)
}

// SellMarketOrder submits a market sell.
func (b *Book) SellMarketOrder(t Trader, volume int64) (*Order, error) {
	return b.marketOrder(t, Sell, volume)
}

// BuyLimitOrder submits a limit buy at a tick-grid price. Any crossing
// volume executes immediately; the residual rests.
func (b *Book) BuyLimitOrder(t Trader, price Px, volume int64) (*Order, error) {
	return b.limitOrder(t, Buy, price, volume)
}

// SellLimitOrder submits a limit sell at a tick-grid price.
func (b *Book) SellLimitOrder(t Trader, price Px, volume int64) (*Order, error) {
	return b.limitOrder(t, Sell, price, volume)
}

func (b *Book) marketOrder(t Trader, side Side, volume int64) (*Order, error) {
	if volume <= 0 {
		b.metrics.OrderRejected()
		return nil, ErrInvalidSize
	}
	start := time.Now()

	b.mu.Lock()
	o := b.newOrder(t, Market, side, PxMarket, volume)
	d := &delivery{}
	b.emit(d, Event{
		OrderID:   o.ID,
		Trader:    o.Trader,
		Type:      EventNewMarketOrder,
		Volume:    volume,
		Price:     PxMarket,
		Direction: side,
	})
	midBefore := b.midLocked()
	matched := b.matchLocked(d, o, 0, false)
	if matched > 0 {
		d.impact = &impactRecord{
			timestep:  b.timestep,
			orderID:   o.ID,
			volume:    volume,
			midBefore: midBefore,
			midAfter:  b.midLocked(),
		}
	}
	b.mu.Unlock()

	b.metrics.ObserveMatchingLatency(time.Since(start))
	b.flush(d)
	return o, nil
}

func (b *Book) limitOrder(t Trader, side Side, price Px, volume int64) (*Order, error) {
	if volume <= 0 {
		b.metrics.OrderRejected()
		return nil, ErrInvalidSize
	}
	if price <= 0 {
		b.metrics.OrderRejected()
		return nil, ErrInvalidPrice
	}
	start := time.Now()

	b.mu.Lock()
	o := b.newOrder(t, Limit, side, price, volume)
	d := &delivery{}
	b.emit(d, Event{
		OrderID:   o.ID,
		Trader:    o.Trader,
		Type:      EventNewLimitOrder,
		Volume:    volume,
		Price:     price,
		Direction: side,
	})
	b.matchLocked(d, o, price, true)
	if o.Volume > 0 {
		if side == Buy {
			b.bids.insert(o)
		} else {
			b.asks.insert(o)
		}
	}
	b.assertUncrossedLocked()
	b.mu.Unlock()

	b.metrics.ObserveMatchingLatency(time.Since(start))
	b.flush(d)
	return o, nil
}

// CancelOrder removes a resting order located by (side, price, id). A cancel
// for an order that is no longer on the book is a successful no-op.
func (b *Book) CancelOrder(o Order) {
	b.mu.Lock()
	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	removed, ok := side.remove(o.Price, o.ID)
	if !ok {
		b.mu.Unlock()
		return
	}
	d := &delivery{}
	b.emit(d, Event{
		OrderID:   removed.ID,
		Trader:    removed.Trader,
		Type:      EventCancelLimitOrder,
		Volume:    removed.Volume,
		Price:     removed.Price,
		Direction: removed.Side,
	})
	d.report(removed.owner, *removed, ReportCancelled)
	b.mu.Unlock()
	b.flush(d)
}

// --- Matching ---

// matchLocked walks the opposite side under price-time priority until the
// incoming order is filled, the book is exhausted, or (for limits) the next
// level is outside the limit price. Returns the total matched quantity.
func (b *Book) matchLocked(d *delivery, o *Order, limit Px, limited bool) int64 {
	opp := b.asks
	if o.Side == Sell {
		opp = b.bids
	}

	var matched int64
	for o.Volume > 0 {
		lv := opp.best()
		if lv == nil {
			break
		}
		if limited {
			if o.Side == Buy && lv.price > limit {
				break
			}
			if o.Side == Sell && lv.price < limit {
				break
			}
		}

		r := lv.head()
		q := min(o.Volume, r.Volume)
		restingRemoved := r.Volume <= o.Volume

		if restingRemoved {
			rep := *r
			lv.dropHead()
			delete(opp.byID, r.ID)
			opp.settleHead(lv)
			d.report(r.owner, rep, ReportFullFill)
		} else {
			r.Volume -= q
			lv.volume -= q
			d.report(r.owner, *r, ReportPartialFill)
		}

		o.Volume -= q
		if o.Volume == 0 {
			d.report(o.owner, *o, ReportFullFill)
		} else {
			d.report(o.owner, *o, ReportPartialFill)
		}

		b.lastPrice = lv.price
		b.lastSize = q
		b.tradesMatched++
		b.metrics.TradeExecuted()
		matched += q

		b.emit(d, Event{
			OrderID:     o.ID,
			Trader:      o.Trader,
			Type:        fillEventType(o.Side, restingRemoved),
			Volume:      q,
			Price:       lv.price,
			Direction:   o.Side,
			Transaction: true,
		})
	}
	return matched
}

func (b *Book) newOrder(t Trader, kind OrderKind, side Side, price Px, volume int64) *Order {
	b.nextOrderID++
	b.ordersAccepted++
	b.metrics.OrderProcessed()
	return &Order{
		ID:      b.nextOrderID,
		Venue:   b.venue,
		Ticker:  b.ticker,
		Trader:  t.TraderID(),
		Kind:    kind,
		Side:    side,
		Volume:  volume,
		Price:   price,
		AckedAt: time.Since(b.epoch).Nanoseconds(),
		owner:   t,
	}
}

func (b *Book) emit(d *delivery, e Event) {
	b.nextEventUID++
	e.UID = b.nextEventUID
	e.Timestep = b.timestep
	d.events = append(d.events, e)
}

// assertUncrossedLocked crashes on a crossed book, which is unreachable
// unless matching is broken.
func (b *Book) assertUncrossedLocked() {
	bid, ask := b.bids.best(), b.asks.best()
	if bid != nil && ask != nil && bid.price >= ask.price {
		panic("book: crossed after settle")
	}
}

// --- Staged delivery ---

type impactRecord struct {
	timestep  int64
	orderID   uint64
	volume    int64
	midBefore float64
	midAfter  float64
}

type stagedReport struct {
	owner Trader
	order Order
	kind  ReportKind
}

// delivery accumulates the side effects of one book operation while the lock
// is held. flush pushes them out in emission order afterwards.
type delivery struct {
	events  []Event
	reports []stagedReport
	impact  *impactRecord
}

func (d *delivery) report(owner Trader, o Order, kind ReportKind) {
	d.reports = append(d.reports, stagedReport{owner: owner, order: o, kind: kind})
}

func (b *Book) flush(d *delivery) {
	if b.pub != nil {
		for _, e := range d.events {
			b.pub.Publish(e)
			b.metrics.EventPublished()
		}
	}
	for _, r := range d.reports {
		b.deliverReport(r)
	}
	if d.impact != nil && b.impact != nil {
		rec := d.impact
		b.impact.PriceImpact(rec.timestep, rec.orderID, rec.volume, rec.midBefore, rec.midAfter)
	}
	bidLevels, askLevels := b.Depth()
	b.metrics.SetDepth(bidLevels, askLevels)
}

// deliverReport shields the engine from a faulting counterparty callback.
func (b *Book) deliverReport(r stagedReport) {
	if r.owner == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Warn("execution report callback failed",
				"trader", r.order.Trader.String(),
				"order", r.order.ID,
				"kind", r.kind.String(),
				"panic", rec)
		}
	}()
	r.owner.ExecutionReport(r.order, r.kind)
}
