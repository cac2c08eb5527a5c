// Package agents holds the trading agent population: a shared base with
// cash and outstanding-order bookkeeping, and one file per strategy.
package agents

import (
	"math/rand"
	"slices"

	"github.com/luxfi/log"

	"github.com/apxr/marketsim/pkg/book"
)

// defaultCash funds every agent at construction. Only the market maker
// spends it directly; the momentum trader uses it to size orders.
const defaultCash = 100_000.0

// Trader is what the scheduler drives: one Actuate per timestep plus the
// book's execution-report callback.
type Trader interface {
	book.Trader
	Actuate()
}

// Base carries the state every strategy shares. Strategies embed it.
type Base struct {
	id          book.TraderID
	book        *book.Book
	cash        float64
	rng         *rand.Rand
	outstanding map[uint64]book.Order
	logger      log.Logger
}

// NewBase wires an agent identity to the book with its own seeded stream.
func NewBase(strategy string, index int, b *book.Book, seed int64) Base {
	id := book.TraderID{Strategy: strategy, Index: index}
	return Base{
		id:          id,
		book:        b,
		cash:        defaultCash,
		rng:         rand.New(rand.NewSource(seed)),
		outstanding: make(map[uint64]book.Order),
		logger:      log.Root().New("module", "agent", "trader", id.String()),
	}
}

func (a *Base) TraderID() book.TraderID { return a.id }

// Cash returns the agent's remaining cash.
func (a *Base) Cash() float64 { return a.cash }

// ExecutionReport keeps the outstanding-order set in sync with the book.
// Partial fills replace the stale copy with the smaller-volume order; a
// partial for an order not yet recorded belongs to an in-flight submission
// whose residual is recorded when the submit call returns.
func (a *Base) ExecutionReport(o book.Order, kind book.ReportKind) {
	switch kind {
	case book.ReportFullFill, book.ReportCancelled:
		delete(a.outstanding, o.ID)
	case book.ReportPartialFill:
		if _, ok := a.outstanding[o.ID]; ok {
			a.outstanding[o.ID] = o
		}
	}
}

// Outstanding returns how many orders the agent believes are resting.
func (a *Base) Outstanding() int { return len(a.outstanding) }

func (a *Base) submitLimit(side book.Side, price book.Px, volume int64) {
	var o *book.Order
	var err error
	if side == book.Buy {
		o, err = a.book.BuyLimitOrder(a, price, volume)
	} else {
		o, err = a.book.SellLimitOrder(a, price, volume)
	}
	if err != nil {
		a.logger.Debug("limit order rejected", "side", side.String(), "error", err)
		return
	}
	if o.Volume > 0 {
		a.outstanding[o.ID] = *o
	}
}

func (a *Base) submitMarket(side book.Side, volume int64) {
	var err error
	if side == book.Buy {
		_, err = a.book.BuyMarketOrder(a, volume)
	} else {
		_, err = a.book.SellMarketOrder(a, volume)
	}
	if err != nil {
		a.logger.Debug("market order rejected", "side", side.String(), "error", err)
	}
}

// cancelNewest cancels the most recently placed outstanding order.
func (a *Base) cancelNewest() {
	var newest uint64
	for id := range a.outstanding {
		if id > newest {
			newest = id
		}
	}
	if newest == 0 {
		return
	}
	a.book.CancelOrder(a.outstanding[newest])
}

// cancelAll cancels every outstanding order, oldest first, so replay from a
// seed emits the same cancel sequence.
func (a *Base) cancelAll() {
	ids := make([]uint64, 0, len(a.outstanding))
	for id := range a.outstanding {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if o, ok := a.outstanding[id]; ok {
			a.book.CancelOrder(o)
		}
	}
}

// debit lowers cash by amount, clamped at zero.
func (a *Base) debit(amount float64) {
	a.cash -= amount
	if a.cash < 0 {
		a.cash = 0
	}
}
