package book

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Side represents order side
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderKind represents the type of order
type OrderKind int

const (
	Market OrderKind = iota
	Limit
)

// Px is a price expressed as a whole number of ticks. All internal price
// arithmetic is fixed-point; decimals appear only at the boundaries.
type Px int64

// PxMarket marks an order that has no price until it matches.
const PxMarket Px = 0

// PxFromFloat snaps a raw price onto the tick grid, rounding half-down.
func PxFromFloat(price, tick float64) Px {
	return Px(math.Ceil(price/tick - 0.5))
}

// Float converts a tick count back to a raw price.
func (p Px) Float(tick float64) float64 {
	return float64(p) * tick
}

// Decimal converts a tick count to a decimal price.
func (p Px) Decimal(tick decimal.Decimal) decimal.Decimal {
	return tick.Mul(decimal.NewFromInt(int64(p)))
}

// TraderID identifies an agent as a pair of strategy tag and index. It is
// the callback address for execution reports.
type TraderID struct {
	Strategy string
	Index    int
}

func (id TraderID) String() string {
	return fmt.Sprintf("%s-%d", id.Strategy, id.Index)
}

// ReportKind classifies an execution report delivered to an order's owner.
type ReportKind int

const (
	ReportFullFill ReportKind = iota
	ReportPartialFill
	ReportCancelled
)

func (k ReportKind) String() string {
	switch k {
	case ReportFullFill:
		return "full_fill"
	case ReportPartialFill:
		return "partial_fill"
	default:
		return "cancelled_order"
	}
}

// Trader is the callback surface the engine needs from an order owner.
// ExecutionReport must not block and must not call back into the book.
type Trader interface {
	TraderID() TraderID
	ExecutionReport(order Order, kind ReportKind)
}

// Order represents a request to trade. Orders are immutable once resting
// except for Volume, which carries the residual after partial fills.
type Order struct {
	ID      uint64
	Venue   string
	Ticker  string
	Trader  TraderID
	Kind    OrderKind
	Side    Side
	Volume  int64
	Price   Px
	AckedAt int64 // monotonic nanoseconds at acceptance

	owner Trader
}

// Notional returns price times residual volume at the given tick size.
func (o *Order) Notional(tick float64) float64 {
	return o.Price.Float(tick) * float64(o.Volume)
}
