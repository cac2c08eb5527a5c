package book

// EventType represents the type of orderbook event
type EventType int

const (
	EventNewMarketOrder EventType = iota
	EventNewLimitOrder
	EventCancelLimitOrder
	EventFullFillBuyOrder
	EventFullFillSellOrder
	EventPartialFillBuyOrder
	EventPartialFillSellOrder
)

func (t EventType) String() string {
	switch t {
	case EventNewMarketOrder:
		return "new_market_order"
	case EventNewLimitOrder:
		return "new_limit_order"
	case EventCancelLimitOrder:
		return "cancel_limit_order"
	case EventFullFillBuyOrder:
		return "full_fill_buy_order"
	case EventFullFillSellOrder:
		return "full_fill_sell_order"
	case EventPartialFillBuyOrder:
		return "partial_fill_buy_order"
	default:
		return "partial_fill_sell_order"
	}
}

// Event is a single entry on the public orderbook feed. Volume is the
// quantity implicated by the event: the order volume for new/cancel events,
// the matched quantity for fills. Direction is the side of the event's
// originating order; for fills that is the aggressor.
type Event struct {
	UID         uint64
	Timestep    int64
	OrderID     uint64
	Trader      TraderID
	Type        EventType
	Volume      int64
	Price       Px
	Direction   Side
	Transaction bool
}

// fillEventType maps the aggressor side and the resting order's outcome to
// the published event type.
func fillEventType(aggressor Side, restingRemoved bool) EventType {
	switch {
	case restingRemoved && aggressor == Buy:
		return EventFullFillBuyOrder
	case restingRemoved && aggressor == Sell:
		return EventFullFillSellOrder
	case aggressor == Buy:
		return EventPartialFillBuyOrder
	default:
		return EventPartialFillSellOrder
	}
}
