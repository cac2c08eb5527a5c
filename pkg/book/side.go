package book

import "sort"

// level holds the FIFO queue of resting orders at one price.
type level struct {
	price  Px
	orders []*Order
	volume int64 // aggregate residual
}

func (l *level) head() *Order {
	return l.orders[0]
}

// dropHead removes the head order after a full fill.
func (l *level) dropHead() {
	l.volume -= l.orders[0].Volume
	l.orders = l.orders[1:]
}

// bookSide keeps price levels sorted ascending. The best level is the last
// element for bids and the first for asks. A price index gives O(1) level
// lookup; cancellation then scans only that level's queue. byID records the
// price of every resting order.
type bookSide struct {
	side    Side
	levels  []*level
	byPrice map[Px]*level
	byID    map[uint64]Px
}

func newBookSide(side Side) *bookSide {
	return &bookSide{
		side:    side,
		byPrice: make(map[Px]*level),
		byID:    make(map[uint64]Px),
	}
}

func (s *bookSide) empty() bool {
	return len(s.levels) == 0
}

// best returns the top-of-book level, nil when the side is empty.
func (s *bookSide) best() *level {
	if len(s.levels) == 0 {
		return nil
	}
	if s.side == Buy {
		return s.levels[len(s.levels)-1]
	}
	return s.levels[0]
}

// insert rests an order at its price, creating the level if needed.
// Within a level the queue is FIFO; order ids are monotonic so append
// preserves time priority.
func (s *bookSide) insert(o *Order) {
	lv, ok := s.byPrice[o.Price]
	if !ok {
		lv = &level{price: o.Price}
		s.byPrice[o.Price] = lv
		i := sort.Search(len(s.levels), func(i int) bool {
			return s.levels[i].price >= o.Price
		})
		s.levels = append(s.levels, nil)
		copy(s.levels[i+1:], s.levels[i:])
		s.levels[i] = lv
	}
	lv.orders = append(lv.orders, o)
	lv.volume += o.Volume
	s.byID[o.ID] = o.Price
}

// remove takes a resting order out of its level. Returns false when the
// order is not resting on this side.
func (s *bookSide) remove(price Px, orderID uint64) (*Order, bool) {
	lv, ok := s.byPrice[price]
	if !ok {
		return nil, false
	}
	for i, o := range lv.orders {
		if o.ID == orderID {
			lv.orders = append(lv.orders[:i], lv.orders[i+1:]...)
			lv.volume -= o.Volume
			delete(s.byID, orderID)
			if len(lv.orders) == 0 {
				s.dropLevel(price)
			}
			return o, true
		}
	}
	return nil, false
}

// settleHead is called after matching consumed the head order; it deletes
// the level when no orders remain in it.
func (s *bookSide) settleHead(lv *level) {
	if len(lv.orders) == 0 {
		s.dropLevel(lv.price)
	}
}

func (s *bookSide) dropLevel(price Px) {
	delete(s.byPrice, price)
	i := sort.Search(len(s.levels), func(i int) bool {
		return s.levels[i].price >= price
	})
	if i < len(s.levels) && s.levels[i].price == price {
		s.levels = append(s.levels[:i], s.levels[i+1:]...)
	}
}

// bestN returns up to n best levels ordered outward-first: the worst of the
// returned prices leads, the touch is last.
func (s *bookSide) bestN(n int) []*level {
	if len(s.levels) == 0 {
		return nil
	}
	if n > len(s.levels) {
		n = len(s.levels)
	}
	out := make([]*level, 0, n)
	if s.side == Buy {
		// Best bids are the highest prices, ascending slice tail.
		for _, lv := range s.levels[len(s.levels)-n:] {
			out = append(out, lv)
		}
	} else {
		// Best asks are the lowest prices; reverse so the touch is last.
		for i := n - 1; i >= 0; i-- {
			out = append(out, s.levels[i])
		}
	}
	return out
}
