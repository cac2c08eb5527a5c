package agents

import (
	"github.com/apxr/marketsim/pkg/book"
)

// StrategyPassive tags the pluggable population slot.
const StrategyPassive = "passive"

// Passive fills the pluggable strategy slot when no custom agent is
// supplied. It participates in scheduling but never trades, so a strategy
// under evaluation can replace it without disturbing the population mix.
type Passive struct {
	Base
}

func NewPassive(index int, b *book.Book, seed int64) *Passive {
	return &Passive{Base: NewBase(StrategyPassive, index, b, seed)}
}

func (p *Passive) Actuate() {}
