package sim

import (
	"errors"
	"math/rand"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/apxr/marketsim/pkg/agents"
	"github.com/apxr/marketsim/pkg/book"
	"github.com/apxr/marketsim/pkg/metrics"
)

// ErrBootstrapFailed reports that the designated bootstrap agent could not
// re-establish two-sided quoting, which leaves the book invariant unmeetable.
var ErrBootstrapFailed = errors.New("sim: bootstrap agent cannot restore the book")

// MidSink receives the end-of-timestep mid-price sample.
type MidSink interface {
	MidPrice(timestep int64, mid decimal.Decimal)
}

// Market drives one run: per timestep it restores the book-non-empty
// invariant, actuates every live agent once in the current order, samples
// the mid, then reshuffles.
type Market struct {
	book      *book.Book
	agents    []agents.Trader
	bootstrap agents.Trader
	mids      MidSink
	rng       *rand.Rand
	timesteps int64
	logger    log.Logger
	metrics   *metrics.SimMetrics
	isolated  map[book.TraderID]bool
}

// NewMarket builds a scheduler over an already-wired population. The
// bootstrap agent must restore two-sided quoting when actuated against an
// empty side; by convention it is the first noise trader.
func NewMarket(b *book.Book, population []agents.Trader, bootstrap agents.Trader, mids MidSink, seed int64, timesteps int64, m *metrics.SimMetrics) *Market {
	return &Market{
		book:      b,
		agents:    population,
		bootstrap: bootstrap,
		mids:      mids,
		rng:       rand.New(rand.NewSource(seed)),
		timesteps: timesteps,
		logger:    log.Root().New("module", "scheduler"),
		metrics:   m,
		isolated:  make(map[book.TraderID]bool),
	}
}

// Run executes the configured number of timesteps.
func (m *Market) Run() error {
	for t := int64(0); t < m.timesteps; t++ {
		m.book.SetTimestep(t)

		if err := m.ensureBook(); err != nil {
			return err
		}

		for _, a := range m.agents {
			if m.isolated[a.TraderID()] {
				continue
			}
			m.actuate(a)
		}

		if m.mids != nil {
			m.mids.MidPrice(t, m.book.MidPrice())
		}

		m.rng.Shuffle(len(m.agents), func(i, j int) {
			m.agents[i], m.agents[j] = m.agents[j], m.agents[i]
		})
	}
	return nil
}

// ensureBook actuates the bootstrap agent until both sides are quoted.
func (m *Market) ensureBook() error {
	for guard := 0; ; guard++ {
		bidLevels, askLevels := m.book.Depth()
		if bidLevels > 0 && askLevels > 0 {
			return nil
		}
		if m.isolated[m.bootstrap.TraderID()] || guard >= 16 {
			return ErrBootstrapFailed
		}
		m.actuate(m.bootstrap)
	}
}

// actuate runs one agent hook, quarantining the agent on a panic so a
// faulting strategy cannot take down the run.
func (m *Market) actuate(a agents.Trader) {
	defer func() {
		if rec := recover(); rec != nil {
			m.isolated[a.TraderID()] = true
			m.metrics.AgentIsolated()
			m.logger.Error("agent isolated after fault",
				"trader", a.TraderID().String(),
				"panic", rec)
		}
	}()
	a.Actuate()
}

// Isolated reports how many agents have been quarantined.
func (m *Market) Isolated() int { return len(m.isolated) }
