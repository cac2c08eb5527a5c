package sim

import (
	"time"

	"github.com/luxfi/log"

	"github.com/apxr/marketsim/pkg/agents"
	"github.com/apxr/marketsim/pkg/book"
	"github.com/apxr/marketsim/pkg/feed"
	"github.com/apxr/marketsim/pkg/metrics"
	"github.com/apxr/marketsim/pkg/report"
)

// PluggableFactory builds the agent occupying the pluggable population
// slot. The returned agent may also implement feed.Subscriber to receive
// the public feed.
type PluggableFactory func(b *book.Book, seed int64) agents.Trader

// Driver runs the configured number of independent simulations, rotating
// output files and reseeding between runs.
type Driver struct {
	cfg       Config
	pluggable PluggableFactory
	metrics   *metrics.SimMetrics
	logger    log.Logger
}

func NewDriver(cfg Config, m *metrics.SimMetrics) *Driver {
	return &Driver{
		cfg:     cfg,
		metrics: m,
		logger:  log.Root().New("module", "driver"),
	}
}

// SetPluggable installs a strategy under evaluation into the pluggable
// slot. Without one, a passive agent fills it.
func (d *Driver) SetPluggable(f PluggableFactory) { d.pluggable = f }

// Run wipes the output directory and executes every configured run.
func (d *Driver) Run() error {
	if err := report.Wipe(d.cfg.OutputDir); err != nil {
		return err
	}
	for run := 1; run <= d.cfg.Runs; run++ {
		if err := d.runOnce(run); err != nil {
			return err
		}
	}
	return nil
}

// runOnce builds a fresh engine, feed, reporter, and population, then
// hands control to the scheduler.
func (d *Driver) runOnce(run int) error {
	start := time.Now()
	reporter, err := report.OpenRun(d.cfg.OutputDir, run, d.cfg.Tick)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reporter.Close(); cerr != nil {
			d.logger.Error("closing reporter failed", "run", run, "error", cerr)
		}
	}()

	f := feed.New()
	b := book.New(book.Config{
		Venue:     d.cfg.Venue,
		Ticker:    d.cfg.Ticker,
		Tick:      d.cfg.Tick,
		LastPrice: d.cfg.InitialPrice,
		LastSize:  d.cfg.InitialLastSize,
	}, f, reporter, d.metrics)
	f.Subscribe(feed.TopicOrderbookEvent, reporter)

	population, bootstrap := d.buildPopulation(run, b, f)

	// Each run draws from a disjoint seed range so runs are independent
	// but individually reproducible.
	schedSeed := d.runSeed(run) + int64(len(population))
	market := NewMarket(b, population, bootstrap, reporter, schedSeed, d.cfg.Timesteps, d.metrics)

	d.logger.Info("run started", "run", run, "agents", len(population), "timesteps", d.cfg.Timesteps)
	if err := market.Run(); err != nil {
		return err
	}

	orders, trades := b.Stats()
	d.logger.Info("run complete",
		"run", run,
		"orders", orders,
		"trades", trades,
		"isolated", market.Isolated(),
		"elapsed", time.Since(start).String())
	return nil
}

func (d *Driver) runSeed(run int) int64 {
	return d.cfg.Seed + int64(run)*1_000_003
}

// buildPopulation constructs the per-strategy agent counts, wiring feed
// subscriptions for the strategies that consume public events.
func (d *Driver) buildPopulation(run int, b *book.Book, f *feed.Feed) ([]agents.Trader, agents.Trader) {
	base := d.runSeed(run)
	next := func() int64 {
		base++
		return base
	}

	var population []agents.Trader
	var bootstrap agents.Trader

	for i := 0; i < d.cfg.NumNoise; i++ {
		n := agents.NewNoise(i, b, next(), d.cfg.Noise)
		if bootstrap == nil {
			bootstrap = n
		}
		population = append(population, n)
	}
	for i := 0; i < d.cfg.NumMarketMakers; i++ {
		mm := agents.NewMarketMaker(i, b, next(), d.cfg.MarketMaker)
		f.Subscribe(feed.TopicOrderbookEvent, mm)
		population = append(population, mm)
	}
	for i := 0; i < d.cfg.NumLiquidityConsumers; i++ {
		population = append(population, agents.NewLiquidityConsumer(i, b, next(), d.cfg.LiquidityConsumer))
	}
	for i := 0; i < d.cfg.NumMomentum; i++ {
		mt := agents.NewMomentum(i, b, next(), d.cfg.Momentum)
		f.Subscribe(feed.TopicOrderbookEvent, mt)
		population = append(population, mt)
	}
	for i := 0; i < d.cfg.NumMeanReversion; i++ {
		mr := agents.NewMeanReversion(i, b, next(), d.cfg.MeanReversion)
		f.Subscribe(feed.TopicOrderbookEvent, mr)
		population = append(population, mr)
	}

	var plug agents.Trader
	if d.pluggable != nil {
		plug = d.pluggable(b, next())
	} else {
		plug = agents.NewPassive(0, b, next())
	}
	if sub, ok := plug.(feed.Subscriber); ok {
		f.Subscribe(feed.TopicOrderbookEvent, sub)
	}
	population = append(population, plug)

	return population, bootstrap
}
