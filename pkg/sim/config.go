package sim

import (
	"github.com/apxr/marketsim/pkg/agents"
)

// Config fixes every parameter of a simulation. The zero value is not
// usable; start from Default.
type Config struct {
	Runs      int
	Timesteps int64
	Seed      int64
	OutputDir string

	Venue  string
	Ticker string

	Tick            float64
	InitialPrice    float64 // seeds last_price and the noise default quote
	InitialLastSize int64

	// Population per strategy.
	NumLiquidityConsumers int
	NumMarketMakers       int
	NumMeanReversion      int
	NumMomentum           int
	NumNoise              int

	Noise             agents.NoiseParams
	MarketMaker       agents.MarketMakerParams
	LiquidityConsumer agents.LiquidityConsumerParams
	Momentum          agents.MomentumParams
	MeanReversion     agents.MeanReversionParams
}

// Default returns the reference configuration: ten runs of 300k timesteps
// over a 91-agent population (including the pluggable slot).
func Default() Config {
	return Config{
		Runs:      10,
		Timesteps: 300_000,
		Seed:      1,
		OutputDir: "output",

		Venue:  "apxr",
		Ticker: "apxr",

		Tick:            0.01,
		InitialPrice:    100.0,
		InitialLastSize: 1,

		NumLiquidityConsumers: 5,
		NumMarketMakers:       5,
		NumMeanReversion:      20,
		NumMomentum:           20,
		NumNoise:              40,

		Noise:             agents.DefaultNoiseParams(),
		MarketMaker:       agents.DefaultMarketMakerParams(),
		LiquidityConsumer: agents.DefaultLiquidityConsumerParams(),
		Momentum:          agents.DefaultMomentumParams(),
		MeanReversion:     agents.DefaultMeanReversionParams(),
	}
}
