package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"

	"github.com/luxfi/havven-sim/pkg/agents"
	"github.com/luxfi/havven-sim/pkg/feed"
	"github.com/luxfi/havven-sim/pkg/havven"
	"github.com/luxfi/havven-sim/pkg/sim"
	"github.com/luxfi/havven-sim/pkg/stats"
)

const (
	defaultMetricsPort = 9090
	defaultFeedPort    = 8081
)

type Config struct {
	LogLevel string

	// Population
	Bankers      int
	NoiseTraders int
	Endowment    float64

	// Run
	Steps        int
	Seed         int64
	StepInterval time.Duration
	LogEvery     int

	// Economy
	FiatFee          float64
	CuritFee         float64
	NominFee         float64
	UtilisationRatio float64
	Precision        int

	// Services
	EnableMetrics bool
	MetricsPort   int
	EnableFeed    bool
	FeedPort      int
}

// noiseTrader provides liquidity by re-quoting around the last traded
// price on a randomly chosen market each step.
type noiseTrader struct {
	*agents.MarketPlayer
	rng *rand.Rand
}

type placeFunc func(quantity, price decimal.Decimal) (*havven.Order, error)

// orderFraction is the share of available funds committed per quote.
var orderFraction = decimal.New(1, -1)

func (a *noiseTrader) Step() {
	a.CancelOrders()

	m := a.Model()
	switch a.rng.Intn(3) {
	case 0:
		a.quote(m.Markets.CuritFiatMarket, a.AvailableFiat(), a.AvailableCurits(),
			a.PlaceCuritFiatBid, a.PlaceCuritFiatAsk)
	case 1:
		a.quote(m.Markets.NominFiatMarket, a.AvailableFiat(), a.AvailableNomins(),
			a.PlaceNominFiatBid, a.PlaceNominFiatAsk)
	case 2:
		a.quote(m.Markets.CuritNominMarket, a.AvailableNomins(), a.AvailableCurits(),
			a.PlaceCuritNominBid, a.PlaceCuritNominAsk)
	}
}

func (a *noiseTrader) quote(book *havven.OrderBook, quoteFunds, baseFunds decimal.Decimal, bid, ask placeFunc) {
	m := a.Model()

	// Up to 5% either side of the last trade.
	jitter := decimal.NewFromFloat(1 + (a.rng.Float64()-0.5)/10).Round(8)
	price := m.Round(book.Price().Mul(jitter))
	if !price.IsPositive() {
		return
	}

	if a.rng.Intn(2) == 0 {
		funds := m.Round(quoteFunds.Mul(orderFraction))
		// A dust budget at a high price can round to a zero quantity.
		if quantity := funds.DivRound(price, 8); quantity.IsPositive() {
			bid(quantity, price)
		}
		return
	}

	quantity := m.Round(baseFunds.Mul(orderFraction))
	if quantity.IsPositive() {
		ask(quantity, price)
	}
}

type Simulation struct {
	config    *Config
	model     *havven.Model
	scheduler *sim.Scheduler
	collector *stats.Collector
	feed      *feed.Server
	players   []*agents.MarketPlayer
	logger    log.Logger

	// Trade count already published per market. Tracks TradeCount
	// rather than slice positions because the book trims its trade log.
	published map[string]int64
}

func NewSimulation(config *Config) (*Simulation, error) {
	level, _ := log.ToLevel(config.LogLevel)
	logger := log.NewTestLogger(level)
	logger.Info("initializing simulation",
		"bankers", config.Bankers,
		"noiseTraders", config.NoiseTraders,
		"steps", config.Steps,
		"seed", config.Seed)

	cfg := havven.Config{
		FiatFee:           decimal.NewFromFloat(config.FiatFee),
		CuritFee:          decimal.NewFromFloat(config.CuritFee),
		NominFee:          decimal.NewFromFloat(config.NominFee),
		UtilisationRatio:  decimal.NewFromFloat(config.UtilisationRatio),
		CurrencyPrecision: int32(config.Precision),
	}
	model, err := havven.NewModel(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid economy parameters: %w", err)
	}

	// One seed stream drives everything so a run is reproducible from
	// the -seed flag alone.
	seeds := rand.New(rand.NewSource(config.Seed))
	scheduler := sim.NewScheduler(rand.New(rand.NewSource(seeds.Int63())), logger)

	s := &Simulation{
		config:    config,
		model:     model,
		scheduler: scheduler,
		collector: stats.NewCollector(model, logger),
		logger:    logger,
		published: make(map[string]int64),
	}

	endowment := decimal.NewFromFloat(config.Endowment)
	zero := decimal.Zero

	// Bankers start with fiat only and work their way into curits and
	// issued nomins.
	for i := 0; i < config.Bankers; i++ {
		b := agents.NewBanker(fmt.Sprintf("banker-%d", i), model,
			rand.New(rand.NewSource(seeds.Int63())), endowment, zero, zero)
		scheduler.Add(b)
		s.players = append(s.players, b.MarketPlayer)
	}

	// Noise traders hold fiat and curits so the bankers' bids have
	// something to cross.
	for i := 0; i < config.NoiseTraders; i++ {
		n := &noiseTrader{
			MarketPlayer: agents.NewMarketPlayer(fmt.Sprintf("noise-%d", i), model,
				endowment, endowment, zero),
			rng: rand.New(rand.NewSource(seeds.Int63())),
		}
		scheduler.Add(n)
		s.players = append(s.players, n.MarketPlayer)
	}

	if config.EnableFeed {
		s.feed = feed.NewServer(model.Markets, logger)
	}

	scheduler.AfterStep(s.afterStep)
	return s, nil
}

func (s *Simulation) afterStep(tick int) {
	s.collector.Observe(tick)

	if s.feed != nil {
		for _, book := range s.model.Markets.Books() {
			count := book.TradeCount()
			if delta := count - s.published[book.Name()]; delta > 0 {
				trades := book.Trades()
				if n := int64(len(trades)); delta > n {
					delta = n
				}
				for _, t := range trades[int64(len(trades))-delta:] {
					s.feed.PublishTrade(book.Name(), t)
				}
				s.published[book.Name()] = count
			}
			s.feed.PublishBook(book)
		}
		s.feed.PublishTick(int64(tick))
	}

	if s.config.LogEvery > 0 && tick%s.config.LogEvery == 0 {
		s.logProgress(tick)
	}
}

func (s *Simulation) logProgress(tick int) {
	var trades int64
	for _, book := range s.model.Markets.Books() {
		trades += book.TradeCount()
	}
	s.logger.Info("simulation progress",
		"tick", tick,
		"curitPrice", s.model.CuritPrice(),
		"nominPrice", s.model.NominPrice(),
		"trades", trades)
}

func (s *Simulation) Run(ctx context.Context) {
	if s.config.EnableMetrics {
		go s.serveMetrics()
	}
	if s.feed != nil {
		go func() {
			if err := s.feed.Start(fmt.Sprintf(":%d", s.config.FeedPort)); err != nil {
				s.logger.Error("feed server failed", "error", err)
			}
		}()
		defer s.feed.Stop()
	}

	start := time.Now()
	for i := 0; i < s.config.Steps; i++ {
		if ctx.Err() != nil {
			s.logger.Info("interrupted", "tick", s.scheduler.Ticks())
			break
		}
		s.scheduler.Step()

		if s.config.StepInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.config.StepInterval):
			}
		}
	}

	s.logSummary(time.Since(start))
}

func (s *Simulation) serveMetrics() {
	addr := fmt.Sprintf(":%d", s.config.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())

	s.logger.Info("metrics server starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		s.logger.Error("metrics server failed", "error", err)
	}
}

func (s *Simulation) logSummary(elapsed time.Duration) {
	m := s.model

	for _, book := range m.Markets.Books() {
		s.logger.Info("market summary",
			"pair", book.Name(),
			"price", book.Price(),
			"trades", book.TradeCount())
	}

	wealth := decimal.Zero
	var best *agents.MarketPlayer
	for _, p := range s.players {
		wealth = wealth.Add(p.Wealth())
		if best == nil || p.Profit().GreaterThan(best.Profit()) {
			best = p
		}
	}

	s.logger.Info("run summary",
		"ticks", s.scheduler.Ticks(),
		"elapsed", elapsed,
		"aggregateWealth", m.Round(wealth),
		"fiatFeesBurned", m.Round(m.Ledger.FeesBurned(havven.FIAT)),
		"curitFeesBurned", m.Round(m.Ledger.FeesBurned(havven.CUR)),
		"nominFeesBurned", m.Round(m.Ledger.FeesBurned(havven.NOM)))

	if best != nil {
		s.logger.Info("best performer",
			"name", best.Name(),
			"profit", m.Round(best.Profit()),
			"profitFraction", m.Round(best.ProfitFraction()))
	}
}

func main() {
	config := &Config{}

	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.IntVar(&config.Bankers, "bankers", 10, "Number of banker agents")
	flag.IntVar(&config.NoiseTraders, "noise-traders", 20, "Number of noise trader agents")
	flag.Float64Var(&config.Endowment, "endowment", 1000, "Initial fiat endowment per agent")

	flag.IntVar(&config.Steps, "steps", 1000, "Number of simulation steps")
	flag.Int64Var(&config.Seed, "seed", 42, "Random seed")
	flag.DurationVar(&config.StepInterval, "step-interval", 0, "Pause between steps (0 = run flat out)")
	flag.IntVar(&config.LogEvery, "log-every", 100, "Log progress every N steps (0 = never)")

	flag.Float64Var(&config.FiatFee, "fiat-fee", 0.005, "Fiat transfer fee rate")
	flag.Float64Var(&config.CuritFee, "curit-fee", 0.005, "Curit transfer fee rate")
	flag.Float64Var(&config.NominFee, "nomin-fee", 0.005, "Nomin transfer fee rate")
	flag.Float64Var(&config.UtilisationRatio, "utilisation-ratio", 0.25, "Mint utilisation ratio in (0,1]")
	flag.IntVar(&config.Precision, "precision", 8, "Display rounding precision")

	flag.BoolVar(&config.EnableMetrics, "enable-metrics", true, "Serve Prometheus metrics")
	flag.IntVar(&config.MetricsPort, "metrics-port", defaultMetricsPort, "Prometheus metrics port")
	flag.BoolVar(&config.EnableFeed, "enable-feed", true, "Serve the WebSocket market data feed")
	flag.IntVar(&config.FeedPort, "feed-port", defaultFeedPort, "WebSocket feed port")

	flag.Parse()

	s, err := NewSimulation(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "havven-sim: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.Run(ctx)
}
