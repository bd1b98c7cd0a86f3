// Package stats exposes the state of a running simulation as Prometheus
// metrics: currency supplies, market prices, book depth, trade counts
// and the fee sink that bounds conservation drift.
package stats

import (
	"net/http"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/havven-sim/pkg/havven"
)

// Collector samples a model into a private Prometheus registry.
type Collector struct {
	model    *havven.Model
	registry *prometheus.Registry
	logger   log.Logger

	supply     *prometheus.GaugeVec
	escrowed   prometheus.Gauge
	issued     prometheus.Gauge
	feesBurned *prometheus.GaugeVec
	price      *prometheus.GaugeVec
	depth      *prometheus.GaugeVec
	wealth     prometheus.Gauge
	ticks      prometheus.Gauge
	orders     prometheus.Counter
	trades     prometheus.Counter

	lastOrders uint64
	lastTrades int64
}

// NewCollector creates a collector over the model with its own registry.
func NewCollector(model *havven.Model, logger log.Logger) *Collector {
	const namespace = "havven"
	c := &Collector{
		model:    model,
		registry: prometheus.NewRegistry(),
		logger:   logger.New("module", "stats"),

		supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "currency_supply",
			Help:      "Total balance held across all accounts, by currency",
		}, []string{"currency"}),

		escrowed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrowed_curits",
			Help:      "Total curits locked in the mint",
		}),

		issued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "issued_nomins",
			Help:      "Total nomins issued against escrowed curits",
		}),

		feesBurned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fees_burned",
			Help:      "Cumulative transfer fees retired, by currency",
		}, []string{"currency"}),

		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_price",
			Help:      "Last traded price, by market",
		}, []string{"market"}),

		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_depth",
			Help:      "Resting order count, by market and side",
		}, []string{"market", "side"}),

		wealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregate_wealth",
			Help:      "Sum of all account wealth at current fiat prices",
		}),

		ticks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ticks",
			Help:      "Completed simulation ticks",
		}),

		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Total orders placed across all markets",
		}),

		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total trades executed across all markets",
		}),
	}

	c.registry.MustRegister(c.supply, c.escrowed, c.issued, c.feesBurned,
		c.price, c.depth, c.wealth, c.ticks, c.orders, c.trades)
	return c
}

// Handler returns the HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe samples the model after a completed tick.
func (c *Collector) Observe(tick int) {
	m := c.model
	totals := make(map[havven.Currency]float64, 3)
	var escrowed, issued, wealth float64

	for _, a := range m.Ledger.Accounts() {
		for _, cur := range []havven.Currency{havven.FIAT, havven.CUR, havven.NOM} {
			totals[cur] += a.Balance(cur).InexactFloat64()
		}
		escrowed += a.EscrowedCurits.InexactFloat64()
		issued += a.IssuedNomins.InexactFloat64()
		wealth += m.FiatValue(
			a.Fiat,
			a.Curits.Add(a.EscrowedCurits),
			a.Nomins.Sub(a.IssuedNomins),
		).InexactFloat64()
	}

	for cur, total := range totals {
		c.supply.WithLabelValues(cur.String()).Set(total)
		c.feesBurned.WithLabelValues(cur.String()).Set(m.Ledger.FeesBurned(cur).InexactFloat64())
	}
	c.escrowed.Set(escrowed)
	c.issued.Set(issued)
	c.wealth.Set(wealth)
	c.ticks.Set(float64(tick))

	var trades int64
	var orders uint64
	for _, book := range m.Markets.Books() {
		snap := book.Snapshot()
		c.price.WithLabelValues(book.Name()).Set(book.Price().InexactFloat64())
		c.depth.WithLabelValues(book.Name(), "bid").Set(float64(len(snap.Bids)))
		c.depth.WithLabelValues(book.Name(), "ask").Set(float64(len(snap.Asks)))
		trades += book.TradeCount()
		orders += book.OrderCount()
	}
	if delta := orders - c.lastOrders; delta > 0 {
		c.orders.Add(float64(delta))
		c.lastOrders = orders
	}
	if delta := trades - c.lastTrades; delta > 0 {
		c.trades.Add(float64(delta))
		c.lastTrades = trades
	}
}
