package havven

import (
	"fmt"
	"sort"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// Side represents the side of an order.
type Side int

const (
	BidSide Side = iota
	AskSide
)

func (s Side) String() string {
	if s == BidSide {
		return "bid"
	}
	return "ask"
}

// OrderState is the lifecycle state of an order. Orders move from
// active to exactly one of filled or cancelled and are never resurrected.
type OrderState int

const (
	OrderActive OrderState = iota
	OrderFilled
	OrderCancelled
)

func (s OrderState) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderFilled:
		return "filled"
	default:
		return "cancelled"
	}
}

// Order is a resting limit order. Quantity is the remaining unfilled
// amount and only ever decreases. Seq is the book-wide insertion number
// used as the price-time tie-break.
type Order struct {
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Owner    Trader
	Seq      uint64
	State    OrderState

	book *OrderBook
}

// Active reports whether the order is still on the book.
func (o *Order) Active() bool { return o.State == OrderActive }

// Cancel removes the order from its book, releasing the unfilled
// remainder of its reservation. Fails with ErrOrderNotActive if the
// order has already been filled or cancelled.
func (o *Order) Cancel() error { return o.book.Cancel(o) }

// The trade log is bounded: once it exceeds maxTradeHistory entries it
// is trimmed to the most recent tradeHistoryKeep. TradeCount stays
// monotonic across trims.
const (
	maxTradeHistory  = 100000
	tradeHistoryKeep = 50000
)

// Trade records an executed trade.
type Trade struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Buyer    string
	Seller   string
	BidSeq   uint64
	AskSeq   uint64
}

// Level is one aggregated price level of a book snapshot.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Count    int             `json:"count"`
}

// BookSnapshot is a depth view of a book, bids from best down and asks
// from best up.
type BookSnapshot struct {
	Name  string          `json:"name"`
	Bids  []Level         `json:"bids"`
	Asks  []Level         `json:"asks"`
	Price decimal.Decimal `json:"price"`
}

// bookEvent is a pending fill or cancel notification. Matching appends
// events while it mutates the book; the dispatch loop delivers them only
// once the book is consistent again, so owner callbacks can never
// re-enter the matching engine mid-mutation.
type bookEvent struct {
	cancel bool
	order  *Order
}

// OrderBook is a single currency-pair matching engine under price-time
// priority. Bids are kept ordered by price descending then sequence
// ascending, asks by price ascending then sequence ascending; after any
// matching pass no bid price is >= any ask price.
type OrderBook struct {
	name  string
	base  Currency
	quote Currency

	ledger *Ledger
	logger log.Logger

	bids []*Order
	asks []*Order
	seq  uint64

	price      decimal.Decimal // last traded price, quoted in quote per base
	trades     []Trade
	tradeCount int64

	pending     []bookEvent
	dispatching bool
}

// NewOrderBook creates an empty book for base priced in quote. The last
// traded price starts at 1, the reference parity of the simulation.
func NewOrderBook(base, quote Currency, ledger *Ledger, logger log.Logger) *OrderBook {
	name := fmt.Sprintf("%s/%s", base, quote)
	return &OrderBook{
		name:   name,
		base:   base,
		quote:  quote,
		ledger: ledger,
		logger: logger.New("module", "book", "pair", name),
		price:  one,
	}
}

// Name returns the book's pair name, e.g. "curits/fiat".
func (ob *OrderBook) Name() string { return ob.name }

// Base returns the base currency.
func (ob *OrderBook) Base() Currency { return ob.base }

// Quote returns the quote currency.
func (ob *OrderBook) Quote() Currency { return ob.quote }

// Price returns the last traded price (1 before any trade).
func (ob *OrderBook) Price() decimal.Decimal { return ob.price }

// Trades returns the most recent executed trades. The log is bounded,
// so long runs only retain a tail of the full history; TradeCount
// reports the unbounded total.
func (ob *OrderBook) Trades() []Trade { return ob.trades }

// TradeCount returns the total number of trades executed on this book.
func (ob *OrderBook) TradeCount() int64 { return ob.tradeCount }

// OrderCount returns the total number of orders ever placed on this book.
func (ob *OrderBook) OrderCount() uint64 { return ob.seq }

// HighestBidPrice returns the best resting bid price, or ErrEmptyBook.
func (ob *OrderBook) HighestBidPrice() (decimal.Decimal, error) {
	if len(ob.bids) == 0 {
		return decimal.Zero, ErrEmptyBook
	}
	return ob.bids[0].Price, nil
}

// LowestAskPrice returns the best resting ask price, or ErrEmptyBook.
func (ob *OrderBook) LowestAskPrice() (decimal.Decimal, error) {
	if len(ob.asks) == 0 {
		return decimal.Zero, ErrEmptyBook
	}
	return ob.asks[0].Price, nil
}

// Bid places a limit buy of quantity base at price, reserving
// price*quantity of the quote currency from the owner. The book is
// matched before the call returns, so the returned order may already be
// partially or fully filled. Fails with ErrInsufficientBalance if the
// reservation cannot be made.
func (ob *OrderBook) Bid(price, quantity decimal.Decimal, owner Trader) (*Order, error) {
	mustPositive("bid price", price)
	mustPositive("bid quantity", quantity)
	if err := ob.ledger.Reserve(owner.Account(), ob.quote, price.Mul(quantity)); err != nil {
		return nil, err
	}
	o := ob.insert(BidSide, price, quantity, owner)
	ob.match()
	ob.dispatch()
	return o, nil
}

// Ask places a limit sell of quantity base at price, reserving quantity
// of the base currency from the owner. Otherwise symmetric with Bid.
func (ob *OrderBook) Ask(price, quantity decimal.Decimal, owner Trader) (*Order, error) {
	mustPositive("ask price", price)
	mustPositive("ask quantity", quantity)
	if err := ob.ledger.Reserve(owner.Account(), ob.base, quantity); err != nil {
		return nil, err
	}
	o := ob.insert(AskSide, price, quantity, owner)
	ob.match()
	ob.dispatch()
	return o, nil
}

// Buy places a bid at the current best ask marked up by premium,
// a market-style order willing to cross immediately. Fails with
// ErrEmptyBook if there are no asks to price off.
func (ob *OrderBook) Buy(quantity decimal.Decimal, buyer Trader, premium decimal.Decimal) (*Order, error) {
	best, err := ob.LowestAskPrice()
	if err != nil {
		return nil, err
	}
	return ob.Bid(best.Mul(one.Add(premium)), quantity, buyer)
}

// Sell places an ask at the current best bid marked down by discount.
// Fails with ErrEmptyBook if there are no bids to price off.
func (ob *OrderBook) Sell(quantity decimal.Decimal, seller Trader, discount decimal.Decimal) (*Order, error) {
	best, err := ob.HighestBidPrice()
	if err != nil {
		return nil, err
	}
	return ob.Ask(best.Mul(one.Sub(discount)), quantity, seller)
}

// Cancel removes an active order from the book, releasing the unfilled
// remainder of its reservation, and notifies the owner.
func (ob *OrderBook) Cancel(o *Order) error {
	if o.State != OrderActive {
		return ErrOrderNotActive
	}
	ob.releaseFor(o, o.Quantity)
	ob.remove(o)
	o.State = OrderCancelled
	ob.pending = append(ob.pending, bookEvent{cancel: true, order: o})
	ob.dispatch()
	return nil
}

// Snapshot returns the aggregated depth of the book.
func (ob *OrderBook) Snapshot() BookSnapshot {
	return BookSnapshot{
		Name:  ob.name,
		Bids:  aggregate(ob.bids),
		Asks:  aggregate(ob.asks),
		Price: ob.price,
	}
}

// insert adds a new order to its side, keeping the side sorted by price
// priority and then ascending sequence. The new order carries the
// highest sequence, so it lands after all orders at equal price.
func (ob *OrderBook) insert(side Side, price, quantity decimal.Decimal, owner Trader) *Order {
	ob.seq++
	o := &Order{
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Owner:    owner,
		Seq:      ob.seq,
		book:     ob,
	}
	if side == BidSide {
		i := sort.Search(len(ob.bids), func(i int) bool { return ob.bids[i].Price.LessThan(price) })
		ob.bids = append(ob.bids, nil)
		copy(ob.bids[i+1:], ob.bids[i:])
		ob.bids[i] = o
	} else {
		i := sort.Search(len(ob.asks), func(i int) bool { return ob.asks[i].Price.GreaterThan(price) })
		ob.asks = append(ob.asks, nil)
		copy(ob.asks[i+1:], ob.asks[i:])
		ob.asks[i] = o
	}
	return o
}

// match executes trades while the book crosses. Each trade prints at the
// resting (lower-sequence) order's price for the minimum of the two
// remaining quantities. The entire cascade completes before control
// returns, leaving the book non-crossed.
func (ob *OrderBook) match() {
	for len(ob.bids) > 0 && len(ob.asks) > 0 {
		bid, ask := ob.bids[0], ob.asks[0]
		if bid.Price.LessThan(ask.Price) {
			break
		}
		price := ask.Price
		if bid.Seq < ask.Seq {
			price = bid.Price
		}
		quantity := decimal.Min(bid.Quantity, ask.Quantity)
		ob.execute(bid, ask, price, quantity)
	}
}

// execute settles one trade between the best bid and best ask. The
// reservation made at order placement covers each leg: the bid releases
// quantity at its own limit price even when the trade prints below it,
// returning the surplus to the buyer.
func (ob *OrderBook) execute(bid, ask *Order, price, quantity decimal.Decimal) {
	buyer, seller := bid.Owner.Account(), ask.Owner.Account()

	ob.releaseFor(bid, quantity)
	ob.releaseFor(ask, quantity)
	if err := ob.ledger.Transfer(seller, buyer, ob.base, quantity); err != nil {
		panic(fmt.Errorf("book %s: base leg failed: %w", ob.name, err))
	}
	if err := ob.ledger.Transfer(buyer, seller, ob.quote, price.Mul(quantity)); err != nil {
		panic(fmt.Errorf("book %s: quote leg failed: %w", ob.name, err))
	}

	bid.Quantity = bid.Quantity.Sub(quantity)
	ask.Quantity = ask.Quantity.Sub(quantity)
	ob.price = price
	ob.trades = append(ob.trades, Trade{
		Price:    price,
		Quantity: quantity,
		Buyer:    buyer.ID,
		Seller:   seller.ID,
		BidSeq:   bid.Seq,
		AskSeq:   ask.Seq,
	})
	if len(ob.trades) > maxTradeHistory {
		ob.trades = ob.trades[len(ob.trades)-tradeHistoryKeep:]
	}
	ob.tradeCount++
	ob.logger.Debug("trade",
		"price", price.String(), "quantity", quantity.String(),
		"buyer", buyer.ID, "seller", seller.ID)

	if bid.Quantity.IsZero() {
		ob.fill(bid)
	}
	if ask.Quantity.IsZero() {
		ob.fill(ask)
	}
}

// fill marks an exhausted order filled and removes it from the book.
func (ob *OrderBook) fill(o *Order) {
	ob.remove(o)
	o.State = OrderFilled
	ob.pending = append(ob.pending, bookEvent{order: o})
}

// releaseFor returns the reservation attributable to quantity of o:
// quantity of the base currency for an ask, or quantity at the order's
// limit price in the quote currency for a bid. A failure here means the
// reservation accounting is corrupt, which is unrecoverable.
func (ob *OrderBook) releaseFor(o *Order, quantity decimal.Decimal) {
	var err error
	if o.Side == BidSide {
		err = ob.ledger.Release(o.Owner.Account(), ob.quote, o.Price.Mul(quantity))
	} else {
		err = ob.ledger.Release(o.Owner.Account(), ob.base, quantity)
	}
	if err != nil {
		panic(fmt.Errorf("book %s: release for %s order %d failed: %w", ob.name, o.Side, o.Seq, err))
	}
}

// remove deletes an order from its side slice.
func (ob *OrderBook) remove(o *Order) {
	side := &ob.bids
	if o.Side == AskSide {
		side = &ob.asks
	}
	for i, other := range *side {
		if other == o {
			*side = append((*side)[:i], (*side)[i+1:]...)
			return
		}
	}
	panic(fmt.Errorf("book %s: order %d not found on %s side", ob.name, o.Seq, o.Side))
}

// dispatch delivers pending fill and cancel notifications. Callbacks may
// place or cancel further orders; any events those generate are appended
// to the same queue and drained by the outermost call, so notification
// order follows event order and the engine is never re-entered while a
// mutation is in flight.
func (ob *OrderBook) dispatch() {
	if ob.dispatching {
		return
	}
	ob.dispatching = true
	defer func() { ob.dispatching = false }()
	for len(ob.pending) > 0 {
		ev := ob.pending[0]
		ob.pending = ob.pending[1:]
		if ev.cancel {
			ev.order.Owner.NotifyCancelled(ev.order)
		} else {
			ev.order.Owner.NotifyFilled(ev.order)
		}
	}
}

func aggregate(side []*Order) []Level {
	levels := make([]Level, 0, len(side))
	for _, o := range side {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(o.Price) {
			levels[n-1].Quantity = levels[n-1].Quantity.Add(o.Quantity)
			levels[n-1].Count++
			continue
		}
		levels = append(levels, Level{Price: o.Price, Quantity: o.Quantity, Count: 1})
	}
	return levels
}
