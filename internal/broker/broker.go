// Package broker executes trade signals against a virtual cash and position
// ledger, producing trade records and realised profit and loss.
package broker

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/metrics"
)

// SimBroker applies buy and sell decisions to an in-memory portfolio. One
// broker is created per simulation run, owns that run's metrics tracker, and
// is never shared across runs. Cash can never go negative and no position's
// quantity can go negative: underfunded buys are rejected as no-ops and
// allocation-based oversells are clamped to the held quantity.
type SimBroker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*domain.Position
	trades    []domain.TradeRecord
	tracker   *metrics.Tracker
	log       *slog.Logger
}

// NewSimBroker creates a broker holding startingBalance in cash.
func NewSimBroker(startingBalance float64, log *slog.Logger) *SimBroker {
	if log == nil {
		log = slog.Default()
	}
	return &SimBroker{
		cash:      startingBalance,
		positions: make(map[string]*domain.Position),
		tracker:   metrics.NewTracker(startingBalance),
		log:       log.With("component", "broker"),
	}
}

// Tracker returns the metrics tracker owned by this broker.
func (b *SimBroker) Tracker() *metrics.Tracker {
	return b.tracker
}

// Execute routes a strategy signal to the matching allocation-based
// operation.
func (b *SimBroker) Execute(symbol string, sig *domain.Signal) {
	switch sig.Action {
	case domain.SideBuy:
		b.BuyAllocation(symbol, sig.Price, sig.Allocation, sig.Timestamp)
	case domain.SideSell:
		b.SellAllocation(symbol, sig.Price, sig.Allocation, sig.Timestamp)
	}
}

// BuyAllocation buys using a fraction of available cash: quantity is
// (cash * allocation) / price rounded to 4 decimal places.
func (b *SimBroker) BuyAllocation(symbol string, price, allocation float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buy(symbol, price, round4(b.cash*allocation/price), ts)
}

// Buy buys an explicit quantity at the given price.
func (b *SimBroker) Buy(symbol string, price, quantity float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buy(symbol, price, quantity, ts)
}

func (b *SimBroker) buy(symbol string, price, quantity float64, ts time.Time) {
	if quantity <= 0 || quantity*price > b.cash {
		b.log.Debug("buy rejected: insufficient funds",
			"symbol", symbol, "price", price, "quantity", quantity, "cash", b.cash)
		return
	}

	cost := price * quantity
	b.cash -= cost
	if pos, ok := b.positions[symbol]; ok {
		total := pos.Quantity + quantity
		pos.AvgPrice = (pos.AvgPrice*pos.Quantity + cost) / total
		pos.Quantity = total
	} else {
		b.positions[symbol] = &domain.Position{Symbol: symbol, Quantity: quantity, AvgPrice: price}
	}

	b.append(domain.TradeRecord{Timestamp: ts, Symbol: symbol, Side: domain.SideBuy, Price: price, Quantity: quantity})
}

// SellAllocation sells a fraction of the held quantity, rounded to 4 decimal
// places and clamped so it can never exceed the position.
func (b *SimBroker) SellAllocation(symbol string, price, allocation float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[symbol]
	if !ok {
		b.log.Debug("sell rejected: no position", "symbol", symbol)
		return
	}
	b.sell(symbol, price, round4(pos.Quantity*allocation), ts)
}

// Sell sells an explicit quantity at the given price, clamped to the held
// quantity.
func (b *SimBroker) Sell(symbol string, price, quantity float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.positions[symbol]; !ok {
		b.log.Debug("sell rejected: no position", "symbol", symbol)
		return
	}
	b.sell(symbol, price, quantity, ts)
}

func (b *SimBroker) sell(symbol string, price, quantity float64, ts time.Time) {
	pos := b.positions[symbol]
	if quantity <= 0 {
		return
	}
	if quantity > pos.Quantity {
		quantity = pos.Quantity
	}

	b.tracker.AddRealised((price - pos.AvgPrice) * quantity)
	b.cash += price * quantity
	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(b.positions, symbol)
	}

	b.append(domain.TradeRecord{Timestamp: ts, Symbol: symbol, Side: domain.SideSell, Price: price, Quantity: quantity})
}

// append records the trade and pushes the post-trade ledger state into the
// tracker before the operation returns.
func (b *SimBroker) append(rec domain.TradeRecord) {
	b.trades = append(b.trades, rec)
	b.tracker.SetCash(b.cash)
	b.tracker.SetPositions(b.positionsLocked())
}

// Cash returns the current cash balance.
func (b *SimBroker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

// Positions returns a snapshot copy of all open positions.
func (b *SimBroker) Positions() map[string]domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionsLocked()
}

func (b *SimBroker) positionsLocked() map[string]domain.Position {
	out := make(map[string]domain.Position, len(b.positions))
	for sym, pos := range b.positions {
		out[sym] = *pos
	}
	return out
}

// Trades returns a copy of the trade history in execution order.
func (b *SimBroker) Trades() []domain.TradeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.TradeRecord, len(b.trades))
	copy(out, b.trades)
	return out
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
