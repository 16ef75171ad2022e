package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/quoter/internal/domain"
	"github.com/vadiminshakov/quoter/internal/storage/simstate"
	"go.uber.org/zap"
)

var defaultSimulateQuote = decimal.NewFromInt(10000)

// restingOrder limit order waiting in the simulated book. Its funds are reserved:
// quote amount*price for bids, base amount for asks.
type restingOrder struct {
	id        string
	side      domain.Side
	amount    decimal.Decimal
	price     decimal.Decimal
	createdAt time.Time
}

// SimulateTrader paper trading venue priced by a real market feed.
// Market orders and limit orders that cross the mid fill immediately at mid;
// other limit orders rest until the mid moves through their price.
type SimulateTrader struct {
	mu         sync.Mutex
	pair       domain.Pair
	logger     *zap.Logger
	wallet     map[string]decimal.Decimal
	book       map[string]restingOrder
	pricer     Pricer
	prec       Precision
	stateStore *simstate.Store
	acknowledger
}

// NewSimulateTrader creates a new SimulateTrader with 10000 quote coins, or the state restored from store.
func NewSimulateTrader(pair domain.Pair, pricer Pricer, store *simstate.Store, prec Precision,
	acks AckPublisher, logger *zap.Logger) (*SimulateTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for SimulateTrader")
	}

	trader := &SimulateTrader{
		pair:         pair,
		logger:       logger,
		wallet:       map[string]decimal.Decimal{pair.From: decimal.Zero, pair.To: defaultSimulateQuote},
		book:         make(map[string]restingOrder),
		pricer:       pricer,
		prec:         prec,
		stateStore:   store,
		acknowledger: acknowledger{acks: acks, l: logger},
	}
	if err := trader.restoreState(); err != nil {
		logger.Warn("failed to restore simulate state", zap.Error(err))
	}
	logger.Info("simulate init",
		zap.String("pair", pair.String()),
		zap.String("base", trader.wallet[pair.From].String()),
		zap.String("quote", trader.wallet[pair.To].String()),
		zap.Int("resting", len(trader.book)))
	return trader, nil
}

// IsReady reports whether the price feed answers.
func (t *SimulateTrader) IsReady(ctx context.Context) bool {
	_, err := t.pricer.GetPrice(ctx, t.pair)
	return err == nil
}

// GetMidPrice returns the market mid and fills resting orders it crosses.
func (t *SimulateTrader) GetMidPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	mid, err := t.pricer.GetPrice(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.match(mid) > 0 {
		t.persist()
	}
	return mid, nil
}

// GetBalance returns the free balance, excluding funds reserved by resting orders.
func (t *SimulateTrader) GetBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wallet[currency], nil
}

func (t *SimulateTrader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	amount, price, err := validateRequest(t.pair, req, t.prec)
	if err != nil {
		return "", err
	}

	mid, err := t.pricer.GetPrice(ctx, t.pair)
	if err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "simulate price: %v", err)
	}

	id := newClientOrderID()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case req.Type == domain.OrderTypeMarket:
		err = t.fillMarket(id, req.Side, amount, mid)
	case crosses(req.Side, price, mid):
		err = t.fillCrossingLimit(id, req.Side, amount, price, mid)
	default:
		err = t.rest(id, req.Side, amount, price)
	}
	if err != nil {
		return "", errors.Wrapf(domain.ErrExecution, "simulate %s: %v", req.String(), err)
	}
	t.persist()

	t.ack(id, req)
	return id, nil
}

// CancelOrder releases the reservation of a resting order. Unknown or filled orders are ignored.
func (t *SimulateTrader) CancelOrder(ctx context.Context, pair domain.Pair, orderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.book[orderID]
	if !ok {
		return nil
	}
	delete(t.book, orderID)

	if o.side == domain.SideBuy {
		t.wallet[t.pair.To] = t.wallet[t.pair.To].Add(o.amount.Mul(o.price))
	} else {
		t.wallet[t.pair.From] = t.wallet[t.pair.From].Add(o.amount)
	}
	t.persist()

	t.logger.Info("Simulated order cancelled", zap.String("id", orderID), zap.String("side", string(o.side)))
	return nil
}

// openOrders returns ids of resting orders, oldest first.
func (t *SimulateTrader) openOrders() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	orders := make([]restingOrder, 0, len(t.book))
	for _, o := range t.book {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].createdAt.Before(orders[j].createdAt) })

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.id
	}
	return ids
}

func crosses(side domain.Side, price, mid decimal.Decimal) bool {
	if side == domain.SideBuy {
		return price.GreaterThanOrEqual(mid)
	}
	return price.LessThanOrEqual(mid)
}

func (t *SimulateTrader) fillMarket(id string, side domain.Side, amount, mid decimal.Decimal) error {
	if side == domain.SideBuy {
		cost := amount.Mul(mid)
		if t.wallet[t.pair.To].LessThan(cost) {
			return fmt.Errorf("insufficient %s balance: have %s need %s", t.pair.To, t.wallet[t.pair.To].String(), cost.String())
		}
		t.wallet[t.pair.To] = t.wallet[t.pair.To].Sub(cost)
		t.wallet[t.pair.From] = t.wallet[t.pair.From].Add(amount)
	} else {
		if t.wallet[t.pair.From].LessThan(amount) {
			return fmt.Errorf("insufficient %s balance: have %s need %s", t.pair.From, t.wallet[t.pair.From].String(), amount.String())
		}
		t.wallet[t.pair.From] = t.wallet[t.pair.From].Sub(amount)
		t.wallet[t.pair.To] = t.wallet[t.pair.To].Add(amount.Mul(mid))
	}

	t.logger.Info("Simulated market order executed",
		zap.String("id", id),
		zap.String("side", string(side)),
		zap.String("amount", amount.String()),
		zap.String("price", mid.String()))
	return nil
}

// fillCrossingLimit fills at mid, which is never worse than the limit price.
func (t *SimulateTrader) fillCrossingLimit(id string, side domain.Side, amount, limit, mid decimal.Decimal) error {
	if side == domain.SideBuy && t.wallet[t.pair.To].LessThan(amount.Mul(limit)) {
		return fmt.Errorf("insufficient %s balance: have %s need %s",
			t.pair.To, t.wallet[t.pair.To].String(), amount.Mul(limit).String())
	}
	return t.fillMarket(id, side, amount, mid)
}

func (t *SimulateTrader) rest(id string, side domain.Side, amount, price decimal.Decimal) error {
	if side == domain.SideBuy {
		reserve := amount.Mul(price)
		if t.wallet[t.pair.To].LessThan(reserve) {
			return fmt.Errorf("insufficient %s balance: have %s need %s", t.pair.To, t.wallet[t.pair.To].String(), reserve.String())
		}
		t.wallet[t.pair.To] = t.wallet[t.pair.To].Sub(reserve)
	} else {
		if t.wallet[t.pair.From].LessThan(amount) {
			return fmt.Errorf("insufficient %s balance: have %s need %s", t.pair.From, t.wallet[t.pair.From].String(), amount.String())
		}
		t.wallet[t.pair.From] = t.wallet[t.pair.From].Sub(amount)
	}

	t.book[id] = restingOrder{id: id, side: side, amount: amount, price: price, createdAt: time.Now()}
	t.logger.Info("Simulated limit order resting",
		zap.String("id", id),
		zap.String("side", string(side)),
		zap.String("amount", amount.String()),
		zap.String("price", price.String()))
	return nil
}

// match fills resting orders crossed by mid at their limit price and returns how many filled.
func (t *SimulateTrader) match(mid decimal.Decimal) int {
	filled := 0
	for id, o := range t.book {
		if !crosses(o.side, o.price, mid) {
			continue
		}
		delete(t.book, id)
		if o.side == domain.SideBuy {
			t.wallet[t.pair.From] = t.wallet[t.pair.From].Add(o.amount)
		} else {
			t.wallet[t.pair.To] = t.wallet[t.pair.To].Add(o.amount.Mul(o.price))
		}
		filled++
		t.logger.Info("Simulated limit order filled",
			zap.String("id", id),
			zap.String("side", string(o.side)),
			zap.String("amount", o.amount.String()),
			zap.String("price", o.price.String()))
	}
	return filled
}

func (t *SimulateTrader) restoreState() error {
	if t.stateStore == nil {
		return nil
	}
	state, err := t.stateStore.Load()
	if err != nil || state == nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wallet := make(map[string]decimal.Decimal, len(t.wallet)+len(state.Wallet))
	for currency, balance := range t.wallet {
		wallet[currency] = balance
	}
	for currency, balanceStr := range state.Wallet {
		if balanceStr == "" {
			wallet[currency] = decimal.Zero
			continue
		}
		parsed, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return errors.Wrapf(err, "decode %s balance", currency)
		}
		wallet[currency] = parsed
	}

	book := make(map[string]restingOrder, len(state.Orders))
	for _, so := range state.Orders {
		amount, price, err := so.Decode()
		if err != nil {
			return err
		}
		book[so.ID] = restingOrder{id: so.ID, side: so.Side, amount: amount, price: price, createdAt: so.CreatedAt}
	}

	t.wallet = wallet
	t.book = book
	return nil
}

// persist must be called with t.mu held.
func (t *SimulateTrader) persist() {
	if t.stateStore == nil {
		return
	}

	state := simstate.State{
		Pair:   t.pair.String(),
		Wallet: make(map[string]string, len(t.wallet)),
		Orders: make([]simstate.StoredOrder, 0, len(t.book)),
	}
	for currency, balance := range t.wallet {
		state.Wallet[currency] = balance.String()
	}
	for _, o := range t.book {
		state.Orders = append(state.Orders, simstate.StoredOrder{
			CreatedAt: o.createdAt,
			ID:        o.id,
			Side:      o.side,
			Amount:    o.amount.String(),
			Price:     o.price.String(),
		})
	}
	sort.Slice(state.Orders, func(i, j int) bool { return state.Orders[i].CreatedAt.Before(state.Orders[j].CreatedAt) })

	if err := t.stateStore.Save(state); err != nil {
		t.logger.Warn("failed to persist simulate state", zap.String("path", t.stateStore.Path()), zap.Error(err))
	}
}
