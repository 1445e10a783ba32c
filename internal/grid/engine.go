package grid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/multierr"

	"gridflow/conf"
	"gridflow/internal/exchange"
	"gridflow/internal/metrics"
	"gridflow/internal/model"
	"gridflow/pkg/logger"
	"gridflow/pkg/utils"
)

// EventRecorder 事件落盘接口，写失败只记日志，不影响交易流程
type EventRecorder interface {
	Record(result any) error
}

// Engine 网格引擎。持有阶梯、账本和交易所网关，由单线程控制循环驱动：
// Run 按固定周期调用 Tick，Tick 内部串行处理所有节点，无并发改状态。
type Engine struct {
	cfg       *conf.GridConfig
	ex        exchange.Exchange
	rec       EventRecorder
	idGen     *snowflake.Node
	direction model.Direction
	tradeType model.OrderTradeType

	mu        sync.Mutex
	ladder    *Ladder
	ledger    *Ledger
	ticks     int64
	lastPrice float64

	// 供状态接口无锁读取的最近快照，周期结束时整体替换
	snap atomic.Pointer[EngineSnapshot]
}

// NewEngine 拉取启动价并构建阶梯。重启不恢复旧网格，
// 一律以当前价重新对齐（旧挂单需人工清理）。
func NewEngine(cfg *conf.GridConfig, ex exchange.Exchange, rec EventRecorder) (*Engine, error) {
	idGen, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node: %w", err)
	}

	tradeType := model.OrderTradeType(cfg.TradeType)

	var startPrice float64
	err = utils.Retry(3, 2*time.Second, true, func() error {
		p, err := ex.GetLastPrice(cfg.Symbol, tradeType)
		if err != nil {
			return err
		}
		startPrice = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get start price for %s: %w", cfg.Symbol, err)
	}
	startPrice = utils.RoundTo(startPrice, cfg.PricePrecision)

	e := &Engine{
		cfg:       cfg,
		ex:        ex,
		rec:       rec,
		idGen:     idGen,
		direction: model.Direction(cfg.Direction),
		tradeType: tradeType,
		ladder:    NewLadder(startPrice, cfg),
		ledger:    &Ledger{},
		lastPrice: startPrice,
	}

	logger.Info("grid engine initialized",
		logger.Pair("symbol", cfg.Symbol),
		logger.Pair("direction", cfg.Direction),
		logger.Pair("start_price", startPrice),
		logger.Pair("grid_depth", e.ladder.Depth()),
		logger.Pair("total_grids", cfg.TotalGrids()),
	)
	// 不做状态恢复：重启丢弃旧网格对齐，交易所侧残留挂单需人工清理
	logger.Warnf("fresh ladder aligned to %v, any orders from a previous run must be cleaned up manually", startPrice)
	e.snap.Store(e.buildSnapshot())
	return e, nil
}

// Bootstrap 初始建仓 + 挂出初始买卖窗口。建仓失败视为启动失败。
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer func() {
		e.snap.Store(e.buildSnapshot())
		e.mu.Unlock()
	}()

	switch e.direction {
	case model.DirectionLong:
		if err := e.bootstrapLong(ctx); err != nil {
			return err
		}
	case model.DirectionShort:
		if err := e.bootstrapShort(ctx); err != nil {
			return err
		}
	case model.DirectionNeutral:
		// 中性模式不预建仓，上方卖单裸挂，先成交先开腿
		logger.Infof("neutral mode, no bootstrap position for %s", e.cfg.Symbol)
	default:
		return fmt.Errorf("unknown direction %q", e.direction)
	}

	return e.placeInitialOrders(ctx)
}

// bootstrapLong 买入足够覆盖初始卖单窗口的仓位。分两笔：
// 第一笔贴近现价主动成交，第二笔挂低价捡便宜，都有限时等待。
func (e *Engine) bootstrapLong(ctx context.Context) error {
	total := utils.RoundTo(float64(e.cfg.InitialSellGrids)*e.cfg.QtyPerOrder, e.cfg.QtyPrecision)
	q1 := utils.RoundTo(total*e.cfg.FirstBuyPortion, e.cfg.QtyPrecision)
	q2 := utils.RoundTo(total-q1, e.cfg.QtyPrecision)
	p1 := utils.RoundTo(e.lastPrice*e.cfg.MarketBuyRate, e.cfg.PricePrecision)
	p2 := utils.RoundTo(e.lastPrice*e.cfg.SecondBuyPriceRate, e.cfg.PricePrecision)

	deadline := time.Now().Add(e.cfg.BootstrapTimeout)

	id1, err := e.placeLimit(ctx, model.Buy, p1, q1, "bootstrap buy 1/2")
	if err != nil {
		return fmt.Errorf("bootstrap buy 1/2: %w", err)
	}
	if err := e.waitFilled(ctx, id1, deadline); err != nil {
		return fmt.Errorf("bootstrap buy 1/2 (order %s): %w", id1, err)
	}
	e.ledger.ApplyBuyFill(q1, p1, 0)
	logger.Infof("bootstrap buy 1/2 filled: qty=%v price=%v", q1, p1)

	filledQty, costSum := q1, q1*p1

	id2, err := e.placeLimit(ctx, model.Buy, p2, q2, "bootstrap buy 2/2")
	if err != nil {
		// 第二笔失败不致命，用第一笔的均价作为卖单成本基准
		logger.Errorf("bootstrap buy 2/2 place failed, continue with partial position: %v", err)
	} else if err := e.waitFilled(ctx, id2, deadline); err != nil {
		logger.Warnf("bootstrap buy 2/2 (order %s) not filled in time, canceling: %v", id2, err)
		if cerr := e.ex.CancelOrder(id2, e.cfg.Symbol, e.tradeType); cerr != nil {
			logger.Errorf("cancel bootstrap buy 2/2 %s failed, check exchange side: %v", id2, cerr)
		}
	} else {
		e.ledger.ApplyBuyFill(q2, p2, 0)
		filledQty += q2
		costSum += q2 * p2
		logger.Infof("bootstrap buy 2/2 filled: qty=%v price=%v", q2, p2)
	}

	avg := utils.RoundTo(costSum/filledQty, e.cfg.PricePrecision)
	from, to := e.ladder.InitialSellRange()
	for i := from; i < to; i++ {
		e.ladder.Node(i).BuyExecPrice = avg
	}

	e.recordEvent(&model.GridEvent{
		Type:     model.EventBootstrap,
		Side:     string(model.Buy),
		Price:    avg,
		Quantity: filledQty,
	})
	return nil
}

// bootstrapShort 镜像逻辑：卖出建空仓覆盖初始买单窗口
func (e *Engine) bootstrapShort(ctx context.Context) error {
	total := utils.RoundTo(float64(e.cfg.InitialBuyGrids)*e.cfg.QtyPerOrder, e.cfg.QtyPrecision)
	q1 := utils.RoundTo(total*e.cfg.FirstSellPortion, e.cfg.QtyPrecision)
	q2 := utils.RoundTo(total-q1, e.cfg.QtyPrecision)
	p1 := utils.RoundTo(e.lastPrice*e.cfg.MarketSellRate, e.cfg.PricePrecision)
	p2 := utils.RoundTo(e.lastPrice*e.cfg.SecondSellPriceRate, e.cfg.PricePrecision)

	deadline := time.Now().Add(e.cfg.BootstrapTimeout)

	id1, err := e.placeLimit(ctx, model.Sell, p1, q1, "bootstrap sell 1/2")
	if err != nil {
		return fmt.Errorf("bootstrap sell 1/2: %w", err)
	}
	if err := e.waitFilled(ctx, id1, deadline); err != nil {
		return fmt.Errorf("bootstrap sell 1/2 (order %s): %w", id1, err)
	}
	e.ledger.ApplySellFill(q1, p1, 0)
	logger.Infof("bootstrap sell 1/2 filled: qty=%v price=%v", q1, p1)

	filledQty, costSum := q1, q1*p1

	id2, err := e.placeLimit(ctx, model.Sell, p2, q2, "bootstrap sell 2/2")
	if err != nil {
		logger.Errorf("bootstrap sell 2/2 place failed, continue with partial position: %v", err)
	} else if err := e.waitFilled(ctx, id2, deadline); err != nil {
		logger.Warnf("bootstrap sell 2/2 (order %s) not filled in time, canceling: %v", id2, err)
		if cerr := e.ex.CancelOrder(id2, e.cfg.Symbol, e.tradeType); cerr != nil {
			logger.Errorf("cancel bootstrap sell 2/2 %s failed, check exchange side: %v", id2, cerr)
		}
	} else {
		e.ledger.ApplySellFill(q2, p2, 0)
		filledQty += q2
		costSum += q2 * p2
		logger.Infof("bootstrap sell 2/2 filled: qty=%v price=%v", q2, p2)
	}

	avg := utils.RoundTo(costSum/filledQty, e.cfg.PricePrecision)
	from, to := e.ladder.InitialBuyRange()
	for i := from; i < to; i++ {
		e.ladder.Node(i).SellExecPrice = avg
	}

	e.recordEvent(&model.GridEvent{
		Type:     model.EventBootstrap,
		Side:     string(model.Sell),
		Price:    avg,
		Quantity: filledQty,
	})
	return nil
}

// waitFilled 轮询订单直到成交或超时，状态查询出错时继续重试
func (e *Engine) waitFilled(ctx context.Context, orderID string, deadline time.Time) error {
	for {
		st, err := e.ex.GetOrderStatus(orderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("query bootstrap order %s: %v", orderID, err)
		} else if st.IsFilled() {
			return nil
		} else if st.Status == model.OrderStatusCanceled {
			return fmt.Errorf("order canceled on exchange side")
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("not filled before deadline")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.BootstrapPollInterval):
		}
	}
}

// placeInitialOrders 激活初始窗口：下方挂买单，上方挂卖单
func (e *Engine) placeInitialOrders(ctx context.Context) error {
	bFrom, bTo := e.ladder.InitialBuyRange()
	for i := bFrom; i < bTo; i++ {
		n := e.ladder.Node(i)
		id, err := e.placeLimit(ctx, model.Buy, n.PriceBuy, e.cfg.QtyPerOrder, fmt.Sprintf("init buy node %d", i))
		if err != nil {
			return fmt.Errorf("initial buy at node %d: %w", i, err)
		}
		n.OrderID = id
		n.Phase = model.PhaseBuyPlaced
		n.State = model.NodeActive
		e.recordEvent(&model.GridEvent{
			Type: model.EventOrderPlaced, NodeIndex: i,
			Side: string(model.Buy), Price: n.PriceBuy, Quantity: e.cfg.QtyPerOrder, OrderID: id,
		})
		time.Sleep(e.cfg.NodeQueryDelay)
	}

	sFrom, sTo := e.ladder.InitialSellRange()
	for i := sFrom; i < sTo; i++ {
		n := e.ladder.Node(i)
		id, err := e.placeLimit(ctx, model.Sell, n.PriceSell, e.cfg.QtyPerOrder, fmt.Sprintf("init sell node %d", i))
		if err != nil {
			return fmt.Errorf("initial sell at node %d: %w", i, err)
		}
		n.OrderID = id
		n.Phase = model.PhaseSellPlaced
		n.State = model.NodeActive
		e.recordEvent(&model.GridEvent{
			Type: model.EventOrderPlaced, NodeIndex: i,
			Side: string(model.Sell), Price: n.PriceSell, Quantity: e.cfg.QtyPerOrder, OrderID: id,
		})
		time.Sleep(e.cfg.NodeQueryDelay)
	}

	logger.Infof("initial window placed: buys [%d,%d) sells [%d,%d)", bFrom, bTo, sFrom, sTo)
	return nil
}

// Run 控制循环，ctx 取消后退出
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	logger.Infof("control loop started, tick interval %s", e.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("control loop stopped")
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				logger.Errorf("tick %d finished with errors: %v", e.ticks, err)
			}
		}
	}
}

// Tick 一个控制周期：取价 -> 逐节点轮询 -> 移动窗口判定。
// 单节点出错只跳过该节点，错误聚合后返回。
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer func() {
		e.snap.Store(e.buildSnapshot())
		e.mu.Unlock()
	}()

	e.ticks++
	metrics.Ticks.Inc()

	price, err := e.ex.GetLastPrice(e.cfg.Symbol, e.tradeType)
	if err != nil {
		metrics.TickErrors.Inc()
		return fmt.Errorf("get last price: %w", err)
	}
	price = utils.RoundTo(price, e.cfg.PricePrecision)
	e.lastPrice = price

	var errs error
	for _, n := range e.ladder.Nodes() {
		if !n.Active() {
			continue
		}
		time.Sleep(e.cfg.NodeQueryDelay)
		if err := e.pollNode(ctx, n, price); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if err := e.maybeTrail(ctx, price); err != nil {
		errs = multierr.Append(errs, err)
	}

	e.updateGauges(price)
	e.recordEvent(&model.GridEvent{Type: model.EventProfit, Price: price})
	if errs != nil {
		metrics.TickErrors.Inc()
	}
	return errs
}

// pollNode 处理单个活跃节点：有挂单的查状态，成交则换腿挂反向单；
// 处于 *Filled 且无挂单的节点是上次换腿失败留下的，直接重试补单。
func (e *Engine) pollNode(ctx context.Context, n *model.GridNode, price float64) error {
	switch n.Phase {
	case model.PhaseBuyFilled:
		// 上次补卖单失败，重试
		return e.replaceSell(ctx, n, price, true)
	case model.PhaseSellFilled:
		return e.replaceBuy(ctx, n, price, true)
	}
	if !n.Phase.HasOpenOrder() {
		return nil
	}

	st, err := e.ex.GetOrderStatus(n.OrderID, e.cfg.Symbol, e.tradeType)
	if err != nil {
		logger.Errorf("node %d (%s, order %s): query status: %v", n.Index, n.Phase, n.OrderID, err)
		return fmt.Errorf("node %d: query status: %w", n.Index, err)
	}
	if !st.IsFilled() {
		return nil
	}

	if n.Phase == model.PhaseBuyPlaced {
		return e.onBuyFilled(ctx, n, price)
	}
	return e.onSellFilled(ctx, n, price)
}

// onBuyFilled 买单成交：记账，然后在本格卖价挂平仓单
func (e *Engine) onBuyFilled(ctx context.Context, n *model.GridNode, price float64) error {
	n.Phase = model.PhaseBuyFilled
	n.BuyExecPrice = n.PriceBuy
	filledID := n.OrderID
	n.OrderID = ""

	// 没有记录过卖出成交价的格子按网格卖价配对
	pairSell := n.SellExecPrice
	if pairSell == 0 {
		pairSell = n.PriceSell
	}
	realized := e.ledger.ApplyBuyFill(e.cfg.QtyPerOrder, n.BuyExecPrice, pairSell)
	metrics.Fills.WithLabelValues(string(model.Buy)).Inc()

	logger.Info("buy filled",
		logger.Pair("node", n.Index),
		logger.Pair("price", n.BuyExecPrice),
		logger.Pair("qty", e.cfg.QtyPerOrder),
		logger.Pair("realized", realized),
		logger.Pair("position", e.ledger.Position()),
		logger.Pair("grid_profit", e.ledger.GridProfit()),
	)
	e.recordEvent(&model.GridEvent{
		Type: model.EventBuyFilled, NodeIndex: n.Index,
		Side: string(model.Buy), Price: n.BuyExecPrice, Quantity: e.cfg.QtyPerOrder, OrderID: filledID,
	})

	return e.replaceSell(ctx, n, price, false)
}

// onSellFilled 卖单成交：记账，然后在本格买价挂回补单
func (e *Engine) onSellFilled(ctx context.Context, n *model.GridNode, price float64) error {
	n.Phase = model.PhaseSellFilled
	n.SellExecPrice = n.PriceSell
	filledID := n.OrderID
	n.OrderID = ""

	pairBuy := n.BuyExecPrice
	if pairBuy == 0 {
		pairBuy = n.PriceBuy
	}
	realized := e.ledger.ApplySellFill(e.cfg.QtyPerOrder, n.SellExecPrice, pairBuy)
	metrics.Fills.WithLabelValues(string(model.Sell)).Inc()

	logger.Info("sell filled",
		logger.Pair("node", n.Index),
		logger.Pair("price", n.SellExecPrice),
		logger.Pair("qty", e.cfg.QtyPerOrder),
		logger.Pair("realized", realized),
		logger.Pair("position", e.ledger.Position()),
		logger.Pair("grid_profit", e.ledger.GridProfit()),
	)
	e.recordEvent(&model.GridEvent{
		Type: model.EventSellFilled, NodeIndex: n.Index,
		Side: string(model.Sell), Price: n.SellExecPrice, Quantity: e.cfg.QtyPerOrder, OrderID: filledID,
	})

	return e.replaceBuy(ctx, n, price, false)
}

// replaceSell 买腿成交后的换腿卖单。卖价已落后于现价时贴现价挂出，
// 避免立刻被动成交在更差的价位。失败则留在 BuyFilled 下个周期重试。
func (e *Engine) replaceSell(ctx context.Context, n *model.GridNode, price float64, retry bool) error {
	p := n.PriceSell
	if p < price {
		logger.Warnf("node %d sell price %v below market %v, lifting to market", n.Index, p, price)
		p = price
	}

	id, err := e.placeLimit(ctx, model.Sell, p, e.cfg.QtyPerOrder, fmt.Sprintf("grid sell node %d", n.Index))
	if err != nil {
		logger.Errorf("node %d: place replacement sell failed, will retry next tick: %v", n.Index, err)
		return fmt.Errorf("node %d: place sell: %w", n.Index, err)
	}
	n.OrderID = id
	n.Phase = model.PhaseSellPlaced

	evt := model.EventOrderPlaced
	if retry {
		evt = model.EventOrderReplaced
		metrics.Replacements.Inc()
	}
	e.recordEvent(&model.GridEvent{
		Type: evt, NodeIndex: n.Index,
		Side: string(model.Sell), Price: p, Quantity: e.cfg.QtyPerOrder, OrderID: id,
	})
	return nil
}

// replaceBuy 卖腿成交后的换腿买单，对称处理
func (e *Engine) replaceBuy(ctx context.Context, n *model.GridNode, price float64, retry bool) error {
	p := n.PriceBuy
	if p > price {
		logger.Warnf("node %d buy price %v above market %v, dropping to market", n.Index, p, price)
		p = price
	}

	id, err := e.placeLimit(ctx, model.Buy, p, e.cfg.QtyPerOrder, fmt.Sprintf("grid buy node %d", n.Index))
	if err != nil {
		logger.Errorf("node %d: place replacement buy failed, will retry next tick: %v", n.Index, err)
		return fmt.Errorf("node %d: place buy: %w", n.Index, err)
	}
	n.OrderID = id
	n.Phase = model.PhaseBuyPlaced

	evt := model.EventOrderPlaced
	if retry {
		evt = model.EventOrderReplaced
		metrics.Replacements.Inc()
	}
	e.recordEvent(&model.GridEvent{
		Type: evt, NodeIndex: n.Index,
		Side: string(model.Buy), Price: p, Quantity: e.cfg.QtyPerOrder, OrderID: id,
	})
	return nil
}

func (e *Engine) placeLimit(ctx context.Context, side model.OrderSide, price, qty float64, comment string) (string, error) {
	ord := &model.Order{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Price:         utils.RoundTo(price, e.cfg.PricePrecision),
		Quantity:      utils.RoundTo(qty, e.cfg.QtyPrecision),
		OrderType:     model.Limit,
		TradeType:     e.tradeType,
		ClientOrderID: "gf" + e.idGen.Generate().String(),
		Comment:       comment,
		Timestamp:     time.Now(),
	}
	resp, err := e.ex.PlaceOrder(ctx, ord)
	if err != nil {
		return "", err
	}
	metrics.OrdersPlaced.WithLabelValues(string(side)).Inc()
	return resp.OrderId, nil
}

// confirmFilled 有限次确认强平单成交。确认不了按已成交处理，
// 返回 false 提示调用方打告警
func (e *Engine) confirmFilled(ctx context.Context, orderID string) bool {
	for i := 0; i < e.cfg.TrailConfirmRetries; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(e.cfg.TrailConfirmInterval):
		}
		st, err := e.ex.GetOrderStatus(orderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("confirm order %s: %v", orderID, err)
			continue
		}
		if st.IsFilled() {
			return true
		}
	}
	return false
}

func (e *Engine) updateGauges(price float64) {
	metrics.Position.Set(e.ledger.Position())
	metrics.GridProfit.Set(e.ledger.GridProfit())
	metrics.FloatingProfit.Set(e.ledger.FloatingProfit(price))
	metrics.Baseline.Set(e.ladder.Baseline())
}

func (e *Engine) recordEvent(evt *model.GridEvent) {
	if e.rec == nil {
		return
	}
	evt.Time = time.Now()
	evt.Symbol = e.cfg.Symbol
	evt.Baseline = e.ladder.Baseline()
	evt.NTrail = e.ladder.NTrail()
	evt.Position = e.ledger.Position()
	evt.GridProfit = e.ledger.GridProfit()
	evt.FloatingProfit = e.ledger.FloatingProfit(e.lastPrice)
	evt.TotalProfit = e.ledger.TotalProfit(e.lastPrice)
	if err := e.rec.Record(evt); err != nil {
		logger.Errorf("record event %s: %v", evt.Type, err)
	}
}

// EngineSnapshot 状态接口返回的整机快照
type EngineSnapshot struct {
	Symbol    string               `json:"symbol"`
	Direction string               `json:"direction"`
	Baseline  float64              `json:"baseline"`
	GridDepth float64              `json:"grid_depth"`
	NTrail    int                  `json:"n_trail"`
	Ticks     int64                `json:"ticks"`
	LastPrice float64              `json:"last_price"`
	Ledger    LedgerSnapshot       `json:"ledger"`
	Nodes     []model.NodeSnapshot `json:"nodes"`
}

// Snapshot 返回最近一个完整周期结束时的快照。控制循环可能在
// 强平确认等长等待中持锁，状态接口读缓存副本，不参与抢锁。
func (e *Engine) Snapshot() EngineSnapshot {
	if s := e.snap.Load(); s != nil {
		return *s
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.buildSnapshot()
}

// buildSnapshot 调用方需持有 e.mu
func (e *Engine) buildSnapshot() *EngineSnapshot {
	return &EngineSnapshot{
		Symbol:    e.cfg.Symbol,
		Direction: string(e.direction),
		Baseline:  e.ladder.Baseline(),
		GridDepth: e.ladder.Depth(),
		NTrail:    e.ladder.NTrail(),
		Ticks:     e.ticks,
		LastPrice: e.lastPrice,
		Ledger:    e.ledger.Snapshot(e.lastPrice),
		Nodes:     e.ladder.Snapshot(),
	}
}
