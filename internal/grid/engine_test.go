package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridflow/conf"
	"gridflow/internal/exchange"
	"gridflow/internal/model"
)

// 测试配置：时间类参数保持零值，各等待循环不会真的 sleep
func testGridConfig() *conf.GridConfig {
	return &conf.GridConfig{
		Symbol:              "BTC/USDT",
		Direction:           "neutral",
		TradeType:           "spot",
		QtyPerOrder:         0.01,
		ProfitRate:          0.01,
		PricePrecision:      2,
		QtyPrecision:        4,
		InitialBuyGrids:     3,
		InitialSellGrids:    3,
		TrailUpGrids:        2,
		TrailDownGrids:      2,
		TrailUpStartGrids:   2,
		TrailDownStartGrids: 2,
		MarketSellRate:      1.0003,
		MarketBuyRate:       0.9997,
		FirstBuyPortion:     0.6,
		SecondBuyPriceRate:  0.995,
		FirstSellPortion:    0.6,
		SecondSellPriceRate: 1.005,
	}
}

func newTestEngine(t *testing.T, cfg *conf.GridConfig, sim *exchange.SimulatedOrderExecutor) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, sim, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngineBootstrapLong(t *testing.T) {
	cfg := testGridConfig()
	cfg.Direction = "long"
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)
	sim.FillOnPlace = true

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// 两笔建仓合计覆盖初始卖单窗口
	if !almostEqual(e.ledger.Position(), 0.03) {
		t.Fatalf("position after bootstrap = %v, want 0.03", e.ledger.Position())
	}

	// 卖单窗口节点的成本基准 = 两笔建仓的加权均价
	// 0.018@64980.5 + 0.012@64675 -> 64858.3
	from, to := e.ladder.InitialSellRange()
	for i := from; i < to; i++ {
		if got := e.ladder.Node(i).BuyExecPrice; !almostEqual(got, 64858.3) {
			t.Errorf("node %d cost basis = %v, want 64858.3", i, got)
		}
	}

	for i := 2; i <= 7; i++ {
		n := e.ladder.Node(i)
		if !n.Active() || n.OrderID == "" {
			t.Errorf("node %d should be active with an order: %+v", i, n)
		}
	}
}

func TestEngineBootstrapShort(t *testing.T) {
	cfg := testGridConfig()
	cfg.Direction = "short"
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)
	sim.FillOnPlace = true

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	// 两笔卖出建空仓，合计覆盖初始买单窗口
	if !almostEqual(e.ledger.Position(), -0.03) {
		t.Fatalf("position after bootstrap = %v, want -0.03", e.ledger.Position())
	}

	// 买单窗口节点的成本基准 = 两笔卖出的加权均价
	// 0.018@65019.5 + 0.012@65325 -> 65141.7
	from, to := e.ladder.InitialBuyRange()
	for i := from; i < to; i++ {
		if got := e.ladder.Node(i).SellExecPrice; !almostEqual(got, 65141.7) {
			t.Errorf("node %d cost basis = %v, want 65141.7", i, got)
		}
	}

	for i := 2; i <= 7; i++ {
		n := e.ladder.Node(i)
		if !n.Active() || n.OrderID == "" {
			t.Errorf("node %d should be active with an order: %+v", i, n)
		}
	}
}

// 只成交第一笔订单的网关，覆盖第二笔建仓超时撤单的分支
type firstFillExchange struct {
	*exchange.SimulatedOrderExecutor
	filled bool
}

func (f *firstFillExchange) PlaceOrder(ctx context.Context, req *model.Order) (*model.OrderResponse, error) {
	resp, err := f.SimulatedOrderExecutor.PlaceOrder(ctx, req)
	if err == nil && !f.filled {
		f.filled = true
		f.MarkFilled(resp.OrderId)
	}
	return resp, err
}

// 第二笔建仓到点未成交：撤掉它，用第一笔的均价继续，不算启动失败
func TestEngineBootstrapShortPartialSecondTranche(t *testing.T) {
	cfg := testGridConfig()
	cfg.Direction = "short"
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)
	ex := &firstFillExchange{SimulatedOrderExecutor: sim}

	e, err := NewEngine(cfg, ex, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap should tolerate a stale second tranche: %v", err)
	}

	if !almostEqual(e.ledger.Position(), -0.018) {
		t.Fatalf("position = %v, want -0.018", e.ledger.Position())
	}
	// 只有第一笔成交，成本基准就是它的价格
	from, to := e.ladder.InitialBuyRange()
	for i := from; i < to; i++ {
		if got := e.ladder.Node(i).SellExecPrice; !almostEqual(got, 65019.5) {
			t.Errorf("node %d cost basis = %v, want 65019.5", i, got)
		}
	}
	// 第二笔已撤，场上只剩 6 张初始窗口挂单
	if sim.OpenOrders(cfg.Symbol) != 6 {
		t.Fatalf("open orders = %d, want 6", sim.OpenOrders(cfg.Symbol))
	}
}

// 建仓单长时间不成交必须报错退出，不能无限等
func TestEngineBootstrapTimeout(t *testing.T) {
	cfg := testGridConfig()
	cfg.Direction = "long"
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err == nil {
		t.Fatal("Bootstrap should fail when the position order never fills")
	}
}

func TestEngineFillReplaceCycle(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if sim.OpenOrders(cfg.Symbol) != 6 {
		t.Fatalf("open orders after bootstrap = %d, want 6", sim.OpenOrders(cfg.Symbol))
	}

	// 价格跌破 node 4 的买价，买单成交后同格挂出卖单
	sim.SetPrice(cfg.Symbol, 64300)
	sim.CrossFills(cfg.Symbol)
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	n4 := e.ladder.Node(4)
	if n4.Phase != model.PhaseSellPlaced {
		t.Fatalf("node 4 phase = %s, want sell_placed", n4.Phase)
	}
	if !almostEqual(e.ledger.Position(), 0.01) {
		t.Fatalf("position = %v, want 0.01", e.ledger.Position())
	}
	if sim.OpenOrders(cfg.Symbol) != 6 {
		t.Fatalf("open orders = %d, want 6", sim.OpenOrders(cfg.Symbol))
	}

	// 回升到卖价，配对平仓，利润 = 格距 * 数量
	sim.SetPrice(cfg.Symbol, 65000)
	sim.CrossFills(cfg.Symbol)
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if !almostEqual(e.ledger.GridProfit(), 6.5) {
		t.Fatalf("grid profit = %v, want 6.5", e.ledger.GridProfit())
	}
	if !almostEqual(e.ledger.Position(), 0) {
		t.Fatalf("position = %v, want 0", e.ledger.Position())
	}
	if n4.Phase != model.PhaseBuyPlaced {
		t.Fatalf("node 4 phase = %s, want buy_placed", n4.Phase)
	}

	// 无变化的周期必须幂等
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("idle tick: %v", err)
	}
	if !almostEqual(e.ledger.GridProfit(), 6.5) || e.ledger.Matched() != 1 {
		t.Fatalf("idle tick changed the ledger: profit=%v matched=%d",
			e.ledger.GridProfit(), e.ledger.Matched())
	}
}

// 单节点查询失败只跳过该节点，其余节点当周期照常处理
func TestEngineStatusErrorIsolated(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	sim.SetPrice(cfg.Symbol, 64300)
	sim.CrossFills(cfg.Symbol)
	sim.NextStatusErr = errors.New("rate limited")

	err := e.Tick(context.Background())
	if err == nil {
		t.Fatal("tick should report the poll failure")
	}
	// node 2 的查询吃掉了注入错误，node 4 的成交仍被处理
	if !almostEqual(e.ledger.Position(), 0.01) {
		t.Fatalf("position = %v, want 0.01", e.ledger.Position())
	}

	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("next tick should recover: %v", err)
	}
}

// 换腿下单失败后节点停在 *Filled 无挂单，下个周期自动补单，账本不重复记账
func TestEngineReplacementRetry(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	sim.SetPrice(cfg.Symbol, 64300)
	sim.CrossFills(cfg.Symbol)
	sim.NextPlaceErr = errors.New("insufficient balance")

	if err := e.Tick(context.Background()); err == nil {
		t.Fatal("tick should report the placement failure")
	}
	n4 := e.ladder.Node(4)
	if n4.Phase != model.PhaseBuyFilled || n4.OrderID != "" {
		t.Fatalf("node 4 should be in repair state: phase=%s order=%q", n4.Phase, n4.OrderID)
	}

	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("repair tick: %v", err)
	}
	if n4.Phase != model.PhaseSellPlaced || n4.OrderID == "" {
		t.Fatalf("node 4 not repaired: phase=%s order=%q", n4.Phase, n4.OrderID)
	}
	if !almostEqual(e.ledger.TotalBuys(), 0.01) {
		t.Fatalf("buy recorded %v times the quantity, want exactly once", e.ledger.TotalBuys())
	}
}

type captureRecorder struct {
	events []model.GridEvent
}

func (c *captureRecorder) Record(result any) error {
	if evt, ok := result.(*model.GridEvent); ok {
		c.events = append(c.events, *evt)
	}
	return nil
}

// 每个周期结束落一条 profit 事件，带上当期账本状态
func TestEngineTickRecordsProfitEvent(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)
	rec := &captureRecorder{}

	e, err := NewEngine(cfg, sim, rec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	sim.SetPrice(cfg.Symbol, 64300)
	sim.CrossFills(cfg.Symbol)
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != model.EventProfit {
		t.Fatalf("last event = %s, want %s", last.Type, model.EventProfit)
	}
	if last.Price != 64300 || !almostEqual(last.Position, 0.01) {
		t.Fatalf("profit event out of sync with ledger: %+v", last)
	}
}

func TestEngineSnapshot(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	s := e.Snapshot()
	if s.Symbol != cfg.Symbol || s.GridDepth != 650 || len(s.Nodes) != cfg.TotalGrids() {
		t.Fatalf("snapshot = %+v", s)
	}
	active := 0
	for _, n := range s.Nodes {
		if n.State == "active" {
			active++
		}
	}
	if active != 6 {
		t.Fatalf("active nodes in snapshot = %d, want 6", active)
	}
}

// 状态接口读缓存副本，控制循环持锁（比如强平确认等待中）也不阻塞
func TestEngineSnapshotNotBlockedByTick(t *testing.T) {
	cfg := testGridConfig()
	sim := exchange.NewSimulatedOrderExecutor()
	sim.SetPrice(cfg.Symbol, 65000)

	e := newTestEngine(t, cfg, sim)
	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	done := make(chan EngineSnapshot, 1)
	go func() { done <- e.Snapshot() }()
	select {
	case s := <-done:
		if s.Symbol != cfg.Symbol || len(s.Nodes) != cfg.TotalGrids() {
			t.Fatalf("snapshot = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked on the control loop lock")
	}
}
