package exchange

import (
	"context"
	"errors"
	"testing"

	"gridflow/internal/model"
)

func placeLimit(t *testing.T, s *SimulatedOrderExecutor, side model.OrderSide, price float64) string {
	t.Helper()
	resp, err := s.PlaceOrder(context.Background(), &model.Order{
		Symbol:    "BTC/USDT",
		Side:      side,
		Price:     price,
		Quantity:  0.01,
		OrderType: model.Limit,
		TradeType: model.OrderTradeSpot,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	return resp.OrderId
}

func TestSimulatedExecutorLifecycle(t *testing.T) {
	s := NewSimulatedOrderExecutor()
	s.SetPrice("BTC/USDT", 65000)

	id := placeLimit(t, s, model.Buy, 64000)

	st, err := s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if !st.IsNew() {
		t.Fatalf("fresh limit order status = %s, want NEW", st.Status)
	}

	// 价格没到不撮合
	s.CrossFills("BTC/USDT")
	st, _ = s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot)
	if st.IsFilled() {
		t.Fatal("buy filled above its limit price")
	}

	s.SetPrice("BTC/USDT", 63900)
	s.CrossFills("BTC/USDT")
	st, _ = s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot)
	if !st.IsFilled() {
		t.Fatalf("buy not filled at %v, status %s", 63900, st.Status)
	}

	// 已成交的订单不可撤
	if err := s.CancelOrder(id, "BTC/USDT", model.OrderTradeSpot); err == nil {
		t.Fatal("cancel of a filled order should fail")
	}
}

func TestSimulatedExecutorSellCross(t *testing.T) {
	s := NewSimulatedOrderExecutor()
	s.SetPrice("BTC/USDT", 65000)

	id := placeLimit(t, s, model.Sell, 65650)
	s.SetPrice("BTC/USDT", 65700)
	s.CrossFills("BTC/USDT")

	st, _ := s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot)
	if !st.IsFilled() {
		t.Fatalf("sell not filled, status %s", st.Status)
	}
}

func TestSimulatedExecutorFaultInjection(t *testing.T) {
	s := NewSimulatedOrderExecutor()
	s.SetPrice("BTC/USDT", 65000)
	boom := errors.New("boom")

	s.NextPlaceErr = boom
	if _, err := s.PlaceOrder(context.Background(), &model.Order{Symbol: "BTC/USDT", Side: model.Buy, OrderType: model.Limit}); !errors.Is(err, boom) {
		t.Fatalf("place err = %v", err)
	}
	// 一次性错误，第二次恢复
	id := placeLimit(t, s, model.Buy, 64000)

	s.NextStatusErr = boom
	if _, err := s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot); !errors.Is(err, boom) {
		t.Fatalf("status err = %v", err)
	}
	if _, err := s.GetOrderStatus(id, "BTC/USDT", model.OrderTradeSpot); err != nil {
		t.Fatalf("status should recover: %v", err)
	}
}

func TestPaperExchangeCrossesOnPriceFetch(t *testing.T) {
	market := NewSimulatedOrderExecutor()
	market.SetPrice("BTC/USDT", 65000)

	p := NewPaperExchange(market)

	resp, err := p.PlaceOrder(context.Background(), &model.Order{
		Symbol: "BTC/USDT", Side: model.Buy, Price: 64000, Quantity: 0.01,
		OrderType: model.Limit, TradeType: model.OrderTradeSpot,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// 行情跌破限价后，下一次取价应顺带撮合
	market.SetPrice("BTC/USDT", 63900)
	if _, err := p.GetLastPrice("BTC/USDT", model.OrderTradeSpot); err != nil {
		t.Fatalf("GetLastPrice: %v", err)
	}

	st, err := p.GetOrderStatus(resp.OrderId, "BTC/USDT", model.OrderTradeSpot)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if !st.IsFilled() {
		t.Fatalf("paper order not crossed, status %s", st.Status)
	}
}
