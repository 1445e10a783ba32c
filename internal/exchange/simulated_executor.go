package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gridflow/internal/model"
)

type simOrder struct {
	id     string
	symbol string
	side   model.OrderSide
	price  float64
	qty    float64
	status string
}

// 模拟撮合，用于单元测试和 paper 模式联调。
// 挂单默认一直停留在 NEW，成交由 MarkFilled / CrossFills 显式驱动。
type SimulatedOrderExecutor struct {
	mu     sync.Mutex
	orders map[string]*simOrder
	prices map[string]float64

	// FillOnPlace 为 true 时所有新订单立即成交（模拟市价吃单）
	FillOnPlace bool

	// 故障注入：一次性错误，触发后自动清空
	NextPlaceErr  error
	NextStatusErr error
	NextCancelErr error
	NextPriceErr  error
}

func NewSimulatedOrderExecutor() *SimulatedOrderExecutor {
	return &SimulatedOrderExecutor{
		orders: make(map[string]*simOrder),
		prices: make(map[string]float64),
	}
}

// SetPrice 设置最新价格
func (s *SimulatedOrderExecutor) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// MarkFilled 手动将某个订单标记为成交
func (s *SimulatedOrderExecutor) MarkFilled(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		o.status = model.OrderStatusFilled
	}
}

// CrossFills 按当前价撮合：买单限价 >= 现价、卖单限价 <= 现价时成交
func (s *SimulatedOrderExecutor) CrossFills(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := s.prices[symbol]
	for _, o := range s.orders {
		if o.symbol != symbol || o.status != model.OrderStatusNew {
			continue
		}
		if (o.side == model.Buy && o.price >= price) ||
			(o.side == model.Sell && o.price <= price) {
			o.status = model.OrderStatusFilled
		}
	}
}

// OpenOrders 当前未成交订单数，测试用
func (s *SimulatedOrderExecutor) OpenOrders(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if o.symbol == symbol && o.status == model.OrderStatusNew {
			n++
		}
	}
	return n
}

func (s *SimulatedOrderExecutor) PlaceOrder(ctx context.Context, req *model.Order) (*model.OrderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NextPlaceErr != nil {
		err := s.NextPlaceErr
		s.NextPlaceErr = nil
		return nil, err
	}

	o := &simOrder{
		id:     uuid.NewString(),
		symbol: req.Symbol,
		side:   req.Side,
		price:  req.Price,
		qty:    req.Quantity,
		status: model.OrderStatusNew,
	}
	if s.FillOnPlace || req.OrderType == model.Market {
		o.status = model.OrderStatusFilled
	}
	s.orders[o.id] = o

	return &model.OrderResponse{
		OrderId: o.id,
		Status:  1,
		Message: "simulated",
	}, nil
}

func (s *SimulatedOrderExecutor) CancelOrder(orderID, symbol string, tradeType model.OrderTradeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NextCancelErr != nil {
		err := s.NextCancelErr
		s.NextCancelErr = nil
		return err
	}

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.status == model.OrderStatusFilled {
		return fmt.Errorf("order %s already filled", orderID)
	}
	o.status = model.OrderStatusCanceled
	return nil
}

func (s *SimulatedOrderExecutor) GetOrderStatus(orderID, symbol string, tradeType model.OrderTradeType) (*model.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NextStatusErr != nil {
		err := s.NextStatusErr
		s.NextStatusErr = nil
		return nil, err
	}

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	st := &model.OrderStatus{
		OrderID: o.id,
		Status:  o.status,
	}
	if o.status == model.OrderStatusFilled {
		st.Filled = o.qty
	} else {
		st.Remaining = o.qty
	}
	return st, nil
}

func (s *SimulatedOrderExecutor) GetLastPrice(symbol string, tradeType model.OrderTradeType) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.NextPriceErr != nil {
		err := s.NextPriceErr
		s.NextPriceErr = nil
		return 0, err
	}

	price, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}
