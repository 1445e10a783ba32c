package exchange

import (
	"context"

	"gridflow/internal/model"
)

// PaperExchange 实盘行情 + 模拟撮合的组合网关。
// 每次取价顺带把最新价喂给模拟盘并撮合一轮，订单操作全部走模拟盘。
type PaperExchange struct {
	market Exchange
	sim    *SimulatedOrderExecutor
}

func NewPaperExchange(market Exchange) *PaperExchange {
	return &PaperExchange{
		market: market,
		sim:    NewSimulatedOrderExecutor(),
	}
}

func (p *PaperExchange) GetLastPrice(symbol string, tradeType model.OrderTradeType) (float64, error) {
	price, err := p.market.GetLastPrice(symbol, tradeType)
	if err != nil {
		return 0, err
	}
	p.sim.SetPrice(symbol, price)
	p.sim.CrossFills(symbol)
	return price, nil
}

func (p *PaperExchange) PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	return p.sim.PlaceOrder(ctx, order)
}

func (p *PaperExchange) CancelOrder(orderID, symbol string, tradeType model.OrderTradeType) error {
	return p.sim.CancelOrder(orderID, symbol, tradeType)
}

func (p *PaperExchange) GetOrderStatus(orderID, symbol string, tradeType model.OrderTradeType) (*model.OrderStatus, error) {
	return p.sim.GetOrderStatus(orderID, symbol, tradeType)
}
