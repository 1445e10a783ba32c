package exchange

import (
	"context"

	"gridflow/internal/model"
)

// Exchange 网格引擎消费的交易所网关。
// 所有价格/数量在调用方舍入到交易所精度后再传入。
type Exchange interface {
	// 下单
	PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	// 获取最新价格
	GetLastPrice(symbol string, tradeType model.OrderTradeType) (float64, error)
	// 撤销订单
	CancelOrder(orderID, symbol string, tradeType model.OrderTradeType) error
	// 获取订单状态
	GetOrderStatus(orderID, symbol string, tradeType model.OrderTradeType) (*model.OrderStatus, error)
}
