package model

import "time"

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

type OrderType string

const (
	// 市价购买
	Market OrderType = "market"
	// 限价购买
	Limit OrderType = "limit"
)

// 交易类型
type OrderTradeType string

const (
	// 使用现货 API
	OrderTradeSpot OrderTradeType = "spot"
	// 使用永续合约 API
	OrderTradeSwap OrderTradeType = "swap"
	// 使用交割合约 API
	OrderTradeFutures OrderTradeType = "futures"
)

// Direction 网格方向偏好，决定初始建仓方式
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

type OrderResponse struct {
	OrderId string
	Status  int
	Message string
}

// 交易所侧订单状态常量（okx/goex 返回的状态统一映射到这三个）
const (
	OrderStatusNew      = "NEW"
	OrderStatusFilled   = "FILLED"
	OrderStatusCanceled = "CANCELED"
)

type OrderStatus struct {
	OrderID   string
	Status    string
	Filled    float64
	Remaining float64
}

func (s *OrderStatus) IsFilled() bool {
	return s.Status == OrderStatusFilled
}

func (s *OrderStatus) IsNew() bool {
	return s.Status == OrderStatusNew
}

type Order struct {
	Symbol        string // BTC/USDT
	Side          OrderSide
	Price         float64
	Quantity      float64
	OrderType     OrderType
	TradeType     OrderTradeType
	ClientOrderID string
	Comment       string
	Timestamp     time.Time
}
