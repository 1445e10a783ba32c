package okx

import (
	"context"
	"errors"
	"strings"

	"github.com/nntaoli-project/goex/v2/model"

	model2 "gridflow/internal/model"
)

// 合约公共结构体，现货之外的两种交易类型共用下单逻辑
type FuturesCommon struct {
	Okx
}

// 下单购买
// 网格买卖交替，这里使用单向持仓（net mode），不传 posSide
func (e *FuturesCommon) PlaceOrder(ctx context.Context, order *model2.Order) (*model2.OrderResponse, error) {
	pair, err := e.toCurrencyPair(order.Symbol)
	if err != nil {
		return nil, err
	}

	var side model.OrderSide
	switch strings.ToLower(string(order.Side)) {
	case "buy":
		side = model.Futures_OpenBuy
	case "sell":
		side = model.Futures_OpenSell
	default:
		return nil, errors.New("invalid order side")
	}

	var orderType model.OrderType
	switch order.OrderType {
	case model2.Limit:
		orderType = model.OrderType_Limit
	case model2.Market:
		orderType = model.OrderType_Market
	}

	opts := []model.OptionParameter{
		{
			// 统一使用全仓模式
			Key:   "tdMode",
			Value: "cross",
		},
	}
	if order.ClientOrderID != "" {
		opts = append(opts, model.OptionParameter{
			Key:   "clOrdId",
			Value: order.ClientOrderID,
		})
	}

	createdOrder, _, err := e.prv.CreateOrder(pair, order.Quantity, order.Price, side, orderType, opts...)
	if err != nil {
		return nil, err
	}

	return &model2.OrderResponse{
		OrderId: createdOrder.Id,
		Status:  int(createdOrder.Status),
	}, nil
}
