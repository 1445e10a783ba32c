package okx

import (
	"context"
	"errors"
	"strings"

	goexv2 "github.com/nntaoli-project/goex/v2"
	"github.com/nntaoli-project/goex/v2/model"

	"gridflow/internal/account"
	model2 "gridflow/internal/model"
)

type OkxService interface {
	PlaceOrder(ctx context.Context, order *model2.Order) (*model2.OrderResponse, error)
	GetOrderStatus(orderID string, symbol string) (*model2.OrderStatus, error)
	CancelOrder(orderID, symbol string) error
	GetLastPrice(symbol string) (float64, error)
	GetExchangeInfo() (map[string]model.CurrencyPair, []byte, error)
}

// OKX 三种交易的基础结构：swap、future、spot
type Okx struct {
	prv     goexv2.IPrvRest
	Account *account.AccountService
	pub     goexv2.IPubRest
}

func (e *Okx) getPub() goexv2.IPubRest {
	return e.pub
}

// symbol 格式转换: "BTC/USDT" -> goex 需要的 CurrencyPair
func (e *Okx) toCurrencyPair(symbol string) (model.CurrencyPair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 { // 防止BTC-USDT-SWAP
		parts = strings.Split(symbol, "-")
	}
	if len(parts) > 2 { // 取前两个，防止BTC-USDT-SWAP
		parts = parts[:2]
	}
	return e.getPub().NewCurrencyPair(parts[0], parts[1])
}

// 初始化时加载所有可交易币对，兼做连通性检查
func (e *Okx) GetExchangeInfo() (map[string]model.CurrencyPair, []byte, error) {
	return e.getPub().GetExchangeInfo()
}

// 获取最新价格
func (e *Okx) GetLastPrice(symbol string) (float64, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return 0, err
	}
	ticker, _, _ := e.getPub().GetTicker(pair)
	if ticker == nil {
		return 0, errors.New("failed to get ticker")
	}
	return ticker.Last, nil
}

// 取消订单
func (e *Okx) CancelOrder(orderID, symbol string) error {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return err
	}
	_, err = e.prv.CancelOrder(pair, orderID)
	return err
}

// 获取订单状态，goex 的状态字符串统一映射为 NEW/FILLED/CANCELED
func (e *Okx) GetOrderStatus(orderID string, symbol string) (*model2.OrderStatus, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}

	info, _, err := e.prv.GetOrderInfo(pair, orderID)
	if err != nil {
		return nil, err
	}
	return &model2.OrderStatus{
		OrderID:   info.Id,
		Status:    normalizeStatus(info.Status.String()),
		Filled:    info.ExecutedQty,
		Remaining: info.Qty - info.ExecutedQty,
	}, nil
}

func normalizeStatus(s string) string {
	ls := strings.ToLower(s)
	switch {
	case strings.Contains(ls, "fill") && !strings.Contains(ls, "partial"),
		strings.Contains(ls, "finish"):
		return model2.OrderStatusFilled
	case strings.Contains(ls, "cancel"):
		return model2.OrderStatusCanceled
	default:
		return model2.OrderStatusNew
	}
}
