package exchange

import (
	"context"
	"fmt"

	"github.com/nntaoli-project/goex/v2/options"

	"gridflow/internal/account"
	"gridflow/internal/exchange/okx"
	"gridflow/internal/model"
	"gridflow/pkg/logger"
)

type OkxExchange struct {
	apiCache map[model.OrderTradeType]okx.OkxService
	apiConf  []options.ApiOption
}

// 构造函数只存储配置，不初始化接口
func NewOkxExchange(apiKey, apiSecret, passphrase string) *OkxExchange {
	// okxv5 api 如果要使用模拟交易，需要切到模拟交易下创建apikey
	opts := []options.ApiOption{
		options.WithApiKey(apiKey),
		options.WithApiSecretKey(apiSecret),
		options.WithPassphrase(passphrase),
	}

	return &OkxExchange{
		apiCache: make(map[model.OrderTradeType]okx.OkxService),
		apiConf:  opts,
	}
}

// 懒加载api服务，首次访问时调用GetExchangeInfo做连通性检查
func (e *OkxExchange) getApi(tradeType model.OrderTradeType) (okx.OkxService, error) {
	if api, ok := e.apiCache[tradeType]; ok {
		return api, nil
	}

	var api okx.OkxService
	switch tradeType {
	case model.OrderTradeSpot:
		api = okx.NewOkxSpot(e.apiConf)
	case model.OrderTradeSwap:
		api = okx.NewOkxSwap(e.apiConf)
	case model.OrderTradeFutures:
		api = okx.NewOkxFutures(e.apiConf)
	default:
		return nil, fmt.Errorf("unsupported trade type: %s", tradeType)
	}

	// 测试连接，创建订单时需要调用GetExchangeInfo获取pair
	if _, _, err := api.GetExchangeInfo(); err != nil {
		logger.Errorf("GetExchangeInfo err: %v", err)
		return nil, err
	}
	e.apiCache[tradeType] = api
	return api, nil
}

// Account 返回该交易类型下的账户服务
func (e *OkxExchange) Account(tradeType model.OrderTradeType) (*account.AccountService, error) {
	api, err := e.getApi(tradeType)
	if err != nil {
		return nil, err
	}
	switch v := api.(type) {
	case *okx.OkxSpot:
		return v.Okx.Account, nil
	case *okx.OkxSwap:
		return v.Okx.Account, nil
	case *okx.OkxFutures:
		return v.Okx.Account, nil
	}
	return nil, fmt.Errorf("account service unavailable for trade type: %s", tradeType)
}

func (e *OkxExchange) GetLastPrice(symbol string, tradeType model.OrderTradeType) (float64, error) {
	api, err := e.getApi(tradeType)
	if err != nil {
		return 0, err
	}
	return api.GetLastPrice(symbol)
}

func (e *OkxExchange) PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	api, err := e.getApi(order.TradeType)
	if err != nil {
		return nil, err
	}
	return api.PlaceOrder(ctx, order)
}

func (e *OkxExchange) CancelOrder(orderID, symbol string, tradeType model.OrderTradeType) error {
	api, err := e.getApi(tradeType)
	if err != nil {
		return err
	}
	return api.CancelOrder(orderID, symbol)
}

func (e *OkxExchange) GetOrderStatus(orderID, symbol string, tradeType model.OrderTradeType) (*model.OrderStatus, error) {
	api, err := e.getApi(tradeType)
	if err != nil {
		return nil, err
	}
	return api.GetOrderStatus(orderID, symbol)
}
