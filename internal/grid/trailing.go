package grid

import (
	"context"
	"fmt"

	"gridflow/internal/metrics"
	"gridflow/internal/model"
	"gridflow/pkg/logger"
	"gridflow/pkg/utils"
)

// maybeTrail 移动窗口判定。每个周期最多移动一格；
// 容量耗尽时降频告警，避免单边行情刷屏。
func (e *Engine) maybeTrail(ctx context.Context, price float64) error {
	downTrigger := e.ladder.TrailDownTrigger()
	upTrigger := e.ladder.TrailUpTrigger()

	switch {
	case price < downTrigger && e.ladder.CanTrailDown():
		return e.trailDown(ctx, price)
	case price > upTrigger && e.ladder.CanTrailUp():
		return e.trailUp(ctx, price)
	case price < downTrigger:
		if e.ticks%10 == 1 {
			logger.Warnf("price %v below trigger %v but trail down capacity exhausted, n_trail=%d",
				price, downTrigger, e.ladder.NTrail())
		}
	case price > upTrigger:
		if e.ticks%10 == 1 {
			logger.Warnf("price %v above trigger %v but trail up capacity exhausted, n_trail=%d",
				price, upTrigger, e.ladder.NTrail())
		}
	}
	return nil
}

// trailDown 下移一格：撤掉最高的卖单，主动吃单平掉对应买腿，
// 在下方激活新的一格买单。任何一步失败都放弃本次移动，下个周期重试。
func (e *Engine) trailDown(ctx context.Context, price float64) error {
	hi := e.ladder.Node(e.ladder.HighestActiveIndex())

	needClose := false
	switch hi.Phase {
	case model.PhaseSellPlaced:
		st, err := e.ex.GetOrderStatus(hi.OrderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("trail down: query node %d order %s: %v", hi.Index, hi.OrderID, err)
			return fmt.Errorf("trail down: query node %d: %w", hi.Index, err)
		}
		if st.IsFilled() {
			// 撤单前已成交，按正常卖出处理，本次不移动
			return e.onSellFilled(ctx, hi, price)
		}
		// 只有 NEW 才去撤；已是终态（交易所侧被撤）就无单可撤，直接平腿
		if st.IsNew() {
			if err := e.ex.CancelOrder(hi.OrderID, e.cfg.Symbol, e.tradeType); err != nil {
				logger.Errorf("trail down: cancel node %d order %s: %v", hi.Index, hi.OrderID, err)
				return fmt.Errorf("trail down: cancel node %d: %w", hi.Index, err)
			}
		} else {
			logger.Warnf("trail down: node %d order %s already %s on exchange side", hi.Index, hi.OrderID, st.Status)
		}
		hi.Phase = model.PhaseBuyFilled // 卖单已不在场，买腿敞口待平
		hi.OrderID = ""
		needClose = true
	case model.PhaseBuyFilled:
		// 上次强平失败遗留的敞口
		needClose = true
	case model.PhaseBuyPlaced:
		// 顶格挂着回补买单，无持仓腿，撤掉即可
		st, err := e.ex.GetOrderStatus(hi.OrderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("trail down: query node %d order %s: %v", hi.Index, hi.OrderID, err)
			return fmt.Errorf("trail down: query node %d: %w", hi.Index, err)
		}
		if st.IsFilled() {
			return e.onBuyFilled(ctx, hi, price)
		}
		if st.IsNew() {
			if err := e.ex.CancelOrder(hi.OrderID, e.cfg.Symbol, e.tradeType); err != nil {
				logger.Errorf("trail down: cancel node %d order %s: %v", hi.Index, hi.OrderID, err)
				return fmt.Errorf("trail down: cancel node %d: %w", hi.Index, err)
			}
		}
		hi.Phase = model.PhaseNotStarted
		hi.OrderID = ""
	}

	if needClose {
		closePrice := utils.RoundTo(price*e.cfg.MarketSellRate, e.cfg.PricePrecision)
		id, err := e.placeLimit(ctx, model.Sell, closePrice, e.cfg.QtyPerOrder,
			fmt.Sprintf("trail down close node %d", hi.Index))
		if err != nil {
			logger.Errorf("trail down: force close node %d failed, exposed buy leg qty=%v remains, retrying next tick: %v",
				hi.Index, e.cfg.QtyPerOrder, err)
			return fmt.Errorf("trail down: force close node %d: %w", hi.Index, err)
		}
		if !e.confirmFilled(ctx, id) {
			logger.Warnf("trail down: close order %s not confirmed after %d checks, assuming filled, check exchange side",
				id, e.cfg.TrailConfirmRetries)
		}

		// 以买单窗口顶格的买入成交价为成本基准结算
		basis := e.ladder.Node(e.ladder.BuyWindowTopIndex())
		pairBuy := basis.BuyExecPrice
		if pairBuy == 0 {
			pairBuy = basis.PriceBuy
		}
		realized := e.ledger.ApplySellFill(e.cfg.QtyPerOrder, closePrice, pairBuy)
		hi.Phase = model.PhaseSellFilled
		hi.SellExecPrice = closePrice
		hi.OrderID = ""
		metrics.Fills.WithLabelValues(string(model.Sell)).Inc()
		logger.Info("trail down closed top leg",
			logger.Pair("node", hi.Index),
			logger.Pair("price", closePrice),
			logger.Pair("pair_buy", pairBuy),
			logger.Pair("realized", realized),
		)
	}
	hi.State = model.NodeInactive

	// 激活新的最低格
	lo := e.ladder.Node(e.ladder.LowestActiveIndex() - 1)
	lo.State = model.NodeActive
	lo.Phase = model.PhaseSellFilled // 待挂买单，失败由修复路径接管
	if err := e.replaceBuy(ctx, lo, price, false); err != nil {
		logger.Errorf("trail down: activate node %d without order, repair next tick: %v", lo.Index, err)
	}

	e.ladder.ShiftDown()
	metrics.Trails.WithLabelValues("down").Inc()

	logger.Warn("trail down",
		logger.Pair("baseline", e.ladder.Baseline()),
		logger.Pair("n_trail", e.ladder.NTrail()),
		logger.Pair("deactivated", hi.Index),
		logger.Pair("activated", lo.Index),
		logger.Pair("grid_profit", e.ledger.GridProfit()),
		logger.Pair("floating_profit", e.ledger.FloatingProfit(price)),
	)
	e.recordEvent(&model.GridEvent{
		Type: model.EventTrailDown, NodeIndex: lo.Index, Price: price,
	})
	return nil
}

// trailUp 上移一格：撤掉最低的买单，主动吃单回补对应卖腿，
// 在上方激活新的一格卖单。
func (e *Engine) trailUp(ctx context.Context, price float64) error {
	lo := e.ladder.Node(e.ladder.LowestActiveIndex())

	needClose := false
	switch lo.Phase {
	case model.PhaseBuyPlaced:
		st, err := e.ex.GetOrderStatus(lo.OrderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("trail up: query node %d order %s: %v", lo.Index, lo.OrderID, err)
			return fmt.Errorf("trail up: query node %d: %w", lo.Index, err)
		}
		if st.IsFilled() {
			return e.onBuyFilled(ctx, lo, price)
		}
		// 只有 NEW 才去撤；已是终态（交易所侧被撤）就无单可撤，直接补腿
		if st.IsNew() {
			if err := e.ex.CancelOrder(lo.OrderID, e.cfg.Symbol, e.tradeType); err != nil {
				logger.Errorf("trail up: cancel node %d order %s: %v", lo.Index, lo.OrderID, err)
				return fmt.Errorf("trail up: cancel node %d: %w", lo.Index, err)
			}
		} else {
			logger.Warnf("trail up: node %d order %s already %s on exchange side", lo.Index, lo.OrderID, st.Status)
		}
		lo.Phase = model.PhaseSellFilled // 买单已不在场，卖腿敞口待补
		lo.OrderID = ""
		needClose = true
	case model.PhaseSellFilled:
		needClose = true
	case model.PhaseSellPlaced:
		st, err := e.ex.GetOrderStatus(lo.OrderID, e.cfg.Symbol, e.tradeType)
		if err != nil {
			logger.Errorf("trail up: query node %d order %s: %v", lo.Index, lo.OrderID, err)
			return fmt.Errorf("trail up: query node %d: %w", lo.Index, err)
		}
		if st.IsFilled() {
			return e.onSellFilled(ctx, lo, price)
		}
		if st.IsNew() {
			if err := e.ex.CancelOrder(lo.OrderID, e.cfg.Symbol, e.tradeType); err != nil {
				logger.Errorf("trail up: cancel node %d order %s: %v", lo.Index, lo.OrderID, err)
				return fmt.Errorf("trail up: cancel node %d: %w", lo.Index, err)
			}
		}
		lo.Phase = model.PhaseNotStarted
		lo.OrderID = ""
	}

	if needClose {
		closePrice := utils.RoundTo(price*e.cfg.MarketBuyRate, e.cfg.PricePrecision)
		id, err := e.placeLimit(ctx, model.Buy, closePrice, e.cfg.QtyPerOrder,
			fmt.Sprintf("trail up close node %d", lo.Index))
		if err != nil {
			logger.Errorf("trail up: force close node %d failed, exposed sell leg qty=%v remains, retrying next tick: %v",
				lo.Index, e.cfg.QtyPerOrder, err)
			return fmt.Errorf("trail up: force close node %d: %w", lo.Index, err)
		}
		if !e.confirmFilled(ctx, id) {
			logger.Warnf("trail up: close order %s not confirmed after %d checks, assuming filled, check exchange side",
				id, e.cfg.TrailConfirmRetries)
		}

		// 以卖单窗口底格的卖出成交价为成本基准结算
		basis := e.ladder.Node(e.ladder.SellWindowBottomIndex())
		pairSell := basis.SellExecPrice
		if pairSell == 0 {
			pairSell = basis.PriceSell
		}
		realized := e.ledger.ApplyBuyFill(e.cfg.QtyPerOrder, closePrice, pairSell)
		lo.Phase = model.PhaseBuyFilled
		lo.BuyExecPrice = closePrice
		lo.OrderID = ""
		metrics.Fills.WithLabelValues(string(model.Buy)).Inc()
		logger.Info("trail up closed bottom leg",
			logger.Pair("node", lo.Index),
			logger.Pair("price", closePrice),
			logger.Pair("pair_sell", pairSell),
			logger.Pair("realized", realized),
		)
	}
	lo.State = model.NodeInactive

	hi := e.ladder.Node(e.ladder.HighestActiveIndex() + 1)
	hi.State = model.NodeActive
	hi.Phase = model.PhaseBuyFilled
	if err := e.replaceSell(ctx, hi, price, false); err != nil {
		logger.Errorf("trail up: activate node %d without order, repair next tick: %v", hi.Index, err)
	}

	e.ladder.ShiftUp()
	metrics.Trails.WithLabelValues("up").Inc()

	logger.Warn("trail up",
		logger.Pair("baseline", e.ladder.Baseline()),
		logger.Pair("n_trail", e.ladder.NTrail()),
		logger.Pair("deactivated", lo.Index),
		logger.Pair("activated", hi.Index),
		logger.Pair("grid_profit", e.ledger.GridProfit()),
		logger.Pair("floating_profit", e.ledger.FloatingProfit(price)),
	)
	e.recordEvent(&model.GridEvent{
		Type: model.EventTrailUp, NodeIndex: hi.Index, Price: price,
	})
	return nil
}
