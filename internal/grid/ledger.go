package grid

// qtyEpsilon 判断仓位正负零的容差，避免浮点累加误差把零仓判成持仓
const qtyEpsilon = 1e-5

// Ledger 仓位与盈亏账本。带符号仓位统一处理多/空/中性三种偏向：
// 缩小 |Position| 的成交按配对价差结算进 GridProfit 并移除对应成本，
// 扩大 |Position| 的成交只累加成本。
type Ledger struct {
	position   float64
	cost       float64 // 当前持仓占用的名义成本（按开仓价计）
	gridProfit float64

	matched    int
	totalBuys  float64
	totalSells float64
}

// ApplyBuyFill 记录一笔买入成交。pairSell 为该格此前的卖出成交价，
// 买入在平空腿时用它结算配对利润；开多腿时忽略。
// 返回本次实现的利润（未配对时为 0）。
func (l *Ledger) ApplyBuyFill(qty, buyExec, pairSell float64) float64 {
	l.totalBuys += qty

	var realized float64
	if l.position < -qtyEpsilon {
		// 买入平空：移除空头成本，结算价差
		realized = (pairSell - buyExec) * qty
		l.gridProfit += realized
		l.cost -= qty * pairSell
		l.matched++
	} else {
		l.cost += qty * buyExec
	}
	l.position += qty
	return realized
}

// ApplySellFill 记录一笔卖出成交。pairBuy 为该格此前的买入成交价，
// 卖出在平多腿时用它结算配对利润；开空腿时忽略。
func (l *Ledger) ApplySellFill(qty, sellExec, pairBuy float64) float64 {
	l.totalSells += qty

	var realized float64
	if l.position > qtyEpsilon {
		realized = (sellExec - pairBuy) * qty
		l.gridProfit += realized
		l.cost -= qty * pairBuy
		l.matched++
	} else {
		l.cost += qty * sellExec
	}
	l.position -= qty
	return realized
}

func (l *Ledger) Position() float64   { return l.position }
func (l *Ledger) GridProfit() float64 { return l.gridProfit }
func (l *Ledger) Matched() int        { return l.matched }
func (l *Ledger) TotalBuys() float64  { return l.totalBuys }
func (l *Ledger) TotalSells() float64 { return l.totalSells }

// FloatingProfit 按当前价对持仓估值的浮动盈亏
func (l *Ledger) FloatingProfit(price float64) float64 {
	switch {
	case l.position > qtyEpsilon:
		return price*l.position - l.cost
	case l.position < -qtyEpsilon:
		return l.cost - price*(-l.position)
	default:
		return 0
	}
}

func (l *Ledger) TotalProfit(price float64) float64 {
	return l.gridProfit + l.FloatingProfit(price)
}

// AvgCost 持仓均价，零仓时为 0
func (l *Ledger) AvgCost() float64 {
	if l.position > qtyEpsilon || l.position < -qtyEpsilon {
		if l.position > 0 {
			return l.cost / l.position
		}
		return l.cost / (-l.position)
	}
	return 0
}

type LedgerSnapshot struct {
	Position       float64 `json:"position"`
	AvgCost        float64 `json:"avg_cost"`
	GridProfit     float64 `json:"grid_profit"`
	FloatingProfit float64 `json:"floating_profit"`
	TotalProfit    float64 `json:"total_profit"`
	Matched        int     `json:"matched"`
	TotalBuys      float64 `json:"total_buys"`
	TotalSells     float64 `json:"total_sells"`
}

func (l *Ledger) Snapshot(price float64) LedgerSnapshot {
	return LedgerSnapshot{
		Position:       l.position,
		AvgCost:        l.AvgCost(),
		GridProfit:     l.gridProfit,
		FloatingProfit: l.FloatingProfit(price),
		TotalProfit:    l.TotalProfit(price),
		Matched:        l.matched,
		TotalBuys:      l.totalBuys,
		TotalSells:     l.totalSells,
	}
}
