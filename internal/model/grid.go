package model

// OrderPhase 网格节点的订单生命周期阶段。
// 约束：每个节点任意时刻最多只有一张挂单在交易所侧。
type OrderPhase int

const (
	PhaseNotStarted OrderPhase = iota
	PhaseBuyPlaced
	PhaseBuyFilled
	PhaseSellPlaced
	PhaseSellFilled
)

func (p OrderPhase) String() string {
	switch p {
	case PhaseBuyPlaced:
		return "buy_placed"
	case PhaseBuyFilled:
		return "buy_filled"
	case PhaseSellPlaced:
		return "sell_placed"
	case PhaseSellFilled:
		return "sell_filled"
	default:
		return "not_started"
	}
}

// HasOpenOrder 该阶段是否应当有在途挂单
func (p OrderPhase) HasOpenOrder() bool {
	return p == PhaseBuyPlaced || p == PhaseSellPlaced
}

type NodeState int

const (
	NodeInactive NodeState = iota
	NodeActive
)

func (s NodeState) String() string {
	if s == NodeActive {
		return "active"
	}
	return "inactive"
}

// GridNode 网格中的一格。Index 创建后不变，价格对满足
// PriceSell == PriceBuy + grid_depth（精度舍入内）。
type GridNode struct {
	Index     int
	PriceBuy  float64
	PriceSell float64

	Phase OrderPhase
	State NodeState

	// 交易所侧订单引用，节点只持有句柄
	OrderID string

	// 最近一次成交价，用于成本核算
	BuyExecPrice  float64
	SellExecPrice float64
}

func (n *GridNode) Active() bool {
	return n.State == NodeActive
}

// NodeSnapshot 对外暴露的节点快照（状态接口 / 事件日志用）
type NodeSnapshot struct {
	Index     int     `json:"index"`
	PriceBuy  float64 `json:"price_buy"`
	PriceSell float64 `json:"price_sell"`
	Phase     string  `json:"phase"`
	State     string  `json:"state"`
	OrderID   string  `json:"order_id,omitempty"`
	BuyExec   float64 `json:"buy_exec,omitempty"`
	SellExec  float64 `json:"sell_exec,omitempty"`
}

func (n *GridNode) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		Index:     n.Index,
		PriceBuy:  n.PriceBuy,
		PriceSell: n.PriceSell,
		Phase:     n.Phase.String(),
		State:     n.State.String(),
		OrderID:   n.OrderID,
		BuyExec:   n.BuyExecPrice,
		SellExec:  n.SellExecPrice,
	}
}
