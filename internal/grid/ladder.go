package grid

import (
	"gridflow/conf"
	"gridflow/internal/model"
	"gridflow/pkg/utils"
)

// Ladder 网格阶梯：按价格从低到高排列的节点序列，外加已结算窗口的
// 中心价（baseline）和窗口偏移计数。节点创建后只回收复用，不增删。
type Ladder struct {
	cfg   *conf.GridConfig
	nodes []*model.GridNode

	baseline float64
	depth    float64

	// 窗口相对初始位置的有符号偏移，范围 [-TrailDownGrids, TrailUpGrids]
	nTrail int
}

// NewLadder 以启动价为中心构建全部节点。
// 下方预留 TrailDownGrids 格容量，上方预留 TrailUpGrids 格。
func NewLadder(startPrice float64, cfg *conf.GridConfig) *Ladder {
	depth := utils.RoundTo(startPrice*cfg.ProfitRate, cfg.PricePrecision)
	l := &Ladder{
		cfg:      cfg,
		baseline: startPrice,
		depth:    depth,
	}

	total := cfg.TotalGrids()
	lowest := startPrice - depth*float64(cfg.TrailDownGrids+cfg.InitialBuyGrids)
	l.nodes = make([]*model.GridNode, 0, total)
	for i := 0; i < total; i++ {
		buy := utils.RoundTo(lowest+float64(i)*depth, cfg.PricePrecision)
		l.nodes = append(l.nodes, &model.GridNode{
			Index:     i,
			PriceBuy:  buy,
			PriceSell: utils.RoundTo(buy+depth, cfg.PricePrecision),
			Phase:     model.PhaseNotStarted,
			State:     model.NodeInactive,
		})
	}
	return l
}

func (l *Ladder) Depth() float64    { return l.depth }
func (l *Ladder) Baseline() float64 { return l.baseline }
func (l *Ladder) NTrail() int       { return l.nTrail }

func (l *Ladder) Nodes() []*model.GridNode { return l.nodes }

func (l *Ladder) Node(i int) *model.GridNode { return l.nodes[i] }

// InitialBuyRange 初始买单窗口 [from, to)
func (l *Ladder) InitialBuyRange() (int, int) {
	from := l.cfg.TrailDownGrids
	return from, from + l.cfg.InitialBuyGrids
}

// InitialSellRange 初始卖单窗口 [from, to)
func (l *Ladder) InitialSellRange() (int, int) {
	from := l.cfg.TrailDownGrids + l.cfg.InitialBuyGrids
	return from, from + l.cfg.InitialSellGrids
}

// LowestActiveIndex 当前窗口最低的活跃节点
func (l *Ladder) LowestActiveIndex() int {
	return l.cfg.TrailDownGrids + l.nTrail
}

// HighestActiveIndex 当前窗口最高的活跃节点
func (l *Ladder) HighestActiveIndex() int {
	return l.cfg.TrailDownGrids + l.cfg.InitialBuyGrids + l.cfg.InitialSellGrids + l.nTrail - 1
}

// BuyWindowTopIndex 买单窗口顶格，下移时以该节点的买入成交价为成本基准
func (l *Ladder) BuyWindowTopIndex() int {
	return l.cfg.TrailDownGrids + l.cfg.InitialBuyGrids + l.nTrail - 1
}

// SellWindowBottomIndex 卖单窗口底格，上移时以该节点的卖出成交价为成本基准
func (l *Ladder) SellWindowBottomIndex() int {
	return l.cfg.TrailDownGrids + l.cfg.InitialBuyGrids + l.nTrail
}

func (l *Ladder) TrailDownTrigger() float64 {
	return l.baseline - float64(l.cfg.TrailDownStartGrids)*l.depth
}

func (l *Ladder) TrailUpTrigger() float64 {
	return l.baseline + float64(l.cfg.TrailUpStartGrids)*l.depth
}

func (l *Ladder) CanTrailDown() bool {
	return l.cfg.TrailDownGrids+l.nTrail > 0
}

func (l *Ladder) CanTrailUp() bool {
	return l.nTrail < l.cfg.TrailUpGrids
}

func (l *Ladder) ShiftDown() {
	l.baseline -= l.depth
	l.nTrail--
}

func (l *Ladder) ShiftUp() {
	l.baseline += l.depth
	l.nTrail++
}

func (l *Ladder) Snapshot() []model.NodeSnapshot {
	out := make([]model.NodeSnapshot, 0, len(l.nodes))
	for _, n := range l.nodes {
		out = append(out, n.Snapshot())
	}
	return out
}
