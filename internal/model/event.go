package model

import "time"

// 事件类型，写入追加日志
const (
	EventBootstrap     = "bootstrap"
	EventOrderPlaced   = "order_placed"
	EventOrderReplaced = "order_replaced"
	EventBuyFilled     = "buy_filled"
	EventSellFilled    = "sell_filled"
	EventTrailDown     = "trail_down"
	EventTrailUp       = "trail_up"
	EventProfit        = "profit"
)

// GridEvent 一条状态变迁记录。只追加，不回读。
type GridEvent struct {
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	NodeIndex int       `json:"node_index"`
	Side      string    `json:"side,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Quantity  float64   `json:"quantity,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`

	Baseline float64 `json:"baseline,omitempty"`
	NTrail   int     `json:"n_trail,omitempty"`

	Position       float64 `json:"position"`
	GridProfit     float64 `json:"grid_profit"`
	FloatingProfit float64 `json:"floating_profit"`
	TotalProfit    float64 `json:"total_profit"`

	Comment string `json:"comment,omitempty"`
}
