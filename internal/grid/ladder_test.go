package grid

import (
	"math"
	"testing"
)

func TestLadderGeometry(t *testing.T) {
	cfg := testGridConfig()
	l := NewLadder(65000, cfg)

	if l.Depth() != 650 {
		t.Fatalf("depth = %v, want 650", l.Depth())
	}
	if len(l.Nodes()) != cfg.TotalGrids() {
		t.Fatalf("nodes = %d, want %d", len(l.Nodes()), cfg.TotalGrids())
	}

	// 最低格 = 启动价 - (下移容量+初始买格)*格距
	if got := l.Node(0).PriceBuy; got != 61750 {
		t.Fatalf("node 0 price_buy = %v, want 61750", got)
	}
	for _, n := range l.Nodes() {
		if diff := n.PriceSell - n.PriceBuy; math.Abs(diff-650) > 1e-9 {
			t.Errorf("node %d spacing = %v, want 650", n.Index, diff)
		}
	}

	if from, to := l.InitialBuyRange(); from != 2 || to != 5 {
		t.Errorf("initial buy range = [%d,%d), want [2,5)", from, to)
	}
	if from, to := l.InitialSellRange(); from != 5 || to != 8 {
		t.Errorf("initial sell range = [%d,%d), want [5,8)", from, to)
	}
	if l.LowestActiveIndex() != 2 || l.HighestActiveIndex() != 7 {
		t.Errorf("active window = [%d,%d], want [2,7]", l.LowestActiveIndex(), l.HighestActiveIndex())
	}
	if l.BuyWindowTopIndex() != 4 || l.SellWindowBottomIndex() != 5 {
		t.Errorf("window centers = %d/%d, want 4/5", l.BuyWindowTopIndex(), l.SellWindowBottomIndex())
	}

	if got := l.TrailDownTrigger(); got != 63700 {
		t.Errorf("trail down trigger = %v, want 63700", got)
	}
	if got := l.TrailUpTrigger(); got != 66300 {
		t.Errorf("trail up trigger = %v, want 66300", got)
	}
}

func TestLadderShift(t *testing.T) {
	l := NewLadder(65000, testGridConfig())

	l.ShiftDown()
	if l.Baseline() != 64350 || l.NTrail() != -1 {
		t.Fatalf("after shift down: baseline=%v n_trail=%d", l.Baseline(), l.NTrail())
	}
	if l.LowestActiveIndex() != 1 || l.HighestActiveIndex() != 6 {
		t.Errorf("window after shift down = [%d,%d], want [1,6]", l.LowestActiveIndex(), l.HighestActiveIndex())
	}
	if !l.CanTrailDown() {
		t.Error("one grid of down capacity should remain")
	}
	l.ShiftDown()
	if l.CanTrailDown() {
		t.Error("down capacity should be exhausted at n_trail=-2")
	}

	// 回移
	l.ShiftUp()
	l.ShiftUp()
	if l.Baseline() != 65000 || l.NTrail() != 0 {
		t.Fatalf("after shifting back: baseline=%v n_trail=%d", l.Baseline(), l.NTrail())
	}
	l.ShiftUp()
	l.ShiftUp()
	if l.CanTrailUp() {
		t.Error("up capacity should be exhausted at n_trail=2")
	}
}

func TestLadderDepthUsesProfitRate(t *testing.T) {
	cfg := testGridConfig()
	cfg.ProfitRate = 0.005
	l := NewLadder(30000, cfg)
	if l.Depth() != 150 {
		t.Fatalf("depth = %v, want 150", l.Depth())
	}
}
