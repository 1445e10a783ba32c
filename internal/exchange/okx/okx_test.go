package okx

import (
	"testing"

	model2 "gridflow/internal/model"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"filled":           model2.OrderStatusFilled,
		"FILLED":           model2.OrderStatusFilled,
		"finished":         model2.OrderStatusFilled,
		"canceled":         model2.OrderStatusCanceled,
		"CANCELLED":        model2.OrderStatusCanceled,
		"live":             model2.OrderStatusNew,
		"open":             model2.OrderStatusNew,
		"partially_filled": model2.OrderStatusNew, // 部分成交按未成交处理
		"":                 model2.OrderStatusNew,
	}
	for in, want := range cases {
		if got := normalizeStatus(in); got != want {
			t.Errorf("normalizeStatus(%q) = %s, want %s", in, got, want)
		}
	}
}
