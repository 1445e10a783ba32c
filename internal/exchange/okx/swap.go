package okx

import (
	goexv2 "github.com/nntaoli-project/goex/v2"
	"github.com/nntaoli-project/goex/v2/okx/futures"
	"github.com/nntaoli-project/goex/v2/options"

	"gridflow/internal/account"
)

// 永续合约
type OkxSwap struct {
	FuturesCommon
	pub futures.Swap
}

func NewOkxSwap(conf []options.ApiOption) *OkxSwap {
	pub := goexv2.OKx.Swap
	return &OkxSwap{
		FuturesCommon: FuturesCommon{Okx{
			prv:     pub.NewPrvApi(conf...),
			Account: account.NewAccountService(pub.NewPrvApi(conf...)),
			pub:     pub,
		}},
		pub: *pub,
	}
}

func (e *OkxSwap) getPub() goexv2.IPubRest {
	return &e.pub
}
