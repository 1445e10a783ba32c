package main

import (
	"context"
	"flag"
	"log"

	goex "github.com/nntaoli-project/goex/v2"

	"gridflow/conf"
	"gridflow/internal/exchange"
	"gridflow/internal/grid"
	"gridflow/internal/handler/status"
	"gridflow/internal/model"
	"gridflow/internal/router"
	"gridflow/pkg/logger"
	"gridflow/pkg/recorder"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "conf/config.yaml", "配置文件路径")
	flag.Parse()

	if err := conf.LoadConfig(configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := &conf.AppConfig

	logger.InitLogger(&cfg.Log, cfg.AppName)
	defer logger.Sync()

	if cfg.Okx.Simulated {
		// okx 模拟盘环境
		goex.DefaultHttpCli.SetHeaders("x-simulated-trading", "1")
	}

	okxEx := exchange.NewOkxExchange(cfg.Okx.ApiKey, cfg.Okx.SecretKey, cfg.Okx.Password)

	var ex exchange.Exchange = okxEx
	if cfg.Mode == "paper" {
		// paper 模式：实盘行情 + 本地模拟撮合，不碰真实资金
		logger.Warn("running in paper mode, orders are simulated")
		ex = exchange.NewPaperExchange(okxEx)
	} else {
		tradeType := model.OrderTradeType(cfg.Grid.TradeType)
		acct, err := okxEx.Account(tradeType)
		if err != nil {
			logger.Fatalf("init account service: %v", err)
		}
		bal, err := acct.GetBalance(context.Background(), "USDT")
		if err != nil {
			logger.Fatalf("query balance: %v", err)
		}
		logger.Infof("USDT balance: total=%v available=%v frozen=%v",
			bal.Total, bal.Available, bal.Frozen)
	}

	rec, err := recorder.NewJSONFileRecorder(cfg.Grid.DataDir, cfg.Grid.Symbol, cfg.Grid.Direction)
	if err != nil {
		logger.Fatalf("init event recorder: %v", err)
	}

	engine, err := grid.NewEngine(&cfg.Grid, ex, rec)
	if err != nil {
		logger.Fatalf("init grid engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Bootstrap(ctx); err != nil {
		logger.Fatalf("bootstrap failed: %v", err)
	}
	go engine.Run(ctx)

	srv := NewServer(cfg)
	srv.RegisterOnShutdown(cancel)
	srv.Run(router.NewApiRouter(status.NewHandler(engine)))
}
