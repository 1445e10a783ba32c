package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"gridflow/pkg/utils"
)

// 配置加载（API密钥、网格参数等）

type Okx struct {
	ApiKey    string `yaml:"apiKey"`
	SecretKey string `yaml:"secretKey"`
	Password  string `yaml:"password"`
	Simulated bool   `yaml:"simulated"`
}

// GridConfig 网格引擎的静态配置。启动时加载一次，运行期间只读。
type GridConfig struct {
	Symbol    string `yaml:"symbol" validate:"required"`
	Direction string `yaml:"direction" validate:"required,oneof=long short neutral"`
	TradeType string `yaml:"trade-type" validate:"required,oneof=spot swap futures"`

	QtyPerOrder float64 `yaml:"qty-per-order" validate:"gt=0"`
	// 单格利润率，决定网格间距 grid_depth = 启动价 * ProfitRate
	ProfitRate     float64 `yaml:"profit-rate" validate:"gt=0,lt=1"`
	PricePrecision int     `yaml:"price-precision" validate:"gte=0,lte=8"`
	QtyPrecision   int     `yaml:"qty-precision" validate:"gte=0,lte=8"`

	InitialBuyGrids  int `yaml:"initial-buy-grids" validate:"gt=0"`
	InitialSellGrids int `yaml:"initial-sell-grids" validate:"gt=0"`
	TrailUpGrids     int `yaml:"trail-up-grids" validate:"gte=0"`
	TrailDownGrids   int `yaml:"trail-down-grids" validate:"gte=0"`

	// 触发移动窗口的距离（以格数计），与容量 TrailUpGrids/TrailDownGrids 相互独立
	TrailUpStartGrids   int `yaml:"trail-up-start-grids" validate:"gt=0"`
	TrailDownStartGrids int `yaml:"trail-down-start-grids" validate:"gt=0"`

	TickInterval   time.Duration `yaml:"tick-interval"`
	NodeQueryDelay time.Duration `yaml:"node-query-delay"`

	// 强平滑点缓冲：主动吃单时在当前价上加/减的比例
	MarketSellRate float64 `yaml:"market-sell-rate"`
	MarketBuyRate  float64 `yaml:"market-buy-rate"`

	// 初始建仓分两笔：第一笔占比 + 第二笔价格系数
	FirstBuyPortion     float64 `yaml:"first-buy-portion"`
	SecondBuyPriceRate  float64 `yaml:"second-buy-price-rate"`
	FirstSellPortion    float64 `yaml:"first-sell-portion"`
	SecondSellPriceRate float64 `yaml:"second-sell-price-rate"`

	BootstrapTimeout      time.Duration `yaml:"bootstrap-timeout"`
	BootstrapPollInterval time.Duration `yaml:"bootstrap-poll-interval"`

	TrailConfirmRetries  int           `yaml:"trail-confirm-retries"`
	TrailConfirmInterval time.Duration `yaml:"trail-confirm-interval"`

	// 事件日志目录，每个 (symbol, direction) 一个追加写文件
	DataDir string `yaml:"data-dir"`
}

// TotalGrids 网格总数 = 初始买格 + 初始卖格 + 上移容量 + 下移容量
func (g *GridConfig) TotalGrids() int {
	return g.InitialBuyGrids + g.InitialSellGrids + g.TrailUpGrids + g.TrailDownGrids
}

func (g *GridConfig) applyDefaults() {
	if g.TickInterval == 0 {
		g.TickInterval = 120 * time.Second
	}
	if g.NodeQueryDelay == 0 {
		g.NodeQueryDelay = 100 * time.Millisecond
	}
	if g.MarketSellRate == 0 {
		g.MarketSellRate = 1.0003
	}
	if g.MarketBuyRate == 0 {
		g.MarketBuyRate = 0.9997
	}
	if g.FirstBuyPortion == 0 {
		g.FirstBuyPortion = 0.6
	}
	if g.SecondBuyPriceRate == 0 {
		g.SecondBuyPriceRate = 0.995
	}
	if g.FirstSellPortion == 0 {
		g.FirstSellPortion = 0.6
	}
	if g.SecondSellPriceRate == 0 {
		g.SecondSellPriceRate = 1.005
	}
	if g.BootstrapTimeout == 0 {
		g.BootstrapTimeout = 10 * time.Minute
	}
	if g.BootstrapPollInterval == 0 {
		g.BootstrapPollInterval = 30 * time.Second
	}
	if g.TrailConfirmRetries == 0 {
		g.TrailConfirmRetries = 3
	}
	if g.TrailConfirmInterval == 0 {
		g.TrailConfirmInterval = 60 * time.Second
	}
	if g.DataDir == "" {
		g.DataDir = "logs"
	}
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"` // live 或 paper（paper 使用内置模拟撮合）
	MaxPingCount int    `yaml:"max-ping-count"`

	Okx  `yaml:"okx"`
	Grid GridConfig `yaml:"grid"`
	Log  LogConfig  `yaml:"log"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}

	applyEnvOverrides(&AppConfig)
	// 环境变量里常见 BTCUSDT 裸写法，统一成 BTC/USDT
	AppConfig.Grid.Symbol = utils.FormatSymbol(AppConfig.Grid.Symbol)
	AppConfig.Grid.applyDefaults()

	if err := validator.New().Struct(&AppConfig.Grid); err != nil {
		return fmt.Errorf("invalid grid config: %w", err)
	}
	return nil
}

// 环境变量优先于配置文件，方便容器部署时注入密钥和少量参数
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("OKX_API_KEY"); v != "" {
		c.Okx.ApiKey = v
	}
	if v := os.Getenv("OKX_SECRET_KEY"); v != "" {
		c.Okx.SecretKey = v
	}
	if v := os.Getenv("OKX_PASSPHRASE"); v != "" {
		c.Okx.Password = v
	}
	if v := os.Getenv("GRIDFLOW_SYMBOL"); v != "" {
		c.Grid.Symbol = v
	}
	if v := os.Getenv("GRIDFLOW_DIRECTION"); v != "" {
		c.Grid.Direction = v
	}
	if v := os.Getenv("GRIDFLOW_QTY_PER_ORDER"); v != "" {
		c.Grid.QtyPerOrder = cast.ToFloat64(v)
	}
	if v := os.Getenv("GRIDFLOW_PROFIT_RATE"); v != "" {
		c.Grid.ProfitRate = cast.ToFloat64(v)
	}
	if v := os.Getenv("GRIDFLOW_TICK_INTERVAL"); v != "" {
		c.Grid.TickInterval = cast.ToDuration(v)
	}
}
