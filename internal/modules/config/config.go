package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"

	futuresKeyENV    = "BINANCE_API_KEY"
	futuresSecretENV = "BINANCE_API_SECRET"
	spotKeyENV       = "BINANCE_SPOT_API_KEY"
	spotSecretENV    = "BINANCE_SPOT_API_SECRET"
)

// Config ...
type Config struct {
	Service struct {
		Host        string `yaml:"host"`
		MetricsPort int    `yaml:"metrics_port"`
	} `yaml:"service"`

	DB           string `yaml:"db_dsn"`
	DashboardURL string `yaml:"dashboard_url"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Вселенная и таймфреймы. Веса должны суммироваться в 1.0.
	Symbols          []string           `yaml:"symbols"`
	Timeframes       []string           `yaml:"timeframes"` // higher to lower
	TimeframeWeights map[string]float64 `yaml:"timeframe_weights"`

	// Минимальный composite score для входа.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Риск
	RiskSpot     float64 `yaml:"risk_spot"`     // доля equity на сделку, spot
	RiskFutures  float64 `yaml:"risk_futures"`  // доля equity на сделку, futures
	MaxDailyLoss float64 `yaml:"max_daily_loss"` // доля стартового equity, kill switch

	// Плечо по символам (futures). Дефолт — 2.
	LeverageMap map[string]int `yaml:"leverage_map"`

	// Шаг лота по символам. Дефолт — 0.001.
	LotSizeMap map[string]float64 `yaml:"lot_size_map"`

	// Порог пыли по символам (spot): остаток ниже не считается позицией.
	DustMap map[string]float64 `yaml:"dust_map"`

	// Потолок капитала на одну spot-сделку, 0 = не ограничен.
	MaxTradeCapital float64 `yaml:"max_trade_capital"`

	// Минимальный notional, ниже — пропускаем вход.
	MinNotional float64 `yaml:"min_notional"`

	CooldownPerSymbol time.Duration
	PollInterval      time.Duration
	CandleLimit       int

	BinanceTestnet bool `yaml:"testnet"`

	FuturesAPIKey    string
	FuturesAPISecret string
	SpotAPIKey       string
	SpotAPISecret    string

	Debug bool
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	config := Config{
		ConfidenceThreshold: 0.7,
		RiskSpot:            0.01,
		RiskFutures:         0.005,
		MaxDailyLoss:        0.02,
		MinNotional:         10,

		CooldownPerSymbol: durationFromEnv("COOLDOWN_PER_SYMBOL", "5m"),
		PollInterval:      durationFromEnv("POLL_INTERVAL", "15s"),
		CandleLimit:       intFromEnv("CANDLE_LIMIT", 200),

		FuturesAPIKey:    os.Getenv(futuresKeyENV),
		FuturesAPISecret: os.Getenv(futuresSecretENV),
		SpotAPIKey:       os.Getenv(spotKeyENV),
		SpotAPISecret:    os.Getenv(spotSecretENV),

		Debug: boolFromEnv("DEBUG", false),
	}

	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	if len(config.Symbols) == 0 {
		config.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	if len(config.Timeframes) == 0 {
		config.Timeframes = []string{"15m", "5m"}
		config.TimeframeWeights = map[string]float64{"15m": 0.6, "5m": 0.4}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	var sum float64
	for _, tf := range c.Timeframes {
		w, ok := c.TimeframeWeights[tf]
		if !ok {
			return errors.Errorf("timeframe %q has no weight", tf)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return errors.Errorf("timeframe weights must sum to 1.0, got %.4f", sum)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return errors.Errorf("confidence_threshold out of range: %.2f", c.ConfidenceThreshold)
	}
	return nil
}

// Leverage — плечо для символа, дефолт 2.
func (c *Config) Leverage(symbol string) int {
	if lev, ok := c.LeverageMap[symbol]; ok && lev > 0 {
		return lev
	}
	return 2
}

// LotSize — шаг лота для символа, дефолт 0.001.
func (c *Config) LotSize(symbol string) float64 {
	if lot, ok := c.LotSizeMap[symbol]; ok && lot > 0 {
		return lot
	}
	return 0.001
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
