package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. It is loaded once at
// start-up, validated, and passed by pointer into each component; nothing
// mutates it afterwards.
type Config struct {
	Symbols    []string   `mapstructure:"symbols"`
	Trading    Trading    `mapstructure:"trading"`
	Risk       Risk       `mapstructure:"risk"`
	Strategies Strategies `mapstructure:"strategies"`
	Engine     Engine     `mapstructure:"engine"`
	Feed       Feed       `mapstructure:"feed"`
	Logger     Logger     `mapstructure:"logger"`
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
}

// Trading holds capital allocation and per-trade limits.
type Trading struct {
	InitialCapital       float64 `mapstructure:"initial_capital"`
	MaxPositionNotional  float64 `mapstructure:"max_position_notional_usd"`
	MaxPortfolioExposure float64 `mapstructure:"max_portfolio_exposure"`
	MinPositions         int     `mapstructure:"min_positions"`
	MaxPositions         int     `mapstructure:"max_positions"`
	DefaultStopLoss      float64 `mapstructure:"default_stop_loss"`
	DefaultTakeProfit    float64 `mapstructure:"default_take_profit"`
	MaxHoldHours         float64 `mapstructure:"max_hold_hours"`
	PerTradeCapFraction  float64 `mapstructure:"per_trade_cap_fraction"`
}

// Risk holds the portfolio-level circuit breakers. Both fractions are
// relative to initial capital; breaching either forces liquidation.
type Risk struct {
	MaxDailyLoss float64 `mapstructure:"max_daily_loss"`
	MaxDrawdown  float64 `mapstructure:"max_drawdown"`
}

// Strategies holds the per-strategy enable flags and parameters.
type Strategies struct {
	Momentum      Momentum      `mapstructure:"momentum"`
	MeanReversion MeanReversion `mapstructure:"mean_reversion"`
	Arbitrage     Toggle        `mapstructure:"arbitrage"`
	MLPredictor   Toggle        `mapstructure:"ml_predictor"`
}

// Momentum holds the momentum strategy parameters.
type Momentum struct {
	Enabled         bool    `mapstructure:"enabled"`
	LookbackPeriods int     `mapstructure:"lookback_periods"`
	EntryThreshold  float64 `mapstructure:"entry_threshold"`
	MaxVolatility   float64 `mapstructure:"max_volatility"`
}

// MeanReversion holds the Bollinger-band mean reversion parameters.
type MeanReversion struct {
	Enabled          bool    `mapstructure:"enabled"`
	BollingerPeriods int     `mapstructure:"bollinger_periods"`
	BollingerStd     float64 `mapstructure:"bollinger_std"`
	ReversionTarget  float64 `mapstructure:"reversion_target"`
}

// Toggle is the configuration for strategies that only carry an enable flag.
type Toggle struct {
	Enabled bool `mapstructure:"enabled"`
}

// Engine holds the control loop cadences, in seconds.
type Engine struct {
	StrategyInterval    int `mapstructure:"strategy_interval"`
	PositionInterval    int `mapstructure:"position_interval"`
	PerformanceInterval int `mapstructure:"performance_interval"`
}

// Feed holds the market data feed configuration.
type Feed struct {
	Source           string  `mapstructure:"source"` // "stream" or "rest"
	StreamURL        string  `mapstructure:"stream_url"`
	RestURL          string  `mapstructure:"rest_url"`
	APIKey           string  `mapstructure:"api_key"`
	SecretKey        string  `mapstructure:"secret_key"`
	PollInterval     int     `mapstructure:"poll_interval"`
	RateLimit        float64 `mapstructure:"rate_limit"`
	RateLimitBurst   int     `mapstructure:"rate_limit_burst"`
	HistorySize      int     `mapstructure:"history_size"`
	MomentumWindow   int     `mapstructure:"momentum_window"`
	PriceSpikeAlert  float64 `mapstructure:"price_spike_alert"`
	VolumeSpikeAlert float64 `mapstructure:"volume_spike_alert"`
}

// Server holds the configuration for the reporting API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the trade journal database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

func setDefaults() {
	viper.SetDefault("symbols", []string{"BTC/USD", "ETH/USD", "SOL/USD"})

	viper.SetDefault("trading.initial_capital", 100000.0)
	viper.SetDefault("trading.max_position_notional_usd", 10000.0)
	viper.SetDefault("trading.max_portfolio_exposure", 0.80)
	viper.SetDefault("trading.min_positions", 3)
	viper.SetDefault("trading.max_positions", 10)
	viper.SetDefault("trading.default_stop_loss", 0.02)
	viper.SetDefault("trading.default_take_profit", 0.05)
	viper.SetDefault("trading.max_hold_hours", 24.0)
	viper.SetDefault("trading.per_trade_cap_fraction", 0.10)

	viper.SetDefault("risk.max_daily_loss", 0.05)
	viper.SetDefault("risk.max_drawdown", 0.10)

	viper.SetDefault("strategies.momentum.enabled", true)
	viper.SetDefault("strategies.momentum.lookback_periods", 20)
	viper.SetDefault("strategies.momentum.entry_threshold", 0.02)
	viper.SetDefault("strategies.momentum.max_volatility", 0.05)
	viper.SetDefault("strategies.mean_reversion.enabled", true)
	viper.SetDefault("strategies.mean_reversion.bollinger_periods", 20)
	viper.SetDefault("strategies.mean_reversion.bollinger_std", 2.0)
	viper.SetDefault("strategies.mean_reversion.reversion_target", 0.95)
	viper.SetDefault("strategies.arbitrage.enabled", false)
	viper.SetDefault("strategies.ml_predictor.enabled", false)

	viper.SetDefault("engine.strategy_interval", 10)
	viper.SetDefault("engine.position_interval", 1)
	viper.SetDefault("engine.performance_interval", 60)

	viper.SetDefault("feed.source", "stream")
	viper.SetDefault("feed.poll_interval", 5)
	viper.SetDefault("feed.rate_limit", 20)      // requests per second
	viper.SetDefault("feed.rate_limit_burst", 5) // burst size
	viper.SetDefault("feed.history_size", 1000)
	viper.SetDefault("feed.momentum_window", 20)
	viper.SetDefault("feed.price_spike_alert", 0.05)
	viper.SetDefault("feed.volume_spike_alert", 3.0)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "trader.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
}

// Validate checks the configuration for inconsistencies that must prevent
// the engine from starting at all.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	if c.Trading.InitialCapital <= 0 {
		return fmt.Errorf("config: initial_capital must be positive, got %.2f", c.Trading.InitialCapital)
	}
	if c.Trading.MaxPortfolioExposure <= 0 || c.Trading.MaxPortfolioExposure > 1.0 {
		return fmt.Errorf("config: max_portfolio_exposure must be in (0, 1], got %.2f", c.Trading.MaxPortfolioExposure)
	}
	if c.Trading.MinPositions > c.Trading.MaxPositions {
		return fmt.Errorf("config: min_positions (%d) cannot exceed max_positions (%d)",
			c.Trading.MinPositions, c.Trading.MaxPositions)
	}
	if c.Trading.MaxPositions <= 0 {
		return fmt.Errorf("config: max_positions must be positive, got %d", c.Trading.MaxPositions)
	}
	if c.Trading.DefaultStopLoss <= 0 || c.Trading.DefaultStopLoss >= 1 {
		return fmt.Errorf("config: default_stop_loss must be in (0, 1), got %.4f", c.Trading.DefaultStopLoss)
	}
	if c.Trading.DefaultTakeProfit <= 0 {
		return fmt.Errorf("config: default_take_profit must be positive, got %.4f", c.Trading.DefaultTakeProfit)
	}
	if c.Trading.MaxHoldHours <= 0 {
		return fmt.Errorf("config: max_hold_hours must be positive, got %.2f", c.Trading.MaxHoldHours)
	}
	if c.Trading.PerTradeCapFraction <= 0 || c.Trading.PerTradeCapFraction > 1.0 {
		return fmt.Errorf("config: per_trade_cap_fraction must be in (0, 1], got %.2f", c.Trading.PerTradeCapFraction)
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss >= 1 {
		return fmt.Errorf("config: max_daily_loss must be in (0, 1), got %.4f", c.Risk.MaxDailyLoss)
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		return fmt.Errorf("config: max_drawdown must be in (0, 1), got %.4f", c.Risk.MaxDrawdown)
	}
	if c.Strategies.Momentum.Enabled && c.Strategies.Momentum.LookbackPeriods <= 0 {
		return fmt.Errorf("config: momentum lookback_periods must be positive, got %d", c.Strategies.Momentum.LookbackPeriods)
	}
	if c.Strategies.MeanReversion.Enabled {
		if c.Strategies.MeanReversion.BollingerPeriods < 2 {
			return fmt.Errorf("config: mean_reversion bollinger_periods must be at least 2, got %d",
				c.Strategies.MeanReversion.BollingerPeriods)
		}
		if c.Strategies.MeanReversion.BollingerStd <= 0 {
			return fmt.Errorf("config: mean_reversion bollinger_std must be positive, got %.2f",
				c.Strategies.MeanReversion.BollingerStd)
		}
		if c.Strategies.MeanReversion.ReversionTarget <= 0 {
			return fmt.Errorf("config: mean_reversion reversion_target must be positive, got %.2f",
				c.Strategies.MeanReversion.ReversionTarget)
		}
	}
	if c.Engine.StrategyInterval <= 0 || c.Engine.PositionInterval <= 0 || c.Engine.PerformanceInterval <= 0 {
		return fmt.Errorf("config: engine intervals must be positive")
	}
	return nil
}
