package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Strategy selectors.
const (
	StrategyTrend  = "trend"
	StrategyHybrid = "hybrid"
)

// Config holds environment-driven settings for the signal engine.
type Config struct {
	Port string

	// Exchange
	APIKey        string
	APISecret     string
	Symbol        string
	RestBaseURL   string
	StreamBaseURL string
	UseMockFeed   bool

	// Execution
	DryRun               bool
	DryRunInitialBalance float64
	PollInterval         int // seconds between exchange snapshot polls

	// Strategy selection and parameters
	Strategy    string // trend or hybrid
	TimeframeMs int64
	Trend       TrendParams
	Hybrid      HybridParams

	// Risk envelope
	MaxPositionSize       float64
	MaxLeverage           int
	MaxFlipsPerHour       int
	StopLossPct           float64
	TakeProfitPct         float64
	UseStopLoss           bool
	EmergencyStopLoss     float64
	PositionSizePct       float64 // 0 disables balance-based sizing
	RequireTrendingMarket bool
	ADXThreshold          float64

	// Persistence
	DBPath        string
	WarmStatePath string
	TradeLogPath  string

	// Dashboard API
	JWTSecret         string
	DashboardPassword string
}

// TrendParams holds the edge-triggered trend strategy parameters.
type TrendParams struct {
	EMAFastLen  int     `yaml:"emaFast"`
	EMAMidLen   int     `yaml:"emaMid"`
	EMASlowLen  int     `yaml:"emaSlow"`
	RSILen      int     `yaml:"rsiLength"`
	RSIMinLong  float64 `yaml:"rsiMinLong"`
	RSIMaxShort float64 `yaml:"rsiMaxShort"`
}

// HybridParams holds the hybrid strategy parameters.
type HybridParams struct {
	V1EMAFastLen      int     `yaml:"v1EmaFast"`
	V1EMAMidLen       int     `yaml:"v1EmaMid"`
	V1EMASlowLen      int     `yaml:"v1EmaSlow"`
	V1EMAMicroFastLen int     `yaml:"v1EmaMicroFast"`
	V1EMAMicroSlowLen int     `yaml:"v1EmaMicroSlow"`
	V1RSILen          int     `yaml:"v1RsiLength"`
	RSIMinLong        float64 `yaml:"rsiMinLong"`
	RSIMaxShort       float64 `yaml:"rsiMaxShort"`
	MinBarsBetween    int     `yaml:"minBarsBetween"`
	MinMovePercent    float64 `yaml:"minMovePercent"`

	V2EMAFastLen         int     `yaml:"v2EmaFast"`
	V2EMAMidLen          int     `yaml:"v2EmaMid"`
	V2EMASlowLen         int     `yaml:"v2EmaSlow"`
	V2RSILen             int     `yaml:"v2RsiLength"`
	RSIMomentumThreshold float64 `yaml:"rsiMomentumThreshold"`
	VolumeLookback       int     `yaml:"volumeLookback"`
	VolumeMultiplier     float64 `yaml:"volumeMultiplier"`

	ExitVolumeMultiplier float64 `yaml:"exitVolumeMultiplier"`
	ADXLen               int     `yaml:"adxLength"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		APIKey:        os.Getenv("ASTER_API_KEY"),
		APISecret:     os.Getenv("ASTER_API_SECRET"),
		Symbol:        getEnv("SYMBOL", "BTCUSDT"),
		RestBaseURL:   os.Getenv("ASTER_REST_URL"),
		StreamBaseURL: os.Getenv("ASTER_STREAM_URL"),
		UseMockFeed:   getEnv("USE_MOCK_FEED", "false") == "true",

		DryRun:               getEnv("DRY_RUN", "true") == "true",
		DryRunInitialBalance: getEnvFloat("DRY_RUN_INITIAL_BALANCE", 10000.0),
		PollInterval:         getEnvInt("POLL_INTERVAL_SECONDS", 2),

		Strategy:    strings.ToLower(getEnv("STRATEGY", StrategyHybrid)),
		TimeframeMs: int64(getEnvInt("TIMEFRAME_MS", 30000)),
		Trend: TrendParams{
			EMAFastLen:  getEnvInt("TREND_EMA_FAST", 8),
			EMAMidLen:   getEnvInt("TREND_EMA_MID", 21),
			EMASlowLen:  getEnvInt("TREND_EMA_SLOW", 48),
			RSILen:      getEnvInt("TREND_RSI_LENGTH", 14),
			RSIMinLong:  getEnvFloat("TREND_RSI_MIN_LONG", 42),
			RSIMaxShort: getEnvFloat("TREND_RSI_MAX_SHORT", 58),
		},
		Hybrid: HybridParams{
			V1EMAFastLen:      getEnvInt("HYBRID_V1_EMA_FAST", 8),
			V1EMAMidLen:       getEnvInt("HYBRID_V1_EMA_MID", 21),
			V1EMASlowLen:      getEnvInt("HYBRID_V1_EMA_SLOW", 48),
			V1EMAMicroFastLen: getEnvInt("HYBRID_V1_EMA_MICRO_FAST", 3),
			V1EMAMicroSlowLen: getEnvInt("HYBRID_V1_EMA_MICRO_SLOW", 8),
			V1RSILen:          getEnvInt("HYBRID_V1_RSI_LENGTH", 14),
			RSIMinLong:        getEnvFloat("HYBRID_RSI_MIN_LONG", 42),
			RSIMaxShort:       getEnvFloat("HYBRID_RSI_MAX_SHORT", 58),
			MinBarsBetween:    getEnvInt("HYBRID_MIN_BARS_BETWEEN", 3),
			MinMovePercent:    getEnvFloat("HYBRID_MIN_MOVE_PERCENT", 0.10),

			V2EMAFastLen:         getEnvInt("HYBRID_V2_EMA_FAST", 5),
			V2EMAMidLen:          getEnvInt("HYBRID_V2_EMA_MID", 13),
			V2EMASlowLen:         getEnvInt("HYBRID_V2_EMA_SLOW", 21),
			V2RSILen:             getEnvInt("HYBRID_V2_RSI_LENGTH", 7),
			RSIMomentumThreshold: getEnvFloat("HYBRID_RSI_MOMENTUM_THRESHOLD", 3.0),
			VolumeLookback:       getEnvInt("HYBRID_VOLUME_LOOKBACK", 20),
			VolumeMultiplier:     getEnvFloat("HYBRID_VOLUME_MULTIPLIER", 1.5),

			ExitVolumeMultiplier: getEnvFloat("HYBRID_EXIT_VOLUME_MULTIPLIER", 1.2),
			ADXLen:               getEnvInt("HYBRID_ADX_LENGTH", 14),
		},

		MaxPositionSize:       getEnvFloat("MAX_POSITION_SIZE", 100),
		MaxLeverage:           getEnvInt("MAX_LEVERAGE", 5),
		MaxFlipsPerHour:       getEnvInt("MAX_FLIPS_PER_HOUR", 4),
		StopLossPct:           getEnvFloat("STOP_LOSS_PCT", 0),
		TakeProfitPct:         getEnvFloat("TAKE_PROFIT_PCT", 0),
		UseStopLoss:           getEnv("USE_STOP_LOSS", "false") == "true",
		EmergencyStopLoss:     getEnvFloat("EMERGENCY_STOP_LOSS", 2.0),
		PositionSizePct:       getEnvFloat("POSITION_SIZE_PCT", 0),
		RequireTrendingMarket: getEnv("REQUIRE_TRENDING_MARKET", "false") == "true",
		ADXThreshold:          getEnvFloat("ADX_THRESHOLD", 20),

		DBPath:        getEnv("DB_PATH", "./data/aester.db"),
		WarmStatePath: getEnv("WARM_STATE_PATH", "./data/warm_state.json"),
		TradeLogPath:  getEnv("TRADE_LOG_PATH", "./data/trades.csv"),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		DashboardPassword: os.Getenv("DASHBOARD_PASSWORD"),
	}

	if path := os.Getenv("STRATEGY_CONFIG"); path != "" {
		if err := cfg.applyStrategyFile(path); err != nil {
			return nil, fmt.Errorf("strategy config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Strategy != StrategyTrend && c.Strategy != StrategyHybrid {
		return fmt.Errorf("config: unknown strategy %q", c.Strategy)
	}
	if c.TimeframeMs <= 0 {
		return fmt.Errorf("config: timeframe must be > 0 ms, got %d", c.TimeframeMs)
	}
	if c.MaxLeverage < 1 {
		return fmt.Errorf("config: max leverage must be >= 1, got %d", c.MaxLeverage)
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("config: max position size must be > 0")
	}
	if c.MaxFlipsPerHour < 1 {
		return fmt.Errorf("config: max flips per hour must be >= 1")
	}
	if c.PositionSizePct < 0 || c.PositionSizePct > 100 {
		return fmt.Errorf("config: position size pct must be within [0,100]")
	}
	if !c.DryRun && (c.APIKey == "" || c.APISecret == "") {
		return fmt.Errorf("config: live mode requires API credentials")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
