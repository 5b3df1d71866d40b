package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"perpbot/internal/models"
)

// Config содержит всю конфигурацию приложения.
// Иммутабельна после Load: ядро получает её при старте и не изменяет.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Trading  TradingConfig
	Risk     RiskConfig
	Funding  FundingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// Ключ AES-256 для шифрования API-ключей бирж (ровно 32 байта)
	EncryptionKey string
	// bcrypt-хеш операторского токена для защищённых endpoint'ов
	// (halt/reset). Пустое значение = операторские endpoint'ы выключены.
	OperatorTokenHash string
}

// TradingConfig - настройки цикла оценки и ансамбля
type TradingConfig struct {
	Assets []string // торгуемые активы (BTC-PERP,ETH-PERP,...)

	TickInterval       time.Duration // период цикла оценки per-asset
	TickBudget         time.Duration // бюджет одного цикла; превышение = HOLD
	StalenessTolerance time.Duration // допустимый возраст сигналов и рыночных данных

	EnsembleMethod string  // voting, weighted, confidence, best
	MinConfidence  float64 // порог уверенности для voting
	NeutralBand    float64 // |strength| ниже порога = HOLD для weighted

	// Retry для execution-коллаборатора
	MaxOrderRetries int
	OrderTimeout    time.Duration

	// Rate limit исходящих order intents (запросов в секунду)
	ExecutionRate float64
}

// RiskConfig - лимиты риск-контроля
type RiskConfig struct {
	MaxAssetExposurePct   float64 // максимум экспозиции на актив, % от equity
	MaxClusterExposurePct float64 // максимум на кластер корреляции
	MinFreeCollateralPct  float64 // ниже - вход запрещён
	ReduceCollateralPct   float64 // ниже - принудительное сокращение
	EmergencyCollateralPct float64 // ниже - экстренное закрытие

	MaxDailyLossPct float64 // дневной kill-switch

	BasePositionPct     float64 // базовый размер позиции, % от equity
	MaxSinglePositionPct float64 // потолок одной позиции, % от equity
	RecommendedLeverage float64 // плечо = min(recommended, tier max)

	MaxDailyFundingCostPct float64 // лимит дневной стоимости funding, % от equity
	MaintenanceMarginPct   float64 // допущение о maintenance margin для расчёта дистанции ликвидации

	// Кластеры корреляции: актив → id кластера
	Clusters map[string]string
	// Tier'ы активов: актив → лимиты
	Tiers map[string]models.AssetTier
}

// FundingConfig - пороги funding-арбитража
type FundingConfig struct {
	WeakThreshold    float64 // |rate| за период для слабого входа
	StrongThreshold  float64
	ExtremeThreshold float64
	NeutralBand      float64 // реверсия внутрь полосы = выход

	WeakMultiplier    float64 // множители размера входа по ярусам
	StrongMultiplier  float64
	ExtremeMultiplier float64

	BaseTradePct   float64 // базовый размер funding-сделки, % от equity
	ScalingCapMult float64 // потолок наращивания, кратно базовому размеру

	ProfitTargetPct float64 // цель по нереализованной прибыли, % от notional
	StopLossPct     float64 // стоп по нереализованному убытку, % от notional
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "perpbot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			OperatorTokenHash: getEnv("OPERATOR_TOKEN_HASH", ""),
		},
		Trading: TradingConfig{
			Assets: getEnvAsList("TRADING_ASSETS", []string{"BTC-PERP", "ETH-PERP"}),

			TickInterval:       getEnvAsDuration("TICK_INTERVAL", 10*time.Second),
			TickBudget:         getEnvAsDuration("TICK_BUDGET", 3*time.Second),
			StalenessTolerance: getEnvAsDuration("STALENESS_TOLERANCE", 30*time.Second),

			EnsembleMethod: getEnv("ENSEMBLE_METHOD", models.MethodWeighted),
			MinConfidence:  getEnvAsFloat("MIN_CONFIDENCE", 0.6),
			NeutralBand:    getEnvAsFloat("NEUTRAL_BAND", 0.1),

			MaxOrderRetries: getEnvAsInt("MAX_ORDER_RETRIES", 4),
			OrderTimeout:    getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),
			ExecutionRate:   getEnvAsFloat("EXECUTION_RATE", 10),
		},
		Risk: RiskConfig{
			MaxAssetExposurePct:    getEnvAsFloat("MAX_ASSET_EXPOSURE_PCT", 40),
			MaxClusterExposurePct:  getEnvAsFloat("MAX_CLUSTER_EXPOSURE_PCT", 60),
			MinFreeCollateralPct:   getEnvAsFloat("MIN_FREE_COLLATERAL_PCT", 20),
			ReduceCollateralPct:    getEnvAsFloat("REDUCE_COLLATERAL_PCT", 10),
			EmergencyCollateralPct: getEnvAsFloat("EMERGENCY_COLLATERAL_PCT", 5),

			MaxDailyLossPct: getEnvAsFloat("MAX_DAILY_LOSS_PCT", 4.5),

			BasePositionPct:      getEnvAsFloat("BASE_POSITION_PCT", 5),
			MaxSinglePositionPct: getEnvAsFloat("MAX_SINGLE_POSITION_PCT", 20),
			RecommendedLeverage:  getEnvAsFloat("RECOMMENDED_LEVERAGE", 3),

			MaxDailyFundingCostPct: getEnvAsFloat("MAX_DAILY_FUNDING_COST_PCT", 2),
			MaintenanceMarginPct:   getEnvAsFloat("MAINTENANCE_MARGIN_PCT", 0.5),

			Clusters: parseClusters(getEnv("CORRELATION_CLUSTERS", "")),
			Tiers:    defaultTiers(),
		},
		Funding: FundingConfig{
			WeakThreshold:    getEnvAsFloat("FUNDING_WEAK_THRESHOLD", 0.0005),
			StrongThreshold:  getEnvAsFloat("FUNDING_STRONG_THRESHOLD", 0.001),
			ExtremeThreshold: getEnvAsFloat("FUNDING_EXTREME_THRESHOLD", 0.002),
			NeutralBand:      getEnvAsFloat("FUNDING_NEUTRAL_BAND", 0.0001),

			WeakMultiplier:    getEnvAsFloat("FUNDING_WEAK_MULT", 1.0),
			StrongMultiplier:  getEnvAsFloat("FUNDING_STRONG_MULT", 1.25),
			ExtremeMultiplier: getEnvAsFloat("FUNDING_EXTREME_MULT", 1.5),

			BaseTradePct:   getEnvAsFloat("FUNDING_BASE_TRADE_PCT", 3),
			ScalingCapMult: getEnvAsFloat("FUNDING_SCALING_CAP", 2.0),

			ProfitTargetPct: getEnvAsFloat("FUNDING_PROFIT_TARGET_PCT", 1.5),
			StopLossPct:     getEnvAsFloat("FUNDING_STOP_LOSS_PCT", 1.0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultTiers возвращает tier'ы по умолчанию.
// Funding period задаётся per-market: у большинства perp-рынков 8 часов,
// hourly-рынки переопределяются окружением TIER_<ASSET>_* при деплое.
func defaultTiers() map[string]models.AssetTier {
	majors := models.AssetTier{
		ID:                  "majors",
		MaxLeverage:         10,
		MaxPositionNotional: 250_000,
		MaxHoldTime:         72 * time.Hour,
		FundingPeriod:       8 * time.Hour,
	}
	alts := models.AssetTier{
		ID:                  "alts",
		MaxLeverage:         5,
		MaxPositionNotional: 50_000,
		MaxHoldTime:         24 * time.Hour,
		FundingPeriod:       8 * time.Hour,
	}

	tiers := map[string]models.AssetTier{
		"BTC-PERP": majors,
		"ETH-PERP": majors,
	}
	for _, asset := range getEnvAsList("TRADING_ASSETS", nil) {
		if _, ok := tiers[asset]; !ok {
			tiers[asset] = alts
		}
	}
	return tiers
}

// parseClusters разбирает строку вида "BTC-PERP:majors,ETH-PERP:majors"
func parseClusters(raw string) map[string]string {
	clusters := map[string]string{
		"BTC-PERP": "majors",
		"ETH-PERP": "majors",
	}
	if raw == "" {
		return clusters
	}

	clusters = make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		clusters[parts[0]] = parts[1]
	}
	return clusters
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API ключей бирж
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}
	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if len(c.Trading.Assets) == 0 {
		return fmt.Errorf("TRADING_ASSETS must not be empty")
	}

	switch c.Trading.EnsembleMethod {
	case models.MethodVoting, models.MethodWeighted, models.MethodConfidence, models.MethodBestPerformer:
	default:
		return fmt.Errorf("ENSEMBLE_METHOD must be one of voting/weighted/confidence/best, got %q", c.Trading.EnsembleMethod)
	}

	if c.Trading.MinConfidence < 0 || c.Trading.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0,1], got %v", c.Trading.MinConfidence)
	}
	if c.Trading.NeutralBand < 0 || c.Trading.NeutralBand >= 1 {
		return fmt.Errorf("NEUTRAL_BAND must be in [0,1), got %v", c.Trading.NeutralBand)
	}
	if c.Trading.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %v", c.Trading.TickInterval)
	}
	if c.Trading.TickBudget <= 0 || c.Trading.TickBudget >= c.Trading.TickInterval {
		return fmt.Errorf("TICK_BUDGET must be positive and below TICK_INTERVAL, got %v", c.Trading.TickBudget)
	}
	if c.Trading.MaxOrderRetries < 0 || c.Trading.MaxOrderRetries > 10 {
		return fmt.Errorf("MAX_ORDER_RETRIES must be in [0,10], got %d", c.Trading.MaxOrderRetries)
	}
	if c.Trading.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Trading.OrderTimeout)
	}

	// Ликвидационная лестница должна быть упорядочена: entry > reduce > emergency
	r := c.Risk
	if !(r.MinFreeCollateralPct > r.ReduceCollateralPct && r.ReduceCollateralPct > r.EmergencyCollateralPct) {
		return fmt.Errorf("collateral thresholds must decrease: entry %v > reduce %v > emergency %v",
			r.MinFreeCollateralPct, r.ReduceCollateralPct, r.EmergencyCollateralPct)
	}
	if r.MaxDailyLossPct <= 0 {
		return fmt.Errorf("MAX_DAILY_LOSS_PCT must be positive, got %v", r.MaxDailyLossPct)
	}
	if r.BasePositionPct <= 0 || r.BasePositionPct > r.MaxSinglePositionPct {
		return fmt.Errorf("BASE_POSITION_PCT must be positive and not exceed MAX_SINGLE_POSITION_PCT, got %v", r.BasePositionPct)
	}
	if r.RecommendedLeverage <= 0 {
		return fmt.Errorf("RECOMMENDED_LEVERAGE must be positive, got %v", r.RecommendedLeverage)
	}

	// Ярусы funding-ставки должны быть упорядочены по удалению от нуля
	f := c.Funding
	if !(f.NeutralBand < f.WeakThreshold && f.WeakThreshold < f.StrongThreshold && f.StrongThreshold < f.ExtremeThreshold) {
		return fmt.Errorf("funding thresholds must increase: neutral %v < weak %v < strong %v < extreme %v",
			f.NeutralBand, f.WeakThreshold, f.StrongThreshold, f.ExtremeThreshold)
	}
	if f.ScalingCapMult < 1 {
		return fmt.Errorf("FUNDING_SCALING_CAP must be >= 1, got %v", f.ScalingCapMult)
	}

	for _, asset := range c.Trading.Assets {
		if _, ok := c.Risk.Tiers[asset]; !ok {
			return fmt.Errorf("asset %s has no tier configured", asset)
		}
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
