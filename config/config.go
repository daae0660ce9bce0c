package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de predictx.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Chain     ChainConfig     `yaml:"chain"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// MarketConfig contiene las reglas económicas de los pools.
type MarketConfig struct {
	FeeRate        string `yaml:"fee_rate"`  // decimal como string: "0.05"
	MinStake       string `yaml:"min_stake"` // stake mínimo en unidades de moneda
	ExclusiveSide  bool   `yaml:"exclusive_side"`
	EligibleVoters int    `yaml:"eligible_voters"` // comunidad por defecto para rewards de votantes
	AdvanceWorkers int    `yaml:"advance_workers"`
}

// ChainConfig controla la red simulada de confirmación de transacciones.
type ChainConfig struct {
	TxPerSec       float64 `yaml:"tx_per_sec"`
	Burst          int     `yaml:"burst"`
	ConfirmDelayMS int     `yaml:"confirm_delay_ms"`
	MaxRetries     int     `yaml:"max_retries"`
	FaultRate      float64 `yaml:"fault_rate"` // 0-1, probabilidad de fallo por intento
	FaultSeed      int64   `yaml:"fault_seed"`
}

// SchedulerConfig controla cada cuánto se avanzan los polls.
type SchedulerConfig struct {
	Spec string `yaml:"spec"` // expresión cron con segundos o descriptor ("@every 30s")
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// FeeRate devuelve el fee de plataforma como decimal.
func (c *Config) FeeRate() decimal.Decimal {
	return decimal.RequireFromString(c.Market.FeeRate)
}

// MinStake devuelve el stake mínimo como decimal.
func (c *Config) MinStake() decimal.Decimal {
	return decimal.RequireFromString(c.Market.MinStake)
}

// ConfirmDelay devuelve la latencia simulada por intento.
func (c *Config) ConfirmDelay() time.Duration {
	return time.Duration(c.Chain.ConfirmDelayMS) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PREDICTX_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("PREDICTX_SCHEDULE"); v != "" {
		cfg.Scheduler.Spec = v
	}
	if v := os.Getenv("PREDICTX_FAULT_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PREDICTX_FAULT_RATE %q: %w", v, err)
		}
		cfg.Chain.FaultRate = rate
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Market.FeeRate == "" {
		cfg.Market.FeeRate = "0.05"
	}
	if cfg.Market.MinStake == "" {
		cfg.Market.MinStake = "1"
	}
	if cfg.Market.EligibleVoters <= 0 {
		cfg.Market.EligibleVoters = 100
	}
	if cfg.Chain.TxPerSec <= 0 {
		cfg.Chain.TxPerSec = 20
	}
	if cfg.Chain.Burst <= 0 {
		cfg.Chain.Burst = 10
	}
	if cfg.Chain.MaxRetries <= 0 {
		cfg.Chain.MaxRetries = 3
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = "@every 30s"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predictx.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza valores que el mercado no puede usar.
func (c *Config) validate() error {
	fee, err := decimal.NewFromString(c.Market.FeeRate)
	if err != nil {
		return fmt.Errorf("market.fee_rate %q: %w", c.Market.FeeRate, err)
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("market.fee_rate %s out of range [0,1)", fee)
	}
	minStake, err := decimal.NewFromString(c.Market.MinStake)
	if err != nil {
		return fmt.Errorf("market.min_stake %q: %w", c.Market.MinStake, err)
	}
	if !minStake.IsPositive() {
		return fmt.Errorf("market.min_stake must be positive, got %s", minStake)
	}
	if c.Chain.FaultRate < 0 || c.Chain.FaultRate > 1 {
		return fmt.Errorf("chain.fault_rate %v out of range [0,1]", c.Chain.FaultRate)
	}
	return nil
}
