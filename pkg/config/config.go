package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for tremor-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (the database
// password) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Hazard   HazardConfig   `yaml:"hazard"`
	Risk     RiskConfig     `yaml:"risk"`
	Database DatabaseConfig `yaml:"database"`
}

// HazardConfig drives the event-based hazard calculator.
type HazardConfig struct {
	// MasterSeed seeds every deterministic draw of the calculation. Two runs
	// with the same seed and the same inputs produce bit-identical results.
	MasterSeed int64 `yaml:"master_seed" env:"HAZARD_MASTER_SEED" env-default:"42"`

	// SourceModelPath points at the YAML source model file (sources, sites,
	// GSIM assignment).
	SourceModelPath string `yaml:"source_model" env:"HAZARD_SOURCE_MODEL" env-default:"source_model.yaml"`

	// SESPerLogicTreePath is the number of stochastic event sets sampled for
	// each realization.
	SESPerLogicTreePath int `yaml:"ses_per_logic_tree_path" env:"HAZARD_SES_PER_LOGIC_TREE_PATH" env-default:"1"`

	// InvestigationTime is the duration of one stochastic event set in years.
	InvestigationTime float64 `yaml:"investigation_time" env:"HAZARD_INVESTIGATION_TIME" env-default:"50"`

	// IMTsStr is a comma-separated list of intensity measure types, e.g. "PGA,SA(0.1)".
	IMTsStr string `yaml:"intensity_measure_types" env:"HAZARD_INTENSITY_MEASURE_TYPES" env-default:"PGA"`

	// IMTs is the parsed form of IMTsStr (not read from config directly).
	IMTs []string `yaml:"-"`

	TruncationLevel float64 `yaml:"truncation_level" env:"HAZARD_TRUNCATION_LEVEL" env-default:"3"`
	MaxDistanceKm   float64 `yaml:"maximum_distance_km" env:"HAZARD_MAXIMUM_DISTANCE_KM" env-default:"200"`

	// GroundMotionFields enables GMF computation after rupture sampling.
	GroundMotionFields bool `yaml:"ground_motion_fields" env:"HAZARD_GROUND_MOTION_FIELDS" env-default:"true"`

	// CorrelationModel names the spatial correlation model passed through to
	// the ground-motion computation ("" disables correlation).
	CorrelationModel string `yaml:"correlation_model" env:"HAZARD_CORRELATION_MODEL" env-default:""`

	// ConcurrentTasks is the number of blocks the sources are split into.
	// It affects parallelism only, never results.
	ConcurrentTasks int `yaml:"concurrent_tasks" env:"HAZARD_CONCURRENT_TASKS" env-default:"8"`
}

// RiskConfig drives the risk calculator setup.
type RiskConfig struct {
	// MaxDistanceKm is the asset-to-hazard-site association cutoff.
	MaxDistanceKm float64 `yaml:"maximum_distance_km" env:"RISK_MAXIMUM_DISTANCE_KM" env-default:"5"`

	// ConcurrentTasks is the target number of asset blocks for dispatch.
	ConcurrentTasks int `yaml:"concurrent_tasks" env:"RISK_CONCURRENT_TASKS" env-default:"8"`

	// TaxonomiesFromModel restricts the calculation to taxonomies that have a
	// configured risk model instead of failing on orphans.
	TaxonomiesFromModel bool `yaml:"taxonomies_from_model" env:"RISK_TAXONOMIES_FROM_MODEL" env-default:"false"`
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host           string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string        `yaml:"user" env:"PGUSER" env-default:"tremor"`
	Password       string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string        `yaml:"database" env:"PGDATABASE" env-default:"tremor_engine"`
	MaxConnections int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	ConnLifetime   time.Duration `yaml:"conn_lifetime" env:"PGCONN_LIFETIME" env-default:"1h"`
	ConnIdleTime   time.Duration `yaml:"conn_idle_time" env:"PGCONN_IDLE_TIME" env-default:"30m"`
	SSLMode        string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// Load reads configuration from config.yaml with environment variable
// overrides and validates it. Validation failures abort the job before any
// task is dispatched.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Hazard.IMTs = splitCSV(cfg.Hazard.IMTsStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the calculator setup. All violations here are
// configuration errors: they surface before dispatch and fail the job.
func (c *Config) Validate() error {
	h := c.Hazard
	if h.SESPerLogicTreePath < 1 {
		return fmt.Errorf("invalid configuration: ses_per_logic_tree_path must be >= 1, got %d", h.SESPerLogicTreePath)
	}
	if h.InvestigationTime <= 0 {
		return fmt.Errorf("invalid configuration: investigation_time must be positive, got %g", h.InvestigationTime)
	}
	if h.SourceModelPath == "" {
		return fmt.Errorf("invalid configuration: source_model path is required")
	}
	if len(h.IMTs) == 0 {
		return fmt.Errorf("invalid configuration: at least one intensity measure type is required")
	}
	if h.MaxDistanceKm <= 0 {
		return fmt.Errorf("invalid configuration: hazard maximum_distance_km must be positive, got %g", h.MaxDistanceKm)
	}
	if h.ConcurrentTasks < 1 {
		return fmt.Errorf("invalid configuration: hazard concurrent_tasks must be >= 1, got %d", h.ConcurrentTasks)
	}
	if c.Risk.MaxDistanceKm <= 0 {
		return fmt.Errorf("invalid configuration: risk maximum_distance_km must be positive, got %g", c.Risk.MaxDistanceKm)
	}
	if c.Risk.ConcurrentTasks < 1 {
		return fmt.Errorf("invalid configuration: risk concurrent_tasks must be >= 1, got %d", c.Risk.ConcurrentTasks)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
