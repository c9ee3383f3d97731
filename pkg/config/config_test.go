package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env: "test",
		Hazard: HazardConfig{
			MasterSeed:          42,
			SourceModelPath:     "source_model.yaml",
			SESPerLogicTreePath: 5,
			InvestigationTime:   50,
			IMTs:                []string{"PGA"},
			TruncationLevel:     3,
			MaxDistanceKm:       200,
			ConcurrentTasks:     8,
		},
		Risk: RiskConfig{
			MaxDistanceKm:   5,
			ConcurrentTasks: 8,
		},
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "zero event sets",
			mutate:  func(c *Config) { c.Hazard.SESPerLogicTreePath = 0 },
			wantMsg: "ses_per_logic_tree_path",
		},
		{
			name:    "negative investigation time",
			mutate:  func(c *Config) { c.Hazard.InvestigationTime = -1 },
			wantMsg: "investigation_time",
		},
		{
			name:    "missing source model",
			mutate:  func(c *Config) { c.Hazard.SourceModelPath = "" },
			wantMsg: "source_model",
		},
		{
			name:    "no intensity measure types",
			mutate:  func(c *Config) { c.Hazard.IMTs = nil },
			wantMsg: "intensity measure type",
		},
		{
			name:    "zero hazard distance",
			mutate:  func(c *Config) { c.Hazard.MaxDistanceKm = 0 },
			wantMsg: "maximum_distance_km",
		},
		{
			name:    "zero hazard tasks",
			mutate:  func(c *Config) { c.Hazard.ConcurrentTasks = 0 },
			wantMsg: "concurrent_tasks",
		},
		{
			name:    "zero risk distance",
			mutate:  func(c *Config) { c.Risk.MaxDistanceKm = 0 },
			wantMsg: "maximum_distance_km",
		},
		{
			name:    "zero risk tasks",
			mutate:  func(c *Config) { c.Risk.ConcurrentTasks = 0 },
			wantMsg: "concurrent_tasks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"PGA", "SA(0.1)"}, splitCSV("PGA, SA(0.1)"))
	assert.Equal(t, []string{"PGA"}, splitCSV("PGA,"))
	assert.Nil(t, splitCSV(""))
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "tremor",
		Password: "s3cret",
		Database: "tremor_engine",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=tremor password=s3cret dbname=tremor_engine sslmode=require",
		db.ConnectionString())
}
