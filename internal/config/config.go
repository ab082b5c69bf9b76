package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string
	Environment   string
	Database      DatabaseConfig
	Migration     MigrationConfig
	Engine        EngineConfig
}

type DatabaseConfig struct {
	Driver   string // "mysql" or "sqlite3"
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Params   string
	// Path is used by the sqlite3 driver only.
	Path string
}

type MigrationConfig struct {
	Dir string
}

// EngineConfig holds the match engine tuning knobs. Defaults reproduce the
// dashboard behaviour; override per deployment via .env.
type EngineConfig struct {
	// DateWindowDays bounds how far apart a statement item and a ledger
	// entry may be and still pair.
	DateWindowDays int
	// AmountTolerance is the absolute difference treated as an exact match.
	AmountTolerance float64
	// FeeTolerance is the largest delta explainable as a transaction fee.
	FeeTolerance float64
	// MaxCombinationSize caps one-to-many / many-to-one group sizes.
	MaxCombinationSize int
	// MaxCombinationCandidates caps the candidate pool per combination
	// search so the pass stays bounded on large batches.
	MaxCombinationCandidates int
	// FuzzyConfidenceFloor is the minimum confidence an advisory fuzzy
	// proposal needs to be accepted.
	FuzzyConfidenceFloor float64
	// RunBudget bounds a full run's wall clock.
	RunBudget time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Environment-only deployments carry no .env file.
		log.Printf("WARN: no .env file loaded: %v", err)
	}

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_PARAMS", "parseTime=true")
	viper.SetDefault("MIGRATION_DIR", "migrations")
	viper.SetDefault("ENGINE_DATE_WINDOW_DAYS", 3)
	viper.SetDefault("ENGINE_AMOUNT_TOLERANCE", 0.01)
	viper.SetDefault("ENGINE_FEE_TOLERANCE", 15.00)
	viper.SetDefault("ENGINE_MAX_COMBINATION_SIZE", 3)
	viper.SetDefault("ENGINE_MAX_COMBINATION_CANDIDATES", 25)
	viper.SetDefault("ENGINE_FUZZY_CONFIDENCE_FLOOR", 0.5)
	viper.SetDefault("ENGINE_RUN_BUDGET", "5s")

	config := &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		Database: DatabaseConfig{
			Driver:   viper.GetString("DB_DRIVER"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			Params:   viper.GetString("DB_PARAMS"),
			Path:     viper.GetString("DB_PATH"),
		},
		Migration: MigrationConfig{
			Dir: viper.GetString("MIGRATION_DIR"),
		},
		Engine: EngineConfig{
			DateWindowDays:           viper.GetInt("ENGINE_DATE_WINDOW_DAYS"),
			AmountTolerance:          viper.GetFloat64("ENGINE_AMOUNT_TOLERANCE"),
			FeeTolerance:             viper.GetFloat64("ENGINE_FEE_TOLERANCE"),
			MaxCombinationSize:       viper.GetInt("ENGINE_MAX_COMBINATION_SIZE"),
			MaxCombinationCandidates: viper.GetInt("ENGINE_MAX_COMBINATION_CANDIDATES"),
			FuzzyConfidenceFloor:     viper.GetFloat64("ENGINE_FUZZY_CONFIDENCE_FLOOR"),
			RunBudget:                viper.GetDuration("ENGINE_RUN_BUDGET"),
		},
	}

	return config, nil
}

// GetDSN returns the DSN string for the configured driver.
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite3" {
		return c.Database.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations.
func (c *Config) GetMigrationDBURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}
