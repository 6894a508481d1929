// Package config содержит логику чтения конфигурации библиотечного сервиса.
package config

import (
	"flag"
	"fmt"
	"math"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации библиотечного сервиса.
type Config struct {
	RunAddress     string  `env:"RUN_ADDRESS"`
	DatabaseURI    string  `env:"DATABASE_URI"`
	AuthSecret     string  `env:"AUTH_SECRET"`
	FinePerDay     float64 `env:"FINE_PER_DAY"`
	LoanPeriodDays int     `env:"LOAN_PERIOD_DAYS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envFinePerDay := cfg.FinePerDay
	envLoanPeriod := cfg.LoanPeriodDays

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth cookies")
	flag.Float64Var(&cfg.FinePerDay, "f", 5, "fine per day of late return")
	flag.IntVar(&cfg.LoanPeriodDays, "p", 7, "loan period in days")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envFinePerDay != 0 {
		cfg.FinePerDay = envFinePerDay
	}
	if envLoanPeriod != 0 {
		cfg.LoanPeriodDays = envLoanPeriod
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.FinePerDay < 0 {
		return nil, fmt.Errorf("fine per day must not be negative, got %v", cfg.FinePerDay)
	}
	if cfg.LoanPeriodDays <= 0 {
		return nil, fmt.Errorf("loan period must be positive, got %d", cfg.LoanPeriodDays)
	}

	return cfg, nil
}

// FinePerDayCents возвращает дневную ставку штрафа в копейках.
// Округление обязательно: ставка вроде 0.29 не представима точно в float64,
// и усечение потеряло бы копейку.
func (c *Config) FinePerDayCents() int64 {
	return int64(math.Round(c.FinePerDay * 100))
}
