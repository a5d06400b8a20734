package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/veridict/veridict/src/common"
)

// Config holds the node-level settings. The outer config package maps these
// from files and flags.
type Config struct {
	EpochInterval  time.Duration `mapstructure:"epoch-interval"`
	TCPTimeout     time.Duration `mapstructure:"timeout"`
	CacheSize      int           `mapstructure:"cache-size"`
	HopLimit       int           `mapstructure:"hop-limit"`
	PrivacyBudget  float64       `mapstructure:"privacy-budget"`
	VoteCost       float64       `mapstructure:"vote-cost"`
	BudgetInterval time.Duration `mapstructure:"budget-interval"`
	Logger         *logrus.Logger
}

// NewConfig ...
func NewConfig(epochInterval time.Duration,
	timeout time.Duration,
	cacheSize int,
	hopLimit int,
	privacyBudget float64,
	voteCost float64,
	budgetInterval time.Duration,
	logger *logrus.Logger) *Config {

	return &Config{
		EpochInterval:  epochInterval,
		TCPTimeout:     timeout,
		CacheSize:      cacheSize,
		HopLimit:       hopLimit,
		PrivacyBudget:  privacyBudget,
		VoteCost:       voteCost,
		BudgetInterval: budgetInterval,
		Logger:         logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		EpochInterval:  1000 * time.Millisecond,
		TCPTimeout:     1000 * time.Millisecond,
		CacheSize:      5000,
		HopLimit:       4,
		PrivacyBudget:  10.0,
		VoteCost:       1.0,
		BudgetInterval: 60 * time.Second,
		Logger:         logger,
	}
}

// TestConfig ...
func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.EpochInterval = 100 * time.Millisecond
	config.Logger = common.NewTestLogger(t)
	return config
}
