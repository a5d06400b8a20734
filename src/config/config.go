package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/veridict/veridict/src/common"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the
	// validator's private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file containing the peer
	// set
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel       = "debug"
	DefaultBindAddr       = "127.0.0.1:1337"
	DefaultServiceAddr    = "127.0.0.1:8000"
	DefaultEpochInterval  = 1000 * time.Millisecond
	DefaultTCPTimeout     = 1000 * time.Millisecond
	DefaultCacheSize      = 10000
	DefaultMaxPool        = 2
	DefaultHopLimit       = 4
	DefaultStore          = false
	DefaultWebSocket      = false
	DefaultPrivacyBudget  = 10.0
	DefaultVoteCost       = 1.0
	DefaultBudgetInterval = 60 * time.Second
)

// Config contains all the configuration properties of a Veridict node.
type Config struct {
	// DataDir is the top-level directory containing Veridict configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates log output to the given file.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServeMux of the http package.
	ServiceAddr string `mapstructure:"service-listen"`

	// EpochInterval is the duration of an epoch. At each epoch boundary the
	// node folds the observed judgment blocks into a Merkle batch and runs a
	// voting round on its root.
	EpochInterval time.Duration `mapstructure:"epoch-interval"`

	// MaxPool controls how many connections are pooled per target in the
	// gossip routines.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of gossip RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HopLimit bounds how many times an envelope is relayed through the
	// epidemic broadcast.
	HopLimit int `mapstructure:"hop-limit"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// PrivacyBudget is the per-identity disclosure allowance. Every vote
	// debits VoteCost from it; an exhausted identity's votes are dropped
	// until the next replenishment.
	PrivacyBudget float64 `mapstructure:"privacy-budget"`

	// VoteCost is the privacy budget debited per vote.
	VoteCost float64 `mapstructure:"vote-cost"`

	// BudgetInterval is the replenishment period of privacy budgets.
	BudgetInterval time.Duration `mapstructure:"budget-interval"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// WebSocket selects the WebSocket transport instead of plain TCP.
	// BindAddr and AdvertiseAddr keep their meaning.
	WebSocket bool `mapstructure:"websocket"`

	// Key is the private key of the validator.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       DefaultLogLevel,
		BindAddr:       DefaultBindAddr,
		ServiceAddr:    DefaultServiceAddr,
		EpochInterval:  DefaultEpochInterval,
		TCPTimeout:     DefaultTCPTimeout,
		CacheSize:      DefaultCacheSize,
		MaxPool:        DefaultMaxPool,
		HopLimit:       DefaultHopLimit,
		Store:          DefaultStore,
		DatabaseDir:    DefaultDatabaseDir(),
		WebSocket:      DefaultWebSocket,
		PrivacyBudget:  DefaultPrivacyBudget,
		VoteCost:       DefaultVoteCost,
		BudgetInterval: DefaultBudgetInterval,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level Veridict directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitly
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeersFile returns the full path of the file containing the peer set.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "veridict".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				if level <= c.logger.Level {
					pathMap[level] = c.LogFile
				}
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(logrus.JSONFormatter)))
		}
	}
	return c.logger.WithField("prefix", "veridict")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Veridict
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Veridict")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Veridict")
		} else {
			return filepath.Join(home, ".veridict")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
