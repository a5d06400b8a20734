package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veridict/veridict/src/veridict"
)

//NewRunCmd returns the command that starts a Veridict node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runVeridict,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runVeridict(cmd *cobra.Command, args []string) error {
	engine := veridict.NewVeridict(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Optional file to duplicate log output to")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for veridict node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for veridict node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")
	cmd.Flags().Bool("websocket", _config.WebSocket, "Use WebSocket transport instead of TCP")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP API service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in LRU caches")

	// Node configuration
	cmd.Flags().Duration("epoch-interval", _config.EpochInterval, "Time between epoch boundaries")
	cmd.Flags().Int("hop-limit", _config.HopLimit, "Max number of gossip relays per envelope")
	cmd.Flags().Float64("privacy-budget", _config.PrivacyBudget, "Per-identity disclosure allowance")
	cmd.Flags().Float64("vote-cost", _config.VoteCost, "Privacy budget debited per vote")
	cmd.Flags().Duration("budget-interval", _config.BudgetInterval, "Privacy budget replenishment period")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":        _config.DataDir,
		"BindAddr":       _config.BindAddr,
		"AdvertiseAddr":  _config.AdvertiseAddr,
		"ServiceAddr":    _config.ServiceAddr,
		"NoService":      _config.NoService,
		"MaxPool":        _config.MaxPool,
		"Store":          _config.Store,
		"LogLevel":       _config.LogLevel,
		"Moniker":        _config.Moniker,
		"EpochInterval":  _config.EpochInterval,
		"TCPTimeout":     _config.TCPTimeout,
		"CacheSize":      _config.CacheSize,
		"HopLimit":       _config.HopLimit,
		"PrivacyBudget":  _config.PrivacyBudget,
		"VoteCost":       _config.VoteCost,
		"BudgetInterval": _config.BudgetInterval,
		"WebSocket":      _config.WebSocket,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/veridict.toml (.json, .yaml also work)
	viper.SetConfigName("veridict")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
