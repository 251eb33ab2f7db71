// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"decred.org/kernelprov/client/kernel"
	"github.com/decred/dcrd/dcrutil/v4"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "kernelprov.conf"
	defaultLogFilename    = "kernelprov.log"
	defaultLogDirname     = "logs"
	defaultEnvFilename    = ".env"
	defaultNetwork        = "testnet"
	defaultLogLevel       = "info"
	defaultMaxLogRolls    = 8
)

var (
	appDir            = dcrutil.AppDataDir("kernelprov", false)
	defaultConfigPath = filepath.Join(appDir, defaultConfigFilename)

	gweiFactor = big.NewInt(1e9)
)

// config defines the configuration options for kernelprov.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir  string `short:"A" long:"appdata" description:"Path to application directory"`
	Config      string `short:"C" long:"config" description:"Path to configuration file"`
	EnvFile     string `long:"envfile" description:"Path to a .env file that may set PRIVATE_KEY. Missing files are ignored."`

	Net        string `long:"net" description:"Network to provision on (mainnet, testnet, simnet)"`
	RPCURL     string `long:"rpcurl" description:"Chain JSON-RPC URL. Overrides the network default."`
	BundlerURL string `long:"bundlerurl" description:"Bundler JSON-RPC URL. Overrides the network default."`
	ChainID    int64  `long:"chainid" description:"Expected chain ID. Overrides the network default."`
	Contracts  string `long:"contracts" description:"Path to an INI file of contract addresses that override the network defaults"`

	Salt     string `long:"salt" description:"Account salt as a decimal or 0x-prefixed hex integer"`
	InitData string `long:"initdata" description:"Hex-encoded account initialization data passed to the factory"`

	DeployGas        uint64        `long:"deploygas" description:"Gas limit of the createAccount transaction"`
	RPCTimeout       time.Duration `long:"rpctimeout" description:"Timeout of each RPC call"`
	InclusionTimeout time.Duration `long:"inclusiontimeout" description:"Time to wait for transactions and user operations to be included"`
	PollInterval     time.Duration `long:"pollinterval" description:"Interval between receipt requests"`
	Retries          int           `long:"retries" description:"Number of retries of read-only calls"`
	MaxFeeGwei       float64       `long:"maxfeegwei" description:"Max fee per gas in gwei. Requires --maxtipgwei. The node's suggested gas price is used if not set."`
	MaxTipGwei       float64       `long:"maxtipgwei" description:"Max priority fee per gas in gwei. Requires --maxfeegwei."`

	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical, off}, or a list of SUBSYS=level pairs"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	MaxLogRolls   int    `long:"maxlogrolls" description:"Maximum number of rolled log files to keep"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable logging to a file"`

	Journal string `long:"journal" description:"Path to a run journal database. Runs are not recorded if not set."`
	History int    `long:"history" description:"Print the N most recent runs from the journal and exit"`
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// configure parses command line options and a config file if present. Returns
// an instantiated *config, a bool that is true if there is nothing further to
// do (i.e. version was printed and we can exit), or a parsing error, in that
// order.
func configure() (*config, bool, error) {
	stop := true
	cfg := &config{
		AppDataDir:       appDir,
		Config:           defaultConfigPath,
		EnvFile:          defaultEnvFilename,
		Net:              defaultNetwork,
		DebugLevel:       defaultLogLevel,
		MaxLogRolls:      defaultMaxLogRolls,
		DeployGas:        aakernel.DefaultDeploymentGas,
		RPCTimeout:       aakernel.DefaultRPCTimeout,
		InclusionTimeout: aakernel.DefaultInclusionTimeout,
		PollInterval:     aakernel.DefaultReceiptPollInterval,
		Retries:          aakernel.DefaultRetryAttempts,
	}
	preParser := flags.NewParser(cfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return nil, stop, nil
		}
		return nil, false, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if cfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil, stop, nil
	}

	// A non-default appdata moves the default config file with it.
	if cfg.AppDataDir != appDir && cfg.Config == defaultConfigPath {
		cfg.Config = filepath.Join(cfg.AppDataDir, defaultConfigFilename)
	}
	cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
	cfg.Config = cleanAndExpandPath(cfg.Config)

	parser := flags.NewParser(cfg, flags.Default)

	if fileExists(cfg.Config) {
		// Load additional config from file.
		err = flags.NewIniParser(parser).ParseFile(cfg.Config)
		if err != nil {
			return nil, false, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, false, err
	}
	if len(remainingArgs) > 0 {
		return nil, false, fmt.Errorf("unexpected arguments: %v", remainingArgs)
	}

	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDataDir, defaultLogDirname)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.EnvFile = cleanAndExpandPath(cfg.EnvFile)
	cfg.Contracts = cleanAndExpandPath(cfg.Contracts)
	cfg.Journal = cleanAndExpandPath(cfg.Journal)
	if cfg.History < 0 {
		return nil, false, fmt.Errorf("--history must not be negative")
	}

	return cfg, false, nil
}

// kernelConfig builds the provisioning configuration from the network
// defaults and the command line options.
func kernelConfig(cfg *config) (*kernel.Config, error) {
	net, err := aa.NetFromString(cfg.Net)
	if err != nil {
		return nil, err
	}
	kcfg := kernel.NewConfig(net)
	if cfg.RPCURL != "" {
		kcfg.RPCURL = cfg.RPCURL
	}
	if cfg.BundlerURL != "" {
		kcfg.BundlerURL = cfg.BundlerURL
	}
	if cfg.ChainID != 0 {
		kcfg.ChainID = cfg.ChainID
	}
	if cfg.Contracts != "" {
		if !fileExists(cfg.Contracts) {
			return nil, fmt.Errorf("contracts file %s not found", cfg.Contracts)
		}
		c, err := aakernel.LoadContracts(cfg.Contracts, &kcfg.Contracts)
		if err != nil {
			return nil, err
		}
		kcfg.Contracts = *c
	}
	if cfg.Salt != "" {
		salt, ok := new(big.Int).SetString(cfg.Salt, 0)
		if !ok {
			return nil, fmt.Errorf("invalid salt %q", cfg.Salt)
		}
		kcfg.Salt = salt
	}
	if cfg.InitData != "" {
		kcfg.InitData, err = hex.DecodeString(strings.TrimPrefix(cfg.InitData, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid init data: %w", err)
		}
	}
	kcfg.DeploymentGas = cfg.DeployGas
	kcfg.RPCTimeout = cfg.RPCTimeout
	kcfg.InclusionTimeout = cfg.InclusionTimeout
	kcfg.ReceiptPollInterval = cfg.PollInterval
	kcfg.RetryAttempts = cfg.Retries
	if cfg.MaxFeeGwei != 0 {
		kcfg.MaxFeePerGas = gweiToWei(cfg.MaxFeeGwei)
	}
	if cfg.MaxTipGwei != 0 {
		kcfg.MaxPriorityFeePerGas = gweiToWei(cfg.MaxTipGwei)
	}
	return kcfg, kcfg.Validate()
}

// gweiToWei converts a gwei amount to wei, truncating fractional wei.
func gweiToWei(gwei float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), new(big.Float).SetInt(gweiFactor)).Int(nil)
	return wei
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}
