// Package config assembles the coordinator's Config struct from CLI flags,
// an ini file, and built-in defaults, the way loopd assembles its own
// daemon config (spec §9: "swapd" as a long-running process analogous to
// loopd).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/lncfg"
)

var (
	swapDirBase = btcutil.AppDataDir("swapd", false)

	defaultNetwork        = "mainnet"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogDir         = filepath.Join(swapDirBase, defaultLogDirname)
	defaultConfigFilename = "swapd.conf"

	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// defaultPeerResponseWindow is the number of native-chain blocks a
	// swap's counterparty gets to answer a handshake or contract message
	// before the swap is considered expired (spec §4.2, PeerResponseWindow).
	defaultPeerResponseWindow = uint32(144)

	// defaultMinLockWindow is the minimum number of native-chain blocks
	// that must remain between a swap's peer_response_height and a
	// proposed Lock kernel's MaxHeight for the coordinator to accept the
	// proposal (spec §4.3).
	defaultMinLockWindow = uint32(72)

	// defaultMinNativeConfs is the default native-chain confirmation depth
	// setting for sub-tx kernel proofs (spec §4.4). swapfsm does not read
	// it: a sub-tx counts as confirmed as soon as the node gateway reports
	// a confirmation height for it.
	defaultMinNativeConfs = uint32(3)

	// defaultForeignLockSafetyMargin is the number of foreign-chain blocks
	// added to the foreign chain's current height when deriving the
	// foreign HTLC's own lock time (spec §6.2,
	// foreignswap.Adapter.InitLockTime's safetyMargin parameter).
	defaultForeignLockSafetyMargin = int64(6)
)

// NativeNodeConfig describes how to reach the native chain's node, mirroring
// the shape lnd client config takes in the rest of this dependency stack.
type NativeNodeConfig struct {
	Host        string `long:"host" description:"native chain node rpc address"`
	APIKey      string `long:"apikey" description:"API key for the native chain node's wallet owner API"`
	TLSPath     string `long:"tlspath" description:"Path to the native chain node's tls certificate"`
	MacaroonDir string `long:"macaroondir" description:"Path to the directory containing the native chain node's macaroons, if any"`
}

// ForeignNodeConfig describes how to reach the foreign chain's node. It is
// shaped exactly like lnd's own client config since the foreign side is, in
// the deployments this coordinator targets, an lnd-family node reached
// through lndclient's wallet/chain-notifier/signer clients.
type ForeignNodeConfig struct {
	Host        string `long:"host" description:"lnd instance rpc address"`
	MacaroonDir string `long:"macaroondir" description:"Path to the directory containing all the required lnd macaroons"`
	TLSPath     string `long:"tlspath" description:"Path to lnd tls certificate"`
}

// Config is the coordinator's top-level configuration, assembled by
// go-flags from CLI flags and an optional ini file.
type Config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Network     string `long:"network" description:"network to run on" choice:"regtest" choice:"testnet" choice:"mainnet" choice:"simnet"`

	SwapDir    string `long:"swapdir" description:"The directory for all of swapd's data."`
	ConfigFile string `long:"configfile" description:"Path to configuration file."`
	DataDir    string `long:"datadir" description:"Directory for the parameter store and swap database."`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	PeerResponseWindow uint32 `long:"peerresponsewindow" description:"Native-chain blocks a counterparty gets to answer a handshake or contract message before a swap is treated as expired"`

	MinLockWindow  uint32 `long:"minlockwindow" description:"Minimum native-chain blocks required between a swap's peer-response height and a proposed Lock kernel's max height"`
	MinNativeConfs uint32 `long:"minnativeconfs" description:"Native-chain confirmation depth setting for sub-tx kernel proofs (the swap state machine treats a reported confirmation height as final and does not read it)"`

	ForeignLockSafetyMargin int64 `long:"foreignlocksafetymargin" description:"Foreign-chain blocks added to the current foreign height when deriving the foreign HTLC's lock time"`

	NativeNode  *NativeNodeConfig  `group:"nativenode" namespace:"nativenode"`
	ForeignNode *ForeignNodeConfig `group:"foreignnode" namespace:"foreignnode"`
}

// DefaultConfig returns a Config populated with every built-in default.
func DefaultConfig() Config {
	return Config{
		Network:                 defaultNetwork,
		SwapDir:                 swapDirBase,
		ConfigFile:              filepath.Join(swapDirBase, defaultNetwork, defaultConfigFilename),
		DataDir:                 swapDirBase,
		LogDir:                  defaultLogDir,
		MaxLogFiles:             defaultMaxLogFiles,
		MaxLogFileSize:          defaultMaxLogFileSize,
		DebugLevel:              defaultLogLevel,
		PeerResponseWindow:      defaultPeerResponseWindow,
		MinLockWindow:           defaultMinLockWindow,
		MinNativeConfs:          defaultMinNativeConfs,
		ForeignLockSafetyMargin: defaultForeignLockSafetyMargin,
		NativeNode:              &NativeNodeConfig{},
		ForeignNode:             &ForeignNodeConfig{Host: "localhost:10009"},
	}
}

// Load parses the CLI flags and, if present, the ini file they (or the
// default location) point at, the same two-pass way loopd does: CLI flags
// are parsed first so --configfile can be honored, the ini file is parsed
// next and tolerated if missing, and CLI flags are parsed a second time so
// they take precedence over anything the ini file set.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// flags.Default includes PrintErrors|HelpFlag|PassDoubleDash; a --help
	// invocation surfaces as a *flags.Error with Type ErrHelp, which the
	// caller checks for and treats as a clean exit rather than a failure.
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	swapDir := lncfg.CleanAndExpandPath(cfg.SwapDir)
	if swapDir != swapDirBase {
		cfg.ConfigFile = filepath.Join(swapDir, cfg.Network, defaultConfigFilename)
	}

	if err := flags.IniParse(cfg.ConfigFile, &cfg); err != nil {
		// A parse error in an existing file is fatal; a missing file
		// is not, since most deployments run on defaults alone.
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}
	}

	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate cleans up the paths in cfg, applies the swapdir-overrides-
// datadir/logdir rule loopd follows, and namespaces the data and log
// directories by network.
func Validate(cfg *Config) error {
	cfg.SwapDir = lncfg.CleanAndExpandPath(cfg.SwapDir)
	cfg.DataDir = lncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = lncfg.CleanAndExpandPath(cfg.LogDir)

	logDirSet := cfg.LogDir != defaultLogDir
	dataDirSet := cfg.DataDir != swapDirBase
	swapDirSet := cfg.SwapDir != swapDirBase

	if swapDirSet {
		if logDirSet {
			return fmt.Errorf("swapdir overwrites logdir, please only set one value")
		}

		if dataDirSet {
			return fmt.Errorf("swapdir overwrites datadir, please only set one value")
		}

		cfg.DataDir = cfg.SwapDir
		cfg.LogDir = filepath.Join(cfg.SwapDir, defaultLogDirname)
	}

	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.Network)

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.LogDir, os.ModePerm); err != nil {
		return err
	}

	if cfg.MinNativeConfs == 0 {
		return fmt.Errorf("minnativeconfs must be at least 1")
	}

	return nil
}
