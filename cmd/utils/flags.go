package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tos-network/gsanta/internal/flags"
	"github.com/tos-network/gsanta/santa/santaconfig"
	"github.com/tos-network/gsanta/wallet"
	"github.com/urfave/cli/v2"
)

// Ledger kinds selectable with --ledger.
const (
	LedgerLocal = "local"
	LedgerEth   = "eth"
)

// LedgerConfig selects and configures the ledger the records live on.
type LedgerConfig struct {
	Kind         string
	RPC          string
	Contract     common.Address
	ConfirmDelay time.Duration `toml:",omitempty"` // local ledger only
	Confirm      bool          // ask before signing every write
}

// KMSConfig configures the local key management service.
type KMSConfig struct {
	Key string `toml:",omitempty"` // hex encoded signer key, generated when empty
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr        string
	CORSOrigins []string `toml:",omitempty"`
}

// DefaultContract is the contract address the local ledger binds records to.
var DefaultContract = common.HexToAddress("0x5a17a00000000000000000000000000000000001")

// DefaultDataDir is the default data directory to use for the databases.
func DefaultDataDir() string {
	if home := flags.HomeDir(); home != "" {
		return filepath.Join(home, ".gsanta")
	}
	return ""
}

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.SantaCategory,
	}
	DataDirFlag = &cli.PathFlag{
		Name:     "datadir",
		Usage:    "Data directory for the local ledger and key store",
		Value:    DefaultDataDir(),
		Category: flags.SantaCategory,
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:     "timeout",
		Usage:    "Maximum duration of a command (0 = no limit)",
		Value:    2 * time.Minute,
		Category: flags.SantaCategory,
	}
	FetchConcurrencyFlag = &cli.IntFlag{
		Name:     "sync.concurrency",
		Usage:    "Maximum number of records fetched in parallel during a refresh",
		Value:    santaconfig.Defaults.FetchConcurrency,
		Category: flags.SantaCategory,
	}
	FetchRateFlag = &cli.Float64Flag{
		Name:     "sync.rate",
		Usage:    "Maximum record fetches per second during a refresh (0 = unlimited)",
		Value:    santaconfig.Defaults.FetchRate,
		Category: flags.SantaCategory,
	}

	// Ledger settings
	LedgerFlag = &cli.StringFlag{
		Name:     "ledger",
		Usage:    `Ledger holding the records ("local" or "eth")`,
		Value:    LedgerLocal,
		Category: flags.LedgerCategory,
	}
	RPCFlag = &cli.StringFlag{
		Name:     "rpc",
		Usage:    "JSON-RPC endpoint of the chain hosting the contract (eth ledger)",
		Value:    "http://localhost:8545",
		Category: flags.LedgerCategory,
	}
	ContractFlag = &cli.StringFlag{
		Name:     "contract",
		Usage:    "Address of the gift-exchange contract",
		Category: flags.LedgerCategory,
	}
	ConfirmDelayFlag = &cli.DurationFlag{
		Name:     "ledger.confirmdelay",
		Usage:    "Simulated confirmation delay of the local ledger",
		Category: flags.LedgerCategory,
	}
	ConfirmFlag = &cli.BoolFlag{
		Name:     "confirm",
		Usage:    "Ask for confirmation before signing a transaction",
		Category: flags.LedgerCategory,
	}

	// Wallet settings
	WalletKeyfileFlag = &cli.StringFlag{
		Name:     "wallet.keyfile",
		Usage:    "Encrypted JSON key file of the account to use",
		Category: flags.WalletCategory,
	}
	WalletPasswordFlag = &cli.StringFlag{
		Name:     "wallet.password",
		Usage:    "File containing the password of the key file",
		Category: flags.WalletCategory,
	}
	WalletKeyFlag = &cli.StringFlag{
		Name:     "wallet.key",
		Usage:    "Hex encoded private key of the account to use",
		Category: flags.WalletCategory,
	}
	KMSKeyFlag = &cli.StringFlag{
		Name:     "kms.key",
		Usage:    "Hex encoded signer key of the local key management service",
		Category: flags.WalletCategory,
	}

	// API settings
	HTTPListenAddrFlag = &cli.StringFlag{
		Name:     "http.addr",
		Usage:    "HTTP API listening address",
		Value:    "localhost:8547",
		Category: flags.APICategory,
	}
	HTTPCORSDomainFlag = &cli.StringFlag{
		Name:     "http.corsdomain",
		Usage:    "Comma separated list of domains from which to accept cross origin requests (browser enforced)",
		Category: flags.APICategory,
	}

	// Logging and debug settings
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	LogJSONFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON",
		Category: flags.LoggingCategory,
	}

	// Metrics flags
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	MetricsHTTPFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening interface",
		Value:    metrics.DefaultConfig.HTTP,
		Category: flags.MetricsCategory,
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:     "metrics.port",
		Usage:    "Metrics HTTP server listening port",
		Value:    metrics.DefaultConfig.Port,
		Category: flags.MetricsCategory,
	}
)

var (
	// GlobalFlags are accepted by every command.
	GlobalFlags = []cli.Flag{
		ConfigFileFlag,
		DataDirFlag,
		TimeoutFlag,
		FetchConcurrencyFlag,
		FetchRateFlag,
		LedgerFlag,
		RPCFlag,
		ContractFlag,
		ConfirmDelayFlag,
		ConfirmFlag,
		WalletKeyfileFlag,
		WalletPasswordFlag,
		WalletKeyFlag,
		KMSKeyFlag,
		VerbosityFlag,
		LogJSONFlag,
		MetricsEnabledFlag,
		MetricsHTTPFlag,
		MetricsPortFlag,
	}
	// HTTPFlags are accepted by the serve command.
	HTTPFlags = []cli.Flag{
		HTTPListenAddrFlag,
		HTTPCORSDomainFlag,
	}
)

// MakeDataDir retrieves the currently requested data directory, terminating
// if none (or the empty string) is specified.
func MakeDataDir(ctx *cli.Context) string {
	if path := ctx.Path(DataDirFlag.Name); path != "" {
		return path
	}
	Fatalf("Cannot determine default data directory, please set manually (--datadir)")
	return ""
}

// SetSantaConfig applies core related command line flags to the config.
func SetSantaConfig(ctx *cli.Context, cfg *santaconfig.Config) {
	if ctx.IsSet(FetchConcurrencyFlag.Name) {
		cfg.FetchConcurrency = ctx.Int(FetchConcurrencyFlag.Name)
	}
	if ctx.IsSet(FetchRateFlag.Name) {
		cfg.FetchRate = ctx.Float64(FetchRateFlag.Name)
	}
}

// SetLedgerConfig applies ledger related command line flags to the config.
func SetLedgerConfig(ctx *cli.Context, cfg *LedgerConfig) error {
	if ctx.IsSet(LedgerFlag.Name) || cfg.Kind == "" {
		cfg.Kind = ctx.String(LedgerFlag.Name)
	}
	switch cfg.Kind {
	case LedgerLocal, LedgerEth:
	default:
		return fmt.Errorf("unknown ledger %q, want %q or %q", cfg.Kind, LedgerLocal, LedgerEth)
	}
	if ctx.IsSet(RPCFlag.Name) || cfg.RPC == "" {
		cfg.RPC = ctx.String(RPCFlag.Name)
	}
	if ctx.IsSet(ContractFlag.Name) {
		hex := ctx.String(ContractFlag.Name)
		if !common.IsHexAddress(hex) {
			return fmt.Errorf("invalid contract address %q", hex)
		}
		cfg.Contract = common.HexToAddress(hex)
	}
	if cfg.Contract == (common.Address{}) {
		if cfg.Kind == LedgerEth {
			return fmt.Errorf("the eth ledger needs a contract address (--%s)", ContractFlag.Name)
		}
		cfg.Contract = DefaultContract
	}
	if ctx.IsSet(ConfirmDelayFlag.Name) {
		cfg.ConfirmDelay = ctx.Duration(ConfirmDelayFlag.Name)
	}
	if ctx.IsSet(ConfirmFlag.Name) {
		cfg.Confirm = ctx.Bool(ConfirmFlag.Name)
	}
	return nil
}

// SetWalletConfig applies wallet related command line flags to the config.
// A key file without a password file prompts for the password.
func SetWalletConfig(ctx *cli.Context, cfg *wallet.KeyConfig) {
	if ctx.IsSet(WalletKeyfileFlag.Name) {
		cfg.Keyfile = ctx.String(WalletKeyfileFlag.Name)
	}
	if ctx.IsSet(WalletKeyFlag.Name) {
		cfg.Key = ctx.String(WalletKeyFlag.Name)
	}
	if cfg.Keyfile != "" && cfg.Password == "" {
		cfg.Password = GetPassPhraseWithList("Unlocking "+cfg.Keyfile, false, 0, MakePasswordList(ctx))
	}
}

// SetKMSConfig applies key management related command line flags to the config.
func SetKMSConfig(ctx *cli.Context, cfg *KMSConfig) {
	if ctx.IsSet(KMSKeyFlag.Name) {
		cfg.Key = ctx.String(KMSKeyFlag.Name)
	}
}

// SetHTTPConfig applies HTTP API related command line flags to the config.
func SetHTTPConfig(ctx *cli.Context, cfg *HTTPConfig) {
	if ctx.IsSet(HTTPListenAddrFlag.Name) || cfg.Addr == "" {
		cfg.Addr = ctx.String(HTTPListenAddrFlag.Name)
	}
	if ctx.IsSet(HTTPCORSDomainFlag.Name) {
		cfg.CORSOrigins = SplitAndTrim(ctx.String(HTTPCORSDomainFlag.Name))
	}
}

// MakePasswordList reads password lines from the file specified by the global --wallet.password flag.
func MakePasswordList(ctx *cli.Context) []string {
	path := ctx.String(WalletPasswordFlag.Name)
	if path == "" {
		return nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		Fatalf("Failed to read password file: %v", err)
	}
	lines := strings.Split(string(text), "\n")
	// Sanitise DOS line endings.
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// SetupLogging installs the root log handler according to the logging flags.
func SetupLogging(ctx *cli.Context) {
	var handler log.Handler
	if ctx.Bool(LogJSONFlag.Name) {
		handler = log.StreamHandler(os.Stderr, log.JSONFormat())
	} else {
		var (
			output   = io.Writer(os.Stderr)
			usecolor = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
		)
		if usecolor {
			output = colorable.NewColorableStderr()
		}
		handler = log.StreamHandler(output, log.TerminalFormat(usecolor))
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(log.Lvl(ctx.Int(VerbosityFlag.Name)))
	log.Root().SetHandler(glogger)
}

// SetupMetrics starts the stand-alone metrics endpoint when metrics are on.
// Collection itself is switched on by the metrics package when it sees
// --metrics on the command line.
func SetupMetrics(cfg metrics.Config) {
	if !metrics.Enabled {
		if cfg.Enabled {
			log.Warn("Metrics enabled in the config file only, pass --metrics to collect them")
		}
		return
	}
	log.Info("Enabling metrics collection")
	if cfg.HTTP != "" {
		address := fmt.Sprintf("%s:%d", cfg.HTTP, cfg.Port)
		log.Info("Enabling stand-alone metrics HTTP endpoint", "address", address)
		exp.Setup(address)
	}
}
