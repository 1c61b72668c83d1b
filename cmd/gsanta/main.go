// gsanta is the command line client of the confidential gift exchange.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tos-network/gsanta/cmd/utils"
	"github.com/tos-network/gsanta/internal/flags"
	"github.com/urfave/cli/v2"
)

const (
	clientIdentifier = "gsanta" // Client identifier printed by the version command
)

var (
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""
	// The app that holds all commands and flags.
	app = flags.NewApp(gitCommit, gitDate, "the confidential Secret Santa command line interface")
)

func init() {
	app.Action = func(ctx *cli.Context) error { return cli.ShowAppHelp(ctx) }
	app.Flags = utils.GlobalFlags
	app.Commands = []*cli.Command{
		createCommand,
		revealCommand,
		listCommand,
		statsCommand,
		checkCommand,
		serveCommand,
		dumpConfigCommand,
		versionCommand,
		licenseCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		utils.SetupLogging(ctx)
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		utils.SetupMetrics(cfg.Metrics)
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns the context a command runs in: cancelled on
// interrupt and bounded by --timeout.
func commandContext(ctx *cli.Context) (context.Context, context.CancelFunc) {
	base, stop := signalContext()
	timeout := ctx.Duration(utils.TimeoutFlag.Name)
	if timeout <= 0 {
		return base, stop
	}
	timed, cancel := context.WithTimeout(base, timeout)
	return timed, func() {
		cancel()
		stop()
	}
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
