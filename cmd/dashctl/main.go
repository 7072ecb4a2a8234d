// dashctl is the headless dashboard: the same stores, pollers and console
// the web page has, driven from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"findash/internal/config"
	"findash/internal/dashboard"
	"findash/internal/dashboard/gateway"
	"findash/pkg/httpx"
	"findash/pkg/logger"
)

type app struct {
	cfg      *config.ClientConfig
	log      *logrus.Logger
	asJSON   bool
	rollback bool
	out      io.Writer
}

func (a *app) gateway() *gateway.Gateway {
	client := httpx.New(httpx.Options{Name: "dashboard", Timeout: a.cfg.Timeout, Logger: a.log})
	return gateway.New(client, a.cfg.APIURL, a.log)
}

func (a *app) dashboard() *dashboard.Dashboard {
	return a.dashboardFor(nil)
}

// dashboardFor watches the given wallets, or the configured demo wallet.
func (a *app) dashboardFor(wallets []string) *dashboard.Dashboard {
	if len(wallets) == 0 {
		wallets = []string{a.cfg.WalletAddress}
	}
	return dashboard.New(a.gateway(), dashboard.Options{
		User:         a.cfg.UserID,
		Wallets:      wallets,
		AlertPoll:    a.cfg.AlertPoll,
		BalancePoll:  a.cfg.BalancePoll,
		LogPoll:      a.cfg.LogPoll,
		ConfirmDelay: a.cfg.ConfirmDelay,
		Rollback:     a.rollback,
		Logger:       a.log,
	})
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{cfg: config.LoadClient(), out: out}
	var level string

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Headless financial dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = logger.New(level)
			a.log.SetOutput(os.Stderr)
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.APIURL, "api", a.cfg.APIURL, "backend base URL")
	root.PersistentFlags().StringVar(&a.cfg.UserID, "user", a.cfg.UserID, "dashboard user id")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON")
	root.PersistentFlags().BoolVar(&a.rollback, "rollback", false, "undo optimistic changes when the backend rejects them")
	root.PersistentFlags().StringVar(&level, "log-level", "warn", "log level")

	root.AddCommand(
		subsCmd(a),
		alertsCmd(a),
		logsCmd(a),
		walletCmd(a),
		askCmd(a),
		actCmd(a),
		watchCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
