package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"findash/internal/alert"
	"findash/internal/auditlog"
	"findash/internal/dashboard/console"
	"findash/internal/subscription"
)

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func subsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subs",
		Short: "List subscriptions and the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if err := d.RefreshSubscriptions(cmd.Context()); err != nil {
				return err
			}
			items := d.Subs.Snapshot().Items
			if a.asJSON {
				return a.printJSON(subscription.Snapshot{Subs: items, Balance: d.Balance()})
			}
			w := a.table()
			fmt.Fprintln(w, "ID\tPLAN\tSTATUS\tPRICE")
			for _, s := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%s\n", s.ID, s.Plan, s.Status, s.Price.StringFixed(2))
			}
			fmt.Fprintf(w, "\t\tbalance\t$%s\n", d.Balance().StringFixed(2))
			return w.Flush()
		},
	}
	for _, action := range []subscription.Action{subscription.ActionPause, subscription.ActionResume, subscription.ActionCancel} {
		cmd.AddCommand(subsActionCmd(a, action))
	}
	return cmd
}

func subsActionCmd(a *app, action subscription.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: fmt.Sprintf("Apply %q to a subscription", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if err := d.RefreshSubscriptions(cmd.Context()); err != nil {
				return err
			}
			changed, err := d.MutateSubscription(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(a.out, "%s: nothing to %s\n", args[0], action)
				return nil
			}
			s, _ := d.Subs.Get(args[0])
			fmt.Fprintf(a.out, "%s %s is now %s (balance $%s)\n", s.ID, s.Plan, s.Status, d.Balance().StringFixed(2))
			return nil
		},
	}
}

func alertsCmd(a *app) *cobra.Command {
	var level, query string
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List unresolved alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if err := d.RefreshAlerts(cmd.Context()); err != nil {
				return err
			}
			items := d.Alerts.Filter(alert.Level(level), query)
			if a.asJSON {
				return a.printJSON(items)
			}
			w := a.table()
			fmt.Fprintln(w, "ID\tLEVEL\tTYPE\tMESSAGE")
			for _, al := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", al.ID, al.Level, al.Category, al.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only this level (info, warning, error, critical)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "message substring")

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Errorf("invalid alert id %q", args[0])
			}
			d := a.dashboard()
			if err := d.RefreshAlerts(cmd.Context()); err != nil {
				return err
			}
			if err := d.Alerts.Resolve(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "alert %d resolved\n", id)
			return nil
		},
	})
	return cmd
}

func logsCmd(a *app) *cobra.Command {
	var (
		limit int
		types []string
		query string
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := auditlog.Query{Limit: limit, Search: query}
			for _, t := range types {
				q.Categories = append(q.Categories, auditlog.Category(t))
			}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}
			entries, err := a.gateway().ListLogs(cmd.Context(), q)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(entries)
			}
			w := a.table()
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Local().Format("Jan 02 15:04:05"), e.Category, e.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "max entries")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "entry types")
	cmd.Flags().StringVarP(&query, "query", "q", "", "message substring")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <type> <message...>",
		Short: "Append an entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := auditlog.Category(args[0])
			if !cat.Valid() {
				return errors.Errorf("invalid log type %q", args[0])
			}
			e, err := a.gateway().AppendLog(cmd.Context(), cat, strings.Join(args[1:], " "), nil)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(e)
			}
			fmt.Fprintf(a.out, "#%d %s %s\n", e.ID, e.Category, e.Message)
			return nil
		},
	})
	return cmd
}

func walletCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet [address...]",
		Short: "Show wallet balances and prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboardFor(args)
			if err := d.RefreshBalances(cmd.Context()); err != nil {
				return err
			}
			wallets := d.Wallets.Snapshot().Items
			prices := d.Prices()
			if a.asJSON {
				return a.printJSON(map[string]interface{}{"wallets": wallets, "prices": prices})
			}
			w := a.table()
			fmt.Fprintln(w, "ADDRESS\tETH\tUSDC\tUSD\tSOURCE")
			for _, b := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%s\t%s\n", b.Address, b.ETH.String(), b.USDC.String(), b.USDValue.StringFixed(2), b.Source)
			}
			fmt.Fprintln(w)
			for _, sym := range []string{"ETH", "BTC"} {
				if q, ok := prices[sym]; ok {
					fmt.Fprintf(w, "%s\t$%s\t%s\n", sym, q.Price.StringFixed(2), q.Source)
				}
			}
			return w.Flush()
		},
	}
}

func askCmd(a *app) *cobra.Command {
	var pick int
	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Ask the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.ConfirmDelay = 0
			d := a.dashboard()
			if err := d.RefreshSubscriptions(cmd.Context()); err != nil {
				return err
			}
			d.Console.Open()
			defer d.Console.Close()

			msg, err := d.Console.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if msg.Kind != console.KindCard {
				fmt.Fprintln(a.out, msg.Text)
				return nil
			}
			if pick > 0 {
				if err := d.Console.Select(cmd.Context(), msg.Seq, pick-1); err != nil {
					return err
				}
				for _, m := range d.Console.Messages() {
					if m.Seq == msg.Seq && m.Role == console.RoleAssistant {
						msg = m
					}
				}
			}
			if a.asJSON {
				return a.printJSON(msg)
			}
			if msg.Card == nil {
				fmt.Fprintln(a.out, msg.Text)
				return nil
			}
			fmt.Fprintf(a.out, "[%s] %s\n%s\n", msg.Card.Variant, msg.Card.Title, msg.Card.Description)
			for i, act := range msg.Card.Actions {
				fmt.Fprintf(a.out, "  %d) %s\n", i+1, act.Label)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pick, "select", 0, "run the numbered card action")
	return cmd
}

func actCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "act <label...>",
		Short: `Run a quick action such as "Cancel Netflix"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			if err := d.RefreshSubscriptions(cmd.Context()); err != nil {
				return err
			}
			if err := d.RefreshAlerts(cmd.Context()); err != nil {
				return err
			}
			if err := d.ExecuteAction(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			for _, e := range d.Relay.List(auditlog.Query{Limit: 1}) {
				fmt.Fprintln(a.out, e.Message)
			}
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the backend and stream activity until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.dashboard()
			entries, unsubscribe := d.Relay.Subscribe(64)
			defer unsubscribe()

			if err := d.Refresh(cmd.Context()); err != nil {
				a.log.WithError(err).Warn("initial refresh failed")
			}
			k := d.KPIs()
			fmt.Fprintf(a.out, "treasury $%s  active %d  alerts %d  actions %d\n", k.Treasury.StringFixed(2), k.ActiveSubscriptions, k.Alerts, k.Actions)

			if err := d.Start(); err != nil {
				return err
			}
			defer d.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case e, ok := <-entries:
					if !ok {
						return nil
					}
					fmt.Fprintf(a.out, "%s %-7s %s\n", e.Timestamp.Local().Format("15:04:05"), e.Category, e.Message)
				}
			}
		},
	}
}
