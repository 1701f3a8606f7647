package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"habitsync/internal/bootstrap"
	"habitsync/internal/platform/authtoken"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/config"
	"habitsync/internal/platform/ledgerrpc"
	"habitsync/internal/platform/logging"
)

const shutdownGrace = 20 * time.Second

type rootFlags struct {
	configPath string
	dataDir    string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "habitsync",
		Short:         "Timed habit sessions with streaks and synced goals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "habitsync.yaml", "config file (optional)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (overrides config)")

	root.AddCommand(newSessionCmd(flags))
	root.AddCommand(newGoalCmd(flags))
	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newLedgerCmd(flags))
	root.AddCommand(newTokenCmd(flags))
	root.AddCommand(newRemoteCmd(flags))
	return root
}

func loadConfig(flags *rootFlags) (config.Config, error) {
	return config.Load(flags.configPath, flags.dataDir)
}

// withApp runs fn against a fully wired app and drains pending saves
// before returning.
func withApp(ctx context.Context, flags *rootFlags, fn func(*bootstrap.App) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(app)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	return errors.Join(runErr, app.Close(closeCtx))
}

func newSessionCmd(flags *rootFlags) *cobra.Command {
	session := &cobra.Command{Use: "session", Short: "Record and inspect sessions"}

	var (
		sessionID      string
		actual, target time.Duration
		aimed          int
		wait           time.Duration
	)
	end := &cobra.Command{
		Use:   "end --actual <duration> --target <duration>",
		Short: "Record a completed session and wait for its outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				out, event, err := app.SessionCLI.End(cmd.Context(), sessionID, actual, target, aimed, wait)
				if err != nil && out.SessionID == "" {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "session %s (%s) estimate: %d points, time streak %d, daily streak %d\n",
					out.SessionID, out.Identity, out.Estimate.TotalPoints, out.Estimate.TimeStreak, out.Estimate.DailyStreak)
				switch {
				case err != nil:
					_, _ = fmt.Fprintf(w, "still saving in the background: %v\n", err)
				case event.Committed:
					_, _ = fmt.Fprintf(w, "saved: %d points (%d base + %d bonus), time streak %d, daily streak %d\n",
						event.Outcome.TotalPoints, event.Outcome.BasePoints, event.Outcome.BonusPoints, event.Outcome.TimeStreak, event.Outcome.DailyStreak)
				default:
					return fmt.Errorf("save failed: %s", event.Reason)
				}
				return nil
			})
		},
	}
	end.Flags().StringVar(&sessionID, "id", "", "session id (generated when empty)")
	end.Flags().DurationVar(&actual, "actual", 0, "time actually spent")
	end.Flags().DurationVar(&target, "target", 10*time.Minute, "target duration")
	end.Flags().IntVar(&aimed, "aimed", 1, "sessions aimed for per day")
	end.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the saved outcome")

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				entries, err := app.SessionCLI.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}
				for _, e := range entries {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%ds/%ds\t%d pts\tstreak %d/%d\n",
						e.OccurredAt.Format(time.RFC3339), e.SessionID, e.ActualDurationSec, e.TargetDurationSec,
						e.Outcome.TotalPoints, e.Outcome.TimeStreak, e.Outcome.DailyStreak)
				}
				return nil
			})
		},
	}
	history.Flags().IntVar(&limit, "limit", 20, "maximum entries")

	streak := &cobra.Command{
		Use:   "streak",
		Short: "Show the current streaks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				s, err := app.SessionCLI.Streak(cmd.Context())
				if err != nil {
					return err
				}
				last := s.LastQualifyingDate
				if last == "" {
					last = "never"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "time streak: %d\ndaily streak: %d\nlast qualifying day: %s\n", s.TimeStreak, s.DailyStreak, last)
				return nil
			})
		},
	}

	var exportDir string
	var exportLimit int
	export := &cobra.Command{
		Use:   "export --dir <path>",
		Short: "Write one markdown note per session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(exportDir) == "" {
				return fmt.Errorf("--dir is required")
			}
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				out, err := app.SessionCLI.Export(cmd.Context(), exportDir, exportLimit)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d notes, %d unchanged\n", len(out.Written), out.Skipped)
				return nil
			})
		},
	}
	export.Flags().StringVar(&exportDir, "dir", "", "target directory")
	export.Flags().IntVar(&exportLimit, "limit", 0, "maximum sessions (0 = history limit)")

	session.AddCommand(end, history, streak, export)
	return session
}

func newGoalCmd(flags *rootFlags) *cobra.Command {
	goal := &cobra.Command{Use: "goal", Short: "Show and change goal preferences"}

	goal.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current goals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				g, err := app.GoalCLI.Show(cmd.Context())
				if err != nil {
					return err
				}
				updated := "never"
				if !g.UpdatedAt.IsZero() {
					updated = g.UpdatedAt.Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "timeTargetMinutes: %d\ndailyFrequency: %d\nsource: %s\nupdated: %s\n",
					g.TimeTargetMinutes, g.DailyFrequency, g.Source, updated)
				return nil
			})
		},
	})

	goal.AddCommand(&cobra.Command{
		Use:   "set <timeTargetMinutes|dailyFrequency> <value>",
		Short: "Change one goal field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				result, err := app.GoalCLI.Set(cmd.Context(), args[0], value)
				if err != nil {
					return err
				}
				if result.Status != "committed" {
					return fmt.Errorf("%s stayed at %d (%s): %s", result.Field, result.Previous, result.Status, result.Reason)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d\n", result.Field, result.Previous, result.Next)
				return nil
			})
		},
	})
	return goal
}

func newTUICmd(flags *rootFlags) *cobra.Command {
	var target time.Duration
	var aimed int
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the session timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), flags, func(app *bootstrap.App) error {
				return bootstrap.RunTUI(app, int(target.Seconds()), aimed)
			})
		},
	}
	cmd.Flags().DurationVar(&target, "target", 0, "target duration (defaults to the goal)")
	cmd.Flags().IntVar(&aimed, "aimed", 0, "sessions aimed for per day (defaults to the goal)")
	return cmd
}

func newLedgerCmd(flags *rootFlags) *cobra.Command {
	ledger := &cobra.Command{Use: "ledger", Short: "Run the remote ledger"}

	var listen string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Ledger.ListenAddr = listen
			}
			log := logging.New(cfg.LogLevel, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := bootstrap.NewLedgerServer(ctx, cfg, log, clock.SystemClock{})
			if err != nil {
				return err
			}
			lis, err := net.Listen("tcp", cfg.Ledger.ListenAddr)
			if err != nil {
				_ = server.Stop()
				return fmt.Errorf("listen %s: %w", cfg.Ledger.ListenAddr, err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Serve(lis)
			}()
			select {
			case err := <-errCh:
				_ = server.Stop()
				return err
			case <-ctx.Done():
				log.Info("shutting down ledger")
				return server.Stop()
			}
		},
	}
	serve.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")

	ledger.AddCommand(serve)
	return ledger
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Manage ledger identity tokens"}

	var subject string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue --subject <user>",
		Short: "Issue a token signed with the ledger secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Ledger.TokenSecret) == "" {
				return fmt.Errorf("ledger token_secret is required")
			}
			signed, err := authtoken.Issue(authtoken.Config{Secret: []byte(cfg.Ledger.TokenSecret), Issuer: cfg.Ledger.TokenIssuer}, subject, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "subject", "", "user id the token identifies")
	issue.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")

	token.AddCommand(issue)
	return token
}

func newRemoteCmd(flags *rootFlags) *cobra.Command {
	remote := &cobra.Command{Use: "remote", Short: "Inspect the configured ledger"}

	var timeout time.Duration
	ping := &cobra.Command{
		Use:   "ping",
		Short: "Wait until the ledger reports healthy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			conn, err := ledgerrpc.Dial(cfg.Remote.Addr, cfg.Remote.Token)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			started := time.Now()
			if err := ledgerrpc.WaitForHealth(ctx, conn, nil); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ledger %s healthy in %s\n", cfg.Remote.Addr, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	ping.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait")

	remote.AddCommand(ping)
	return remote
}
