package bootstrap

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	goaloutadapter "habitsync/internal/modules/goal/adapter/out"
	goalout "habitsync/internal/modules/goal/port/out"
	sessionoutadapter "habitsync/internal/modules/session/adapter/out"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/platform/authtoken"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/config"
	"habitsync/internal/platform/guestvault"
	"habitsync/internal/platform/id"
	"habitsync/internal/platform/identity"
	"habitsync/internal/platform/ledgerrpc"
)

// Stores is the one store pair a process uses, bound to one identity.
type Stores struct {
	Identity identity.Identity
	Remote   bool
	Sessions sessionout.SessionStore
	Goals    goalout.GoalStore
	close    func() error
}

func (s Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// ResolveStores picks the remote ledger when an address and a token are
// configured and the guest vault otherwise. The choice is made once.
func ResolveStores(ctx context.Context, cfg config.Config, loc *time.Location, clk clock.Clock, ids id.Generator, dialOpts ...grpc.DialOption) (Stores, error) {
	if cfg.Authenticated() {
		subject, err := authtoken.PeekSubject(cfg.Remote.Token)
		if err != nil {
			return Stores{}, fmt.Errorf("remote token: %w", err)
		}
		conn, err := ledgerrpc.Dial(cfg.Remote.Addr, cfg.Remote.Token, dialOpts...)
		if err != nil {
			return Stores{}, err
		}
		client := ledgerrpc.NewLedgerClient(conn)
		ident := identity.User(subject)
		return Stores{
			Identity: ident,
			Remote:   true,
			Sessions: sessionoutadapter.NewRemoteSessionStore(client, ident, loc),
			Goals:    goaloutadapter.NewRemoteGoalStore(client),
			close:    conn.Close,
		}, nil
	}

	vault := guestvault.Open(cfg.GuestVaultPath(), cfg.HistoryLimit)
	tag, err := vault.EnsureGuestTag(ctx, ids.New)
	if err != nil {
		return Stores{}, fmt.Errorf("guest identity: %w", err)
	}
	ident := identity.Guest(tag)
	return Stores{
		Identity: ident,
		Sessions: sessionoutadapter.NewGuestSessionStore(vault, ident, loc, clk),
		Goals:    goaloutadapter.NewGuestGoalStore(vault),
	}, nil
}
