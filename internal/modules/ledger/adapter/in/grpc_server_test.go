package in_test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	ledgerinadapter "habitsync/internal/modules/ledger/adapter/in"
	ledgeroutadapter "habitsync/internal/modules/ledger/adapter/out"
	"habitsync/internal/modules/ledger/service"
	"habitsync/internal/modules/ledger/usecase"
	"habitsync/internal/platform/authtoken"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/ledgerrpc"
	"habitsync/internal/platform/logging"
	"habitsync/internal/platform/tx"
)

var tokenConfig = authtoken.Config{Secret: []byte("ledger-test"), Issuer: "habitsync-test"}

type ledgerFixture struct {
	lis *bufconn.Listener
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	db, err := ledgeroutadapter.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := ledgeroutadapter.NewSQLiteRepository(context.Background(), db)
	if err != nil {
		t.Fatalf("repository: %v", err)
	}
	log := logging.Discard()
	uc := usecase.NewInteractor(service.NewLedgerService(repo, tx.NewSQLManager(db), clock.SystemClock{}, log))

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(ledgerinadapter.AuthUnaryInterceptor(tokenConfig)))
	ledgerrpc.RegisterLedgerServer(server, ledgerinadapter.NewGRPCServer(uc, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(func() {
		server.Stop()
		_ = db.Close()
	})
	return &ledgerFixture{lis: lis}
}

func (f *ledgerFixture) conn(t *testing.T, token string) *grpc.ClientConn {
	t.Helper()
	conn, err := ledgerrpc.Dial("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return f.lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func (f *ledgerFixture) client(t *testing.T, subject string) ledgerrpc.LedgerClient {
	t.Helper()
	token, err := authtoken.Issue(tokenConfig, subject, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return ledgerrpc.NewLedgerClient(f.conn(t, token))
}

func commitRequest(ident, sessionID string, expected int64) *ledgerrpc.CommitSessionRequest {
	return &ledgerrpc.CommitSessionRequest{
		Session: ledgerrpc.Session{
			ID:                  sessionID,
			Identity:            ident,
			ActualDurationSec:   120,
			TargetDurationSec:   120,
			AimedSessionsPerDay: 1,
			OccurredAt:          time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		},
		Outcome: ledgerrpc.Outcome{
			SessionID:   sessionID,
			BasePoints:  100,
			BonusPoints: 10,
			TotalPoints: 110,
			TimeStreak:  int(expected) + 1,
			DailyStreak: 1,
		},
		Streak: ledgerrpc.Streak{
			TimeStreak:         int(expected) + 1,
			DailyStreak:        1,
			LastQualifyingDate: "2026-03-02",
			Version:            expected + 1,
		},
		ExpectedVersion: expected,
	}
}

func TestCallsWithoutTokenAreRejected(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	client := ledgerrpc.NewLedgerClient(f.conn(t, ""))

	_, err := client.GetStreak(context.Background())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestForeignTokenIsRejected(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	token, err := authtoken.Issue(authtoken.Config{Secret: []byte("elsewhere"), Issuer: tokenConfig.Issuer}, "eve", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	client := ledgerrpc.NewLedgerClient(f.conn(t, token))

	_, err = client.GetGoals(context.Background())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestHealthCheckNeedsNoToken(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	resp, err := healthpb.NewHealthClient(f.conn(t, "")).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %s", resp.GetStatus())
	}
}

func TestCommitIsVersionCheckedAndIdempotent(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	client := f.client(t, "alice")
	ctx := context.Background()

	first, err := client.CommitSession(ctx, commitRequest("user:alice", "s-1", 0))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if first.Duplicate || first.Outcome.TotalPoints != 110 {
		t.Fatalf("unexpected first commit %+v", first)
	}

	again, err := client.CommitSession(ctx, commitRequest("user:alice", "s-1", 0))
	if err != nil {
		t.Fatalf("duplicate commit: %v", err)
	}
	if !again.Duplicate || again.Outcome != first.Outcome {
		t.Fatalf("expected stored outcome back, got %+v", again)
	}

	_, err = client.CommitSession(ctx, commitRequest("user:alice", "s-2", 0))
	if status.Code(err) != codes.Aborted {
		t.Fatalf("expected aborted for stale version, got %v", err)
	}

	streak, err := client.GetStreak(ctx)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	if streak.Streak.Version != 1 || streak.Streak.TimeStreak != 1 {
		t.Fatalf("unexpected streak %+v", streak.Streak)
	}

	found, err := client.LookupOutcome(ctx, &ledgerrpc.LookupOutcomeRequest{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found.Found || found.Outcome != first.Outcome {
		t.Fatalf("lookup returned %+v", found)
	}
	missing, err := client.LookupOutcome(ctx, &ledgerrpc.LookupOutcomeRequest{SessionID: "s-2"})
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if missing.Found {
		t.Fatalf("rejected commit must not be stored")
	}
}

func TestCommitForAnotherIdentityIsDenied(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	client := f.client(t, "alice")

	_, err := client.CommitSession(context.Background(), commitRequest("user:bob", "s-1", 0))
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCommitWithInconsistentTotalIsInvalid(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	client := f.client(t, "alice")
	req := commitRequest("user:alice", "s-1", 0)
	req.Outcome.TotalPoints = 999

	_, err := client.CommitSession(context.Background(), req)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestHistoryIsNewestFirstAndScopedToCaller(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	alice := f.client(t, "alice")
	bob := f.client(t, "bob")
	ctx := context.Background()

	for i, id := range []string{"a-1", "a-2"} {
		if _, err := alice.CommitSession(ctx, commitRequest("user:alice", id, int64(i))); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
	}
	if _, err := bob.CommitSession(ctx, commitRequest("user:bob", "b-1", 0)); err != nil {
		t.Fatalf("commit bob: %v", err)
	}

	resp, err := alice.ListHistory(ctx, &ledgerrpc.ListHistoryRequest{Limit: 10})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].Session.ID != "a-2" || resp.Entries[1].Session.ID != "a-1" {
		t.Fatalf("unexpected history %+v", resp.Entries)
	}
	if resp.Entries[0].RecordedAt.IsZero() {
		t.Fatalf("recorded time missing")
	}
}

func TestGoalWritesResolvePerFieldLastWriterWins(t *testing.T) {
	t.Parallel()
	f := newLedger(t)
	client := f.client(t, "dana")
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := client.UpdateGoal(ctx, &ledgerrpc.UpdateGoalRequest{Field: "timeTargetMinutes", Value: 25, UpdatedAt: t0.Add(time.Minute)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale, err := client.UpdateGoal(ctx, &ledgerrpc.UpdateGoalRequest{Field: "timeTargetMinutes", Value: 5, UpdatedAt: t0})
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if stale.Applied || stale.Goal.TimeTargetMinutes != 25 {
		t.Fatalf("older write must lose, got %+v", stale)
	}
	// An older write to a different field still lands.
	other, err := client.UpdateGoal(ctx, &ledgerrpc.UpdateGoalRequest{Field: "dailyFrequency", Value: 3, UpdatedAt: t0})
	if err != nil {
		t.Fatalf("other field: %v", err)
	}
	if !other.Applied || other.Goal.DailyFrequency != 3 || other.Goal.TimeTargetMinutes != 25 {
		t.Fatalf("unexpected goal %+v", other.Goal)
	}

	_, err = client.UpdateGoal(ctx, &ledgerrpc.UpdateGoalRequest{Field: "dailyFrequency", Value: 0, UpdatedAt: t0.Add(time.Hour)})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
