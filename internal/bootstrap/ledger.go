package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ledgerinadapter "habitsync/internal/modules/ledger/adapter/in"
	ledgeroutadapter "habitsync/internal/modules/ledger/adapter/out"
	ledgerservice "habitsync/internal/modules/ledger/service"
	ledgerusecase "habitsync/internal/modules/ledger/usecase"
	"habitsync/internal/platform/authtoken"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/config"
	"habitsync/internal/platform/ledgerrpc"
	"habitsync/internal/platform/tx"
)

// LedgerServer is the remote ledger: gRPC over a SQLite database.
type LedgerServer struct {
	server *grpc.Server
	health *health.Server
	db     *sql.DB
	log    hclog.Logger
}

func NewLedgerServer(ctx context.Context, cfg config.Config, log hclog.Logger, clk clock.Clock) (*LedgerServer, error) {
	if strings.TrimSpace(cfg.Ledger.TokenSecret) == "" {
		return nil, errors.New("ledger token_secret is required")
	}
	db, err := ledgeroutadapter.OpenSQLite(cfg.LedgerDBPath())
	if err != nil {
		return nil, err
	}
	repo, err := ledgeroutadapter.NewSQLiteRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("new ledger repository: %w", err)
	}
	uc := ledgerusecase.NewInteractor(ledgerservice.NewLedgerService(repo, tx.NewSQLManager(db), clk, log))

	verifier := authtoken.Config{Secret: []byte(cfg.Ledger.TokenSecret), Issuer: cfg.Ledger.TokenIssuer}
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(ledgerinadapter.AuthUnaryInterceptor(verifier)),
	)
	ledgerrpc.RegisterLedgerServer(server, ledgerinadapter.NewGRPCServer(uc, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &LedgerServer{server: server, health: healthServer, db: db, log: log.Named("ledger")}, nil
}

// Serve blocks until the listener fails or Stop is called.
func (s *LedgerServer) Serve(lis net.Listener) error {
	s.log.Info("ledger listening", "addr", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve ledger: %w", err)
	}
	return nil
}

func (s *LedgerServer) Stop() error {
	s.health.Shutdown()
	s.server.GracefulStop()
	return s.db.Close()
}
