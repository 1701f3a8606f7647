package in

import (
	"context"
	"errors"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"habitsync/internal/modules/ledger/dto"
	ledgerin "habitsync/internal/modules/ledger/port/in"
	"habitsync/internal/platform/authtoken"
	apperrors "habitsync/internal/platform/errors"
	"habitsync/internal/platform/identity"
	"habitsync/internal/platform/ledgerrpc"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

type identityKey struct{}

// AuthUnaryInterceptor verifies the bearer token on every ledger call and
// stores the caller's identity on the context. Health checks are exempt.
func AuthUnaryInterceptor(cfg authtoken.Config) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		token, ok := ledgerrpc.BearerFromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		claims, err := authtoken.Verify(cfg, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(context.WithValue(ctx, identityKey{}, identity.User(claims.Subject).String()), req)
	}
}

func callerIdentity(ctx context.Context) (string, error) {
	ident, ok := ctx.Value(identityKey{}).(string)
	if !ok || ident == "" {
		return "", status.Error(codes.Unauthenticated, "no authenticated identity")
	}
	return ident, nil
}

type GRPCServer struct {
	usecase ledgerin.Usecase
	log     hclog.Logger
}

func NewGRPCServer(usecase ledgerin.Usecase, log hclog.Logger) *GRPCServer {
	return &GRPCServer{usecase: usecase, log: log.Named("ledger.rpc")}
}

var _ ledgerrpc.LedgerServer = (*GRPCServer)(nil)

func (s *GRPCServer) LookupOutcome(ctx context.Context, in *ledgerrpc.LookupOutcomeRequest) (*ledgerrpc.LookupOutcomeResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	entry, found, err := s.usecase.Lookup(ctx, ident, in.SessionID)
	if err != nil {
		return nil, s.toStatus("lookup", err)
	}
	if !found {
		return &ledgerrpc.LookupOutcomeResponse{}, nil
	}
	return &ledgerrpc.LookupOutcomeResponse{Found: true, Outcome: outcomeToWire(entry)}, nil
}

func (s *GRPCServer) GetStreak(ctx context.Context, _ *ledgerrpc.Empty) (*ledgerrpc.GetStreakResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	streak, err := s.usecase.Streak(ctx, ident)
	if err != nil {
		return nil, s.toStatus("get streak", err)
	}
	return &ledgerrpc.GetStreakResponse{Streak: ledgerrpc.Streak(streak)}, nil
}

func (s *GRPCServer) CommitSession(ctx context.Context, in *ledgerrpc.CommitSessionRequest) (*ledgerrpc.CommitSessionResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if in.Session.Identity != ident {
		return nil, status.Errorf(codes.PermissionDenied, "session identity %q does not match caller", in.Session.Identity)
	}
	if in.Outcome.SessionID != "" && in.Outcome.SessionID != in.Session.ID {
		return nil, status.Error(codes.InvalidArgument, "outcome belongs to another session")
	}
	out, err := s.usecase.Commit(ctx, dto.CommitInput{
		Entry: dto.Entry{
			Identity:            ident,
			SessionID:           in.Session.ID,
			ActualDurationSec:   in.Session.ActualDurationSec,
			TargetDurationSec:   in.Session.TargetDurationSec,
			AimedSessionsPerDay: in.Session.AimedSessionsPerDay,
			OccurredAt:          in.Session.OccurredAt,
			BasePoints:          in.Outcome.BasePoints,
			BonusPoints:         in.Outcome.BonusPoints,
			TotalPoints:         in.Outcome.TotalPoints,
			TimeStreak:          in.Outcome.TimeStreak,
			DailyStreak:         in.Outcome.DailyStreak,
		},
		Streak:          dto.Streak(in.Streak),
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return nil, s.toStatus("commit", err)
	}
	return &ledgerrpc.CommitSessionResponse{Outcome: outcomeToWire(out.Entry), Duplicate: out.Duplicate}, nil
}

func (s *GRPCServer) ListHistory(ctx context.Context, in *ledgerrpc.ListHistoryRequest) (*ledgerrpc.ListHistoryResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.usecase.History(ctx, ident, in.Limit)
	if err != nil {
		return nil, s.toStatus("list history", err)
	}
	resp := &ledgerrpc.ListHistoryResponse{Entries: make([]ledgerrpc.HistoryEntry, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, ledgerrpc.HistoryEntry{
			Session: ledgerrpc.Session{
				ID:                  entry.SessionID,
				Identity:            entry.Identity,
				ActualDurationSec:   entry.ActualDurationSec,
				TargetDurationSec:   entry.TargetDurationSec,
				AimedSessionsPerDay: entry.AimedSessionsPerDay,
				OccurredAt:          entry.OccurredAt,
			},
			Outcome:    outcomeToWire(entry),
			RecordedAt: entry.RecordedAt,
		})
	}
	return resp, nil
}

func (s *GRPCServer) GetGoals(ctx context.Context, _ *ledgerrpc.Empty) (*ledgerrpc.GetGoalsResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	goal, err := s.usecase.Goal(ctx, ident)
	if err != nil {
		return nil, s.toStatus("get goals", err)
	}
	return &ledgerrpc.GetGoalsResponse{Goal: ledgerrpc.Goal(goal)}, nil
}

func (s *GRPCServer) UpdateGoal(ctx context.Context, in *ledgerrpc.UpdateGoalRequest) (*ledgerrpc.UpdateGoalResponse, error) {
	ident, err := callerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.usecase.UpdateGoal(ctx, dto.UpdateGoalInput{Identity: ident, Field: in.Field, Value: in.Value, Source: in.Source, UpdatedAt: in.UpdatedAt})
	if err != nil {
		return nil, s.toStatus("update goal", err)
	}
	return &ledgerrpc.UpdateGoalResponse{Goal: ledgerrpc.Goal(out.Goal), Applied: out.Applied}, nil
}

func (s *GRPCServer) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		s.log.Error("ledger call failed", "op", op, "error", err)
		return status.Error(codes.Internal, op+" failed")
	}
}

func outcomeToWire(entry dto.Entry) ledgerrpc.Outcome {
	return ledgerrpc.Outcome{
		SessionID:   entry.SessionID,
		BasePoints:  entry.BasePoints,
		BonusPoints: entry.BonusPoints,
		TotalPoints: entry.TotalPoints,
		TimeStreak:  entry.TimeStreak,
		DailyStreak: entry.DailyStreak,
	}
}
