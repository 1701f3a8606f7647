// Package ledgerrpc is the wire contract of the remote ledger service. It
// uses gRPC with a JSON codec and hand-written service descriptors, so no
// generated stubs are involved.
package ledgerrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	serviceName   = "habitsync.ledger.v1.Ledger"
	jsonCodecName = "json"

	MethodLookupOutcome = "/" + serviceName + "/LookupOutcome"
	MethodGetStreak     = "/" + serviceName + "/GetStreak"
	MethodCommitSession = "/" + serviceName + "/CommitSession"
	MethodListHistory   = "/" + serviceName + "/ListHistory"
	MethodGetGoals      = "/" + serviceName + "/GetGoals"
	MethodUpdateGoal    = "/" + serviceName + "/UpdateGoal"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Session struct {
	ID                  string    `json:"id"`
	Identity            string    `json:"identity"`
	ActualDurationSec   int       `json:"actual_duration_sec"`
	TargetDurationSec   int       `json:"target_duration_sec"`
	AimedSessionsPerDay int       `json:"aimed_sessions_per_day"`
	OccurredAt          time.Time `json:"occurred_at"`
}

type Outcome struct {
	SessionID   string `json:"session_id"`
	BasePoints  int    `json:"base_points"`
	BonusPoints int    `json:"bonus_points"`
	TotalPoints int    `json:"total_points"`
	TimeStreak  int    `json:"time_streak"`
	DailyStreak int    `json:"daily_streak"`
}

type Streak struct {
	TimeStreak         int    `json:"time_streak"`
	DailyStreak        int    `json:"daily_streak"`
	LastQualifyingDate string `json:"last_qualifying_date"`
	Version            int64  `json:"version"`
}

type Goal struct {
	TimeTargetMinutes int       `json:"time_target_minutes"`
	DailyFrequency    int       `json:"daily_frequency"`
	UpdatedAt         time.Time `json:"updated_at"`
	Source            string    `json:"source"`
}

type LookupOutcomeRequest struct {
	SessionID string `json:"session_id"`
}

type LookupOutcomeResponse struct {
	Found   bool    `json:"found"`
	Outcome Outcome `json:"outcome"`
}

type GetStreakResponse struct {
	Streak Streak `json:"streak"`
}

// CommitSessionRequest carries a session, its computed outcome and the
// streak state it produces. The ledger applies it only when its stored
// streak version still equals ExpectedVersion.
type CommitSessionRequest struct {
	Session         Session `json:"session"`
	Outcome         Outcome `json:"outcome"`
	Streak          Streak  `json:"streak"`
	ExpectedVersion int64   `json:"expected_version"`
}

type CommitSessionResponse struct {
	Outcome   Outcome `json:"outcome"`
	Duplicate bool    `json:"duplicate"`
}

type ListHistoryRequest struct {
	Limit int `json:"limit"`
}

type HistoryEntry struct {
	Session    Session   `json:"session"`
	Outcome    Outcome   `json:"outcome"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ListHistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

type GetGoalsResponse struct {
	Goal Goal `json:"goal"`
}

type UpdateGoalRequest struct {
	Field     string    `json:"field"`
	Value     int       `json:"value"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateGoalResponse struct {
	Goal    Goal `json:"goal"`
	Applied bool `json:"applied"`
}

type LedgerServer interface {
	LookupOutcome(ctx context.Context, in *LookupOutcomeRequest) (*LookupOutcomeResponse, error)
	GetStreak(ctx context.Context, in *Empty) (*GetStreakResponse, error)
	CommitSession(ctx context.Context, in *CommitSessionRequest) (*CommitSessionResponse, error)
	ListHistory(ctx context.Context, in *ListHistoryRequest) (*ListHistoryResponse, error)
	GetGoals(ctx context.Context, in *Empty) (*GetGoalsResponse, error)
	UpdateGoal(ctx context.Context, in *UpdateGoalRequest) (*UpdateGoalResponse, error)
}

type LedgerClient interface {
	LookupOutcome(ctx context.Context, in *LookupOutcomeRequest) (*LookupOutcomeResponse, error)
	GetStreak(ctx context.Context) (*GetStreakResponse, error)
	CommitSession(ctx context.Context, in *CommitSessionRequest) (*CommitSessionResponse, error)
	ListHistory(ctx context.Context, in *ListHistoryRequest) (*ListHistoryResponse, error)
	GetGoals(ctx context.Context) (*GetGoalsResponse, error)
	UpdateGoal(ctx context.Context, in *UpdateGoalRequest) (*UpdateGoalResponse, error)
}

type ledgerClient struct {
	conn grpc.ClientConnInterface
}

func NewLedgerClient(conn grpc.ClientConnInterface) LedgerClient {
	return &ledgerClient{conn: conn}
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) LookupOutcome(ctx context.Context, in *LookupOutcomeRequest) (*LookupOutcomeResponse, error) {
	return invoke[LookupOutcomeResponse](ctx, c.conn, MethodLookupOutcome, in)
}

func (c *ledgerClient) GetStreak(ctx context.Context) (*GetStreakResponse, error) {
	return invoke[GetStreakResponse](ctx, c.conn, MethodGetStreak, &Empty{})
}

func (c *ledgerClient) CommitSession(ctx context.Context, in *CommitSessionRequest) (*CommitSessionResponse, error) {
	return invoke[CommitSessionResponse](ctx, c.conn, MethodCommitSession, in)
}

func (c *ledgerClient) ListHistory(ctx context.Context, in *ListHistoryRequest) (*ListHistoryResponse, error) {
	return invoke[ListHistoryResponse](ctx, c.conn, MethodListHistory, in)
}

func (c *ledgerClient) GetGoals(ctx context.Context) (*GetGoalsResponse, error) {
	return invoke[GetGoalsResponse](ctx, c.conn, MethodGetGoals, &Empty{})
}

func (c *ledgerClient) UpdateGoal(ctx context.Context, in *UpdateGoalRequest) (*UpdateGoalResponse, error) {
	return invoke[UpdateGoalResponse](ctx, c.conn, MethodUpdateGoal, in)
}

// unary builds a method descriptor that decodes Req and dispatches to call,
// honouring any configured server interceptor.
func unary[Req any, Resp any](name, fullMethod string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			impl, ok := srv.(LedgerServer)
			if !ok {
				return nil, fmt.Errorf("invalid server type %T", srv)
			}
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(impl, ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterLedgerServer(server grpc.ServiceRegistrar, impl LedgerServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*LedgerServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("LookupOutcome", MethodLookupOutcome, LedgerServer.LookupOutcome),
			unary("GetStreak", MethodGetStreak, LedgerServer.GetStreak),
			unary("CommitSession", MethodCommitSession, LedgerServer.CommitSession),
			unary("ListHistory", MethodListHistory, LedgerServer.ListHistory),
			unary("GetGoals", MethodGetGoals, LedgerServer.GetGoals),
			unary("UpdateGoal", MethodUpdateGoal, LedgerServer.UpdateGoal),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "habitsync/ledger/v1/ledger.proto",
	}, impl)
}
