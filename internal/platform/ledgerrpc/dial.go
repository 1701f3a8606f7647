package ledgerrpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "Bearer "
)

// bearerToken attaches the identity token to every call.
type bearerToken struct {
	token string
}

func (b bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authorizationHeader: bearerPrefix + b.token}, nil
}

// RequireTransportSecurity is false so local and test ledgers can run
// without TLS; production deployments terminate TLS in front of the ledger.
func (bearerToken) RequireTransportSecurity() bool {
	return false
}

// DialOptions returns the client options used for every ledger connection.
func DialOptions(token string) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerToken{token: token}))
	}
	return opts
}

// Dial creates a lazily connecting client; it does not block on the network
// so an unreachable ledger surfaces as commit failures, not a startup error.
func Dial(addr, token string, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("ledger address is required")
	}
	conn, err := grpc.NewClient(addr, append(DialOptions(token), extra...)...)
	if err != nil {
		return nil, fmt.Errorf("dial ledger %s: %w", addr, err)
	}
	return conn, nil
}

// BearerFromContext extracts the bearer token from incoming metadata.
func BearerFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, value := range md.Get(authorizationHeader) {
		if strings.HasPrefix(value, bearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix)), true
		}
	}
	return "", false
}

// WaitForHealth blocks until the health check reports SERVING or ctx ends.
func WaitForHealth(ctx context.Context, conn grpc.ClientConnInterface, logf func(string, ...any)) error {
	client := healthpb.NewHealthClient(conn)
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for ledger health: %v", err)
			} else {
				logf("waiting for ledger health: status %s", resp.GetStatus().String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for ledger health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}
