package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/nightlift/internal/infra/config"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuthInterceptor creates an interceptor that validates admin tokens
// on the mutating ElevatorService methods. An empty configured token leaves
// the service open.
func NewAdminAuthInterceptor(cfg config.ServerConfig) connect.UnaryInterceptorFunc {
	if cfg.AdminToken == "" {
		zlog.Warn().Msg("api: no admin token configured, control methods are unauthenticated")
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if cfg.AdminToken == "" || !mutatingProcedures[req.Spec().Procedure] {
				return next(ctx, req)
			}

			token := req.Header().Get(AdminTokenHeader)
			if token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing admin token"))
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) != 1 {
				zlog.Warn().Msgf("api: rejected admin token: procedure=%s peer=%s", req.Spec().Procedure, req.Peer().Addr)
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid admin token"))
			}

			return next(ctx, req)
		}
	}
}

// NewRateLimitInterceptor creates an interceptor that throttles the mutating
// ElevatorService methods with one shared token bucket.
func NewRateLimitInterceptor(cfg config.ServerConfig) connect.UnaryInterceptorFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst)

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if mutatingProcedures[req.Spec().Procedure] && !limiter.Allow() {
				return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("too many control requests"))
			}
			return next(ctx, req)
		}
	}
}
