package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
)

var errInvalidControlToken = errors.New("missing or invalid control token")

// NewControlAuthInterceptor creates an interceptor that validates the control
// token of control procedures. Read-only procedures pass through.
// An empty token disables the check.
func NewControlAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token == "" || !IsControlProcedure(req.Spec().Procedure) {
				return next(ctx, req)
			}

			got := req.Header().Get(ControlTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errInvalidControlToken)
			}

			return next(ctx, req)
		}
	}
}
