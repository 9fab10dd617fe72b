package httpapi

import (
	"context"
	"errors"
	"net/http"
)

var errShuttingDown = errors.New("server shutting down")

// baseCtx is canceled when the server begins shutting down.
var baseCtx = context.Background()

// SetBaseContext installs the shutdown context; nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseCtx = ctx
}

// opContext derives the context of one operation from its request, so
// request-scoped values survive. It ends on client disconnect, on shutdown
// and after opTimeout.
func opContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(baseCtx, func() { cancel(errShuttingDown) })
	tcancel := context.CancelFunc(func() {})
	if opTimeout > 0 {
		ctx, tcancel = context.WithTimeout(ctx, opTimeout)
	}
	return ctx, func() {
		tcancel()
		stop()
		cancel(nil)
	}
}

// abandoned reports whether nobody is left to read the response.
func abandoned(r *http.Request) bool {
	return r.Context().Err() != nil || baseCtx.Err() != nil
}
