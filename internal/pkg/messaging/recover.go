package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/jbcast/internal/pkg/stacktrace"
)

// dispatch runs handler, turning a panic into an error, then applies the ack policy.
func dispatch(ctx context.Context, kind string, handler Handler, msg Message, autoAck bool) {
	herr := callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, msg)
	})
	if !autoAck {
		return
	}

	var err error
	if herr == nil {
		err = msg.Ack(ctx)
	} else {
		err = msg.Nack(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to settle message", "kind", kind, "source", msg.Source(), "error", err)
	}
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}
