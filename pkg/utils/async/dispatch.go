package async

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Dispatch runs handler in its own goroutine on a context that is not
// cancelled with ctx. The returned channel receives the handler's error (nil
// on success) exactly once. A panic is recovered and reported as an error.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) <-chan error {
	newCtx := newBackgroundContext(ctx)
	result := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				ctxlog.From(newCtx).Error("panic in dispatched handler",
					"recover", r,
					"stack", string(stack),
				)
				result <- goerr.New("panic in dispatched handler", goerr.V("recover", fmt.Sprint(r)))
			}
		}()

		result <- handler(newCtx)
	}()

	return result
}

// newBackgroundContext keeps the values of ctx, including the ctxlog logger,
// and drops its cancellation
func newBackgroundContext(ctx context.Context) context.Context {
	newCtx := context.WithoutCancel(ctx)
	return ctxlog.With(newCtx, ctxlog.From(ctx))
}
