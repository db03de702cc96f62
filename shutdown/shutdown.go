package shutdown

import (
	"context"
	"os/signal"
)

// Context returns a context cancelled on the first interrupt or terminate
// signal. A second signal gets the default behaviour and kills the process.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
