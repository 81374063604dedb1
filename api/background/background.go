package background

import (
	"context"
	"sync"

	"github.com/osanval/cafeto/errlog"
	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks spawned by handlers and waits
// for them on shutdown.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Run executes fn on its own goroutine. Panics and errors are logged,
// never propagated to the spawning request.
func (b *Background) Run(name string, fn func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.Errorf("background task %s panicked: %v", name, rec)
			}
		}()

		if err := fn(); err != nil {
			errlog.Diagnostic(b.log, "background:"+name, err, nil)
		}
	}()
}

// Shutdown blocks until all running tasks complete or ctx expires.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
