// Package async holds small concurrency helpers shared by the node's
// long-running services.
package async

import (
	"context"
	"reflect"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "async")

// RunEvery invokes f once per period from its own goroutine until the
// context is done. The first invocation fires one period after the call.
// The node uses this for background reporting tasks that must never
// block the caller.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	task := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.WithField("task", task).Trace("Running periodic task")
				f()
			case <-ctx.Done():
				log.WithField("task", task).Debug("Stopping periodic task")
				return
			}
		}
	}()
}
