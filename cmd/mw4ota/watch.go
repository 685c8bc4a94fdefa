package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// watch checks for updates at start and then on the configured schedule
// until ctx is cancelled. A check still running when the next one is due is
// skipped.
func (a *app) watch(ctx context.Context) error {
	cl := cronLogger{g: a.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	check := func() {
		if err := a.update(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("scheduled update failed", "error", err)
		}
	}

	if _, err := c.AddFunc(a.cfg.Watch.Schedule, check); err != nil {
		return fmt.Errorf("watch schedule %q: %w", a.cfg.Watch.Schedule, err)
	}

	a.log.Info("watching for firmware updates", "schedule", a.cfg.Watch.Schedule)
	check()

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	a.log.Info("watch stopped")
	return nil
}
