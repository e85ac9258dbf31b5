package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun returns the duration until expr next fires. Returns 0 on parse error.
func NextRun(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := time.Until(sched.Next(time.Now()))
	if d < 0 {
		return 0
	}
	return d
}

// StartRetention prunes rows older than retention on schedule until ctx is
// cancelled. A non-positive retention disables pruning.
func (j *Journal) StartRetention(ctx context.Context, schedule string, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(schedule, func() {
		n, err := j.Prune(ctx, time.Now().UTC().Add(-retention))
		if err != nil {
			j.log.Warn("journal prune failed", "error", err)
			return
		}
		j.log.Info("journal pruned", "rows", n, "retention", retention)
	})
	if err != nil {
		return fmt.Errorf("journal: cleanup schedule %q: %w", schedule, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
