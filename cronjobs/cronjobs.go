package cronjobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reclassifier recomputes ETA statuses and reports how many changed.
type Reclassifier interface {
	Reclassify() int
}

// InitCronJobs schedules the periodic ETA reclassification and starts the
// scheduler. The caller stops it on shutdown.
func InitCronJobs(r Reclassifier, interval time.Duration, log *zap.Logger) (*cron.Cron, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log = log.Named("cron")
	log.Info("starting cron jobs", zap.Duration("etaTick", interval))

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))

	// ETA tick: statuses move from on_time to approaching to due as wall time passes.
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := r.Reclassify(); n > 0 {
			log.Debug("CronJob: ETA statuses changed", zap.Int("changed", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling ETA tick: %w", err)
	}

	c.Start()
	return c, nil
}

// cronLogger adapts zap to cron's logger interface.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
