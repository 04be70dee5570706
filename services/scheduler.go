// services/scheduler.go
package services

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// StartHousekeeping runs the matchmaking sweep and invite expiry on a
// gocron scheduler. The caller shuts the scheduler down.
func (c *Coordinator) StartHousekeeping(sweepInterval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, eris.Wrap(err, "create scheduler")
	}

	// Every sweep interval: expire stale queue entries
	if _, err := sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if n := c.SweepQueue(); n > 0 {
				logrus.WithField("expired", n).Info("[Scheduler] matchmaking sweep")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, eris.Wrap(err, "schedule queue sweep")
	}

	// Invites
	if _, err := sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			if n := c.ExpireInvites(); n > 0 {
				logrus.WithField("expired", n).Debug("[Scheduler] invite expiry")
			}
		}),
	); err != nil {
		return nil, eris.Wrap(err, "schedule invite expiry")
	}

	sched.Start()
	return sched, nil
}
