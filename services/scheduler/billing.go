package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const runTimeout = 10 * time.Minute

// Billing generates the challans of the current month for every school, on a cron schedule.
type Billing struct {
	cron     *cron.Cron
	schedule string
	svc      fee.Service
	logger   core.Logger
}

func NewBilling(conf *core.Config, svc fee.Service, logger core.Logger) *Billing {
	return &Billing{
		cron:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		schedule: conf.Billing.Schedule,
		svc:      svc,
		logger:   logger,
	}
}

// Start registers the billing job and starts the scheduler in its own goroutine.
func (b *Billing) Start() error {
	if _, err := b.cron.AddFunc(b.schedule, b.run); err != nil {
		return errors.Wrapf(err, "scheduling billing %q", b.schedule)
	}
	b.cron.Start()
	b.logger.Info(fmt.Sprintf("billing scheduled: %q", b.schedule))
	return nil
}

// Stop stops the scheduler and returns a context done once the running job, if any, completed.
func (b *Billing) Stop() context.Context {
	return b.cron.Stop()
}

func (b *Billing) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := b.RunOnce(ctx, fee.NowFunc().UTC()); err != nil {
		b.logger.Error(fmt.Sprintf("scheduled billing: %v", err), err)
	}
}

// RunOnce bills every school for the month of now, without extra fee heads.
// A failing school is logged and does not stop the others; the first error is returned.
func (b *Billing) RunOnce(ctx context.Context, now time.Time) (map[string]fee.GenerationResult, error) {
	schoolIDs, err := b.svc.QuerySchoolIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}

	month, year := fee.MonthOf(now), now.Year()
	results := make(map[string]fee.GenerationResult, len(schoolIDs))
	var firstErr error
	for _, schoolID := range schoolIDs {
		res, err := b.svc.GenerateChallansForMonth(ctx, schoolID, month, year, nil)
		if err != nil {
			b.logger.Error(fmt.Sprintf("school %s: generating challans for %s %d: %v", schoolID, month, year, err), err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "school %s", schoolID)
			}
			continue
		}
		results[schoolID] = res
	}
	return results, firstErr
}
