package main

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"devleads/pipeline"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily full scan and price check on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return eris.Wrapf(err, "schedule: timezone %q", cfg.Schedule.Timezone)
		}

		c, err := newScheduler(ctx, loc, map[pipeline.Mode]string{
			pipeline.ModeFull:        cfg.Schedule.FullCron,
			pipeline.ModePriceUpdate: cfg.Schedule.PriceCron,
		}, runOnce)
		if err != nil {
			return err
		}

		c.Start()
		logger.Info("[scheduler] Started (%s): full=%q price_update=%q",
			loc, cfg.Schedule.FullCron, cfg.Schedule.PriceCron)
		<-ctx.Done()
		c.Stop()
		logger.Info("[scheduler] Stopped")
		return nil
	},
}

// newScheduler registers one cron job per mode. Jobs run one at a time; a
// job that fires while another is running waits for it.
func newScheduler(ctx context.Context, loc *time.Location, specs map[pipeline.Mode]string,
	run func(context.Context, pipeline.Mode) error) (*cron.Cron, error) {
	c := cron.NewWithLocation(loc)
	var mu sync.Mutex

	for _, mode := range []pipeline.Mode{pipeline.ModeFull, pipeline.ModePriceUpdate} {
		spec, ok := specs[mode]
		if !ok || spec == "" {
			continue
		}
		mode := mode
		err := c.AddFunc(spec, func() {
			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			logger.Info("[scheduler] Running %s job", mode)
			if err := run(ctx, mode); err != nil {
				logger.Error("[scheduler] %s job failed: %v", mode, err)
			}
		})
		if err != nil {
			return nil, eris.Wrapf(err, "schedule: %s spec %q", mode, spec)
		}
	}
	return c, nil
}
