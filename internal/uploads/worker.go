package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Purger removes expired anonymous uploads
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgeWorker runs the purge on a cron schedule. The system never purges on
// its own; expired records are only filtered out on lookup unless this
// worker is started.
type PurgeWorker struct {
	purger   Purger
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

func NewPurgeWorker(purger Purger, schedule string) *PurgeWorker {
	return &PurgeWorker{
		purger:   purger,
		schedule: schedule,
		timeout:  5 * time.Minute,
		cron:     cron.New(),
	}
}

// Start registers the job and starts the scheduler. Jobs are skipped while a
// previous run is still in progress.
func (w *PurgeWorker) Start(ctx context.Context) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).
		Then(cron.FuncJob(func() { w.run(ctx) }))

	if _, err := w.cron.AddJob(w.schedule, job); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	log.Info().
		Str("schedule", w.schedule).
		Msg("started purge worker")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (w *PurgeWorker) Stop() {
	<-w.cron.Stop().Done()
	log.Info().Msg("purge worker stopped")
}

func (w *PurgeWorker) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	purged, err := w.purger.PurgeExpired(runCtx)
	if err != nil {
		log.Error().
			Err(err).
			Msg("error purging expired uploads")
		return
	}

	if purged > 0 {
		log.Info().
			Int("purged", purged).
			Dur("took", time.Since(start)).
			Msg("purged expired anonymous uploads")
	}
}
