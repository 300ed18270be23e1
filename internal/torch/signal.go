package torch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/torchnode/internal/events"
)

// signalJob is the single running pattern loop.
type signalJob struct {
	id      string
	pattern Pattern
	cancel  context.CancelFunc
	done    chan struct{}
}

// startJob launches the pattern loop. opMu must be held and no job may be running.
func (c *Controller) startJob(p Pattern) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &signalJob{
		id:      uuid.NewString(),
		pattern: p,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.job = job

	c.publish(events.SignalJobEvent{
		JobID:     job.id,
		Pattern:   p.Name,
		Action:    events.SignalJobStarted,
		Timestamp: c.timestamp(),
	})

	go func() {
		defer close(job.done)
		c.runPattern(ctx, job)
	}()
}

// stopJob cancels the running job and waits for its goroutine to return.
func (c *Controller) stopJob() {
	job := c.job
	if job == nil {
		return
	}

	job.cancel()
	<-job.done
	c.job = nil

	c.publish(events.SignalJobEvent{
		JobID:     job.id,
		Pattern:   job.pattern.Name,
		Action:    events.SignalJobStopped,
		Timestamp: c.timestamp(),
	})
}

func (c *Controller) runPattern(ctx context.Context, job *signalJob) {
	logger := c.logger.With("job_id", job.id, "pattern", job.pattern.Name)
	logger.Debug("Signal job started", "cycle", job.pattern.CycleDuration())
	defer logger.Debug("Signal job stopped")

	for ctx.Err() == nil {
		for _, step := range job.pattern.Steps {
			var ok bool
			if step.On {
				ok = c.flash(ctx, job, step.Duration)
			} else {
				ok = c.sleep(ctx, step.Duration)
			}
			if !ok {
				return
			}
		}
	}
}

// flash drives full strength for d, then turns the torch off.
// It returns false once the job is cancelled.
func (c *Controller) flash(ctx context.Context, job *signalJob, d time.Duration) bool {
	if !c.signalWrite(ctx, OpStrength, c.maxLevel) {
		return false
	}
	if !c.sleep(ctx, d) {
		return false
	}
	if !c.signalWrite(ctx, OpOff, 0) {
		return false
	}

	if c.deviceID != "" {
		c.publish(events.SignalFlashEvent{
			JobID:      job.id,
			Pattern:    job.pattern.Name,
			DurationMs: float64(d) / float64(time.Millisecond),
			Timestamp:  c.timestamp(),
		})
	}
	return true
}

// signalWrite issues a command unless the job was cancelled.
// The check happens under hwMu, so a cancelled job never touches the hardware.
func (c *Controller) signalWrite(ctx context.Context, op string, level int) bool {
	c.hwMu.Lock()
	defer c.hwMu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	if c.deviceID != "" {
		_ = c.command(op, level)
	}
	return true
}

// sleep waits for d or until the job is cancelled.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.Chan():
		return true
	}
}
