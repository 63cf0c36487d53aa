package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// Signal asks for a resume attempt. It is a no-op until auto mode is on. At
// most one attempt runs at a time; a signal arriving while one runs is
// folded into a single follow-up attempt.
func (d *Dispatcher) Signal() {
	if !d.auto.Load() {
		return
	}
	// Pending is raised before the CAS so a loop that is just exiting sees it.
	d.resumePending.Store(true)
	if !d.resumeRunning.CompareAndSwap(false, true) {
		return
	}
	if err := d.runner.Submit(d.resumeLoop); err != nil {
		d.resumeRunning.Store(false)
		d.log.Warnf("resume not scheduled: %v", err)
	}
}

func (d *Dispatcher) resumeLoop(ctx context.Context) {
	for {
		d.resumePending.Store(false)
		d.tryResume(ctx)
		if !d.releaseResume() {
			return
		}
	}
}

// releaseResume drops the guard and reclaims it when a signal arrived during
// the attempt. It reports whether the caller owns a follow-up attempt.
func (d *Dispatcher) releaseResume() bool {
	d.resumeRunning.Store(false)
	return d.resumePending.Load() && d.resumeRunning.CompareAndSwap(false, true)
}

// tryResume re-runs auto-distribution when a free vehicle and unassigned
// units both exist.
func (d *Dispatcher) tryResume(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if d.repo.Unassigned.Empty() {
		resumeAttempts.WithLabelValues(outcomeNoop).Inc()
		d.log.Debugf("[AUTO-RESUME] no unassigned items to distribute")
		return
	}
	if len(d.FreeVehicles()) == 0 {
		resumeAttempts.WithLabelValues(outcomeNoop).Inc()
		d.log.Debugf("[AUTO-RESUME] no fully free vehicle available")
		return
	}
	resumeAttempts.WithLabelValues(outcomeRun).Inc()
	d.log.Infof("[AUTO-RESUME] free vehicle detected, continuing distribution")
	rep := d.AutoDistribute("RESUME-" + uuid.NewString())
	if rep.NoOp() {
		d.log.Debugf("[AUTO-RESUME] %s: %s", rep.BatchID, rep.Reason)
	}
}
