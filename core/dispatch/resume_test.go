package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/medfleet/core/repository"
	"github.com/kilianp07/medfleet/core/workpool"
)

// heldRunner records jobs without running them.
type heldRunner struct {
	mu   sync.Mutex
	jobs []workpool.Job
}

func (r *heldRunner) Submit(j workpool.Job) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()
	return nil
}

func (r *heldRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func newHeldDispatcher(t *testing.T) (*Dispatcher, *heldRunner) {
	t.Helper()
	r := &heldRunner{}
	d, err := New(Config{}, Deps{Repo: repository.New(), Runner: r})
	require.NoError(t, err)
	return d, r
}

func TestSignal_NoopWithoutAutoMode(t *testing.T) {
	d, r := newHeldDispatcher(t)
	d.Signal()
	assert.Zero(t, r.count())
	assert.False(t, d.resumeRunning.Load())
}

func TestSignal_SingleFlight(t *testing.T) {
	d, r := newHeldDispatcher(t)
	rep := d.AutoDistribute("INIT")
	require.Equal(t, ReasonNoItems, rep.Reason)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Signal()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.count())
	assert.True(t, d.resumePending.Load())

	// the in-flight attempt absorbs the pending signal and releases the guard
	r.jobs[0](context.Background())
	assert.False(t, d.resumeRunning.Load())
	assert.False(t, d.resumePending.Load())

	d.Signal()
	assert.Equal(t, 2, r.count())
}

func TestSignal_NotLostWhileAttemptExits(t *testing.T) {
	d, _ := newHeldDispatcher(t)
	d.AutoDistribute("INIT")

	for i := 0; i < 2000; i++ {
		d.resumeRunning.Store(true)
		d.resumePending.Store(false)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Signal()
		}()
		go func() {
			defer wg.Done()
			d.releaseResume()
		}()
		wg.Wait()
		// either the exiting attempt or the signal must own a follow-up
		require.True(t, d.resumeRunning.Load(), "iteration %d lost a signal", i)
	}
}
