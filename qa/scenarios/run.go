package scenarios

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kilianp07/medfleet/core/dispatch"
	"github.com/kilianp07/medfleet/core/fleet"
	"github.com/kilianp07/medfleet/core/model"
)

// tick is the clock resolution used by advance steps.
const tick = time.Second

type recordingDest struct {
	mu    sync.Mutex
	units int
}

func (r *recordingDest) RecordDelivery(_, _ string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units += qty
	return nil
}

func (r *recordingDest) delivered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units
}

// RunScenario builds a fleet from sc, plays its steps and checks the
// expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	dest := &recordingDest{}
	f, err := fleet.New(fleet.Config{
		TickInterval: sc.TickInterval,
		Stations:     sc.Stations,
		Vehicles:     sc.Vehicles,
		Items:        sc.Items,
	}, dispatch.Config{Workers: 4}, fleet.Deps{Dest: dest, Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = f.Close(ctx)
	})

	for i, st := range sc.Steps {
		err := apply(t, f, clk, st)
		if st.ExpectError != "" {
			require.Error(t, err, "step %d (%s)", i, st.Action)
			assert.Equal(t, st.ExpectError, model.KindOf(err).String(), "step %d (%s)", i, st.Action)
			continue
		}
		require.NoError(t, err, "step %d (%s)", i, st.Action)
	}

	check(t, f, dest, sc.Expected)
}

func apply(t *testing.T, f *fleet.Fleet, clk *clocktesting.FakeClock, st Step) error {
	switch st.Action {
	case ActionDistribute:
		f.AutoDistribute(st.Batch)
	case ActionBattery:
		return f.SetBatteryLevel(st.Vehicle, st.Level)
	case ActionTask:
		task := model.NewTask(st.Task, st.Name, st.Vehicle)
		if st.SKU != "" {
			return f.CreateManualTaskWithItem(task, st.SKU)
		}
		return f.CreateTask(task)
	case ActionStatus:
		status, err := model.ParseTaskStatus(st.Status)
		if err != nil {
			return err
		}
		return f.UpdateStatus(st.Task, status)
	case ActionItem:
		return f.AddItem(st.SKU, st.Name, st.Quantity)
	case ActionStation:
		return f.AddStation(st.Station, st.Name)
	case ActionAdvance:
		advance(t, f, clk, st.Duration)
	default:
		t.Fatalf("unknown action %q", st.Action)
	}
	return nil
}

// advance moves the clock by d one tick at a time, letting queued jobs start
// between ticks.
func advance(t *testing.T, f *fleet.Fleet, clk *clocktesting.FakeClock, d time.Duration) {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < d; elapsed += tick {
		clk.Step(tick)
		require.Eventually(t, func() bool { return f.Pending() == 0 }, time.Second, time.Millisecond)
		time.Sleep(time.Millisecond)
	}
}

func check(t *testing.T, f *fleet.Fleet, dest *recordingDest, exp Expected) {
	t.Helper()
	require.Eventually(t, func() bool {
		return matches(f, dest, exp) == ""
	}, 2*time.Second, 5*time.Millisecond, "expectation not met: %s", func() string { return matches(f, dest, exp) }())
}

// matches returns the first unmet expectation, or "" when all hold.
func matches(f *fleet.Fleet, dest *recordingDest, exp Expected) string {
	tasks := f.Tasks()
	if exp.Tasks != nil && len(tasks) != *exp.Tasks {
		return "tasks"
	}
	if exp.Done != nil {
		done := 0
		for _, tk := range tasks {
			if tk.Status == model.TaskDone {
				done++
			}
		}
		if done != *exp.Done {
			return "done"
		}
	}
	if exp.Delivered != nil && dest.delivered() != *exp.Delivered {
		return "delivered"
	}
	if exp.Unassigned != nil {
		n := 0
		for _, it := range f.Items().Unassigned {
			n += it.Quantity
		}
		if n != *exp.Unassigned {
			return "unassigned"
		}
	}
	views := map[string]int{}
	charging := map[string]bool{}
	for _, v := range f.Vehicles() {
		views[v.ID] = v.Battery
		charging[v.ID] = v.StationID != ""
	}
	for _, id := range exp.Charging {
		if !charging[id] {
			return "charging " + id
		}
	}
	if exp.Waiting != nil {
		wl := f.Waitlist()
		if len(wl) != len(exp.Waiting) {
			return "waiting"
		}
		for i, w := range wl {
			if w.VehicleID != exp.Waiting[i] {
				return "waiting order"
			}
		}
	}
	for id, want := range exp.Battery {
		if views[id] != want {
			return "battery " + id
		}
	}
	return ""
}
