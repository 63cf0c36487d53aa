package fleet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kilianp07/medfleet/core/dispatch"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/vehicle"
)

func newFleet(t *testing.T, cfg Config) (*Fleet, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	f, err := New(cfg, dispatch.Config{Workers: 4}, Deps{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = f.Close(ctx)
	})
	return f, clk
}

func TestNewRegistersDefaultStations(t *testing.T) {
	f, _ := newFleet(t, Config{})
	st := f.Stations()
	require.Len(t, st, 3)
	assert.Equal(t, "CHG-DEFAULT-1", st[0].ID)
	assert.Equal(t, "Default_Station_3", st[2].Name)
	for _, s := range st {
		assert.False(t, s.InUse)
	}
}

func TestNewSeedsFromConfig(t *testing.T) {
	f, _ := newFleet(t, Config{
		Stations: []StationConfig{{ID: "S1", Name: "Dock"}},
		Vehicles: []VehicleConfig{{ID: "V1", Name: "Alpha"}, {ID: "V2", Name: "Beta", Battery: 80}},
		Items:    []ItemConfig{{SKU: "SKU-1", Name: "Gauze", Quantity: 30}},
	})
	require.Len(t, f.Stations(), 1)
	vs := f.Vehicles()
	require.Len(t, vs, 2)
	assert.Equal(t, model.InitialBatteryPct, vs[0].Battery)
	assert.Equal(t, 80, vs[1].Battery)
	assert.Equal(t, []model.Item{{SKU: "SKU-1", Name: "Gauze", Quantity: 30}}, f.Items().Unassigned)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Vehicles: []VehicleConfig{{ID: "V1", Name: "A"}, {ID: "V1", Name: "B"}}}, dispatch.Config{}, Deps{})
	require.Error(t, err)
	_, err = New(Config{Items: []ItemConfig{{SKU: "", Name: "x", Quantity: 1}}}, dispatch.Config{}, Deps{})
	require.Error(t, err)
}

func TestAddVehicleDuplicate(t *testing.T) {
	f, _ := newFleet(t, Config{})
	_, err := f.AddVehicle("V1", "Alpha")
	require.NoError(t, err)
	_, err = f.AddVehicle("V1", "Other")
	assert.True(t, errors.Is(err, model.ErrInvalidEntity))
	_, err = f.AddVehicle("V2", "  ")
	assert.True(t, errors.Is(err, model.ErrInvalidEntity))
}

func TestLowBatteryClaimsDefaultStation(t *testing.T) {
	f, _ := newFleet(t, Config{})
	_, err := f.AddVehicle("V1", "Alpha")
	require.NoError(t, err)

	require.NoError(t, f.SetBatteryLevel("V1", 10))
	v, err := f.Vehicle("V1")
	require.NoError(t, err)
	assert.Equal(t, vehicle.StateCharging, v.State)
	assert.Equal(t, "CHG-DEFAULT-1", v.StationID)
	assert.True(t, f.Stations()[0].InUse)
	assert.Empty(t, f.Waitlist())

	assert.True(t, errors.Is(f.SetBatteryLevel("V9", 50), model.ErrNotFound))
	assert.True(t, errors.Is(f.SetBatteryLevel("V1", 101), model.ErrInvalidEntity))
}

func TestAddStationAdmitsWaitingVehicle(t *testing.T) {
	f, _ := newFleet(t, Config{Stations: []StationConfig{{ID: "S1", Name: "Dock"}}})
	for i := 1; i <= 2; i++ {
		_, err := f.AddVehicle(fmt.Sprintf("V%d", i), fmt.Sprintf("Vehicle_%d", i))
		require.NoError(t, err)
		require.NoError(t, f.SetBatteryLevel(fmt.Sprintf("V%d", i), 5))
	}
	require.Len(t, f.Waitlist(), 1)

	require.NoError(t, f.AddStation("S2", "Annex"))
	assert.Empty(t, f.Waitlist())
	v, err := f.Vehicle("V2")
	require.NoError(t, err)
	assert.Equal(t, "S2", v.StationID)

	assert.True(t, errors.Is(f.AddStation("S2", "Again"), model.ErrInvalidEntity))
}

func TestAddItemToVehicle(t *testing.T) {
	f, _ := newFleet(t, Config{})
	_, err := f.AddVehicle("V1", "Alpha")
	require.NoError(t, err)

	_, err = f.AddItemToVehicle("V1", nil)
	assert.True(t, errors.Is(err, model.ErrNullItem))
	it := model.Item{SKU: "SKU-1", Name: "Gauze", Quantity: 4}
	_, err = f.AddItemToVehicle("V9", &it)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	ok, err := f.AddItemToVehicle("V1", &it)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, f.AddItem("SKU-2", "Saline", 7))

	items := f.Items()
	require.Len(t, items.Assigned, 1)
	assert.Equal(t, "Alpha", items.Assigned[0].VehicleName)
	assert.Equal(t, []model.Item{it}, items.Assigned[0].Items)
	assert.Equal(t, []model.Item{{SKU: "SKU-2", Name: "Saline", Quantity: 7}}, items.Unassigned)
}

func TestAddItemValidation(t *testing.T) {
	f, _ := newFleet(t, Config{})
	assert.True(t, errors.Is(f.AddItem("", "x", 1), model.ErrInvalidEntity))
	assert.True(t, errors.Is(f.AddItem("SKU-1", "x", -1), model.ErrInvalidEntity))
	require.NoError(t, f.AddItem("SKU-1", "Gauze", 3))
	require.NoError(t, f.AddItem("SKU-1", "Gauze", 4))
	assert.Equal(t, 7, f.Items().Unassigned[0].Quantity)
}

func TestAutoDistributeThroughFleet(t *testing.T) {
	f, clk := newFleet(t, Config{})
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("V%d", i)
		_, err := f.AddVehicle(id, "Vehicle_"+id)
		require.NoError(t, err)
		require.NoError(t, f.SetBatteryLevel(id, 100))
	}
	require.NoError(t, f.AddItem("SKU-1", "Gauze", 120))

	rep := f.AutoDistribute("BATCH-1")
	assert.False(t, rep.NoOp())
	tasks := f.Tasks()
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, model.TaskInProgress, task.Status)
	}
	assert.Empty(t, f.Items().Unassigned)

	require.Eventually(t, func() bool {
		clk.Step(5 * time.Second)
		for _, task := range f.Tasks() {
			if task.Status != model.TaskDone {
				return false
			}
		}
		return true
	}, 5*time.Second, 2*time.Millisecond)

	s := f.Summary()
	assert.Equal(t, 3, s.Vehicles)
	assert.Equal(t, 90.0, s.MeanBattery)
	assert.Zero(t, s.LoadedUnits)
}

func TestManualTaskThroughFleet(t *testing.T) {
	f, _ := newFleet(t, Config{})
	_, err := f.AddVehicle("V1", "Alpha")
	require.NoError(t, err)
	require.NoError(t, f.AddItem("SKU-1", "Gauze", 80))

	err = f.CreateManualTaskWithItem(model.NewTask("T1", "restock", "V1"), "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, 30, f.Items().Unassigned[0].Quantity)
	require.NoError(t, f.UpdateStatus("T1", model.TaskInProgress))
	assert.True(t, errors.Is(f.UpdateStatus("T9", model.TaskDone), model.ErrNotFound))

	err = f.CreateManualTaskWithItem(model.NewTask("T2", "restock", "V1"), "SKU-404")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Len(t, f.Tasks(), 1)
}
