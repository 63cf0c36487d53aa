package fleet

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/medfleet/core/charging"
	"github.com/kilianp07/medfleet/core/dispatch"
	corefleet "github.com/kilianp07/medfleet/core/fleet"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/report"
	"github.com/kilianp07/medfleet/core/vehicle"
)

type fakeFleet struct {
	vehicles []vehicle.View
	tasks    []model.TaskView
	batches  []string
	stations []string
	items    []model.Item
	statuses map[string]model.TaskStatus
	loaded   map[string]string
}

func (f *fakeFleet) AddVehicle(id, name string) (*vehicle.Vehicle, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.Invalid("vehicle", id, "id is required", id)
	}
	if _, err := f.Vehicle(id); err == nil {
		return nil, model.Invalid("vehicle", id, "duplicate id", id)
	}
	f.vehicles = append(f.vehicles, vehicle.View{ID: id, Name: name, Battery: 100, State: vehicle.StateIdle})
	return nil, nil
}

func (f *fakeFleet) AddStation(id, name string) error {
	if id == "" {
		return model.Invalid("station", id, "id is required", id)
	}
	f.stations = append(f.stations, id)
	return nil
}

func (f *fakeFleet) AddItem(sku, name string, qty int) error {
	if qty < 0 {
		return model.Invalid("item", sku, "negative quantity", qty)
	}
	f.items = append(f.items, model.Item{SKU: sku, Name: name, Quantity: qty})
	return nil
}

func (f *fakeFleet) SetBatteryLevel(id string, pct int) error {
	for i := range f.vehicles {
		if f.vehicles[i].ID == id {
			if pct < 0 || pct > 100 {
				return model.Invalid("vehicle", id, "battery out of range", pct)
			}
			f.vehicles[i].Battery = pct
			return nil
		}
	}
	return model.Missing("vehicle", id)
}

func (f *fakeFleet) CreateTask(t *model.Task) error {
	if t.AssigneeID != "" {
		if _, err := f.Vehicle(t.AssigneeID); err != nil {
			return err
		}
	}
	f.tasks = append(f.tasks, t.View())
	return nil
}

func (f *fakeFleet) CreateManualTaskWithItem(t *model.Task, sku string) error {
	if sku != "SKU-1" {
		return model.Missing("item", sku)
	}
	if err := f.CreateTask(t); err != nil {
		return err
	}
	if f.loaded == nil {
		f.loaded = map[string]string{}
	}
	f.loaded[t.ID] = sku
	return nil
}

func (f *fakeFleet) UpdateStatus(id string, st model.TaskStatus) error {
	for _, t := range f.tasks {
		if t.ID == id {
			if f.statuses == nil {
				f.statuses = map[string]model.TaskStatus{}
			}
			f.statuses[id] = st
			return nil
		}
	}
	return model.Missing("task", id)
}

func (f *fakeFleet) Vehicle(id string) (vehicle.View, error) {
	for _, v := range f.vehicles {
		if v.ID == id {
			return v, nil
		}
	}
	return vehicle.View{}, model.Missing("vehicle", id)
}

func (f *fakeFleet) Vehicles() []vehicle.View { return f.vehicles }
func (f *fakeFleet) Stations() []model.StationView {
	return []model.StationView{{ID: "CHG-DEFAULT-1", Name: "Default_Station_1", InUse: true}}
}
func (f *fakeFleet) Waitlist() []charging.WaitingVehicle { return nil }
func (f *fakeFleet) Tasks() []model.TaskView             { return f.tasks }
func (f *fakeFleet) Items() corefleet.Items {
	return corefleet.Items{Unassigned: []model.Item{{SKU: "SKU-1", Name: "Gauze", Quantity: 12}}}
}
func (f *fakeFleet) Summary() report.Summary {
	return report.Summarize(f.vehicles, model.LowBatteryPct)
}
func (f *fakeFleet) AutoDistribute(batchID string) dispatch.Report {
	f.batches = append(f.batches, batchID)
	return dispatch.Report{BatchID: batchID, Tasks: []string{"Task 1"}}
}

func newServer(t *testing.T, token string) (*httptest.Server, *fakeFleet) {
	t.Helper()
	f := &fakeFleet{
		vehicles: []vehicle.View{
			{ID: "V1", Name: "Alpha", Battery: 10, State: vehicle.StateCharging, StationID: "CHG-DEFAULT-1"},
			{ID: "V2", Name: "Beta", Battery: 80, State: vehicle.StateIdle},
		},
		tasks: []model.TaskView{
			{ID: "T1", AssigneeID: "V2", Status: model.TaskInProgress},
			{ID: "T2", AssigneeID: "V1", Status: model.TaskDone},
		},
	}
	mux := http.NewServeMux()
	Register(mux, f, token)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, f
}

func getInto(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestVehiclesHandler(t *testing.T) {
	srv, _ := newServer(t, "")
	var all []vehicle.View
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/vehicles", &all))
	assert.Len(t, all, 2)

	var charging []vehicle.View
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/vehicles?state=charging", &charging))
	require.Len(t, charging, 1)
	assert.Equal(t, "V1", charging[0].ID)
}

func TestVehicleHandler(t *testing.T) {
	srv, _ := newServer(t, "")
	var v vehicle.View
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/vehicles/V2", &v))
	assert.Equal(t, "Beta", v.Name)
	assert.Equal(t, http.StatusNotFound, getInto(t, srv.URL+"/api/fleet/vehicles/V9", nil))
}

func TestTasksHandlerFilters(t *testing.T) {
	srv, _ := newServer(t, "")
	var out []model.TaskView
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/tasks?status=in_progress", &out))
	require.Len(t, out, 1)
	assert.Equal(t, "T1", out[0].ID)

	out = nil
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/tasks?vehicle_id=V1", &out))
	require.Len(t, out, 1)
	assert.Equal(t, "T2", out[0].ID)

	assert.Equal(t, http.StatusBadRequest, getInto(t, srv.URL+"/api/fleet/tasks?status=LOST", nil))
}

func TestReadOnlyHandlers(t *testing.T) {
	srv, _ := newServer(t, "")
	var st []model.StationView
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/stations", &st))
	assert.True(t, st[0].InUse)

	var items corefleet.Items
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/items", &items))
	assert.Equal(t, 12, items.Unassigned[0].Quantity)

	var sum report.Summary
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/summary", &sum))
	assert.Equal(t, 2, sum.Vehicles)
	assert.Equal(t, 45.0, sum.MeanBattery)

	resp, err := http.Post(srv.URL+"/api/fleet/summary", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDistributeHandlerAuth(t *testing.T) {
	srv, f := newServer(t, "secret")

	resp, err := http.Post(srv.URL+"/api/fleet/distribute", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/fleet/distribute", strings.NewReader(`{"batch_id":"B-7"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep dispatch.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "B-7", rep.BatchID)
	assert.Equal(t, []string{"B-7"}, f.batches)
}

func TestDistributeHandlerGeneratesBatchID(t *testing.T) {
	h := NewDistributeHandler(&fakeFleet{}, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fleet/distribute", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var rep dispatch.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.True(t, strings.HasPrefix(rep.BatchID, "HTTP-"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/fleet/distribute", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/fleet/distribute", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func post(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWriteRoutesRequireToken(t *testing.T) {
	srv, f := newServer(t, "secret")
	for _, path := range []string{"vehicles", "stations", "items", "tasks", "tasks/T1/status", "vehicles/V1/battery"} {
		resp := post(t, srv.URL+Prefix+path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		resp = post(t, srv.URL+Prefix+path, "wrong", `{}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
	assert.Len(t, f.vehicles, 2)
	assert.Empty(t, f.stations)
	assert.Empty(t, f.items)

	var all []vehicle.View
	require.Equal(t, http.StatusOK, getInto(t, srv.URL+"/api/fleet/vehicles", &all))
	assert.Len(t, all, 2)
}

func TestAddVehicleHandler(t *testing.T) {
	srv, f := newServer(t, "secret")
	resp := post(t, srv.URL+"/api/fleet/vehicles", "secret", `{"id":"V3","name":"Gamma"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v vehicle.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "Gamma", v.Name)
	assert.Len(t, f.vehicles, 3)

	resp = post(t, srv.URL+"/api/fleet/vehicles", "secret", `{"id":"V3","name":"Again"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/vehicles", "secret", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/vehicles", "secret", ``)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddStationAndItemHandlers(t *testing.T) {
	srv, f := newServer(t, "")
	resp := post(t, srv.URL+"/api/fleet/stations", "", `{"id":"CHG-2","name":"Dock"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"CHG-2"}, f.stations)
	resp = post(t, srv.URL+"/api/fleet/stations", "", `{"name":"Dock"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/fleet/items", "", `{"sku":"SKU-9","name":"Saline","quantity":40}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, f.items, 1)
	assert.Equal(t, 40, f.items[0].Quantity)
	resp = post(t, srv.URL+"/api/fleet/items", "", `{"sku":"SKU-9","name":"Saline","quantity":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateTaskHandler(t *testing.T) {
	srv, f := newServer(t, "secret")
	resp := post(t, srv.URL+"/api/fleet/tasks", "secret", `{"id":"T3","description":"ward 4","vehicle_id":"V2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tv model.TaskView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tv))
	assert.Equal(t, model.TaskPending, tv.Status)
	assert.Empty(t, f.loaded)

	resp = post(t, srv.URL+"/api/fleet/tasks", "secret", `{"id":"T4","vehicle_id":"V2","sku":"SKU-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, map[string]string{"T4": "SKU-1"}, f.loaded)

	resp = post(t, srv.URL+"/api/fleet/tasks", "secret", `{"id":"T5","vehicle_id":"V2","sku":"SKU-404"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/tasks", "secret", `{"id":"T6","vehicle_id":"V9"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Len(t, f.tasks, 4)
}

func TestTaskStatusHandler(t *testing.T) {
	srv, f := newServer(t, "secret")
	resp := post(t, srv.URL+"/api/fleet/tasks/T1/status", "secret", `{"status":"done"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, model.TaskDone, f.statuses["T1"])

	resp = post(t, srv.URL+"/api/fleet/tasks/T1/status", "secret", `{"status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/tasks/T9/status", "secret", `{"status":"DONE"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/tasks/T1/other", "secret", `{"status":"DONE"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/fleet/tasks/T1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	get, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestBatteryHandler(t *testing.T) {
	srv, f := newServer(t, "secret")
	resp := post(t, srv.URL+"/api/fleet/vehicles/V2/battery", "secret", `{"battery":12}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v vehicle.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, 12, v.Battery)
	assert.Equal(t, 12, f.vehicles[1].Battery)

	resp = post(t, srv.URL+"/api/fleet/vehicles/V2/battery", "secret", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/vehicles/V2/battery", "secret", `{"battery":140}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/vehicles/V9/battery", "secret", `{"battery":50}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = post(t, srv.URL+"/api/fleet/vehicles/V2", "secret", `{"battery":50}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
