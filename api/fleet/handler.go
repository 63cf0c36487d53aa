// Package fleet exposes the fleet state over HTTP. Reads are public; every
// POST route requires a bearer token when one is configured.
package fleet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kilianp07/medfleet/core/charging"
	"github.com/kilianp07/medfleet/core/dispatch"
	corefleet "github.com/kilianp07/medfleet/core/fleet"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/report"
	"github.com/kilianp07/medfleet/core/vehicle"
)

// Fleet is the part of a fleet the HTTP API reads and drives.
type Fleet interface {
	AddVehicle(id, name string) (*vehicle.Vehicle, error)
	AddStation(id, name string) error
	AddItem(sku, name string, qty int) error
	SetBatteryLevel(vehicleID string, pct int) error
	CreateTask(t *model.Task) error
	CreateManualTaskWithItem(t *model.Task, sku string) error
	UpdateStatus(taskID string, st model.TaskStatus) error

	Vehicle(id string) (vehicle.View, error)
	Vehicles() []vehicle.View
	Stations() []model.StationView
	Waitlist() []charging.WaitingVehicle
	Tasks() []model.TaskView
	Items() corefleet.Items
	Summary() report.Summary
	AutoDistribute(batchID string) dispatch.Report
}

// Prefix is the path every route lives under.
const Prefix = "/api/fleet/"

// Register mounts every fleet route on mux.
func Register(mux *http.ServeMux, f Fleet, token string) {
	guard := func(h http.Handler) http.Handler { return requireToken(token, h) }
	mux.Handle(Prefix+"vehicles", byMethod(NewVehiclesHandler(f), guard(NewAddVehicleHandler(f))))
	mux.Handle(Prefix+"vehicles/", byMethod(NewVehicleHandler(f), guard(NewBatteryHandler(f))))
	mux.Handle(Prefix+"stations", byMethod(getJSON(func(*http.Request) any { return f.Stations() }), guard(NewAddStationHandler(f))))
	mux.Handle(Prefix+"waitlist", getJSON(func(*http.Request) any { return f.Waitlist() }))
	mux.Handle(Prefix+"tasks", byMethod(NewTasksHandler(f), guard(NewCreateTaskHandler(f))))
	mux.Handle(Prefix+"tasks/", guard(NewTaskStatusHandler(f)))
	mux.Handle(Prefix+"items", byMethod(getJSON(func(*http.Request) any { return f.Items() }), guard(NewAddItemHandler(f))))
	mux.Handle(Prefix+"summary", getJSON(func(*http.Request) any { return f.Summary() }))
	mux.Handle(Prefix+"distribute", NewDistributeHandler(f, token))
}

// NewVehiclesHandler serves GET /api/fleet/vehicles, optionally filtered by
// ?state=IDLE|WAITING_FOR_CHARGE|CHARGING.
func NewVehiclesHandler(f Fleet) http.Handler {
	return getJSON(func(r *http.Request) any {
		views := f.Vehicles()
		state := vehicle.State(strings.ToUpper(r.URL.Query().Get("state")))
		if state == "" {
			return views
		}
		out := make([]vehicle.View, 0, len(views))
		for _, v := range views {
			if v.State == state {
				out = append(out, v)
			}
		}
		return out
	})
}

// NewVehicleHandler serves GET /api/fleet/vehicles/{id}.
func NewVehicleHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, Prefix+"vehicles/"), "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		v, err := f.Vehicle(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	})
}

// NewTasksHandler serves GET /api/fleet/tasks, optionally filtered by
// ?status= and ?vehicle_id=.
func NewTasksHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var status model.TaskStatus
		if s := r.URL.Query().Get("status"); s != "" {
			st, err := model.ParseTaskStatus(s)
			if err != nil {
				writeError(w, err)
				return
			}
			status = st
		}
		vid := r.URL.Query().Get("vehicle_id")
		tasks := f.Tasks()
		out := make([]model.TaskView, 0, len(tasks))
		for _, t := range tasks {
			if status != "" && t.Status != status {
				continue
			}
			if vid != "" && t.AssigneeID != vid {
				continue
			}
			out = append(out, t)
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func getJSON(fn func(r *http.Request) any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, fn(r))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps domain error kinds to status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidEntity), errors.Is(err, model.ErrNullItem):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrCapacityExceeded):
		code = http.StatusConflict
	}
	http.Error(w, err.Error(), code)
}
