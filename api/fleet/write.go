package fleet

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kilianp07/medfleet/core/model"
)

const maxBody = 1 << 16

type addVehicleRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addStationRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type addItemRequest struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type createTaskRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	VehicleID   string `json:"vehicle_id"`
	// SKU, when set, loads the whole pool entry onto the assignee.
	SKU string `json:"sku"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type batteryRequest struct {
	Battery *int `json:"battery"`
}

// requireToken rejects requests without "Bearer <token>" when token is
// non-empty.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// byMethod routes GET to get and POST to post. A nil handler answers 405.
func byMethod(get, post http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var h http.Handler
		switch r.Method {
		case http.MethodGet:
			h = get
		case http.MethodPost:
			h = post
		}
		if h == nil {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// decodeBody reads a JSON body into dst. An empty body is rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(dst); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// NewAddVehicleHandler serves POST /api/fleet/vehicles.
func NewAddVehicleHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addVehicleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if _, err := f.AddVehicle(req.ID, req.Name); err != nil {
			writeError(w, err)
			return
		}
		v, err := f.Vehicle(strings.TrimSpace(req.ID))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	})
}

// NewAddStationHandler serves POST /api/fleet/stations.
func NewAddStationHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addStationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := f.AddStation(req.ID, req.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	})
}

// NewAddItemHandler serves POST /api/fleet/items. Units merge into an
// existing pool entry with the same SKU.
func NewAddItemHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := f.AddItem(req.SKU, req.Name, req.Quantity); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f.Items())
	})
}

// NewCreateTaskHandler serves POST /api/fleet/tasks.
func NewCreateTaskHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		t := model.NewTask(req.ID, req.Description, req.VehicleID)
		var err error
		if sku := strings.TrimSpace(req.SKU); sku != "" {
			err = f.CreateManualTaskWithItem(t, sku)
		} else {
			err = f.CreateTask(t)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t.View())
	})
}

// NewTaskStatusHandler serves POST /api/fleet/tasks/{id}/status.
func NewTaskStatusHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, ok := subResource(r.URL.Path, Prefix+"tasks/", "status")
		if !ok {
			http.NotFound(w, r)
			return
		}
		var req statusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		st, err := model.ParseTaskStatus(req.Status)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := f.UpdateStatus(id, st); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// NewBatteryHandler serves POST /api/fleet/vehicles/{id}/battery.
func NewBatteryHandler(f Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := subResource(r.URL.Path, Prefix+"vehicles/", "battery")
		if !ok {
			http.NotFound(w, r)
			return
		}
		var req batteryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Battery == nil {
			writeError(w, model.Invalid("vehicle", id, "battery is required", nil))
			return
		}
		if err := f.SetBatteryLevel(id, *req.Battery); err != nil {
			writeError(w, err)
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

// subResource parses "<prefix>{id}/<leaf>".
func subResource(path, prefix, leaf string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	id, tail, ok := strings.Cut(rest, "/")
	if !ok || id == "" || tail != leaf {
		return "", false
	}
	return id, true
}
