package model

import (
	"strings"
	"sync"
)

// ChargingStation is a single charging slot. Occupy and Release are the only
// mutators and are exclusive.
type ChargingStation struct {
	id   string
	name string

	mu    sync.Mutex
	inUse bool
}

// NewChargingStation validates id and name and returns a free station.
func NewChargingStation(id, name string) (*ChargingStation, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return nil, Invalid("station", "", "id cannot be blank", nil)
	}
	if name == "" {
		return nil, Invalid("station", id, "name cannot be blank", nil)
	}
	return &ChargingStation{id: id, name: name}, nil
}

func (s *ChargingStation) ID() string   { return s.id }
func (s *ChargingStation) Name() string { return s.name }

// InUse reports whether a vehicle currently occupies the station.
func (s *ChargingStation) InUse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Occupy claims the station. It returns false when it was already taken.
func (s *ChargingStation) Occupy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse {
		return false
	}
	s.inUse = true
	return true
}

// Release frees the station.
func (s *ChargingStation) Release() {
	s.mu.Lock()
	s.inUse = false
	s.mu.Unlock()
}

// StationView is a read-only snapshot of a station.
type StationView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	InUse bool   `json:"in_use"`
}

// View returns a snapshot of the station.
func (s *ChargingStation) View() StationView {
	return StationView{ID: s.id, Name: s.name, InUse: s.InUse()}
}

// DefaultStations returns the stations available at startup.
func DefaultStations() []*ChargingStation {
	out := make([]*ChargingStation, 0, 3)
	for _, d := range [][2]string{
		{"CHG-DEFAULT-1", "Default_Station_1"},
		{"CHG-DEFAULT-2", "Default_Station_2"},
		{"CHG-DEFAULT-3", "Default_Station_3"},
	} {
		s, _ := NewChargingStation(d[0], d[1])
		out = append(out, s)
	}
	return out
}
