// Package monitoring reports unexpected failures to an external error
// tracker. The process-wide monitor defaults to a no-op.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration) bool
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration) bool                  { return true }

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. A nil monitor restores the
// no-op.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

// CaptureException records err with optional tags. Nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	mu.RLock()
	m := current
	mu.RUnlock()
	m.CaptureException(err, tags)
}

// Flush waits for buffered events to be sent.
func Flush(d time.Duration) bool {
	mu.RLock()
	m := current
	mu.RUnlock()
	return m.Flush(d)
}
