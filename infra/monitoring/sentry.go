// Package monitoring adapts Sentry to the core monitoring interface.
package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/medfleet/core/monitoring"
)

// Config holds the Sentry client settings. An empty DSN disables reporting.
type Config struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Validate checks the sample rate.
func (c Config) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("monitoring: traces_sample_rate %v outside [0,1]", c.TracesSampleRate)
	}
	return nil
}

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation.
func NewSentryMonitor(cfg Config) (coremon.Monitor, error) {
	return newSentryMonitor(cfg, nil)
}

func newSentryMonitor(cfg Config, beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, err
	}
	return sentryMonitor{}, nil
}

type sentryMonitor struct{}

func (sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (sentryMonitor) Flush(timeout time.Duration) bool { return sentry.Flush(timeout) }
