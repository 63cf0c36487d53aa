package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/medfleet/core/events"
	coremetrics "github.com/kilianp07/medfleet/core/metrics"
	"github.com/kilianp07/medfleet/core/report"
	"github.com/kilianp07/medfleet/infra/logger"
)

// InfluxSink writes fleet events to InfluxDB as points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink writing to org/bucket on url.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB first and returns a NopSink when
// it is not healthy.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

var (
	_ coremetrics.ChargeRecorder  = (*InfluxSink)(nil)
	_ coremetrics.TaskRecorder    = (*InfluxSink)(nil)
	_ coremetrics.SummaryRecorder = (*InfluxSink)(nil)
)

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDelivery writes one delivery point.
func (s *InfluxSink) RecordDelivery(ev events.DeliveryEvent) error {
	errStr := ""
	if ev.Err != nil {
		errStr = ev.Err.Error()
	}
	p := write.NewPointWithMeasurement("delivery").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("task_id", ev.TaskID).
		AddTag("sku", ev.SKU).
		AddTag("auto", strconv.FormatBool(ev.Auto)).
		AddField("quantity", ev.Quantity).
		AddField("battery_pct", ev.Battery).
		AddField("error", errStr).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordCharge writes one charging state change.
func (s *InfluxSink) RecordCharge(ev events.ChargeEvent) error {
	p := write.NewPointWithMeasurement("charge_event").
		AddTag("vehicle_id", ev.VehicleID).
		AddTag("action", string(ev.Action))
	if ev.StationID != "" {
		p = p.AddTag("station_id", ev.StationID)
	}
	p = p.AddField("battery_pct", ev.Battery).
		AddField("waitlist", ev.Waitlist).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordTask writes one task lifecycle change.
func (s *InfluxSink) RecordTask(ev events.TaskEvent) error {
	p := write.NewPointWithMeasurement("task_event").
		AddTag("task_id", ev.TaskID).
		AddTag("origin", ev.Origin).
		AddTag("status", ev.Status)
	if ev.VehicleID != "" {
		p = p.AddTag("vehicle_id", ev.VehicleID)
	}
	return s.write(p.AddField("count", 1).SetTime(ev.Time))
}

// RecordSummary writes the fleet battery statistics.
func (s *InfluxSink) RecordSummary(sum report.Summary, at time.Time) error {
	p := write.NewPointWithMeasurement("fleet_summary").
		AddField("vehicles", sum.Vehicles).
		AddField("mean_battery_pct", round3(sum.MeanBattery)).
		AddField("stddev_battery_pct", round3(sum.StdDev)).
		AddField("min_battery_pct", round3(sum.MinBattery)).
		AddField("max_battery_pct", round3(sum.MaxBattery)).
		AddField("low_battery", sum.LowBattery).
		AddField("left_queue", sum.LeftQueue).
		AddField("loaded_units", sum.LoadedUnits).
		SetTime(at)
	return s.write(p)
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
