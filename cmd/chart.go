package cmd

import (
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/medfleet/core/vehicle"
)

// batteryChart samples vehicle battery levels over simulated time.
type batteryChart struct {
	labels []string
	series map[string][]opts.LineData
}

func newBatteryChart() *batteryChart {
	return &batteryChart{series: make(map[string][]opts.LineData)}
}

func (c *batteryChart) sample(elapsed time.Duration, views []vehicle.View) {
	c.labels = append(c.labels, elapsed.Round(time.Second).String())
	for _, v := range views {
		// Vehicles added mid-run are padded so every series lines up with labels.
		for len(c.series[v.Name]) < len(c.labels)-1 {
			c.series[v.Name] = append(c.series[v.Name], opts.LineData{Value: nil})
		}
		c.series[v.Name] = append(c.series[v.Name], opts.LineData{Value: v.Battery})
	}
}

func (c *batteryChart) render(w io.Writer) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Fleet battery"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Simulated time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Battery (%)"}),
	)
	line.SetXAxis(c.labels)
	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line.AddSeries(name, c.series[name])
	}
	return line.Render(w)
}
