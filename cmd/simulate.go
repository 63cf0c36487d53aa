package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/kilianp07/medfleet/app"
	"github.com/kilianp07/medfleet/config"
	"github.com/kilianp07/medfleet/core/fleet"
	"github.com/kilianp07/medfleet/core/model"
)

type simOptions struct {
	vehicles int
	units    int
	step     time.Duration
	horizon  time.Duration
	batch    string
	chart    string
}

var simOpts simOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an accelerated auto-distribution scenario and print the fleet state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return simulate(cmd.OutOrStdout(), cfg, simOpts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simOpts.vehicles, "vehicles", 3, "vehicles to add when the config seeds none")
	simulateCmd.Flags().IntVar(&simOpts.units, "units", 120, "units of SKU-SIM to add when the config seeds no items")
	simulateCmd.Flags().DurationVar(&simOpts.step, "step", 5*time.Second, "simulated time per tick")
	simulateCmd.Flags().DurationVar(&simOpts.horizon, "horizon", 2*time.Hour, "simulated time limit")
	simulateCmd.Flags().StringVar(&simOpts.batch, "batch", "SIM-1", "batch id of the first distribution pass")
	simulateCmd.Flags().StringVar(&simOpts.chart, "chart", "", "write an HTML battery chart to this file")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(out io.Writer, cfg *config.Config, o simOptions) error {
	if len(cfg.Fleet.Vehicles) == 0 {
		for i := 1; i <= o.vehicles; i++ {
			cfg.Fleet.Vehicles = append(cfg.Fleet.Vehicles, fleet.VehicleConfig{
				ID: fmt.Sprintf("SIM-V%d", i), Name: fmt.Sprintf("Vehicle_%d", i), Battery: model.FullBatteryPct,
			})
		}
	}
	if len(cfg.Fleet.Items) == 0 && o.units > 0 {
		cfg.Fleet.Items = []fleet.ItemConfig{{SKU: "SKU-SIM", Name: "Saline bags", Quantity: o.units}}
	}
	if o.step <= 0 {
		o.step = 5 * time.Second
	}
	cfg.API.Addr = ""
	cfg.Metrics.PrometheusAddr = ""

	start := time.Now()
	clk := clocktesting.NewFakeClock(start)
	svc, err := app.New(cfg, app.Options{Clock: clk})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	f := svc.Fleet

	rep := f.AutoDistribute(o.batch)
	if rep.NoOp() {
		fmt.Fprintf(out, "batch %s: %s\n", rep.BatchID, rep.Reason)
	} else {
		fmt.Fprintf(out, "batch %s: %d tasks\n", rep.BatchID, len(rep.Tasks))
	}

	chart := newBatteryChart()
	chart.sample(0, f.Vehicles())
	for clk.Since(start) < o.horizon && !settled(f) {
		clk.Step(o.step)
		// Let workers observe the new time before the next step.
		time.Sleep(time.Millisecond)
		chart.sample(clk.Since(start), f.Vehicles())
	}
	fmt.Fprintf(out, "simulated %s\n\n", clk.Since(start).Round(time.Second))
	printFleet(out, f)
	if o.chart != "" {
		return writeChart(o.chart, chart)
	}
	return nil
}

func writeChart(path string, c *batteryChart) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	return c.render(fh)
}

// settled reports whether no task is active, the pool is empty and no vehicle
// is charging or queued.
func settled(f *fleet.Fleet) bool {
	for _, t := range f.Tasks() {
		if t.Status.Active() {
			return false
		}
	}
	if len(f.Waitlist()) > 0 {
		return false
	}
	for _, st := range f.Stations() {
		if st.InUse {
			return false
		}
	}
	return f.Pending() == 0
}

func printFleet(out io.Writer, f *fleet.Fleet) {
	vt := uitable.New()
	vt.MaxColWidth = 40
	vt.AddRow("VEHICLE", "NAME", "BATTERY", "STATE", "STATION", "LOADED")
	for _, v := range f.Vehicles() {
		loaded := 0
		for _, it := range v.Inventory {
			loaded += it.Quantity
		}
		vt.AddRow(v.ID, v.Name, fmt.Sprintf("%d%%", v.Battery), v.State, v.StationID, loaded)
	}
	fmt.Fprintln(out, vt)
	fmt.Fprintln(out)

	tt := uitable.New()
	tt.MaxColWidth = 40
	tt.AddRow("TASK", "ASSIGNEE", "STATUS", "DESCRIPTION")
	for _, t := range f.Tasks() {
		tt.AddRow(t.ID, t.AssigneeID, t.Status, t.Description)
	}
	fmt.Fprintln(out, tt)
	fmt.Fprintln(out)

	s := f.Summary()
	st := uitable.New()
	st.AddRow("VEHICLES", "MEAN", "MIN", "MAX", "LOW", "LEFT QUEUE", "UNASSIGNED")
	unassigned := 0
	for _, it := range f.Items().Unassigned {
		unassigned += it.Quantity
	}
	st.AddRow(s.Vehicles, fmt.Sprintf("%.1f%%", s.MeanBattery), fmt.Sprintf("%.0f%%", s.MinBattery),
		fmt.Sprintf("%.0f%%", s.MaxBattery), s.LowBattery, s.LeftQueue, unassigned)
	fmt.Fprintln(out, st)
}
