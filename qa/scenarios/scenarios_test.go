package scenarios

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		sc, err := Load(f)
		require.NoError(t, err, f)
		t.Run(strings.TrimSuffix(filepath.Base(f), ".yaml"), func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadRequiresName(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "invalid", "missing_name.yaml"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	require.Error(t, err)
}

func TestLoadParsesSteps(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "low_battery_charge.yaml"))
	require.NoError(t, err)
	require.Len(t, sc.Steps, 2)
	require.Equal(t, ActionAdvance, sc.Steps[1].Action)
	require.Equal(t, 2*time.Minute, sc.Steps[1].Duration)
	require.Equal(t, 5*time.Second, sc.TickInterval)
	require.Equal(t, "Courier 1", sc.Vehicles[0].Name)
	require.Equal(t, "V1", sc.Vehicles[0].ID)
}
