package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	URL     string
	Timeout time.Duration
}

type sinkConf struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
	Retries int           `json:"retries"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*sink]()
	require.NoError(t, reg.Register("influx", func(conf map[string]any) (*sink, error) {
		var c sinkConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sink{URL: c.URL, Timeout: c.Timeout}, nil
	}))

	s, err := reg.Create(ModuleConfig{Type: "influx", Conf: map[string]any{
		"url":     "http://influx:8086",
		"timeout": "5s",
	}})
	require.NoError(t, err)
	assert.Equal(t, "http://influx:8086", s.URL)
	assert.Equal(t, 5*time.Second, s.Timeout)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))

	_, err := reg.Create(ModuleConfig{Type: "z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"z"`)
	assert.Equal(t, []string{"x"}, reg.Names())
}

func TestDecodeWeakTypes(t *testing.T) {
	var c sinkConf
	require.NoError(t, Decode(map[string]any{"retries": "3", "timeout": "250ms"}, &c))
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 250*time.Millisecond, c.Timeout)

	assert.Error(t, Decode(map[string]any{"retries": "many"}, &c))
}
