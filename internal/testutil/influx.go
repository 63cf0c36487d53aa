package testutil

import (
	"context"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Influx describes a running InfluxDB 2 instance initialised in setup mode.
type Influx struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// StartInflux runs InfluxDB 2.7 with a pre-created org, bucket and admin
// token.
func StartInflux(ctx context.Context) (Influx, func(), error) {
	inf := Influx{Token: "medfleet-token", Org: "medfleet", Bucket: "fleet"}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "influxdb:2.7",
			ExposedPorts: []string{"8086/tcp"},
			Env: map[string]string{
				"DOCKER_INFLUXDB_INIT_MODE":        "setup",
				"DOCKER_INFLUXDB_INIT_USERNAME":    "medfleet",
				"DOCKER_INFLUXDB_INIT_PASSWORD":    "medfleet-pass",
				"DOCKER_INFLUXDB_INIT_ORG":         inf.Org,
				"DOCKER_INFLUXDB_INIT_BUCKET":      inf.Bucket,
				"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": inf.Token,
			},
			WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return Influx{}, nil, err
	}
	cleanup := terminate(cont)
	addr, err := endpoint(ctx, cont, "8086")
	if err != nil {
		cleanup()
		return Influx{}, nil, err
	}
	inf.URL = "http://" + addr
	return inf, cleanup, nil
}
