// Package testutil starts disposable brokers and databases in Docker for
// integration tests. Callers skip when Docker is unavailable.
package testutil

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
)

// endpoint returns host:port for the mapped container port.
func endpoint(ctx context.Context, cont tc.Container, port string) (string, error) {
	host, err := cont.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := cont.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

func terminate(cont tc.Container) func() {
	return func() { _ = cont.Terminate(context.Background()) }
}
