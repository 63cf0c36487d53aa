package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// BrokerReadyTimeout bounds how long StartMosquitto probes the broker.
	BrokerReadyTimeout = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
`

// StartMosquitto runs an anonymous Mosquitto 2 broker and returns its
// tcp:// URL once a client can connect.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "medfleet-mosq")
	if err != nil {
		return "", nil, err
	}
	conf := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(conf, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      conf,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	stop := terminate(cont)
	cleanup := func() {
		stop()
		_ = os.RemoveAll(dir)
	}

	addr, err := endpoint(ctx, cont, "1883")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	broker := "tcp://" + addr

	readyCtx, cancel := context.WithTimeout(ctx, BrokerReadyTimeout)
	defer cancel()
	if err := probeBroker(readyCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func probeBroker(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("medfleet-probe")
	for {
		cli := paho.NewClient(opts)
		tok := cli.Connect()
		tok.Wait()
		if tok.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
