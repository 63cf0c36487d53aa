package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/medfleet/core/dispatch"
	"github.com/kilianp07/medfleet/core/model"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/infra/logger"
)

// DeliveryMessage is the payload published for each recorded delivery.
type DeliveryMessage struct {
	DeliveryID string `json:"delivery_id"`
	Vehicle    string `json:"vehicle"`
	Item       string `json:"item"`
	Quantity   int    `json:"quantity"`
	Timestamp  int64  `json:"timestamp"`
}

// Command is an operator request received on the command topic.
type Command struct {
	Action  string `json:"action"`
	BatchID string `json:"batch_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

const (
	ActionDistribute   = "distribute"
	ActionUpdateStatus = "update_status"
)

// Fleet is the part of the coordinator driven by MQTT commands.
type Fleet interface {
	AutoDistribute(batchID string) dispatch.Report
	UpdateStatus(taskID string, status model.TaskStatus) error
}

// Destination records deliveries by publishing them to the broker.
type Destination struct {
	cfg     Config
	cli     pahoClient
	log     logger.Logger
	backoff time.Duration

	mu    sync.RWMutex
	fleet Fleet
}

var _ sink.Destination = (*Destination)(nil)

// NewDestination connects to the broker, announces the coordinator online and
// subscribes to the command topic.
func NewDestination(cfg Config, log logger.Logger) (*Destination, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("mqtt_destination")
	}
	d := &Destination{cfg: cfg, log: log, backoff: time.Duration(cfg.BackoffMS) * time.Millisecond}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Publish(cfg.StatusTopic(), cfg.qos("status"), true, "online"); token.Wait() && token.Error() != nil {
			log.Errorf("status publish error: %v", token.Error())
		}
		if token := c.Subscribe(cfg.CommandTopic(), cfg.qos("command"), d.onCommand); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	d.cli = c
	return d, nil
}

// Attach routes received commands to f.
func (d *Destination) Attach(f Fleet) {
	d.mu.Lock()
	d.fleet = f
	d.mu.Unlock()
}

// RecordDelivery publishes one delivery. Errors are returned after the
// configured retries so the caller keeps the task in progress.
func (d *Destination) RecordDelivery(vehicleName, itemName string, quantity int) error {
	msg := DeliveryMessage{
		DeliveryID: uuid.NewString(),
		Vehicle:    vehicleName,
		Item:       itemName,
		Quantity:   quantity,
		Timestamp:  time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := d.cfg.DeliveryTopic(vehicleName)
	if err := publish(d.cli, d.log, topic, d.cfg.qos("delivery"), false, payload, d.cfg.MaxRetries, d.backoff); err != nil {
		return fmt.Errorf("record delivery %s: %w", msg.DeliveryID, err)
	}
	d.log.Infof("sent delivery %s to %s", msg.DeliveryID, topic)
	return nil
}

func (d *Destination) onCommand(_ paho.Client, msg paho.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		d.log.Errorf("failed to decode command: %v", err)
		return
	}
	d.mu.RLock()
	f := d.fleet
	d.mu.RUnlock()
	if f == nil {
		d.log.Warnf("command %s ignored: no fleet attached", cmd.Action)
		return
	}
	if err := d.apply(f, cmd); err != nil {
		d.log.Errorf("command %s: %v", cmd.Action, err)
	}
}

func (d *Destination) apply(f Fleet, cmd Command) error {
	switch cmd.Action {
	case ActionDistribute:
		batch := cmd.BatchID
		if batch == "" {
			batch = "MQTT-" + uuid.NewString()
		}
		rep := f.AutoDistribute(batch)
		if rep.NoOp() {
			d.log.Infof("distribution %s did nothing: %s", rep.BatchID, rep.Reason)
			return nil
		}
		d.log.Infof("distribution %s created %d tasks", rep.BatchID, len(rep.Tasks))
		return nil
	case ActionUpdateStatus:
		st, err := model.ParseTaskStatus(cmd.Status)
		if err != nil {
			return err
		}
		return f.UpdateStatus(cmd.TaskID, st)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// Close marks the coordinator offline and disconnects.
func (d *Destination) Close(ctx context.Context) error {
	if d.cli == nil || !d.cli.IsConnected() {
		return nil
	}
	token := d.cli.Publish(d.cfg.StatusTopic(), d.cfg.qos("status"), true, "offline")
	select {
	case <-token.Done():
	case <-ctx.Done():
	}
	d.cli.Disconnect(250)
	return token.Error()
}
