// Package mqtt publishes clearing iteration events to an MQTT broker so
// long-running markets can be monitored remotely.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jwiersma/interflow/core/exchange"
	"github.com/jwiersma/interflow/infra/logger"
	"github.com/jwiersma/interflow/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT publisher. An
// empty broker disables publishing.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "interflow"
	}
	if c.Topic == "" {
		c.Topic = "interflow/iterations"
	}
}

// Publisher forwards iteration events from the event bus to an MQTT topic.
type Publisher struct {
	cli   paho.Client
	topic string
	qos   byte
	log   logger.Logger
	done  chan struct{}
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(5 * time.Second)

	cli := paho.NewClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout to %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &Publisher{
		cli:   cli,
		topic: cfg.Topic,
		qos:   cfg.QoS,
		log:   logger.New("mqtt-publisher"),
		done:  make(chan struct{}),
	}, nil
}

// Attach subscribes to the bus and publishes every iteration event until the
// bus or the publisher closes.
func (p *Publisher) Attach(bus eventbus.EventBus) {
	events := bus.Subscribe()
	go func() {
		for {
			select {
			case <-p.done:
				bus.Unsubscribe(events)
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if it, isIteration := ev.(exchange.IterationEvent); isIteration {
					p.publish(it)
				}
			}
		}
	}()
}

func (p *Publisher) publish(ev exchange.IterationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorf("encode iteration event: %v", err)
		return
	}
	token := p.cli.Publish(p.topic, p.qos, false, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		p.log.Errorf("publish iteration event: %v", token.Error())
	}
}

// Close stops the bus listener and disconnects from the broker.
func (p *Publisher) Close() {
	close(p.done)
	p.cli.Disconnect(250)
}
