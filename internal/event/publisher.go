package event

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Publisher publishes scoring events to NATS as JSON.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to the NATS server.
func NewPublisher(url, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Publisher{nc: nc, prefix: subjectPrefix}, nil
}

// Publish encodes the event as JSON and publishes it under the configured
// subject prefix.
func (p *Publisher) Publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.nc.Publish(p.prefix+"."+subject, data)
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
