package event

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Handler processes the raw JSON payload of a received event.
type Handler func(subject string, data []byte)

// Subscriber listens for scoring events on the event bus.
type Subscriber struct {
	nc     *nats.Conn
	subs   []*nats.Subscription
	prefix string
}

// NewSubscriber connects to the NATS server.
func NewSubscriber(url, subjectPrefix string) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Subscriber{nc: nc, prefix: subjectPrefix}, nil
}

// Subscribe registers a handler for one event subject.
func (s *Subscriber) Subscribe(subject string, handler Handler) error {
	full := s.prefix + "." + subject
	sub, err := s.nc.Subscribe(full, func(msg *nats.Msg) {
		handler(subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", full, err)
	}
	s.subs = append(s.subs, sub)
	log.Printf("Subscribed to '%s'.", full)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
