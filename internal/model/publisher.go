package model

// EventPublisher publishes observability events to interested consumers.
type EventPublisher interface {
	// Publish sends the JSON-encodable event on the given subject.
	Publish(subject string, event any) error
}
