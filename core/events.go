package core

// EventPublisher broadcasts domain events to live subscribers (dashboards).
// Publish must not block the caller.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// NopPublisher drops every event.
var NopPublisher EventPublisher = nopPublisher{}
