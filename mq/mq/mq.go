package mq

import "github.com/google/uuid"

// TopicProvider is implemented by messages that are routed per trip.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

type ExpenseMessageQueueWrapper interface {
	GetExpenseMessageQueue(action Action) ExpenseMessageQueue
	Close()
}

// ExpenseMessageQueue carries expense events of a single action. Subscribers
// only receive messages of the trip they subscribed to.
type ExpenseMessageQueue interface {
	GetAction() Action
	Publish(msg ExpenseMessage) error
	Subscribe(tripId uuid.UUID) (uuid.UUID, <-chan ExpenseMessage, error)
	DeSubscribe(id uuid.UUID) error
}
