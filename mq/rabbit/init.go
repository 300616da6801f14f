package rabbit

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

func NewRabbitConnection(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	return conn, nil
}

// DeclareQueueAndExchange declares the shared topic exchange and binds a
// queue to it. An empty queueName declares a server-named exclusive queue
// that is deleted with its channel. The actual queue name is returned.
func DeclareQueueAndExchange(ch *amqp.Channel, queueName, exchange, routingKey string) (string, error) {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare exchange: %w", err)
	}

	temporary := queueName == ""
	q, err := ch.QueueDeclare(
		queueName,  // name
		!temporary, // durable
		temporary,  // delete when unused
		temporary,  // exclusive
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,     // queue name
		routingKey, // routing key
		exchange,   // exchange
		false,
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("bind queue: %w", err)
	}
	return q.Name, nil
}
