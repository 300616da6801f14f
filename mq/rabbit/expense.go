package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"tripvault/mq/mq"
)

const (
	exchangeName = "expense_events_exchange"

	publishTimeout = 5 * time.Second
	deliverTimeout = 1 * time.Second
)

// getRoutingKey routes by action and trip so that every subscriber queue only
// receives its own trip, e.g. "expense.update.<tripId>".
func getRoutingKey(action mq.Action, tripId uuid.UUID) string {
	return fmt.Sprintf("expense.%s.%s", action, tripId)
}

type consumer struct {
	channel *amqp091.Channel
	tag     string
}

// rabbitExpenseMessageQueue implements mq.ExpenseMessageQueue. Each subscriber
// gets its own AMQP channel and exclusive queue.
type rabbitExpenseMessageQueue struct {
	action mq.Action
	conn   *amqp091.Connection

	publishMu sync.Mutex
	channel   *amqp091.Channel

	mu        sync.Mutex
	consumers map[uuid.UUID]consumer
}

func newRabbitExpenseMessageQueue(action mq.Action, conn *amqp091.Connection) (*rabbitExpenseMessageQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &rabbitExpenseMessageQueue{
		action:    action,
		conn:      conn,
		channel:   ch,
		consumers: make(map[uuid.UUID]consumer),
	}, nil
}

func (q *rabbitExpenseMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *rabbitExpenseMessageQueue) Publish(msg mq.ExpenseMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	routingKey := getRoutingKey(q.action, msg.TripID)

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		routingKey,   // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   msg.At,
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (q *rabbitExpenseMessageQueue) Subscribe(tripId uuid.UUID) (uuid.UUID, <-chan mq.ExpenseMessage, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	queueName, err := DeclareQueueAndExchange(ch, "", exchangeName, getRoutingKey(q.action, tripId))
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, err
	}

	subscriberID := uuid.New()
	tag := subscriberID.String()
	msgs, err := ch.Consume(
		queueName, // queue
		tag,       // consumer
		true,      // auto-ack
		true,      // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	q.mu.Lock()
	q.consumers[subscriberID] = consumer{channel: ch, tag: tag}
	q.mu.Unlock()

	outputChan := make(chan mq.ExpenseMessage)
	go func() {
		// msgs is closed once DeSubscribe closes the AMQP channel
		defer close(outputChan)
		for d := range msgs {
			var msg mq.ExpenseMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				slog.Warn("failed to unmarshal expense message", "queue", queueName, "error", err)
				continue
			}
			select {
			case outputChan <- msg:
			case <-time.After(deliverTimeout):
				slog.Warn("timeout sending expense message", "subscriber", subscriberID, "action", q.action.String())
			}
		}
	}()

	return subscriberID, outputChan, nil
}

func (q *rabbitExpenseMessageQueue) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	c, ok := q.consumers[subscriberID]
	delete(q.consumers, subscriberID)
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("consumer with ID %s not found for action %s", subscriberID, q.action)
	}
	if err := c.channel.Cancel(c.tag, false); err != nil {
		slog.Debug("cancel consumer", "subscriber", subscriberID, "error", err)
	}
	return c.channel.Close()
}

func (q *rabbitExpenseMessageQueue) close() {
	q.mu.Lock()
	for id, c := range q.consumers {
		c.channel.Close()
		delete(q.consumers, id)
	}
	q.mu.Unlock()
	if q.channel != nil {
		q.channel.Close()
	}
}

// rabbitExpenseMessageQueueWrapper implements mq.ExpenseMessageQueueWrapper
type rabbitExpenseMessageQueueWrapper struct {
	MQArray [mq.ActionCnt]*rabbitExpenseMessageQueue
	conn    *amqp091.Connection
}

func NewRabbitExpenseMessageQueueWrapper(conn *amqp091.Connection) (mq.ExpenseMessageQueueWrapper, error) {
	wrapper := &rabbitExpenseMessageQueueWrapper{
		conn: conn,
	}

	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		q, err := newRabbitExpenseMessageQueue(action, conn)
		if err != nil {
			wrapper.Close()
			return nil, fmt.Errorf("failed to create %s mq: %w", action, err)
		}
		wrapper.MQArray[action] = q
	}
	return wrapper, nil
}

func (wrapper *rabbitExpenseMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.MQArray[action]
}

// Close closes all channels and the RabbitMQ connection.
func (wrapper *rabbitExpenseMessageQueueWrapper) Close() {
	for _, q := range wrapper.MQArray {
		if q != nil {
			q.close()
		}
	}
	if wrapper.conn != nil {
		wrapper.conn.Close()
	}
}
