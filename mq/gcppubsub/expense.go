package gcppubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"tripvault/mq/mq"
)

func topicID(action mq.Action) string {
	return fmt.Sprintf("expense-%s", action.String())
}

type expenseMQ struct {
	genericService *GenericPubSubService[mq.ExpenseMessage]
	action         mq.Action
}

func NewExpenseMessageQueue(ctx context.Context, client *pubsub.Client, action mq.Action) (*expenseMQ, error) {
	gs, err := NewGenericPubSubService[mq.ExpenseMessage](ctx, client, topicID(action))
	if err != nil {
		return nil, fmt.Errorf("failed to create generic service for expense %s: %w", action, err)
	}
	return &expenseMQ{genericService: gs, action: action}, nil
}

func (q *expenseMQ) GetAction() mq.Action                { return q.action }
func (q *expenseMQ) Publish(msg mq.ExpenseMessage) error { return q.genericService.Publish(msg) }
func (q *expenseMQ) Subscribe(tripId uuid.UUID) (uuid.UUID, <-chan mq.ExpenseMessage, error) {
	return q.genericService.Subscribe(tripId)
}
func (q *expenseMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

type GCPExpenseMessageQueueWrapper struct {
	MQArray [mq.ActionCnt]*expenseMQ
	client  *pubsub.Client
}

func (wrapper *GCPExpenseMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.MQArray[action] == nil {
		return nil
	}
	return wrapper.MQArray[action]
}

func (wrapper *GCPExpenseMessageQueueWrapper) Close() {
	for _, q := range wrapper.MQArray {
		if q != nil {
			q.genericService.Close()
		}
	}
	if wrapper.client != nil {
		wrapper.client.Close()
	}
}

// NewGCPExpenseMessageQueueWrapper creates one topic per action.
func NewGCPExpenseMessageQueueWrapper(ctx context.Context, projectID string) (mq.ExpenseMessageQueueWrapper, error) {
	client, err := NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	wrapper := &GCPExpenseMessageQueueWrapper{client: client}
	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		wrapper.MQArray[action], err = NewExpenseMessageQueue(ctx, client, action)
		if err != nil {
			wrapper.Close()
			return nil, err
		}
	}
	return wrapper, nil
}
