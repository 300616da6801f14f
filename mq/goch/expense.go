package goch

import (
	"github.com/google/uuid"

	"tripvault/mq/mq"
)

// DefaultBufferSize is used by the wrapper for every action queue.
const DefaultBufferSize = 64

// ChannelExpenseMessageQueue implements mq.ExpenseMessageQueue in process.
type ChannelExpenseMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.ExpenseMessage]
}

func NewChannelExpenseMessageQueue(action mq.Action, bufferSize int) *ChannelExpenseMessageQueue {
	return &ChannelExpenseMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.ExpenseMessage](bufferSize),
	}
}

func (q *ChannelExpenseMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *ChannelExpenseMessageQueue) Publish(msg mq.ExpenseMessage) error {
	return q.core.Publish(msg)
}

func (q *ChannelExpenseMessageQueue) Subscribe(tripId uuid.UUID) (uuid.UUID, <-chan mq.ExpenseMessage, error) {
	return q.core.Subscribe(tripId)
}

func (q *ChannelExpenseMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

func (q *ChannelExpenseMessageQueue) Stop() {
	q.core.Stop()
}

type GoChanExpenseMessageQueueWrapper struct {
	MQArray [mq.ActionCnt]*ChannelExpenseMessageQueue
}

func NewGoChanExpenseMessageQueueWrapper(bufferSize int) mq.ExpenseMessageQueueWrapper {
	wrapper := GoChanExpenseMessageQueueWrapper{}
	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		wrapper.MQArray[action] = NewChannelExpenseMessageQueue(action, bufferSize)
	}
	return &wrapper
}

func (wrapper *GoChanExpenseMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.MQArray[action]
}

func (wrapper *GoChanExpenseMessageQueueWrapper) Close() {
	for _, q := range wrapper.MQArray {
		q.Stop()
	}
}
