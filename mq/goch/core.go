package goch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripvault/mq/mq"
)

// sendTimeout is how long a subscriber may stall before it is dropped.
const sendTimeout = 100 * time.Millisecond

type subscriber[M any] struct {
	topic uuid.UUID
	ch    chan M
}

// fanOutQueueCore delivers every published message to all subscribers of the
// message topic. A subscriber that does not keep up is removed and its channel
// closed.
type fanOutQueueCore[M mq.TopicProvider] struct {
	publishChan chan M
	subscribers map[uuid.UUID]subscriber[M]
	quit        chan struct{}
	bufferSize  int

	mu       sync.RWMutex
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newFanOutQueueCore[M mq.TopicProvider](bufferSize int) *fanOutQueueCore[M] {
	core := &fanOutQueueCore[M]{
		publishChan: make(chan M, bufferSize),
		subscribers: make(map[uuid.UUID]subscriber[M]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	core.wg.Add(1)
	go core.fanOutRoutine()
	return core
}

func (c *fanOutQueueCore[M]) fanOutRoutine() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.publishChan:
			c.deliver(msg)
		case <-c.quit:
			return
		}
	}
}

func (c *fanOutQueueCore[M]) deliver(msg M) {
	topic := msg.GetTopic()
	var stalled []uuid.UUID

	c.mu.RLock()
	for id, sub := range c.subscribers {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		case <-time.After(sendTimeout):
			stalled = append(stalled, id)
		}
	}
	c.mu.RUnlock()

	if len(stalled) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range stalled {
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub.ch)
		}
	}
	c.mu.Unlock()
}

// Publish never blocks. It fails with ErrQueueFull when the publish buffer is
// exhausted and with ErrQueueStopped after Stop.
func (c *fanOutQueueCore[M]) Publish(msg M) error {
	select {
	case <-c.quit:
		return ErrQueueStopped
	default:
	}
	select {
	case c.publishChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *fanOutQueueCore[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	select {
	case <-c.quit:
		return uuid.Nil, nil, ErrQueueStopped
	default:
	}

	id := uuid.New()
	ch := make(chan M, c.bufferSize)

	c.mu.Lock()
	c.subscribers[id] = subscriber[M]{topic: topic, ch: ch}
	c.mu.Unlock()
	return id, ch, nil
}

func (c *fanOutQueueCore[M]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("goch: subscriber with ID '%s' not found", id)
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop ends delivery. Subscriber channels stay open until DeSubscribe.
func (c *fanOutQueueCore[M]) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
	c.wg.Wait()
}

type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull    QueueError = "message queue is full"
	ErrQueueStopped QueueError = "message queue is stopped"
)
