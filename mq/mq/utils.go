package mq

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Subscriber is any queue that can be subscribed to per topic.
type Subscriber[M any] interface {
	Subscribe(uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes service to topicId and forwards every message
// through transformFunc into outputStream until ctx is done or the service
// closes the subscription. outputStream is owned by the processor and closed
// on exit. Messages for which transformFunc reports skip or an error are
// dropped.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	topicId uuid.UUID,
	ctx context.Context,
	service S,
	transformFunc func(msg M) (O, bool, error),
	outputStream chan<- O,
) {
	go func() {
		uid, inputCh, err := service.Subscribe(topicId)
		if err != nil {
			slog.Error("subscribe failed", "topic", topicId, "error", err)
			close(outputStream)
			return
		}

		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				// already removed by the queue, e.g. after a slow read
				slog.Debug("de-subscribe", "subscriber", uid, "error", err)
			}
			close(outputStream)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					return
				}

				output, skip, err := transformFunc(msg)
				if err != nil {
					slog.Warn("dropping message", "subscriber", uid, "error", err)
					continue
				}
				if skip {
					continue
				}

				select {
				case outputStream <- output:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}
