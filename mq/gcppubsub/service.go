package gcppubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"tripvault/mq/mq"
)

const (
	tripIDAttribute = "tripId"

	subscriptionExpiration = 24 * time.Hour
	deliverTimeout         = 2 * time.Second
)

type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService publishes messages of type M to one topic and creates a
// filtered subscription per subscriber, keyed by the message topic attribute.
type GenericPubSubService[M mq.TopicProvider] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService creates the topic when it does not exist yet.
func NewGenericPubSubService[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, fmt.Errorf("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		slog.Info("created Pub/Sub topic", "topic", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

func typeName[M any]() string {
	return reflect.TypeOf(*new(M)).Name()
}

// Publish waits for the server to acknowledge the message.
func (s *GenericPubSubService[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName[M](), err)
	}

	result := s.topic.Publish(s.ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			tripIDAttribute: msg.GetTopic().String(),
		},
	})
	if _, err = result.Get(s.ctx); err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName[M](), s.topic.ID(), err)
	}
	return nil
}

func subscriptionFilter(tripId uuid.UUID) string {
	return fmt.Sprintf("attributes.%s = \"%s\"", tripIDAttribute, tripId.String())
}

// Subscribe creates a GCP subscription that only matches tripId. The
// subscription is deleted again when the receiver stops.
func (s *GenericPubSubService[M]) Subscribe(tripId uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	gcpSubName := fmt.Sprintf("sub-%s-%s", s.topic.ID(), subscriptionID.String())

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           subscriptionFilter(tripId),
		ExpirationPolicy: subscriptionExpiration,
		AckDeadline:      10 * time.Second,
	})
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s: %w", gcpSubName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			if err := gcpSub.Delete(context.Background()); err != nil {
				slog.Warn("failed to delete GCP subscription", "subscription", gcpSub.ID(), "error", err)
			}
			close(msgChan)
		}()

		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				slog.Warn("failed to unmarshal message", "type", typeName[M](), "subscriber", subscriptionID, "error", err)
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(deliverTimeout):
				slog.Warn("timeout sending message", "type", typeName[M](), "subscriber", subscriptionID)
			case <-receiveCtx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("receive loop stopped", "subscription", gcpSub.ID(), "error", err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe cancels the receiver; cleanup happens in the receiver goroutine.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, typeName[M]())
	}
	return nil
}

// Close cancels every receiver and flushes pending publishes.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()
	s.topic.Stop()
}
