package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	stan "github.com/nats-io/stan.go"
)

// WatermillEventBus satisfies our EventBus interface using Watermill.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewWatermillInMemBus returns a Watermill-based, in-memory bus.
func NewWatermillInMemBus() *WatermillEventBus {
	logger := watermill.NewStdLogger(false, false)
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 100}, logger)
	return &WatermillEventBus{publisher: ps, subscriber: ps}
}

// NewWatermillNATSBus returns a bus backed by NATS Streaming.
func NewWatermillNATSBus(clusterID, clientID, url string) (*WatermillEventBus, error) {
	logger := watermill.NewStdLogger(false, false)
	pub, err := nats.NewStreamingPublisher(nats.StreamingPublisherConfig{
		ClusterID: clusterID,
		ClientID:  clientID,
		StanOptions: []stan.Option{
			stan.NatsURL(url),
		},
		Marshaler: nats.GobMarshaler{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("nats publisher: %w", err)
	}
	sub, err := nats.NewStreamingSubscriber(nats.StreamingSubscriberConfig{
		ClusterID: clusterID,
		ClientID:  clientID + "-sub",
		StanOptions: []stan.Option{
			stan.NatsURL(url),
		},
		CloseTimeout:   30 * time.Second,
		AckWaitTimeout: 30 * time.Second,
		Unmarshaler:    nats.GobMarshaler{},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("nats subscriber: %w", err)
	}
	return &WatermillEventBus{publisher: pub, subscriber: sub}, nil
}

// Publish sends payload as one message. Bytes and strings go out as-is, anything
// else is JSON encoded.
func (b *WatermillEventBus) Publish(topic string, payload any) error {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %T payload: %w", v, err)
		}
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	return b.publisher.Publish(topic, msg)
}

// Subscribe delivers messages on topic to handler until ctx is done. JSON
// objects arrive as map[string]any, anything else as a string.
func (b *WatermillEventBus) Subscribe(ctx context.Context, topic string, handler func(payload any)) error {
	ch, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range ch {
			var m map[string]any
			if err := json.Unmarshal(msg.Payload, &m); err == nil && len(m) > 0 {
				handler(m)
			} else {
				handler(string(msg.Payload))
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *WatermillEventBus) Close() error {
	err := b.publisher.Close()
	if s, ok := b.subscriber.(message.Publisher); !ok || s != b.publisher {
		err = errors.Join(err, b.subscriber.Close())
	}
	return err
}
