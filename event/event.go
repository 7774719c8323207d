// Package event publishes served decisions for downstream consumers.
package event

import (
	"context"
	"fmt"

	"github.com/awantoch/loanscore/config"
	"github.com/awantoch/loanscore/constants"
)

type EventBus interface {
	Publish(topic string, payload any) error
	Subscribe(ctx context.Context, topic string, handler func(payload any)) error
	Close() error
}

// NewInProcEventBus returns a new in-memory event bus.
func NewInProcEventBus() *WatermillEventBus {
	return NewWatermillInMemBus()
}

// NewEventBusFromConfig returns an EventBus based on config. Supported: memory
// and nats (with url). An empty driver disables publishing and returns nil.
func NewEventBusFromConfig(cfg config.EventConfig) (EventBus, error) {
	switch cfg.Driver {
	case constants.EventDriverNone:
		return nil, nil
	case constants.EventDriverMemory:
		return NewWatermillInMemBus(), nil
	case constants.EventDriverNATS:
		if cfg.URL == "" {
			return nil, fmt.Errorf("NATS driver requires url")
		}
		clusterID, clientID := cfg.ClusterID, cfg.ClientID
		if clusterID == "" {
			clusterID = constants.DefaultNATSClusterID
		}
		if clientID == "" {
			clientID = constants.DefaultNATSClientID
		}
		return NewWatermillNATSBus(clusterID, clientID, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported event bus driver: %s", cfg.Driver)
	}
}
