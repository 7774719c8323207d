package core

import (
	"context"

	"github.com/awantoch/loanscore/utils"
)

type channelKey struct{}

// WithChannel tags ctx with the transport a request arrived through.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFromContext returns the transport set by WithChannel, or "".
func ChannelFromContext(ctx context.Context) string {
	ch, _ := utils.ContextValue[string](ctx, channelKey{})
	return ch
}
