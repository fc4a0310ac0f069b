// Package pubsub is the fan-out boundary between the notification
// dispatcher and the delivery connections. Cross-process delivery always
// rides a broker channel; nothing fans out through in-process state.
package pubsub

import "context"

// ChannelPrefix is the per-user channel naming convention.
const ChannelPrefix = "notifications:"

// UserChannel returns the broadcast channel name for a recipient.
func UserChannel(userID string) string {
	return ChannelPrefix + userID
}

// Broker publishes immutable messages to named channels and hands out
// per-subscriber streams. Publish is fire-and-forget from the caller's
// perspective: delivery to live subscribers is best-effort.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one subscriber's view of a channel. Messages arrive on
// Events in publish order. Close is idempotent; after Close the Events
// channel is closed.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}
