package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const feedChannelPrefix = "checkin:feed:"

// RedisFeed relays feed events between API instances over Redis pub/sub
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed returns a relay on client
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Publish sends payload to every instance watching eventID
func (rf *RedisFeed) Publish(ctx context.Context, eventID string, payload []byte) error {
	return rf.client.Publish(ctx, feedChannelPrefix+eventID, payload).Err()
}

// Run delivers relayed events to hub until ctx is done
func (rf *RedisFeed) Run(ctx context.Context, hub *Hub) error {
	pubsub := rf.client.PSubscribe(ctx, feedChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("feed subscribe: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				eventID := strings.TrimPrefix(msg.Channel, feedChannelPrefix)
				hub.Broadcast(eventID, []byte(msg.Payload))
			}
		}
	}()
	zap.S().Infow("feed relay subscribed", "pattern", feedChannelPrefix+"*")
	return nil
}
