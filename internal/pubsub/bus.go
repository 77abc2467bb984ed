package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bus publishes domain events on per-company, per-request and
// per-user redis channels for external consumers (dashboards, the
// billing sync, ops tooling).
type Bus struct {
	rdb *redis.Client
	log *zap.Logger
	ctx context.Context
}

func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		log: log,
		ctx: context.Background(),
	}
}

// PublishCompany publishes an event to a company's channel
func (b *Bus) PublishCompany(companyID string, event map[string]interface{}) error {
	return b.Publish("company:"+companyID, event)
}

// PublishRequest publishes an event to a request's channel
func (b *Bus) PublishRequest(requestID string, event map[string]interface{}) error {
	return b.Publish("request:"+requestID, event)
}

// PublishUser publishes an event to a user's channel
func (b *Bus) PublishUser(userID string, event map[string]interface{}) error {
	return b.Publish("user:"+userID, event)
}

// Publish publishes an event to a channel
func (b *Bus) Publish(channel string, event map[string]interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("Failed to marshal event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	if err := b.rdb.Publish(b.ctx, channel, payload).Err(); err != nil {
		b.log.Error("Failed to publish event", zap.String("channel", channel), zap.Error(err))
		return err
	}

	return nil
}
