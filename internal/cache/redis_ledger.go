package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLedger(rdb *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

func ledgerKey(campaignKey, phone string) string {
	return fmt.Sprintf("sms:sent:%s:%s", campaignKey, phone)
}

func (l *RedisLedger) StoreSent(ctx context.Context, campaignKey, phone, messageID string, sentAt time.Time) error {
	b, err := json.Marshal(sentValue{
		MessageID: messageID,
		SentAt:    sentAt.UTC(),
	})
	if err != nil {
		return err
	}
	return l.rdb.Set(ctx, ledgerKey(campaignKey, phone), b, l.ttl).Err()
}

func (l *RedisLedger) WasSent(ctx context.Context, campaignKey, phone string) (bool, error) {
	err := l.rdb.Get(ctx, ledgerKey(campaignKey, phone)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
