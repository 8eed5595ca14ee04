package cache

import (
	"context"
	"time"
)

// SentLedger remembers which recipients a campaign already reached so a
// re-run on the same day does not message them twice.
type SentLedger interface {
	StoreSent(ctx context.Context, campaignKey, phone, messageID string, sentAt time.Time) error
	WasSent(ctx context.Context, campaignKey, phone string) (bool, error)
}
