package repo

import (
	"context"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

// SendLog is the durable history of every send attempt.
type SendLog interface {
	Insert(ctx context.Context, rec *model.SendRecord) error
	ListSent(ctx context.Context, limit, offset int) ([]model.SendRecord, error)
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}
