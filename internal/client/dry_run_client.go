package client

import (
	"context"

	"github.com/google/uuid"
)

// DryRunClient accepts every message without contacting a provider.
type DryRunClient struct{}

func NewDryRunClient() *DryRunClient {
	return &DryRunClient{}
}

func (DryRunClient) Send(ctx context.Context, to, body string) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	return Delivery{MessageID: "dry-" + uuid.NewString(), Status: "sent"}, nil
}
