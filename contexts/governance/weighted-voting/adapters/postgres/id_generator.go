package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator hands out v4 UUIDs for event and outbox ids.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
