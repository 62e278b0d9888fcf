package repository

import (
	"context"

	"archer/internal/domain/entity"
)

// ScoreRepository defines the interface for the append-only score history.
type ScoreRepository interface {
	// Append adds rec to the account's history and returns the full history,
	// in append order and including rec, as read inside the same write.
	Append(ctx context.Context, accountID string, rec entity.ScoreRecord) ([]entity.ScoreRecord, error)

	// List returns the account's history in append order.
	List(ctx context.Context, accountID string) ([]entity.ScoreRecord, error)
}
