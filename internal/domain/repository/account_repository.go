// Package repository defines the interfaces for the persistence layer.
package repository

import (
	"context"

	"archer/internal/domain/entity"

	"github.com/pkg/errors"
)

// Domain-specific errors for account persistence.
var (
	// ErrAccountNotFound is returned when no document exists for the id.
	ErrAccountNotFound = errors.New("account not found")
)

// AccountMutation receives the freshly read account, or nil when none exists,
// and returns the record to write. Returning the same pointer or nil skips
// the write; returning an error aborts without writing.
type AccountMutation func(current *entity.Account) (*entity.Account, error)

// AccountRepository defines the interface for account document operations.
type AccountRepository interface {
	// FindByID retrieves the account keyed by the identity uid.
	FindByID(ctx context.Context, id string) (*entity.Account, error)

	// Save writes the account with merge semantics.
	Save(ctx context.Context, account *entity.Account) error

	// Update runs fn as one atomic read-modify-write on the account and
	// returns the record as stored afterwards. Two concurrent updates of the
	// same account never both apply against the same read.
	Update(ctx context.Context, id string, fn AccountMutation) (*entity.Account, error)

	// Delete removes the account and everything it owns.
	Delete(ctx context.Context, id string) error
}
