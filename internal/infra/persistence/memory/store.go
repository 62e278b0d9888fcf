// Package memory is an in-process account and score store for local
// development and tests. Each account is guarded by the store mutex, which
// makes Update an atomic read-modify-write.
package memory

import (
	"context"
	"slices"
	"sync"

	"archer/internal/domain/entity"
	"archer/internal/domain/repository"

	"github.com/pkg/errors"
)

// Store holds accounts and their score histories.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*entity.Account
	scores   map[string][]entity.ScoreRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*entity.Account),
		scores:   make(map[string][]entity.ScoreRecord),
	}
}

// NewAccountRepository exposes the store as an AccountRepository.
func NewAccountRepository(s *Store) repository.AccountRepository {
	return &accountRepository{store: s}
}

// NewScoreRepository exposes the store as a ScoreRepository.
func NewScoreRepository(s *Store) repository.ScoreRepository {
	return &scoreRepository{store: s}
}

type accountRepository struct {
	store *Store
}

// FindByID retrieves the account keyed by the identity uid.
func (r *accountRepository) FindByID(_ context.Context, id string) (*entity.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	acc, ok := r.store.accounts[id]
	if !ok {
		return nil, errors.WithStack(repository.ErrAccountNotFound)
	}

	return acc.Clone(), nil
}

// Save writes the account. Zero-valued fields keep their stored value,
// mirroring a merge write.
func (r *accountRepository) Save(_ context.Context, account *entity.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.accounts[account.ID] = account.MergeOnto(r.store.accounts[account.ID])

	return nil
}

// Update runs fn under the store lock.
func (r *accountRepository) Update(_ context.Context, id string, fn repository.AccountMutation) (*entity.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current := r.store.accounts[id].Clone()
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil || next == current {
		if current == nil {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}

		return current, nil
	}

	stored := next.Clone()
	stored.ID = id
	r.store.accounts[id] = stored

	return stored.Clone(), nil
}

// Delete removes the account and its score history.
func (r *accountRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	delete(r.store.accounts, id)
	delete(r.store.scores, id)

	return nil
}

type scoreRepository struct {
	store *Store
}

// Append adds rec and returns the full history.
func (r *scoreRepository) Append(_ context.Context, accountID string, rec entity.ScoreRecord) ([]entity.ScoreRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.scores[accountID] = append(r.store.scores[accountID], rec)

	return slices.Clone(r.store.scores[accountID]), nil
}

// List returns the history in append order.
func (r *scoreRepository) List(_ context.Context, accountID string) ([]entity.ScoreRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return slices.Clone(r.store.scores[accountID]), nil
}
