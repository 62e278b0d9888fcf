package firestore

import (
	"context"

	"archer/internal/domain/entity"
	"archer/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

// accountRepository implements the repository.AccountRepository interface.
type accountRepository struct {
	client *firestore.Client
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(client *firestore.Client) repository.AccountRepository {
	return &accountRepository{
		client: client,
	}
}

func (repo *accountRepository) doc(id string) *firestore.DocumentRef {
	return repo.client.Collection(accountsCollection).Doc(id)
}

// FindByID retrieves the account keyed by the identity uid.
func (repo *accountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	snap, err := repo.doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}

		return nil, errors.Wrap(err, "failed to get account document")
	}

	return decodeAccount(snap)
}

// Save writes the account with merge semantics.
func (repo *accountRepository) Save(ctx context.Context, account *entity.Account) error {
	if _, err := repo.doc(account.ID).Set(ctx, mergeFields(account), firestore.MergeAll); err != nil {
		return errors.Wrap(err, "failed to save account document")
	}

	return nil
}

// Update runs fn inside a Firestore transaction. Firestore retries the
// transaction on contention, so fn may run more than once.
func (repo *accountRepository) Update(ctx context.Context, id string, fn repository.AccountMutation) (*entity.Account, error) {
	ref := repo.doc(id)

	var stored *entity.Account
	err := repo.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		stored = nil

		var current *entity.Account
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if current, err = decodeAccount(snap); err != nil {
				return err
			}
		case isNotFound(err):
		default:
			return errors.Wrap(err, "failed to read account document")
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil || next == current {
			if current == nil {
				return errors.WithStack(repository.ErrAccountNotFound)
			}
			stored = current

			return nil
		}

		next = next.Clone()
		next.ID = id
		if err := tx.Set(ref, toAccountDocument(next)); err != nil {
			return errors.Wrap(err, "failed to write account document")
		}
		stored = next

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// Delete removes the account document and its score subcollection.
func (repo *accountRepository) Delete(ctx context.Context, id string) error {
	ref := repo.doc(id)

	scores, err := ref.Collection(scoresCollection).Documents(ctx).GetAll()
	if err != nil {
		return errors.Wrap(err, "failed to list score documents")
	}

	bw := repo.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(scores)+1)
	for _, snap := range scores {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()

			return errors.Wrap(err, "failed to queue score delete")
		}
		jobs = append(jobs, job)
	}
	job, err := bw.Delete(ref)
	if err != nil {
		bw.End()

		return errors.Wrap(err, "failed to queue account delete")
	}
	jobs = append(jobs, job)
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil && !isNotFound(err) {
			return errors.Wrap(err, "failed to delete account documents")
		}
	}

	return nil
}

func decodeAccount(snap *firestore.DocumentSnapshot) (*entity.Account, error) {
	var doc accountDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode account document")
	}

	return doc.toDomain(snap.Ref.ID), nil
}
