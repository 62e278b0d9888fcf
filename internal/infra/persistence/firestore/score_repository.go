package firestore

import (
	"context"

	"archer/internal/domain/entity"
	"archer/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

// scoreRepository implements the repository.ScoreRepository interface.
type scoreRepository struct {
	client *firestore.Client
}

// NewScoreRepository is the constructor for scoreRepository.
func NewScoreRepository(client *firestore.Client) repository.ScoreRepository {
	return &scoreRepository{
		client: client,
	}
}

func (repo *scoreRepository) collection(accountID string) *firestore.CollectionRef {
	return repo.client.Collection(accountsCollection).Doc(accountID).Collection(scoresCollection)
}

// Append reads the history and creates the next record in one transaction.
func (repo *scoreRepository) Append(ctx context.Context, accountID string, rec entity.ScoreRecord) ([]entity.ScoreRecord, error) {
	col := repo.collection(accountID)

	var history []entity.ScoreRecord
	err := repo.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(col.OrderBy("seq", firestore.Asc)).GetAll()
		if err != nil {
			return errors.Wrap(err, "failed to read score history")
		}

		history, err = decodeScores(snaps)
		if err != nil {
			return err
		}

		doc := scoreDocument{
			Seq:        int64(len(history)),
			Score:      rec.Score,
			Label:      rec.Label,
			RecordedAt: rec.RecordedAt,
		}
		if err := tx.Create(col.NewDoc(), doc); err != nil {
			return errors.Wrap(err, "failed to append score")
		}
		history = append(history, rec)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return history, nil
}

// List returns the history in append order.
func (repo *scoreRepository) List(ctx context.Context, accountID string) ([]entity.ScoreRecord, error) {
	snaps, err := repo.collection(accountID).OrderBy("seq", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scores")
	}

	return decodeScores(snaps)
}

func decodeScores(snaps []*firestore.DocumentSnapshot) ([]entity.ScoreRecord, error) {
	history := make([]entity.ScoreRecord, 0, len(snaps)+1)
	for _, snap := range snaps {
		var doc scoreDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode score document")
		}
		history = append(history, entity.ScoreRecord{
			Score:      doc.Score,
			Label:      doc.Label,
			RecordedAt: doc.RecordedAt,
		})
	}

	return history, nil
}

var _ repository.ScoreRepository = (*scoreRepository)(nil)
