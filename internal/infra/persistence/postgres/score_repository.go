package postgres

import (
	"context"

	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/entity"
	"archer/internal/domain/repository"
	"archer/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// scoreRepository implements the repository.ScoreRepository interface.
type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository is the constructor for scoreRepository.
func NewScoreRepository(db *gorm.DB) repository.ScoreRepository {
	return &scoreRepository{
		db: db,
	}
}

// Append inserts rec and reads the history back under the account row lock,
// so concurrent appends see each other in order.
func (repo *scoreRepository) Append(ctx context.Context, accountID string, rec entity.ScoreRecord) ([]entity.ScoreRecord, error) {
	var history []entity.ScoreRecord

	err := inTx(ctx, repo.db, func(tx *gorm.DB) error {
		var owner model.AccountModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", accountID).
			Take(&owner).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "failed to lock account for score append")
		}

		recordM := &model.ScoreRecordModel{
			AccountID:  accountID,
			Score:      rec.Score,
			Label:      rec.Label,
			RecordedAt: rec.RecordedAt,
		}
		if err := tx.Create(recordM).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to append score")
		}

		history, err = listScores(tx, accountID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return history, nil
}

// List returns the history in append order.
func (repo *scoreRepository) List(ctx context.Context, accountID string) ([]entity.ScoreRecord, error) {
	return listScores(repo.db.WithContext(ctx), accountID)
}

func listScores(db *gorm.DB, accountID string) ([]entity.ScoreRecord, error) {
	var recordModels []*model.ScoreRecordModel

	if err := db.Where("account_id = ?", accountID).
		Order("id").
		Find(&recordModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list scores")
	}

	history := make([]entity.ScoreRecord, 0, len(recordModels))
	for _, recordM := range recordModels {
		history = append(history, toScoreDomain(recordM))
	}

	return history, nil
}
