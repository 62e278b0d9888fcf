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

// Two first sign-ins for the same uid can race on the insert; the loser
// retries once against the winner's row.
const maxCreateAttempts = 2

var errConcurrentCreate = errors.New("account created concurrently")

// accountRepository implements the repository.AccountRepository interface.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{
		db: db,
	}
}

// FindByID retrieves the account keyed by the identity uid.
func (repo *accountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	var accountM model.AccountModel

	if err := repo.db.WithContext(ctx).
		Preload("Devices", orderDevices).
		Where("id = ?", id).
		First(&accountM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}

		return nil, errors.Wrap(err, "failed to find account by ID")
	}

	return toAccountDomain(&accountM), nil
}

// Save writes the account with merge semantics.
func (repo *accountRepository) Save(ctx context.Context, account *entity.Account) error {
	_, err := repo.Update(ctx, account.ID, func(current *entity.Account) (*entity.Account, error) {
		return account.MergeOnto(current), nil
	})

	return err
}

// Update locks the account row, applies fn and writes the result in the same
// transaction.
func (repo *accountRepository) Update(ctx context.Context, id string, fn repository.AccountMutation) (*entity.Account, error) {
	var (
		stored *entity.Account
		err    error
	)

	for range maxCreateAttempts {
		err = inTx(ctx, repo.db, func(tx *gorm.DB) error {
			current, err := lockAccount(tx, id)
			if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
				return err
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
			if err := writeAccount(tx, next, current == nil); err != nil {
				return err
			}
			stored = next

			return nil
		})
		if !errors.Is(err, errConcurrentCreate) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// Delete removes the account, its devices and its score history.
func (repo *accountRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&model.ScoreRecordModel{}).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to delete score history")
		}
		if err := tx.Where("account_id = ?", id).Delete(&model.AccountDeviceModel{}).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to delete devices")
		}
		if err := tx.Where("id = ?", id).Delete(&model.AccountModel{}).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to delete account")
		}

		return nil
	})
}

func lockAccount(tx *gorm.DB, id string) (*entity.Account, error) {
	var accountM model.AccountModel

	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Devices", orderDevices).
		Where("id = ?", id).
		First(&accountM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}

		return nil, errors.Wrap(err, "failed to lock account")
	}

	return toAccountDomain(&accountM), nil
}

func writeAccount(tx *gorm.DB, account *entity.Account, create bool) error {
	accountM := fromAccountDomain(account)
	devices := accountM.Devices
	accountM.Devices = nil

	if create {
		if err := tx.Omit(clause.Associations).Create(accountM).Error; err != nil {
			if isUniqueConstraintViolation(err) {
				return errConcurrentCreate
			}
			if isCheckConstraintViolation(err) {
				return domainerrors.ErrAccountUpdateFailed.WrapMessage("account violates a table constraint")
			}

			return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
		}
	} else {
		if err := tx.Model(&model.AccountModel{}).
			Where("id = ?", accountM.ID).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(accountM).Error; err != nil {
			if isCheckConstraintViolation(err) {
				return domainerrors.ErrAccountUpdateFailed.WrapMessage("account violates a table constraint")
			}

			return domainerrors.NewDatabaseExecuteError(err, "failed to update account")
		}
		if err := tx.Where("account_id = ?", accountM.ID).Delete(&model.AccountDeviceModel{}).Error; err != nil {
			return domainerrors.NewDatabaseExecuteError(err, "failed to replace devices")
		}
	}

	if len(devices) == 0 {
		return nil
	}
	if err := tx.Create(&devices).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to write devices")
	}

	return nil
}

func orderDevices(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
