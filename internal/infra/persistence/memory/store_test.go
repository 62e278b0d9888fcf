package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"archer/internal/domain/entity"
	"archer/internal/domain/policy"
	"archer/internal/domain/repository"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestAccountRepository_UpdateIsAtomicPerAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewStore())
	require.NoError(t, repo.Save(ctx, entity.NewAccount("uid", "A", "a@example.com", now)))

	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = repo.Update(ctx, "uid", func(cur *entity.Account) (*entity.Account, error) {
				return policy.AdmitDevice(cur, fmt.Sprintf("dev-%d", i), "", "", now)
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
		}
	}
	acc, err := repo.FindByID(ctx, "uid")
	require.NoError(t, err)
	assert.Equal(t, entity.MaxDevices, admitted)
	assert.Len(t, acc.Devices, entity.MaxDevices)
}

func TestAccountRepository_UpdateSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewStore())

	_, err := repo.Update(ctx, "missing", func(cur *entity.Account) (*entity.Account, error) {
		assert.Nil(t, cur)

		return nil, nil
	})
	assert.True(t, errors.Is(err, repository.ErrAccountNotFound))

	seeded, err := repo.Update(ctx, "uid", func(cur *entity.Account) (*entity.Account, error) {
		return entity.NewAccount("uid", "A", "", now), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "A", seeded.Name)

	same, err := repo.Update(ctx, "uid", func(cur *entity.Account) (*entity.Account, error) {
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, seeded, same)
}

func TestAccountRepository_SaveMerges(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewStore())
	require.NoError(t, repo.Save(ctx, entity.NewAccount("uid", "Robin", "robin@example.com", now)))

	require.NoError(t, repo.Save(ctx, &entity.Account{ID: "uid", Tier: entity.TierCharge}))

	acc, err := repo.FindByID(ctx, "uid")
	require.NoError(t, err)
	assert.Equal(t, "Robin", acc.Name)
	assert.Equal(t, entity.TierCharge, acc.Tier)
}

func TestScoreRepository_AppendOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	scores := NewScoreRepository(store)
	accounts := NewAccountRepository(store)

	_, err := scores.Append(ctx, "uid", entity.ScoreRecord{Score: 250})
	require.NoError(t, err)
	history, err := scores.Append(ctx, "uid", entity.ScoreRecord{Score: 300})
	require.NoError(t, err)
	assert.Equal(t, []float64{250, 300}, []float64{history[0].Score, history[1].Score})

	require.NoError(t, accounts.Delete(ctx, "uid"))
	history, err = scores.List(ctx, "uid")
	require.NoError(t, err)
	assert.Empty(t, history)
}
