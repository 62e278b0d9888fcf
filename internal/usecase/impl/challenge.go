// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/json"
	"time"

	"archer/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func flowKey(id uuid.UUID) string           { return "flow:" + id.String() }
func redirectPendingKey(id uuid.UUID) string { return "redirect:pending:" + id.String() }
func redirectResultKey(id uuid.UUID) string  { return "redirect:result:" + id.String() }
func enrollmentKey(id string) string         { return "enrollment:" + id }

func putJSON(ctx context.Context, store repository.ChallengeStore, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}

	return errors.Wrapf(store.Put(ctx, key, data, ttl), "store %s", key)
}

func getJSON[T any](ctx context.Context, store repository.ChallengeStore, key string) (*T, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", key)
	}

	return decodeJSON[T](key, data)
}

func takeJSON[T any](ctx context.Context, store repository.ChallengeStore, key string) (*T, error) {
	data, err := store.Take(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "take %s", key)
	}

	return decodeJSON[T](key, data)
}

func decodeJSON[T any](key string, data []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", key)
	}

	return v, nil
}
