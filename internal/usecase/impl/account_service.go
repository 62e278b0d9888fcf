package impl

import (
	"context"
	"log/slog"
	"maps"
	"time"

	deliverycontext "archer/internal/delivery/context"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/policy"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/usecase"

	"go.uber.org/fx"
)

type accountService struct {
	accountRepo repository.AccountRepository
	admin       service.IdentityAdmin
	metrics     service.MetricsRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	Admin       service.IdentityAdmin
	Metrics     service.MetricsRecorder `optional:"true"`
	Logger      *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	srv := &accountService{
		accountRepo: params.AccountRepo,
		admin:       params.Admin,
		metrics:     params.Metrics,
		logger:      params.Logger,
		now:         time.Now,
	}
	if srv.metrics == nil {
		srv.metrics = service.NopMetrics{}
	}

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GetAccount refills entitlements on app resume and writes only on change.
func (srv *accountService) GetAccount(ctx context.Context, uid string) (*entity.Account, error) {
	return srv.mutate(ctx, uid, "resume", func(acc *entity.Account, _ time.Time) (*entity.Account, error) {
		return acc, nil
	})
}

// UpdateProfile applies a partial profile edit.
func (srv *accountService) UpdateProfile(ctx context.Context, uid string, input usecase.ProfileInput) (*entity.Account, error) {
	return srv.mutate(ctx, uid, "profile", func(acc *entity.Account, now time.Time) (*entity.Account, error) {
		if input.DateOfBirth != nil && !input.DateOfBirth.Before(now) {
			return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("date of birth must be in the past"))
		}

		next := acc.Clone()
		setIfPresent(&next.Name, input.Name)
		setIfPresent(&next.Phone, input.Phone)
		setIfPresent(&next.Profile.BowType, input.BowType)
		setIfPresent(&next.Profile.Level, input.Level)
		setIfPresent(&next.Profile.Hobby, input.Hobby)
		if input.DateOfBirth != nil {
			dob := *input.DateOfBirth
			next.DateOfBirth = &dob
		}
		if input.SocialLinks != nil {
			next.Profile.SocialLinks = maps.Clone(input.SocialLinks)
		}
		next.UpdatedAt = now

		return next, nil
	})
}

// ListDevices returns the registered devices.
func (srv *accountService) ListDevices(ctx context.Context, uid string) ([]entity.Device, error) {
	acc, err := srv.accountRepo.FindByID(ctx, uid)
	if err != nil {
		return nil, srv.mapNotFound(err, "failed to load account devices")
	}

	return acc.Devices, nil
}

// RemoveDevice drops one device from the list.
func (srv *accountService) RemoveDevice(ctx context.Context, uid, deviceID string) (*entity.Account, error) {
	acc, err := srv.mutate(ctx, uid, "device", func(acc *entity.Account, now time.Time) (*entity.Account, error) {
		next, err := policy.RemoveDevice(acc, deviceID)
		if err != nil {
			return nil, err
		}
		next.UpdatedAt = now

		return next, nil
	})
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Info("Device removed", slog.String("uid", uid), slog.String("deviceID", deviceID))

	return acc, nil
}

// ConsumeTokens charges chat tokens after refilling.
func (srv *accountService) ConsumeTokens(ctx context.Context, uid string, amount int64) (*entity.Account, error) {
	return srv.mutate(ctx, uid, "usage", func(acc *entity.Account, now time.Time) (*entity.Account, error) {
		return policy.ConsumeTokens(acc, amount, now)
	})
}

// RecordImageGeneration charges one generated image after refilling.
func (srv *accountService) RecordImageGeneration(ctx context.Context, uid string) (*entity.Account, error) {
	return srv.mutate(ctx, uid, "usage", func(acc *entity.Account, now time.Time) (*entity.Account, error) {
		return policy.ConsumeImage(acc, now)
	})
}

// ChangeSubscription moves the account to another tier.
func (srv *accountService) ChangeSubscription(ctx context.Context, uid string, input usecase.SubscriptionInput) (*entity.Account, error) {
	acc, err := srv.mutate(ctx, uid, "subscription", func(acc *entity.Account, now time.Time) (*entity.Account, error) {
		return policy.ApplySubscription(acc, input.Tier, input.ExpiresAt, now)
	})
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Info("Subscription changed", slog.String("uid", uid), slog.String("tier", acc.Tier.String()))

	return acc, nil
}

// SignOut clears the logged-in flag and revokes provider sessions.
func (srv *accountService) SignOut(ctx context.Context, uid string) error {
	if _, err := srv.accountRepo.Update(ctx, uid, func(current *entity.Account) (*entity.Account, error) {
		if current == nil || !current.LoggedIn {
			return current, nil
		}
		next := current.Clone()
		next.LoggedIn = false
		next.UpdatedAt = srv.now()

		return next, nil
	}); err != nil {
		return errors.Wrap(err, "failed to clear logged-in flag")
	}

	if err := srv.admin.RevokeSessions(ctx, uid); err != nil {
		return errors.Wrap(err, "failed to revoke sessions")
	}
	srv.log(ctx).Info("Signed out", slog.String("uid", uid))

	return nil
}

// DeleteAccount removes a Free account, its history and its identity.
func (srv *accountService) DeleteAccount(ctx context.Context, uid string) error {
	acc, err := srv.GetAccount(ctx, uid)
	if err != nil {
		return err
	}
	if acc.Tier != entity.TierFree {
		return errors.WithStack(domainerrors.ErrSubscriptionActive)
	}

	if err := srv.accountRepo.Delete(ctx, uid); err != nil {
		return errors.Wrap(err, "failed to delete account")
	}
	if err := srv.admin.DeleteIdentity(ctx, uid); err != nil {
		return errors.Wrap(err, "failed to delete identity")
	}
	srv.log(ctx).Info("Account deleted", slog.String("uid", uid))

	return nil
}

// mutate refills entitlements and then applies fn in one atomic update.
// Nothing is written when neither the refill nor fn changed the record.
func (srv *accountService) mutate(ctx context.Context, uid, trigger string, fn func(*entity.Account, time.Time) (*entity.Account, error)) (*entity.Account, error) {
	now := srv.now()
	refilled := false

	acc, err := srv.accountRepo.Update(ctx, uid, func(current *entity.Account) (*entity.Account, error) {
		if current == nil {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}

		next, changed := policy.RecomputeEntitlements(current, now)
		refilled = changed

		return fn(next, now)
	})
	if err != nil {
		return nil, srv.mapNotFound(err, "failed to update account")
	}
	if refilled {
		srv.metrics.ObserveRefill(trigger)
		srv.log(ctx).Debug("Entitlements refilled", slog.String("uid", uid), slog.String("trigger", trigger))
	}

	return acc, nil
}

func (srv *accountService) mapNotFound(err error, msg string) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return errors.Wrap(domainerrors.ErrAccountNotFound, msg)
	}

	return errors.Wrap(err, msg)
}

func setIfPresent(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
