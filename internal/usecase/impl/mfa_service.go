package impl

import (
	"context"
	"log/slog"
	"time"

	"archer/config"
	deliverycontext "archer/internal/delivery/context"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

type mfaService struct {
	accountRepo   repository.AccountRepository
	challenges    repository.ChallengeStore
	identity      service.IdentityProvider
	enrollmentTTL time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// MFAServiceParams holds dependencies for MFAService, injected by Fx.
type MFAServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	Challenges  repository.ChallengeStore
	Identity    service.IdentityProvider
	Config      *config.Config
	Logger      *slog.Logger
}

// NewMFAService is the constructor for mfaService.
func NewMFAService(params MFAServiceParams) usecase.MFAUsecase {
	return &mfaService{
		accountRepo:   params.AccountRepo,
		challenges:    params.Challenges,
		identity:      params.Identity,
		enrollmentTTL: params.Config.Flow.EnrollmentTTL,
		logger:        params.Logger,
		now:           time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *mfaService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// StartEnrollment checks freshness and email verification and sends a code
// to the phone when both hold.
func (srv *mfaService) StartEnrollment(ctx context.Context, p usecase.Principal, input usecase.EnrollmentInput) (*usecase.EnrollmentStep, error) {
	en := &entity.Enrollment{
		ID:          uuid.NewString(),
		AccountID:   p.UID,
		PhoneNumber: input.PhoneNumber,
		DisplayName: input.DisplayName,
		IDToken:     p.IDToken,
		CreatedAt:   srv.now(),
	}
	srv.log(ctx).Info("Starting phone enrollment", slog.String("uid", p.UID), slog.String("enrollmentID", en.ID))

	return srv.advance(ctx, en)
}

// Reauthenticate re-enters the password and resumes the enrollment.
func (srv *mfaService) Reauthenticate(ctx context.Context, p usecase.Principal, enrollmentID, password string) (*usecase.EnrollmentStep, error) {
	en, err := srv.load(ctx, p, enrollmentID, entity.StageAwaitingReauth)
	if err != nil {
		return nil, err
	}

	account, err := srv.accountRepo.FindByID(ctx, p.UID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load account for reauthentication")
	}
	if account.Email == "" {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("account has no password credential"))
	}

	identity, err := srv.identity.SignInWithPassword(ctx, account.Email, password)
	if err != nil {
		return nil, errors.Wrap(err, "reauthentication failed")
	}
	if identity.UID != p.UID {
		return nil, errors.WithStack(domainerrors.ErrForbidden.WithDetails("credential belongs to another account"))
	}

	en.IDToken = identity.Session.IDToken
	step, err := srv.advance(ctx, en)
	if err != nil {
		return nil, err
	}
	step.Session = &identity.Session

	return step, nil
}

// ResendVerificationEmail sends the email verification link again.
func (srv *mfaService) ResendVerificationEmail(ctx context.Context, p usecase.Principal, enrollmentID string) (*usecase.EnrollmentStep, error) {
	en, err := srv.load(ctx, p, enrollmentID, entity.StageAwaitingEmailVerification)
	if err != nil {
		return nil, err
	}

	if err := srv.identity.SendEmailVerification(ctx, en.IDToken); err != nil {
		return nil, errors.Wrap(err, "failed to send verification email")
	}

	return &usecase.EnrollmentStep{
		Enrollment: en,
		Notices:    []entity.Notice{{Message: "Verification email sent", Severity: entity.SeverityInfo}},
	}, nil
}

// RecheckEmailVerification reloads the identity and resumes in place.
func (srv *mfaService) RecheckEmailVerification(ctx context.Context, p usecase.Principal, enrollmentID string) (*usecase.EnrollmentStep, error) {
	en, err := srv.load(ctx, p, enrollmentID, entity.StageAwaitingEmailVerification)
	if err != nil {
		return nil, err
	}

	return srv.advance(ctx, en)
}

// ConfirmEnrollment binds the phone with the received code.
func (srv *mfaService) ConfirmEnrollment(ctx context.Context, p usecase.Principal, enrollmentID, code string) (*usecase.EnrollmentStep, error) {
	en, err := srv.load(ctx, p, enrollmentID, entity.StageCodeSent)
	if err != nil {
		return nil, err
	}

	session, err := srv.identity.FinalizePhoneEnrollment(ctx, en.IDToken, en.SessionInfo, code, en.DisplayName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to confirm enrollment")
	}

	if err := srv.challenges.Delete(ctx, enrollmentKey(en.ID)); err != nil {
		srv.log(ctx).Warn("Failed to discard finished enrollment", slog.String("enrollmentID", en.ID), slog.Any("error", err))
	}

	now := srv.now()
	if _, err := srv.accountRepo.Update(ctx, p.UID, func(current *entity.Account) (*entity.Account, error) {
		if current == nil {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}
		next := current.Clone()
		next.MFAEnabled = true
		next.Phone = en.PhoneNumber
		next.UpdatedAt = now

		return next, nil
	}); err != nil {
		return nil, errors.Wrap(err, "failed to record enrollment")
	}

	en.Stage = entity.StageEnrolled
	en.SessionInfo = ""
	srv.log(ctx).Info("Phone enrolled as second factor", slog.String("uid", p.UID), slog.String("enrollmentID", en.ID))

	return &usecase.EnrollmentStep{
		Enrollment: en,
		Session:    session,
		Notices:    []entity.Notice{{Message: "Two-step verification is on", Severity: entity.SeveritySuccess}},
	}, nil
}

// CancelEnrollment discards a pending enrollment.
func (srv *mfaService) CancelEnrollment(ctx context.Context, p usecase.Principal, enrollmentID string) error {
	if _, err := srv.load(ctx, p, enrollmentID, ""); err != nil {
		return err
	}

	return errors.Wrap(srv.challenges.Delete(ctx, enrollmentKey(enrollmentID)), "failed to discard enrollment")
}

// Unenroll withdraws every factor, continuing past individual failures, and
// turns the local toggle off regardless.
func (srv *mfaService) Unenroll(ctx context.Context, p usecase.Principal) (*entity.UnenrollResult, error) {
	record, err := srv.identity.LookupIdentity(ctx, p.IDToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load enrolled factors")
	}

	result := &entity.UnenrollResult{Outcomes: make([]entity.FactorOutcome, 0, len(record.Factors))}
	for _, factor := range record.Factors {
		outcome := entity.FactorOutcome{EnrollmentID: factor.EnrollmentID, Removed: true}
		if err := srv.identity.WithdrawFactor(ctx, p.IDToken, factor.EnrollmentID); err != nil {
			srv.log(ctx).Warn("Failed to withdraw factor", slog.String("uid", p.UID), slog.String("enrollmentID", factor.EnrollmentID), slog.Any("error", err))
			outcome.Removed = false
			outcome.Error = err.Error()
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	now := srv.now()
	if _, err := srv.accountRepo.Update(ctx, p.UID, func(current *entity.Account) (*entity.Account, error) {
		if current == nil {
			return nil, errors.WithStack(repository.ErrAccountNotFound)
		}
		if !current.MFAEnabled {
			return current, nil
		}
		next := current.Clone()
		next.MFAEnabled = false
		next.UpdatedAt = now

		return next, nil
	}); err != nil {
		return nil, errors.Wrap(err, "failed to record unenrollment")
	}

	if result.OutOfSync() {
		srv.log(ctx).Warn("Second factors out of sync after unenrollment", slog.String("uid", p.UID))
	}

	return result, nil
}

// BeginStepUp selects the first hint and requests a code for it.
func (srv *mfaService) BeginStepUp(ctx context.Context, resolver entity.MFAResolver) (*usecase.StepUpChallenge, error) {
	if len(resolver.Hints) == 0 {
		return nil, errors.WithStack(domainerrors.ErrProviderUnavailable.WithDetails("no enrolled second factor"))
	}

	hint := resolver.Hints[0]
	sessionInfo, err := srv.identity.StartSecondFactorSignIn(ctx, resolver.PendingCredential, hint.EnrollmentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request second factor code")
	}

	return &usecase.StepUpChallenge{Resolver: resolver, Hint: hint, SessionInfo: sessionInfo}, nil
}

// CompleteStepUp exchanges the code for a completed sign-in.
func (srv *mfaService) CompleteStepUp(ctx context.Context, challenge *usecase.StepUpChallenge, code string) (*entity.Identity, error) {
	identity, err := srv.identity.FinalizeSecondFactorSignIn(ctx, challenge.Resolver.PendingCredential, challenge.SessionInfo, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve second factor")
	}

	return identity, nil
}

// advance moves an enrollment as far as it can go: reauthentication and
// email verification both pause it in place.
func (srv *mfaService) advance(ctx context.Context, en *entity.Enrollment) (*usecase.EnrollmentStep, error) {
	record, err := srv.identity.LookupIdentity(ctx, en.IDToken)
	if errors.Is(err, domainerrors.ErrReauthenticationRequired) {
		return srv.pause(ctx, en, entity.StageAwaitingReauth, "Enter your password again to continue")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload identity")
	}
	if record.UID != en.AccountID {
		return nil, errors.WithStack(domainerrors.ErrForbidden.WithDetails("session belongs to another account"))
	}
	if !record.EmailVerified {
		return srv.pause(ctx, en, entity.StageAwaitingEmailVerification, domainerrors.ErrUnverifiedEmail.Message())
	}

	sessionInfo, err := srv.identity.StartPhoneEnrollment(ctx, en.IDToken, en.PhoneNumber)
	if errors.Is(err, domainerrors.ErrReauthenticationRequired) {
		return srv.pause(ctx, en, entity.StageAwaitingReauth, "Enter your password again to continue")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to send enrollment code")
	}

	en.SessionInfo = sessionInfo
	en.Stage = entity.StageCodeSent
	if err := srv.save(ctx, en); err != nil {
		return nil, err
	}

	return &usecase.EnrollmentStep{
		Enrollment: en,
		Notices:    []entity.Notice{{Message: "Verification code sent to " + en.PhoneNumber, Severity: entity.SeverityInfo}},
	}, nil
}

func (srv *mfaService) pause(ctx context.Context, en *entity.Enrollment, stage entity.EnrollmentStage, message string) (*usecase.EnrollmentStep, error) {
	en.Stage = stage
	if err := srv.save(ctx, en); err != nil {
		return nil, err
	}
	srv.log(ctx).Info("Enrollment paused", slog.String("enrollmentID", en.ID), slog.String("stage", string(stage)))

	return &usecase.EnrollmentStep{
		Enrollment: en,
		Notices:    []entity.Notice{{Message: message, Severity: entity.SeverityWarning}},
	}, nil
}

func (srv *mfaService) save(ctx context.Context, en *entity.Enrollment) error {
	return errors.Wrap(putJSON(ctx, srv.challenges, enrollmentKey(en.ID), en, srv.enrollmentTTL), "failed to store enrollment")
}

// load returns the caller's enrollment, checking the stage unless want is empty.
func (srv *mfaService) load(ctx context.Context, p usecase.Principal, id string, want entity.EnrollmentStage) (*entity.Enrollment, error) {
	en, err := getJSON[entity.Enrollment](ctx, srv.challenges, enrollmentKey(id))
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return nil, errors.WithStack(domainerrors.ErrFlowExpired.WithDetails("enrollment not found"))
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load enrollment")
	}
	if en.AccountID != p.UID {
		return nil, errors.WithStack(domainerrors.ErrForbidden)
	}
	if want != "" && en.Stage != want {
		return nil, errors.WithStack(domainerrors.ErrInvalidTransition.WithDetails("enrollment is " + string(en.Stage)))
	}
	return en, nil
}
