package impl

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"archer/config"
	deliverycontext "archer/internal/delivery/context"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/policy"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

// origin records how an identity was first obtained, which decides what
// happens when no account exists for it yet.
type origin string

const (
	originPassword origin = "password"
	originSocial   origin = "social"
	originPhone    origin = "phone"
)

// navigation lists the views a user can move to from each view without
// submitting anything.
var navigation = map[entity.FlowView][]entity.FlowView{
	entity.ViewLogin:           {entity.ViewSignup, entity.ViewForgotPassword, entity.ViewPhoneEntry},
	entity.ViewSignup:          {entity.ViewLogin},
	entity.ViewForgotPassword:  {entity.ViewLogin},
	entity.ViewPhoneEntry:      {entity.ViewLogin},
	entity.ViewSMSVerify:       {entity.ViewPhoneEntry, entity.ViewLogin},
	entity.ViewMFAVerify:       {entity.ViewLogin},
	entity.ViewCompleteProfile: {entity.ViewLogin},
}

// recoverableKinds keep the flow in its current view with a message attached.
var recoverableKinds = map[string]bool{
	domainerrors.KindInvalidCredential:           true,
	domainerrors.KindAccountNotFound:             true,
	domainerrors.KindEmailAlreadyRegistered:      true,
	domainerrors.KindProviderUnavailable:         true,
	domainerrors.KindUnverifiedEmail:             true,
	domainerrors.ErrValidationFailed.ErrorCode(): true,
	domainerrors.ErrPasswordStrength.ErrorCode(): true,
}

type authFlowService struct {
	accountRepo repository.AccountRepository
	challenges  repository.ChallengeStore
	identity    service.IdentityProvider
	admin       service.IdentityAdmin
	codec       service.FlowCodec
	mfa         usecase.MFAUsecase
	passwords   service.PasswordPolicy
	notifier    service.NotificationService
	metrics     service.MetricsRecorder
	flowTTL     time.Duration
	redirectTTL time.Duration
	callbackURL string
	logger      *slog.Logger
	now         func() time.Time
}

// AuthFlowServiceParams holds dependencies for AuthFlowService, injected by Fx.
type AuthFlowServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	Challenges  repository.ChallengeStore
	Identity    service.IdentityProvider
	Admin       service.IdentityAdmin
	Codec       service.FlowCodec
	MFA         usecase.MFAUsecase
	Passwords   service.PasswordPolicy
	Notifier    service.NotificationService `optional:"true"`
	Metrics     service.MetricsRecorder     `optional:"true"`
	Config      *config.Config
	Logger      *slog.Logger
}

// NewAuthFlowService is the constructor for authFlowService.
func NewAuthFlowService(params AuthFlowServiceParams) usecase.AuthFlowUsecase {
	srv := &authFlowService{
		accountRepo: params.AccountRepo,
		challenges:  params.Challenges,
		identity:    params.Identity,
		admin:       params.Admin,
		codec:       params.Codec,
		mfa:         params.MFA,
		passwords:   params.Passwords,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		flowTTL:     params.Config.Flow.TTL,
		redirectTTL: params.Config.Flow.RedirectResultTTL,
		logger:      params.Logger,
		now:         time.Now,
	}
	if params.Config.Firebase != nil {
		srv.callbackURL = params.Config.Firebase.RedirectCallbackURL
	}
	if srv.metrics == nil {
		srv.metrics = service.NopMetrics{}
	}

	return srv
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authFlowService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Start opens a flow in LOGIN.
func (srv *authFlowService) Start(ctx context.Context) (*usecase.FlowStep, error) {
	state := &entity.FlowState{ID: uuid.New(), View: entity.ViewLogin}
	srv.log(ctx).Debug("Auth flow started", slog.String("flowID", state.ID.String()))

	return srv.continueAt(state, entity.ViewLogin)
}

// Advance submits input in the state carried by token.
func (srv *authFlowService) Advance(ctx context.Context, token string, client usecase.ClientContext, input usecase.FlowInput) (*usecase.FlowStep, error) {
	state, err := srv.codec.Decode(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode flow state")
	}

	logger := srv.log(ctx).With(slog.String("flowID", state.ID.String()), slog.String("view", string(state.View)))
	logger.Debug("Advancing auth flow", slog.String("method", input.Method()))

	step, err := srv.dispatch(ctx, state, client, input)
	srv.observe(input.Method(), step, err)
	if err != nil {
		logger.Warn("Auth flow step failed", slog.Any("error", err))

		return nil, err
	}

	return step, nil
}

func (srv *authFlowService) dispatch(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, input usecase.FlowInput) (*usecase.FlowStep, error) {
	if nav, ok := input.(usecase.Navigate); ok {
		return srv.navigate(ctx, state, nav.To)
	}

	switch state.View {
	case entity.ViewLogin:
		switch in := input.(type) {
		case usecase.PasswordSignIn:
			return srv.passwordSignIn(ctx, state, client, in)
		case usecase.SocialSignIn:
			return srv.socialSignIn(ctx, state, client, in)
		case usecase.SocialRedirect:
			return srv.socialRedirect(ctx, state, in)
		}
	case entity.ViewSignup:
		if in, ok := input.(usecase.Signup); ok {
			return srv.signup(ctx, state, client, in)
		}
	case entity.ViewForgotPassword:
		if in, ok := input.(usecase.PasswordReset); ok {
			return srv.passwordReset(ctx, state, in)
		}
	case entity.ViewPhoneEntry:
		if in, ok := input.(usecase.PhoneNumber); ok {
			return srv.sendPhoneCode(ctx, state, in)
		}
	case entity.ViewSMSVerify:
		if in, ok := input.(usecase.SMSCode); ok {
			return srv.confirmPhoneCode(ctx, state, client, in)
		}
	case entity.ViewMFAVerify:
		if in, ok := input.(usecase.MFACode); ok {
			return srv.confirmSecondFactor(ctx, state, client, in)
		}
	case entity.ViewCompleteProfile:
		if in, ok := input.(usecase.CompleteProfile); ok {
			return srv.completeProfile(ctx, state, client, in)
		}
	}

	return nil, errors.WithStack(domainerrors.ErrInvalidTransition.WithDetails(
		input.Method() + " is not accepted in " + string(state.View)))
}

// Abandon discards the flow and every secret retained for it.
func (srv *authFlowService) Abandon(ctx context.Context, token string) error {
	state, err := srv.codec.Decode(token)
	if errors.Is(err, domainerrors.ErrFlowExpired) {
		// Expired flows have nothing left to discard that will not expire on its own.
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to decode flow state")
	}

	if err := srv.challenges.Delete(ctx, flowKey(state.ID), redirectPendingKey(state.ID), redirectResultKey(state.ID)); err != nil {
		return errors.Wrap(err, "failed to discard flow secrets")
	}
	srv.log(ctx).Debug("Auth flow abandoned", slog.String("flowID", state.ID.String()), slog.String("view", string(state.View)))

	return nil
}

// StoreRedirectResult completes a redirect sign-in from the provider callback.
func (srv *authFlowService) StoreRedirectResult(ctx context.Context, flowID, callbackURL string) error {
	id, err := uuid.Parse(flowID)
	if err != nil {
		return errors.WithStack(domainerrors.ErrInvalidFlowToken.WithDetails("malformed flow id"))
	}

	// Taking the pending entry makes a replayed callback fail.
	pending, err := takeJSON[entity.Challenge](ctx, srv.challenges, redirectPendingKey(id))
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return errors.WithStack(domainerrors.ErrFlowExpired)
	}
	if err != nil {
		return errors.Wrap(err, "failed to load pending redirect")
	}

	result := entity.Challenge{
		Kind:      entity.ChallengeRedirectResult,
		Provider:  pending.Provider,
		CreatedAt: srv.now(),
	}

	identity, err := srv.identity.SignInWithIdP(ctx, service.IdPCredential{
		ProviderID: pending.Provider,
		RequestURI: callbackURL,
		SessionID:  pending.SessionID,
	})
	if sfr, ok := errors.AsType[*domainerrors.SecondFactorRequiredError](err); ok {
		result.Resolver = &sfr.Resolver
	} else if err != nil {
		return errors.Wrap(err, "failed to complete redirect sign-in")
	} else {
		result.Identity = identity
	}

	if err := putJSON(ctx, srv.challenges, redirectResultKey(id), result, srv.redirectTTL); err != nil {
		return errors.Wrap(err, "failed to park redirect result")
	}
	srv.log(ctx).Info("Redirect sign-in parked for recovery", slog.String("flowID", flowID), slog.String("provider", pending.Provider))

	return nil
}

// RecoverRedirect consumes a parked redirect result at most once.
func (srv *authFlowService) RecoverRedirect(ctx context.Context, token string, client usecase.ClientContext) (*usecase.FlowStep, error) {
	state, err := srv.codec.Decode(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode flow state")
	}
	if state.View != entity.ViewLogin {
		return nil, errors.WithStack(domainerrors.ErrInvalidTransition.WithDetails("redirect recovery runs from LOGIN"))
	}

	result, err := takeJSON[entity.Challenge](ctx, srv.challenges, redirectResultKey(state.ID))
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return srv.continueAt(state, entity.ViewLogin)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to take redirect result")
	}

	srv.log(ctx).Info("Recovering redirect sign-in", slog.String("flowID", state.ID.String()))

	var step *usecase.FlowStep
	switch {
	case result.Resolver != nil:
		step, err = srv.enterSecondFactor(ctx, state, *result.Resolver, originSocial)
	case result.Identity != nil:
		step, err = srv.resolveIdentity(ctx, state, client, result.Identity, originSocial)
	default:
		return nil, errors.WithStack(domainerrors.ErrFlowExpired)
	}
	srv.observe("social_redirect", step, err)

	return step, err
}

func (srv *authFlowService) navigate(ctx context.Context, state *entity.FlowState, to entity.FlowView) (*usecase.FlowStep, error) {
	if !slices.Contains(navigation[state.View], to) {
		return nil, errors.WithStack(domainerrors.ErrInvalidTransition.WithDetails(
			"cannot move from " + string(state.View) + " to " + string(to)))
	}

	if state.View.HoldsChallenge() {
		if err := srv.challenges.Delete(ctx, flowKey(state.ID)); err != nil {
			return nil, errors.Wrap(err, "failed to discard challenge")
		}
	}

	next := *state
	next.Hints = nil
	if to == entity.ViewLogin || to == entity.ViewPhoneEntry {
		next.DisplayName = ""
	}

	return srv.continueAt(&next, to)
}

func (srv *authFlowService) passwordSignIn(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.PasswordSignIn) (*usecase.FlowStep, error) {
	state.Email = in.Email

	identity, err := srv.identity.SignInWithPassword(ctx, in.Email, in.Password)
	if sfr, ok := errors.AsType[*domainerrors.SecondFactorRequiredError](err); ok {
		return srv.enterSecondFactor(ctx, state, sfr.Resolver, originPassword)
	}
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	return srv.resolveIdentity(ctx, state, client, identity, originPassword)
}

func (srv *authFlowService) socialSignIn(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.SocialSignIn) (*usecase.FlowStep, error) {
	identity, err := srv.identity.SignInWithIdP(ctx, service.IdPCredential{
		ProviderID:  in.ProviderID,
		IDToken:     in.IDToken,
		AccessToken: in.AccessToken,
	})
	if sfr, ok := errors.AsType[*domainerrors.SecondFactorRequiredError](err); ok {
		return srv.enterSecondFactor(ctx, state, sfr.Resolver, originSocial)
	}
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	return srv.resolveIdentity(ctx, state, client, identity, originSocial)
}

func (srv *authFlowService) socialRedirect(ctx context.Context, state *entity.FlowState, in usecase.SocialRedirect) (*usecase.FlowStep, error) {
	if srv.callbackURL == "" {
		return srv.fail(ctx, state, domainerrors.ErrProviderUnavailable.WithDetails("redirect sign-in is not configured"))
	}

	continueURI, err := url.Parse(srv.callbackURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redirect callback url")
	}
	query := continueURI.Query()
	query.Set("flow", state.ID.String())
	continueURI.RawQuery = query.Encode()

	authURI, err := srv.identity.CreateAuthURI(ctx, in.ProviderID, continueURI.String())
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	pending := entity.Challenge{
		Kind:      entity.ChallengeRedirectPending,
		Provider:  in.ProviderID,
		SessionID: authURI.SessionID,
		CreatedAt: srv.now(),
	}
	if err := putJSON(ctx, srv.challenges, redirectPendingKey(state.ID), pending, srv.flowTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store pending redirect")
	}

	step, err := srv.continueAt(state, entity.ViewLogin, entity.Notice{
		Message:  "Continue signing in with your browser",
		Severity: entity.SeverityInfo,
	})
	if err != nil {
		return nil, err
	}
	step.RedirectURL = authURI.URL

	return step, nil
}

func (srv *authFlowService) signup(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.Signup) (*usecase.FlowStep, error) {
	now := srv.now()
	state.Email = in.Email

	if in.DateOfBirth != nil && in.DateOfBirth.After(now) {
		return srv.fail(ctx, state, domainerrors.ErrValidationFailed.WithDetails("date of birth is in the future"))
	}
	if err := srv.passwords.ValidatePasswordStrength(in.Password); err != nil {
		return srv.fail(ctx, state, err)
	}

	identity, err := srv.identity.CreateAccount(ctx, in.Email, in.Password, in.Name)
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	seed := entity.NewAccount(identity.UID, in.Name, in.Email, now)
	seed.DateOfBirth = in.DateOfBirth

	return srv.finish(ctx, state, client, identity, seed)
}

func (srv *authFlowService) passwordReset(ctx context.Context, state *entity.FlowState, in usecase.PasswordReset) (*usecase.FlowStep, error) {
	state.Email = in.Email

	if err := srv.identity.SendPasswordResetEmail(ctx, in.Email); err != nil {
		return srv.fail(ctx, state, err)
	}

	return srv.continueAt(state, entity.ViewLogin, entity.Notice{
		Message:  "Password reset email sent to " + in.Email,
		Severity: entity.SeveritySuccess,
	})
}

func (srv *authFlowService) sendPhoneCode(ctx context.Context, state *entity.FlowState, in usecase.PhoneNumber) (*usecase.FlowStep, error) {
	verificationID, err := srv.identity.SendPhoneCode(ctx, in.PhoneNumber, in.ChallengeToken)
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	challenge := entity.Challenge{
		Kind:           entity.ChallengePhoneSignIn,
		VerificationID: verificationID,
		CreatedAt:      srv.now(),
	}
	if err := putJSON(ctx, srv.challenges, flowKey(state.ID), challenge, srv.flowTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store phone challenge")
	}

	state.PhoneNumber = in.PhoneNumber

	return srv.continueAt(state, entity.ViewSMSVerify, entity.Notice{
		Message:  "Verification code sent to " + in.PhoneNumber,
		Severity: entity.SeverityInfo,
	})
}

func (srv *authFlowService) confirmPhoneCode(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.SMSCode) (*usecase.FlowStep, error) {
	challenge, err := srv.loadChallenge(ctx, state, entity.ChallengePhoneSignIn)
	if err != nil {
		return nil, err
	}

	identity, err := srv.identity.ConfirmPhoneCode(ctx, challenge.VerificationID, in.Code)
	if sfr, ok := errors.AsType[*domainerrors.SecondFactorRequiredError](err); ok {
		return srv.enterSecondFactor(ctx, state, sfr.Resolver, originPhone)
	}
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	return srv.resolveIdentity(ctx, state, client, identity, originPhone)
}

func (srv *authFlowService) enterSecondFactor(ctx context.Context, state *entity.FlowState, resolver entity.MFAResolver, from origin) (*usecase.FlowStep, error) {
	stepUp, err := srv.mfa.BeginStepUp(ctx, resolver)
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	challenge := entity.Challenge{
		Kind:           entity.ChallengeSecondFactor,
		Resolver:       &stepUp.Resolver,
		MFASessionInfo: stepUp.SessionInfo,
		Provider:       string(from),
		CreatedAt:      srv.now(),
	}
	if err := putJSON(ctx, srv.challenges, flowKey(state.ID), challenge, srv.flowTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store second factor challenge")
	}

	state.Hints = []entity.FactorHint{stepUp.Hint}
	srv.log(ctx).Info("Second factor required", slog.String("flowID", state.ID.String()), slog.String("origin", string(from)))

	return srv.continueAt(state, entity.ViewMFAVerify, entity.Notice{
		Message:  "Enter the code sent to " + stepUp.Hint.PhoneHint,
		Severity: entity.SeverityInfo,
	})
}

func (srv *authFlowService) confirmSecondFactor(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.MFACode) (*usecase.FlowStep, error) {
	challenge, err := srv.loadChallenge(ctx, state, entity.ChallengeSecondFactor)
	if err != nil {
		return nil, err
	}
	if challenge.Resolver == nil {
		return nil, errors.WithStack(domainerrors.ErrFlowExpired)
	}

	var hint entity.FactorHint
	if len(state.Hints) > 0 {
		hint = state.Hints[0]
	}

	identity, err := srv.mfa.CompleteStepUp(ctx, &usecase.StepUpChallenge{
		Resolver:    *challenge.Resolver,
		Hint:        hint,
		SessionInfo: challenge.MFASessionInfo,
	}, in.Code)
	if err != nil {
		return srv.fail(ctx, state, err)
	}

	return srv.resolveIdentity(ctx, state, client, identity, origin(challenge.Provider))
}

func (srv *authFlowService) completeProfile(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, in usecase.CompleteProfile) (*usecase.FlowStep, error) {
	challenge, err := srv.loadChallenge(ctx, state, entity.ChallengeProfile)
	if err != nil {
		return nil, err
	}
	if challenge.Identity == nil {
		return nil, errors.WithStack(domainerrors.ErrFlowExpired)
	}

	now := srv.now()
	if !in.DateOfBirth.Before(now) {
		return srv.fail(ctx, state, domainerrors.ErrValidationFailed.WithDetails("date of birth must be in the past"))
	}

	identity := challenge.Identity
	dob := in.DateOfBirth
	seed := entity.NewAccount(identity.UID, in.Name, identity.Email, now)
	seed.DateOfBirth = &dob
	seed.Phone = in.Phone
	seed.Profile = entity.Profile{
		BowType:     in.BowType,
		Level:       in.Level,
		Hobby:       in.Hobby,
		SocialLinks: in.SocialLinks,
	}

	return srv.finish(ctx, state, client, identity, seed)
}

// resolveIdentity decides what a signed-in identity leads to: a social
// identity without an account goes to COMPLETE_PROFILE, everything else
// exits, seeding an account when none exists.
func (srv *authFlowService) resolveIdentity(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, identity *entity.Identity, from origin) (*usecase.FlowStep, error) {
	if from != originSocial {
		seed := entity.NewAccount(identity.UID, identity.DisplayName, identity.Email, srv.now())
		seed.Phone = identity.PhoneNumber

		return srv.finish(ctx, state, client, identity, seed)
	}

	_, err := srv.accountRepo.FindByID(ctx, identity.UID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		challenge := entity.Challenge{
			Kind:      entity.ChallengeProfile,
			Identity:  identity,
			Provider:  identity.ProviderID,
			CreatedAt: srv.now(),
		}
		if err := putJSON(ctx, srv.challenges, flowKey(state.ID), challenge, srv.flowTTL); err != nil {
			return nil, errors.Wrap(err, "failed to store pending profile")
		}

		state.Hints = nil
		state.DisplayName = identity.DisplayName
		state.Email = identity.Email

		return srv.continueAt(state, entity.ViewCompleteProfile, entity.Notice{
			Message:  "Tell us a little about yourself to finish signing up",
			Severity: entity.SeverityInfo,
		})
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up account")
	}

	return srv.finish(ctx, state, client, identity, nil)
}

// finish runs device admission and the entitlement refill as one atomic
// update and exits the flow. A rejected device signs the identity back out
// and leaves the account untouched.
func (srv *authFlowService) finish(ctx context.Context, state *entity.FlowState, client usecase.ClientContext, identity *entity.Identity, seed *entity.Account) (*usecase.FlowStep, error) {
	now := srv.now()
	created, newDevice := false, false

	account, err := srv.accountRepo.Update(ctx, identity.UID, func(current *entity.Account) (*entity.Account, error) {
		base := current
		if base == nil {
			if seed == nil {
				return nil, errors.WithStack(domainerrors.ErrAccountNotFound)
			}
			base = seed
			created = true
		}
		newDevice = !base.HasDevice(client.DeviceID)

		next, err := policy.AdmitDevice(base, client.DeviceID, client.Descriptor, client.PushToken, now)
		if err != nil {
			return nil, err
		}
		next, _ = policy.RecomputeEntitlements(next, now)
		if next.Email == "" {
			next.Email = identity.Email
		}
		if next.Phone == "" {
			next.Phone = identity.PhoneNumber
		}
		next.LoggedIn = true
		next.UpdatedAt = now

		return next, nil
	})

	if errors.Is(err, domainerrors.ErrDeviceLimitExceeded) {
		srv.log(ctx).Warn("Device limit reached, signing identity back out",
			slog.String("uid", identity.UID), slog.String("deviceID", client.DeviceID))
		if revokeErr := srv.admin.RevokeSessions(ctx, identity.UID); revokeErr != nil {
			srv.log(ctx).Error("Failed to sign identity back out", slog.String("uid", identity.UID), slog.Any("error", revokeErr))
		}
		srv.discard(ctx, state.ID)

		return nil, errors.Wrap(err, "sign-in aborted")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to commit sign-in")
	}

	srv.discard(ctx, state.ID)
	if newDevice && !created {
		srv.announceDevice(ctx, account, client)
	}

	greeting := "Welcome back, " + account.Name
	if created {
		greeting = "Welcome, " + account.Name
	}
	srv.log(ctx).Info("Sign-in completed", slog.String("uid", account.ID), slog.Bool("created", created), slog.Int("devices", len(account.Devices)))

	return &usecase.FlowStep{
		Result:  &usecase.AuthResult{Account: account, Session: identity.Session},
		Notices: []entity.Notice{{Message: greeting, Severity: entity.SeveritySuccess}},
	}, nil
}

// announceDevice pushes a new-device notice to the account's other devices.
func (srv *authFlowService) announceDevice(ctx context.Context, account *entity.Account, client usecase.ClientContext) {
	if srv.notifier == nil {
		return
	}

	tokens := slices.DeleteFunc(account.PushTokens(), func(t string) bool { return t == client.PushToken })
	if len(tokens) == 0 {
		return
	}

	descriptor := client.Descriptor
	if descriptor == "" {
		descriptor = "a new device"
	}
	_, failed, _, err := srv.notifier.SendBatchNotification(ctx, tokens,
		"New sign-in", "Your account was just used on "+descriptor,
		map[string]string{"type": "new_device", "device_id": client.DeviceID})
	if err != nil || failed > 0 {
		srv.log(ctx).Warn("New device notice not fully delivered", slog.String("uid", account.ID), slog.Int("failed", failed), slog.Any("error", err))
	}
}

func (srv *authFlowService) loadChallenge(ctx context.Context, state *entity.FlowState, kind entity.ChallengeKind) (*entity.Challenge, error) {
	challenge, err := getJSON[entity.Challenge](ctx, srv.challenges, flowKey(state.ID))
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return nil, errors.WithStack(domainerrors.ErrFlowExpired)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load challenge")
	}
	if challenge.Kind != kind {
		return nil, errors.WithStack(domainerrors.ErrFlowExpired)
	}

	return challenge, nil
}

// discard drops the flow's challenge. Failures only delay cleanup until the
// entry expires, so they are logged and not returned.
func (srv *authFlowService) discard(ctx context.Context, id uuid.UUID) {
	if err := srv.challenges.Delete(ctx, flowKey(id)); err != nil {
		srv.log(ctx).Warn("Failed to discard flow challenge", slog.String("flowID", id.String()), slog.Any("error", err))
	}
}

func (srv *authFlowService) continueAt(state *entity.FlowState, view entity.FlowView, notices ...entity.Notice) (*usecase.FlowStep, error) {
	next := *state
	next.View = view
	next.ExpiresAt = srv.now().Add(srv.flowTTL)

	token, err := srv.codec.Encode(&next)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode flow state")
	}

	return &usecase.FlowStep{State: &next, Token: token, Notices: notices}, nil
}

// fail keeps the flow in its current view when err is something the user
// can correct by resubmitting; anything else is returned as is.
func (srv *authFlowService) fail(ctx context.Context, state *entity.FlowState, err error) (*usecase.FlowStep, error) {
	appErr, ok := errors.AsType[domainerrors.AppError](err)
	if !ok || !recoverableKinds[appErr.ErrorCode()] {
		return nil, err
	}

	message := appErr.Message()
	if appErr.ErrorCode() == domainerrors.KindProviderUnavailable && appErr.Details() != "" {
		message = appErr.Details()
	}
	srv.log(ctx).Info("Auth flow step rejected", slog.String("flowID", state.ID.String()), slog.String("kind", appErr.ErrorCode()), slog.Any("error", err))

	step, encErr := srv.continueAt(state, state.View, entity.Notice{Message: message, Severity: entity.SeverityError})
	if encErr != nil {
		return nil, encErr
	}
	step.Failure = &usecase.FlowFailure{Kind: appErr.ErrorCode(), Message: message}

	return step, nil
}

func (srv *authFlowService) observe(method string, step *usecase.FlowStep, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrDeviceLimitExceeded):
		srv.metrics.ObserveSignIn(method, "device_limit")
	case err != nil:
		srv.metrics.ObserveSignIn(method, "error")
	case step == nil:
	case step.Done():
		srv.metrics.ObserveSignIn(method, "success")
	case step.Failure != nil:
		srv.metrics.ObserveSignIn(method, "rejected")
	case step.State != nil && step.State.View == entity.ViewMFAVerify:
		srv.metrics.ObserveSignIn(method, "second_factor")
	}
}
