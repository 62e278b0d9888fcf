package impl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"archer/config"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/repository"
	"archer/internal/domain/service"
	"archer/internal/errors"
	"archer/internal/infra/challenge"
	"archer/internal/infra/persistence/memory"
	"archer/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// plainCodec is an unsigned FlowCodec for tests.
type plainCodec struct{}

func (plainCodec) Encode(state *entity.FlowState) (string, error) {
	data, err := json.Marshal(state)

	return base64.RawURLEncoding.EncodeToString(data), err
}

func (plainCodec) Decode(token string) (*entity.FlowState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.WithStack(domainerrors.ErrInvalidFlowToken)
	}
	var state entity.FlowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.WithStack(domainerrors.ErrInvalidFlowToken)
	}

	return &state, nil
}

type passwordFunc func(string) error

func (f passwordFunc) ValidatePasswordStrength(pw string) error { return f(pw) }

type flowFixture struct {
	srv        *authFlowService
	accounts   repository.AccountRepository
	challenges *challenge.MemoryStore
	identity   *fakeIdentity
	admin      *mockAdmin
	notifier   *recordingNotifier
	metrics    *countingMetrics
}

const callbackBase = "https://archer.example.com/auth/redirect/callback"

func newFlowFixture(t *testing.T, accounts ...*entity.Account) flowFixture {
	t.Helper()

	repo := memory.NewAccountRepository(memory.NewStore())
	for _, acc := range accounts {
		require.NoError(t, repo.Save(context.Background(), acc))
	}

	cfg := &config.Config{
		Flow:     &config.FlowConfig{TTL: 15 * time.Minute, RedirectResultTTL: 5 * time.Minute, EnrollmentTTL: 10 * time.Minute},
		Firebase: &config.FirebaseConfig{RedirectCallbackURL: callbackBase},
	}
	challenges := challenge.NewMemoryStore()
	identity := &fakeIdentity{}
	admin := &mockAdmin{}
	notifier := &recordingNotifier{}
	metrics := newCountingMetrics()

	mfa := NewMFAService(MFAServiceParams{
		AccountRepo: repo,
		Challenges:  challenges,
		Identity:    identity,
		Config:      cfg,
		Logger:      discardLogger(),
	})
	srv := NewAuthFlowService(AuthFlowServiceParams{
		AccountRepo: repo,
		Challenges:  challenges,
		Identity:    identity,
		Admin:       admin,
		Codec:       plainCodec{},
		MFA:         mfa,
		Passwords:   passwordFunc(func(string) error { return nil }),
		Notifier:    notifier,
		Metrics:     metrics,
		Config:      cfg,
		Logger:      discardLogger(),
	}).(*authFlowService)
	srv.now = func() time.Time { return fixedNow }

	return flowFixture{
		srv:        srv,
		accounts:   repo,
		challenges: challenges,
		identity:   identity,
		admin:      admin,
		notifier:   notifier,
		metrics:    metrics,
	}
}

var laptop = usecase.ClientContext{DeviceID: "laptop", Descriptor: "archerctl/linux-amd64", PushToken: "push-laptop"}

func (f flowFixture) start(t *testing.T) *usecase.FlowStep {
	t.Helper()

	step, err := f.srv.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, entity.ViewLogin, step.State.View)

	return step
}

func (f flowFixture) at(t *testing.T, view entity.FlowView) *usecase.FlowStep {
	t.Helper()

	step := f.start(t)
	if view == entity.ViewLogin {
		return step
	}
	next, err := f.srv.Advance(context.Background(), step.Token, laptop, usecase.Navigate{To: view})
	require.NoError(t, err)
	require.Equal(t, view, next.State.View)

	return next
}

func passwordIdentity(uid string) *entity.Identity {
	return &entity.Identity{
		UID:        uid,
		Email:      uid + "@example.com",
		ProviderID: "password",
		Session:    entity.Session{IDToken: "id-" + uid, RefreshToken: "refresh-" + uid},
	}
}

func TestAuthFlow_Start(t *testing.T) {
	f := newFlowFixture(t)

	step := f.start(t)

	assert.NotEmpty(t, step.Token)
	assert.False(t, step.Done())
	assert.Equal(t, fixedNow.Add(15*time.Minute), step.State.ExpiresAt)
}

func TestAuthFlow_PasswordSignInSeedsAccount(t *testing.T) {
	f := newFlowFixture(t)
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return passwordIdentity("u1"), nil
	}

	step, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})

	require.NoError(t, err)
	require.True(t, step.Done())
	assert.Equal(t, "id-u1", step.Result.Session.IDToken)

	acc := step.Result.Account
	assert.Equal(t, entity.TierFree, acc.Tier)
	assert.True(t, acc.LoggedIn)
	require.Len(t, acc.Devices, 1)
	assert.Equal(t, "laptop", acc.Devices[0].ID)
	assert.Equal(t, fixedNow, acc.Devices[0].LastActive)
	assert.Equal(t, 1, f.metrics.signIns["password/success"])
}

func TestAuthFlow_RecoverableErrorStaysInView(t *testing.T) {
	f := newFlowFixture(t)
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return nil, errors.WithStack(domainerrors.ErrInvalidCredential)
	}
	start := f.start(t)

	step, err := f.srv.Advance(context.Background(), start.Token, laptop, usecase.PasswordSignIn{Email: "a@example.com", Password: "bad"})

	require.NoError(t, err)
	assert.False(t, step.Done())
	assert.Equal(t, entity.ViewLogin, step.State.View)
	assert.Equal(t, "a@example.com", step.State.Email, "the email is kept as prefill")
	require.NotNil(t, step.Failure)
	assert.Equal(t, domainerrors.KindInvalidCredential, step.Failure.Kind)
	assert.Equal(t, 1, f.metrics.signIns["password/rejected"])
}

func TestAuthFlow_DeviceLimitSignsBackOut(t *testing.T) {
	acc := seededAccount("u1")
	acc.Devices = []entity.Device{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	acc.LoggedIn = false
	f := newFlowFixture(t, acc)
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return passwordIdentity("u1"), nil
	}
	f.admin.On("RevokeSessions", mock.Anything, "u1").Return(nil).Once()

	_, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})

	assert.ErrorIs(t, err, domainerrors.ErrDeviceLimitExceeded)
	f.admin.AssertExpectations(t)
	assert.Equal(t, 1, f.metrics.signIns["password/device_limit"])

	stored, err := f.accounts.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, stored.Devices, 3)
	assert.False(t, stored.LoggedIn, "nothing is persisted")
}

func TestAuthFlow_KnownDeviceOnFullAccount(t *testing.T) {
	acc := seededAccount("u1")
	acc.Devices = []entity.Device{{ID: "a"}, {ID: "laptop"}, {ID: "c"}}
	f := newFlowFixture(t, acc)
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return passwordIdentity("u1"), nil
	}

	step, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})

	require.NoError(t, err)
	assert.Len(t, step.Result.Account.Devices, 3)
	assert.Equal(t, "push-laptop", step.Result.Account.Devices[1].PushToken)
	assert.Empty(t, f.notifier.sent, "a known device is not announced")
}

func TestAuthFlow_NewDeviceIsAnnounced(t *testing.T) {
	acc := seededAccount("u1")
	acc.Devices = []entity.Device{{ID: "phone", PushToken: "push-phone"}}
	f := newFlowFixture(t, acc)
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return passwordIdentity("u1"), nil
	}

	_, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})

	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, []string{"push-phone"}, f.notifier.sent[0].tokens)
	assert.Equal(t, "new_device", f.notifier.sent[0].data["type"])
}

func TestAuthFlow_SecondFactor(t *testing.T) {
	f := newFlowFixture(t)
	resolver := entity.MFAResolver{
		PendingCredential: "secret-pending",
		Hints:             []entity.FactorHint{{EnrollmentID: "e1", PhoneHint: "+*******0100"}},
	}
	f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
		return nil, &domainerrors.SecondFactorRequiredError{Resolver: resolver}
	}
	f.identity.startSecondFactor = func(string, string) (string, error) { return "mfa-session", nil }
	f.identity.finalizeSecondFactor = func(pending, sessionInfo, code string) (*entity.Identity, error) {
		assert.Equal(t, "secret-pending", pending)
		assert.Equal(t, "mfa-session", sessionInfo)
		if code != "123456" {
			return nil, errors.WithStack(domainerrors.ErrInvalidCredential)
		}

		return passwordIdentity("u1"), nil
	}

	mfaStep, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, entity.ViewMFAVerify, mfaStep.State.View)
	assert.Equal(t, []entity.FactorHint{resolver.Hints[0]}, mfaStep.State.Hints)
	assert.NotContains(t, mfaStep.Token, "secret-pending")
	assert.Equal(t, 1, f.challenges.Len())
	assert.Equal(t, 1, f.metrics.signIns["password/second_factor"])

	_, err = f.accounts.FindByID(context.Background(), "u1")
	require.True(t, errors.Is(err, repository.ErrAccountNotFound), "nothing is committed before the challenge resolves")

	retry, err := f.srv.Advance(context.Background(), mfaStep.Token, laptop, usecase.MFACode{Code: "000000"})
	require.NoError(t, err)
	assert.Equal(t, entity.ViewMFAVerify, retry.State.View)
	require.NotNil(t, retry.Failure)

	done, err := f.srv.Advance(context.Background(), retry.Token, laptop, usecase.MFACode{Code: "123456"})
	require.NoError(t, err)
	assert.True(t, done.Done())
	assert.Zero(t, f.challenges.Len(), "the resolver is discarded after use")
}

func TestAuthFlow_PhoneSignIn(t *testing.T) {
	f := newFlowFixture(t)
	f.identity.sendPhoneCode = func(phone string) (string, error) { return "verify-" + phone, nil }
	f.identity.confirmPhoneCode = func(verificationID, code string) (*entity.Identity, error) {
		assert.Equal(t, "verify-+15550100", verificationID)

		return &entity.Identity{UID: "p1", PhoneNumber: "+15550100", ProviderID: "phone"}, nil
	}

	entry := f.at(t, entity.ViewPhoneEntry)
	sms, err := f.srv.Advance(context.Background(), entry.Token, laptop, usecase.PhoneNumber{PhoneNumber: "+15550100"})
	require.NoError(t, err)
	assert.Equal(t, entity.ViewSMSVerify, sms.State.View)
	assert.Equal(t, "+15550100", sms.State.PhoneNumber)

	done, err := f.srv.Advance(context.Background(), sms.Token, laptop, usecase.SMSCode{Code: "123456"})
	require.NoError(t, err)
	require.True(t, done.Done())
	assert.Equal(t, "+15550100", done.Result.Account.Phone)
}

func TestAuthFlow_NavigationDiscardsChallenge(t *testing.T) {
	f := newFlowFixture(t)
	f.identity.sendPhoneCode = func(string) (string, error) { return "verify", nil }

	entry := f.at(t, entity.ViewPhoneEntry)
	sms, err := f.srv.Advance(context.Background(), entry.Token, laptop, usecase.PhoneNumber{PhoneNumber: "+15550100"})
	require.NoError(t, err)
	require.Equal(t, 1, f.challenges.Len())

	back, err := f.srv.Advance(context.Background(), sms.Token, laptop, usecase.Navigate{To: entity.ViewPhoneEntry})
	require.NoError(t, err)
	assert.Equal(t, entity.ViewPhoneEntry, back.State.View)
	assert.Zero(t, f.challenges.Len())

	_, err = f.srv.Advance(context.Background(), sms.Token, laptop, usecase.SMSCode{Code: "123456"})
	assert.ErrorIs(t, err, domainerrors.ErrFlowExpired, "an old token cannot reuse a discarded challenge")
}

func TestAuthFlow_InvalidTransitions(t *testing.T) {
	f := newFlowFixture(t)
	signup := f.at(t, entity.ViewSignup)

	_, err := f.srv.Advance(context.Background(), signup.Token, laptop, usecase.PasswordSignIn{Email: "a@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	_, err = f.srv.Advance(context.Background(), signup.Token, laptop, usecase.Navigate{To: entity.ViewMFAVerify})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTransition)

	_, err = f.srv.Advance(context.Background(), "not-a-token", laptop, usecase.Navigate{To: entity.ViewLogin})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidFlowToken)
}

func TestAuthFlow_Signup(t *testing.T) {
	t.Run("weak password stays in SIGNUP", func(t *testing.T) {
		f := newFlowFixture(t)
		f.srv.passwords = passwordFunc(func(string) error {
			return errors.WithStack(domainerrors.ErrPasswordStrength.WithDetails("too short"))
		})

		step, err := f.srv.Advance(context.Background(), f.at(t, entity.ViewSignup).Token, laptop, usecase.Signup{Name: "Ada", Email: "ada@example.com", Password: "x"})

		require.NoError(t, err)
		assert.Equal(t, entity.ViewSignup, step.State.View)
		assert.Equal(t, "PASSWORD_STRENGTH", step.Failure.Kind)
	})

	t.Run("creates account with date of birth", func(t *testing.T) {
		f := newFlowFixture(t)
		f.identity.createAccount = func(email, _, name string) (*entity.Identity, error) {
			return &entity.Identity{UID: "n1", Email: email, DisplayName: name, IsNewUser: true}, nil
		}
		dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)

		step, err := f.srv.Advance(context.Background(), f.at(t, entity.ViewSignup).Token, laptop, usecase.Signup{Name: "Ada", Email: "ada@example.com", Password: "Str0ng!pw", DateOfBirth: &dob})

		require.NoError(t, err)
		require.True(t, step.Done())
		assert.Equal(t, "Ada", step.Result.Account.Name)
		assert.Equal(t, 35, *step.Result.Account.Age(fixedNow))
		assert.Equal(t, "Welcome, Ada", step.Notices[0].Message)
	})

	t.Run("existing email stays in SIGNUP", func(t *testing.T) {
		f := newFlowFixture(t)
		f.identity.createAccount = func(string, string, string) (*entity.Identity, error) {
			return nil, errors.WithStack(domainerrors.ErrEmailAlreadyRegistered)
		}

		step, err := f.srv.Advance(context.Background(), f.at(t, entity.ViewSignup).Token, laptop, usecase.Signup{Name: "Ada", Email: "ada@example.com", Password: "Str0ng!pw"})

		require.NoError(t, err)
		assert.Equal(t, domainerrors.KindEmailAlreadyRegistered, step.Failure.Kind)
	})
}

func TestAuthFlow_PasswordReset(t *testing.T) {
	f := newFlowFixture(t)
	var sentTo string
	f.identity.sendPasswordReset = func(email string) error {
		sentTo = email

		return nil
	}

	step, err := f.srv.Advance(context.Background(), f.at(t, entity.ViewForgotPassword).Token, laptop, usecase.PasswordReset{Email: "ada@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sentTo)
	assert.Equal(t, entity.ViewLogin, step.State.View)
	assert.Equal(t, "ada@example.com", step.State.Email)
	assert.Equal(t, entity.SeveritySuccess, step.Notices[0].Severity)
}

func TestAuthFlow_SocialNewUserCompletesProfile(t *testing.T) {
	f := newFlowFixture(t)
	f.identity.signInWithIdP = func(cred service.IdPCredential) (*entity.Identity, error) {
		assert.Equal(t, "google.com", cred.ProviderID)

		return &entity.Identity{UID: "g1", Email: "g1@example.com", DisplayName: "Grace", ProviderID: "google.com", IsNewUser: true}, nil
	}

	profile, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.SocialSignIn{ProviderID: "google.com", IDToken: "google-id"})
	require.NoError(t, err)
	assert.Equal(t, entity.ViewCompleteProfile, profile.State.View)
	assert.Equal(t, "Grace", profile.State.DisplayName)

	_, err = f.accounts.FindByID(context.Background(), "g1")
	require.True(t, errors.Is(err, repository.ErrAccountNotFound), "no account before the profile is complete")

	done, err := f.srv.Advance(context.Background(), profile.Token, laptop, usecase.CompleteProfile{
		Name:        "Grace H.",
		DateOfBirth: time.Date(1985, 12, 9, 0, 0, 0, 0, time.UTC),
		BowType:     "compound",
	})
	require.NoError(t, err)
	require.True(t, done.Done())
	assert.Equal(t, "Grace H.", done.Result.Account.Name)
	assert.Equal(t, "g1@example.com", done.Result.Account.Email)
	assert.Equal(t, "compound", done.Result.Account.Profile.BowType)
}

func TestAuthFlow_SocialExistingAccountExits(t *testing.T) {
	f := newFlowFixture(t, seededAccount("g1"))
	f.identity.signInWithIdP = func(service.IdPCredential) (*entity.Identity, error) {
		return &entity.Identity{UID: "g1", ProviderID: "google.com"}, nil
	}

	step, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.SocialSignIn{ProviderID: "google.com", IDToken: "google-id"})

	require.NoError(t, err)
	assert.True(t, step.Done())
	assert.Equal(t, "Welcome back, Ada", step.Notices[0].Message)
}

func TestAuthFlow_RedirectRecoveryIsOnceOnly(t *testing.T) {
	f := newFlowFixture(t, seededAccount("g1"))
	f.identity.createAuthURI = func(providerID, continueURI string) (*service.AuthURI, error) {
		u, err := url.Parse(continueURI)
		require.NoError(t, err)
		assert.NotEmpty(t, u.Query().Get("flow"))

		return &service.AuthURI{URL: "https://accounts.example.com/o/auth", SessionID: "sess-1"}, nil
	}
	f.identity.signInWithIdP = func(cred service.IdPCredential) (*entity.Identity, error) {
		assert.Equal(t, "sess-1", cred.SessionID)
		assert.Contains(t, cred.RequestURI, callbackBase)

		return &entity.Identity{UID: "g1", ProviderID: "google.com"}, nil
	}

	login := f.start(t)
	parked, err := f.srv.Advance(context.Background(), login.Token, laptop, usecase.SocialRedirect{ProviderID: "google.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com/o/auth", parked.RedirectURL)
	assert.Equal(t, entity.ViewLogin, parked.State.View)

	flowID := parked.State.ID.String()
	callback := callbackBase + "?flow=" + flowID + "&code=abc"
	require.NoError(t, f.srv.StoreRedirectResult(context.Background(), flowID, callback))
	assert.ErrorIs(t, f.srv.StoreRedirectResult(context.Background(), flowID, callback), domainerrors.ErrFlowExpired, "a replayed callback is rejected")

	first, err := f.srv.RecoverRedirect(context.Background(), parked.Token, laptop)
	require.NoError(t, err)
	assert.True(t, first.Done())

	second, err := f.srv.RecoverRedirect(context.Background(), parked.Token, laptop)
	require.NoError(t, err)
	assert.False(t, second.Done(), "the result is consumed once")
	assert.Equal(t, entity.ViewLogin, second.State.View)
}

func TestAuthFlow_Abandon(t *testing.T) {
	t.Run("sms verification", func(t *testing.T) {
		f := newFlowFixture(t)
		f.identity.sendPhoneCode = func(string) (string, error) { return "verify", nil }

		sms, err := f.srv.Advance(context.Background(), f.at(t, entity.ViewPhoneEntry).Token, laptop, usecase.PhoneNumber{PhoneNumber: "+15550100"})
		require.NoError(t, err)
		require.Equal(t, 1, f.challenges.Len())

		require.NoError(t, f.srv.Abandon(context.Background(), sms.Token))
		assert.Zero(t, f.challenges.Len())
	})

	t.Run("second factor drops the resolver", func(t *testing.T) {
		f := newFlowFixture(t)
		f.identity.signInWithPassword = func(string, string) (*entity.Identity, error) {
			return nil, &domainerrors.SecondFactorRequiredError{Resolver: entity.MFAResolver{
				PendingCredential: "secret-pending",
				Hints:             []entity.FactorHint{{EnrollmentID: "e1", PhoneHint: "+*******0100"}},
			}}
		}
		f.identity.startSecondFactor = func(string, string) (string, error) { return "mfa-session", nil }

		mfaStep, err := f.srv.Advance(context.Background(), f.start(t).Token, laptop, usecase.PasswordSignIn{Email: "u1@example.com", Password: "pw"})
		require.NoError(t, err)
		require.Equal(t, entity.ViewMFAVerify, mfaStep.State.View)
		require.Equal(t, 1, f.challenges.Len())

		require.NoError(t, f.srv.Abandon(context.Background(), mfaStep.Token))
		assert.Zero(t, f.challenges.Len())

		_, err = f.srv.Advance(context.Background(), mfaStep.Token, laptop, usecase.MFACode{Code: "123456"})
		assert.ErrorIs(t, err, domainerrors.ErrFlowExpired)
	})
}
