package impl

import (
	"context"
	"io"
	"log/slog"
	"time"

	"archer/internal/domain/entity"
	"archer/internal/domain/service"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) VerifyIDToken(ctx context.Context, idToken string) (*service.TokenClaims, error) {
	args := m.Called(ctx, idToken)
	claims, _ := args.Get(0).(*service.TokenClaims)

	return claims, args.Error(1)
}

func (m *mockAdmin) RevokeSessions(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *mockAdmin) DeleteIdentity(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishScoreEvent(ctx context.Context, event *service.ScoreEventMessage) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

type notification struct {
	tokens []string
	title  string
	data   map[string]string
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) SendBatchNotification(_ context.Context, tokens []string, title, _ string, data map[string]string) (int, int, []string, error) {
	n.sent = append(n.sent, notification{tokens: tokens, title: title, data: data})

	return len(tokens), 0, nil, nil
}

type countingMetrics struct {
	signIns map[string]int
	refills map[string]int
	scores  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{signIns: map[string]int{}, refills: map[string]int{}, scores: map[string]int{}}
}

func (m *countingMetrics) ObserveSignIn(method, outcome string) { m.signIns[method+"/"+outcome]++ }
func (m *countingMetrics) ObserveRefill(trigger string)         { m.refills[trigger]++ }
func (m *countingMetrics) ObserveScore(kind string)             { m.scores[kind]++ }

func seededAccount(id string) *entity.Account {
	acc := entity.NewAccount(id, "Ada", id+"@example.com", fixedNow.Add(-time.Hour))
	acc.LoggedIn = true

	return acc
}

// fakeIdentity scripts the identity provider per test; unscripted calls panic.
type fakeIdentity struct {
	service.IdentityProvider

	signInWithPassword    func(email, password string) (*entity.Identity, error)
	createAccount         func(email, password, displayName string) (*entity.Identity, error)
	signInWithIdP         func(cred service.IdPCredential) (*entity.Identity, error)
	createAuthURI         func(providerID, continueURI string) (*service.AuthURI, error)
	sendPasswordReset     func(email string) error
	sendPhoneCode         func(phone string) (string, error)
	confirmPhoneCode      func(verificationID, code string) (*entity.Identity, error)
	startSecondFactor     func(pending, enrollmentID string) (string, error)
	finalizeSecondFactor  func(pending, sessionInfo, code string) (*entity.Identity, error)
	startPhoneEnrollment  func(idToken, phone string) (string, error)
	finalizeEnrollment    func(idToken, sessionInfo, code, displayName string) (*entity.Session, error)
	withdrawFactor        func(idToken, enrollmentID string) error
	lookupIdentity        func(idToken string) (*service.IdentityRecord, error)
	sendEmailVerification func(idToken string) error
}

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, password string) (*entity.Identity, error) {
	return f.signInWithPassword(email, password)
}

func (f *fakeIdentity) CreateAccount(_ context.Context, email, password, displayName string) (*entity.Identity, error) {
	return f.createAccount(email, password, displayName)
}

func (f *fakeIdentity) SignInWithIdP(_ context.Context, cred service.IdPCredential) (*entity.Identity, error) {
	return f.signInWithIdP(cred)
}

func (f *fakeIdentity) CreateAuthURI(_ context.Context, providerID, continueURI string) (*service.AuthURI, error) {
	return f.createAuthURI(providerID, continueURI)
}

func (f *fakeIdentity) SendPasswordResetEmail(_ context.Context, email string) error {
	return f.sendPasswordReset(email)
}

func (f *fakeIdentity) SendPhoneCode(_ context.Context, phone, _ string) (string, error) {
	return f.sendPhoneCode(phone)
}

func (f *fakeIdentity) ConfirmPhoneCode(_ context.Context, verificationID, code string) (*entity.Identity, error) {
	return f.confirmPhoneCode(verificationID, code)
}

func (f *fakeIdentity) StartSecondFactorSignIn(_ context.Context, pending, enrollmentID string) (string, error) {
	return f.startSecondFactor(pending, enrollmentID)
}

func (f *fakeIdentity) FinalizeSecondFactorSignIn(_ context.Context, pending, sessionInfo, code string) (*entity.Identity, error) {
	return f.finalizeSecondFactor(pending, sessionInfo, code)
}

func (f *fakeIdentity) StartPhoneEnrollment(_ context.Context, idToken, phone string) (string, error) {
	return f.startPhoneEnrollment(idToken, phone)
}

func (f *fakeIdentity) FinalizePhoneEnrollment(_ context.Context, idToken, sessionInfo, code, displayName string) (*entity.Session, error) {
	return f.finalizeEnrollment(idToken, sessionInfo, code, displayName)
}

func (f *fakeIdentity) WithdrawFactor(_ context.Context, idToken, enrollmentID string) error {
	return f.withdrawFactor(idToken, enrollmentID)
}

func (f *fakeIdentity) LookupIdentity(_ context.Context, idToken string) (*service.IdentityRecord, error) {
	return f.lookupIdentity(idToken)
}

func (f *fakeIdentity) SendEmailVerification(_ context.Context, idToken string) error {
	return f.sendEmailVerification(idToken)
}
