package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"archer/config"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"
	"archer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Path string
	Key  string
	Body map[string]any
}

func newToolkitServer(t *testing.T, responses map[string]func(w http.ResponseWriter)) (*toolkitClient, *[]recordedCall) {
	t.Helper()

	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*calls = append(*calls, recordedCall{Path: r.URL.Path, Key: r.URL.Query().Get("key"), Body: body})

		respond, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}
		w.Header().Set("Content-Type", "application/json")
		respond(w)
	}))
	t.Cleanup(srv.Close)

	provider, err := NewToolkitClient(&config.Config{Firebase: &config.FirebaseConfig{
		APIKey:           "test-key",
		IdentityEndpoint: srv.URL,
	}})
	require.NoError(t, err)

	client := provider.(*toolkitClient)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	return client, calls
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestToolkit_SignInWithPassword(t *testing.T) {
	client, calls := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v1/accounts:signInWithPassword": reply(http.StatusOK,
			`{"localId":"uid-1","email":"robin@example.com","idToken":"id","refreshToken":"rt","expiresIn":"3600"}`),
	})

	ident, err := client.SignInWithPassword(context.Background(), "robin@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", ident.UID)
	assert.Equal(t, "password", ident.ProviderID)
	assert.Equal(t, "id", ident.Session.IDToken)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), ident.Session.ExpiresAt)
	require.Len(t, *calls, 1)
	assert.Equal(t, "test-key", (*calls)[0].Key)
	assert.Equal(t, true, (*calls)[0].Body["returnSecureToken"])
}

func TestToolkit_SecondFactorRequired(t *testing.T) {
	client, _ := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v1/accounts:signInWithPassword": reply(http.StatusOK,
			`{"localId":"uid-1","mfaPendingCredential":"pending","mfaInfo":[{"mfaEnrollmentId":"f1","displayName":"Phone","phoneInfo":"+*******1234"}]}`),
	})

	_, err := client.SignInWithPassword(context.Background(), "robin@example.com", "pw")

	sfe, ok := errors.AsType[*domainerrors.SecondFactorRequiredError](err)
	require.True(t, ok)
	assert.Equal(t, "pending", sfe.Resolver.PendingCredential)
	require.Len(t, sfe.Resolver.Hints, 1)
	assert.Equal(t, "f1", sfe.Resolver.Hints[0].EnrollmentID)
	assert.Equal(t, "+*******1234", sfe.Resolver.Hints[0].PhoneHint)
}

func TestToolkit_ErrorMapping(t *testing.T) {
	testCases := []struct {
		message string
		want    error
	}{
		{"INVALID_PASSWORD", domainerrors.ErrInvalidCredential},
		{"INVALID_LOGIN_CREDENTIALS", domainerrors.ErrInvalidCredential},
		{"EMAIL_NOT_FOUND", domainerrors.ErrAccountNotFound},
		{"EMAIL_EXISTS", domainerrors.ErrEmailAlreadyRegistered},
		{"CREDENTIAL_TOO_OLD_LOGIN_AGAIN", domainerrors.ErrReauthenticationRequired},
		{"UNVERIFIED_EMAIL", domainerrors.ErrUnverifiedEmail},
		{"WEAK_PASSWORD : Password should be at least 6 characters", domainerrors.ErrPasswordStrength},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", domainerrors.ErrProviderUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.message, func(t *testing.T) {
			body, _ := json.Marshal(map[string]any{"error": map[string]any{"code": 400, "message": tc.message}})
			client, _ := newToolkitServer(t, map[string]func(http.ResponseWriter){
				"/v1/accounts:signInWithPassword": reply(http.StatusBadRequest, string(body)),
			})

			_, err := client.SignInWithPassword(context.Background(), "robin@example.com", "pw")
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestToolkit_ProviderUnreachable(t *testing.T) {
	client, _ := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v1/accounts:signUp": reply(http.StatusInternalServerError, `<html>oops</html>`),
	})

	_, err := client.CreateAccount(context.Background(), "robin@example.com", "pw", "Robin")
	assert.True(t, errors.Is(err, domainerrors.ErrProviderUnavailable))
}

func TestToolkit_SignInWithIdPInlineAndRedirect(t *testing.T) {
	client, calls := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v1/accounts:signInWithIdp": reply(http.StatusOK,
			`{"localId":"uid-2","email":"a@example.com","providerId":"google.com","isNewUser":true,"idToken":"id","expiresIn":"3600"}`),
	})

	ident, err := client.SignInWithIdP(context.Background(), service.IdPCredential{ProviderID: "google.com", IDToken: "g-token"})
	require.NoError(t, err)
	assert.True(t, ident.IsNewUser)
	assert.Equal(t, "google.com", ident.ProviderID)
	assert.Equal(t, inlineRequestURI, (*calls)[0].Body["requestUri"])
	assert.Contains(t, (*calls)[0].Body["postBody"], "id_token=g-token")

	_, err = client.SignInWithIdP(context.Background(), service.IdPCredential{
		ProviderID: "google.com",
		RequestURI: "https://archer.example/auth/redirect/callback?flow=1&code=x",
		SessionID:  "sess",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess", (*calls)[1].Body["sessionId"])
	assert.NotContains(t, (*calls)[1].Body, "postBody")
}

func TestToolkit_FinalizeSecondFactorReloadsIdentity(t *testing.T) {
	client, calls := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v2/accounts/mfaSignIn:finalize": reply(http.StatusOK, `{"idToken":"fresh","refreshToken":"rt"}`),
		"/v1/accounts:lookup": reply(http.StatusOK,
			`{"users":[{"localId":"uid-1","email":"robin@example.com","emailVerified":true,"lastLoginAt":"1714554000000"}]}`),
	})

	ident, err := client.FinalizeSecondFactorSignIn(context.Background(), "pending", "session", "123456")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", ident.UID)
	assert.Equal(t, "fresh", ident.Session.IDToken)
	require.Len(t, *calls, 2)
	assert.Equal(t, "fresh", (*calls)[1].Body["idToken"])
}

func TestToolkit_LookupIdentityFactors(t *testing.T) {
	client, _ := newToolkitServer(t, map[string]func(http.ResponseWriter){
		"/v1/accounts:lookup": reply(http.StatusOK,
			`{"users":[{"localId":"uid-1","mfaInfo":[{"mfaEnrollmentId":"f1"},{"mfaEnrollmentId":"f2"}],"passwordUpdatedAt":1714554000000}]}`),
	})

	record, err := client.LookupIdentity(context.Background(), "id")
	require.NoError(t, err)
	assert.Len(t, record.Factors, 2)
	assert.Equal(t, int64(1714554000000), record.PasswordUpdatedAt.UnixMilli())
}

func TestNewToolkitClient_RequiresAPIKey(t *testing.T) {
	_, err := NewToolkitClient(&config.Config{})
	assert.Error(t, err)
}
