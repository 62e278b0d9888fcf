package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"archer/config"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com"
	defaultRequestTimeout   = 15 * time.Second

	// inlineRequestURI is the placeholder continue URI for IdP credentials
	// obtained by the client itself.
	inlineRequestURI = "http://localhost"
)

// toolkitClient talks to the Identity Toolkit REST API with the project's
// web API key. It holds no per-user state.
type toolkitClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewToolkitClient builds the IdentityProvider from the firebase section.
func NewToolkitClient(cfg *config.Config) (service.IdentityProvider, error) {
	if cfg.Firebase == nil || cfg.Firebase.APIKey == "" {
		return nil, errors.New("firebase apiKey is required for the identity toolkit client")
	}

	endpoint := strings.TrimRight(cfg.Firebase.IdentityEndpoint, "/")
	if endpoint == "" {
		endpoint = defaultIdentityEndpoint
	}
	timeout := cfg.Firebase.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &toolkitClient{
		endpoint:   endpoint,
		apiKey:     cfg.Firebase.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

type mfaInfo struct {
	MFAEnrollmentID string `json:"mfaEnrollmentId"`
	DisplayName     string `json:"displayName"`
	PhoneInfo       string `json:"phoneInfo"`
}

// signInResponse covers every v1 sign-in and sign-up response shape.
type signInResponse struct {
	LocalID              string    `json:"localId"`
	Email                string    `json:"email"`
	DisplayName          string    `json:"displayName"`
	PhoneNumber          string    `json:"phoneNumber"`
	EmailVerified        bool      `json:"emailVerified"`
	ProviderID           string    `json:"providerId"`
	IsNewUser            bool      `json:"isNewUser"`
	IDToken              string    `json:"idToken"`
	RefreshToken         string    `json:"refreshToken"`
	ExpiresIn            string    `json:"expiresIn"`
	MFAPendingCredential string    `json:"mfaPendingCredential"`
	MFAInfo              []mfaInfo `json:"mfaInfo"`
}

type tokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword checks an email and password.
func (c *toolkitClient) SignInWithPassword(ctx context.Context, email, password string) (*entity.Identity, error) {
	var resp signInResponse
	if err := c.call(ctx, "/v1/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp); err != nil {
		return nil, err
	}

	return c.identityFrom(&resp, "password")
}

// CreateAccount registers a new email and password identity.
func (c *toolkitClient) CreateAccount(ctx context.Context, email, password, displayName string) (*entity.Identity, error) {
	var resp signInResponse
	if err := c.call(ctx, "/v1/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &resp); err != nil {
		return nil, err
	}

	ident, err := c.identityFrom(&resp, "password")
	if err != nil {
		return nil, err
	}
	ident.IsNewUser = true
	if ident.DisplayName == "" {
		ident.DisplayName = displayName
	}

	return ident, nil
}

// SignInWithIdP exchanges a social credential for an identity.
func (c *toolkitClient) SignInWithIdP(ctx context.Context, cred service.IdPCredential) (*entity.Identity, error) {
	body := map[string]any{
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	if cred.RequestURI != "" {
		body["requestUri"] = cred.RequestURI
		body["sessionId"] = cred.SessionID
	} else {
		post := url.Values{}
		post.Set("providerId", cred.ProviderID)
		if cred.IDToken != "" {
			post.Set("id_token", cred.IDToken)
		}
		if cred.AccessToken != "" {
			post.Set("access_token", cred.AccessToken)
		}
		body["requestUri"] = inlineRequestURI
		body["postBody"] = post.Encode()
	}

	var resp signInResponse
	if err := c.call(ctx, "/v1/accounts:signInWithIdp", body, &resp); err != nil {
		return nil, err
	}

	providerID := resp.ProviderID
	if providerID == "" {
		providerID = cred.ProviderID
	}

	return c.identityFrom(&resp, providerID)
}

// CreateAuthURI starts a redirect sign-in with providerID.
func (c *toolkitClient) CreateAuthURI(ctx context.Context, providerID, continueURI string) (*service.AuthURI, error) {
	var resp struct {
		AuthURI   string `json:"authUri"`
		SessionID string `json:"sessionId"`
	}
	if err := c.call(ctx, "/v1/accounts:createAuthUri", map[string]any{
		"providerId":  providerID,
		"continueUri": continueURI,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.AuthURI == "" {
		return nil, domainerrors.ErrProviderUnavailable.WithDetails("no auth uri returned for " + providerID)
	}

	return &service.AuthURI{URL: resp.AuthURI, SessionID: resp.SessionID}, nil
}

// SendPasswordResetEmail issues a reset message.
func (c *toolkitClient) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.call(ctx, "/v1/accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// SendPhoneCode sends a one-time code and returns the verification id.
func (c *toolkitClient) SendPhoneCode(ctx context.Context, phoneNumber, challengeToken string) (string, error) {
	var resp struct {
		SessionInfo string `json:"sessionInfo"`
	}
	if err := c.call(ctx, "/v1/accounts:sendVerificationCode", map[string]any{
		"phoneNumber":    phoneNumber,
		"recaptchaToken": challengeToken,
	}, &resp); err != nil {
		return "", err
	}

	return resp.SessionInfo, nil
}

// ConfirmPhoneCode resolves a pending phone sign-in.
func (c *toolkitClient) ConfirmPhoneCode(ctx context.Context, verificationID, code string) (*entity.Identity, error) {
	var resp signInResponse
	if err := c.call(ctx, "/v1/accounts:signInWithPhoneNumber", map[string]any{
		"sessionInfo": verificationID,
		"code":        code,
	}, &resp); err != nil {
		return nil, err
	}

	return c.identityFrom(&resp, "phone")
}

// StartSecondFactorSignIn requests a code for one enrolled factor.
func (c *toolkitClient) StartSecondFactorSignIn(ctx context.Context, pendingCredential, enrollmentID string) (string, error) {
	var resp struct {
		PhoneResponseInfo struct {
			SessionInfo string `json:"sessionInfo"`
		} `json:"phoneResponseInfo"`
	}
	if err := c.call(ctx, "/v2/accounts/mfaSignIn:start", map[string]any{
		"mfaPendingCredential": pendingCredential,
		"mfaEnrollmentId":      enrollmentID,
		"phoneSignInInfo":      map[string]any{},
	}, &resp); err != nil {
		return "", err
	}

	return resp.PhoneResponseInfo.SessionInfo, nil
}

// FinalizeSecondFactorSignIn exchanges the code for a completed sign-in.
// The finalize response only carries tokens, so the identity is reloaded.
func (c *toolkitClient) FinalizeSecondFactorSignIn(ctx context.Context, pendingCredential, sessionInfo, code string) (*entity.Identity, error) {
	var resp tokenResponse
	if err := c.call(ctx, "/v2/accounts/mfaSignIn:finalize", map[string]any{
		"mfaPendingCredential": pendingCredential,
		"phoneVerificationInfo": map[string]any{
			"sessionInfo": sessionInfo,
			"code":        code,
		},
	}, &resp); err != nil {
		return nil, err
	}

	record, err := c.LookupIdentity(ctx, resp.IDToken)
	if err != nil {
		return nil, err
	}

	return &entity.Identity{
		UID:           record.UID,
		Email:         record.Email,
		PhoneNumber:   record.PhoneNumber,
		EmailVerified: record.EmailVerified,
		Session:       c.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn),
	}, nil
}

// StartPhoneEnrollment sends a code to phoneNumber bound to the session.
func (c *toolkitClient) StartPhoneEnrollment(ctx context.Context, idToken, phoneNumber string) (string, error) {
	var resp struct {
		PhoneSessionInfo struct {
			SessionInfo string `json:"sessionInfo"`
		} `json:"phoneSessionInfo"`
	}
	if err := c.call(ctx, "/v2/accounts/mfaEnrollment:start", map[string]any{
		"idToken": idToken,
		"phoneEnrollmentInfo": map[string]any{
			"phoneNumber": phoneNumber,
		},
	}, &resp); err != nil {
		return "", err
	}

	return resp.PhoneSessionInfo.SessionInfo, nil
}

// FinalizePhoneEnrollment binds the phone as a second factor.
func (c *toolkitClient) FinalizePhoneEnrollment(ctx context.Context, idToken, sessionInfo, code, displayName string) (*entity.Session, error) {
	var resp tokenResponse
	if err := c.call(ctx, "/v2/accounts/mfaEnrollment:finalize", map[string]any{
		"idToken":     idToken,
		"displayName": displayName,
		"phoneVerificationInfo": map[string]any{
			"sessionInfo": sessionInfo,
			"code":        code,
		},
	}, &resp); err != nil {
		return nil, err
	}

	session := c.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn)

	return &session, nil
}

// WithdrawFactor removes one enrolled factor.
func (c *toolkitClient) WithdrawFactor(ctx context.Context, idToken, enrollmentID string) error {
	return c.call(ctx, "/v2/accounts/mfaEnrollment:withdraw", map[string]any{
		"idToken":         idToken,
		"mfaEnrollmentId": enrollmentID,
	}, nil)
}

// LookupIdentity reloads the identity behind idToken.
func (c *toolkitClient) LookupIdentity(ctx context.Context, idToken string) (*service.IdentityRecord, error) {
	var resp struct {
		Users []struct {
			LocalID           string    `json:"localId"`
			Email             string    `json:"email"`
			EmailVerified     bool      `json:"emailVerified"`
			PhoneNumber       string    `json:"phoneNumber"`
			MFAInfo           []mfaInfo `json:"mfaInfo"`
			LastLoginAt       string    `json:"lastLoginAt"`
			PasswordUpdatedAt float64   `json:"passwordUpdatedAt"`
		} `json:"users"`
	}
	if err := c.call(ctx, "/v1/accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, domainerrors.ErrAccountNotFound
	}

	u := resp.Users[0]
	record := &service.IdentityRecord{
		UID:               u.LocalID,
		Email:             u.Email,
		EmailVerified:     u.EmailVerified,
		PhoneNumber:       u.PhoneNumber,
		Factors:           hintsFrom(u.MFAInfo),
		PasswordUpdatedAt: time.UnixMilli(int64(u.PasswordUpdatedAt)),
	}
	if ms, err := strconv.ParseInt(u.LastLoginAt, 10, 64); err == nil {
		record.LastLoginAt = time.UnixMilli(ms)
	}

	return record, nil
}

// SendEmailVerification sends a verification link to the identity's email.
func (c *toolkitClient) SendEmailVerification(ctx context.Context, idToken string) error {
	return c.call(ctx, "/v1/accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

// call POSTs body to path and decodes a success response into out.
func (c *toolkitClient) call(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+path+"?key="+url.QueryEscape(c.apiKey), bytes.NewReader(payload))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainerrors.ErrProviderUnavailable.WithDetails(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerrors.ErrProviderUnavailable.WithDetails(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error.Message == "" {
			return domainerrors.ErrProviderUnavailable.WithDetails(resp.Status)
		}

		return mapProviderError(apiErr.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domainerrors.ErrProviderUnavailable.WithDetails("malformed response: " + err.Error())
	}

	return nil
}

// identityFrom turns a sign-in response into an Identity, or into the
// second-factor signal when the response carries a pending credential.
func (c *toolkitClient) identityFrom(resp *signInResponse, providerID string) (*entity.Identity, error) {
	if resp.MFAPendingCredential != "" {
		return nil, &domainerrors.SecondFactorRequiredError{Resolver: entity.MFAResolver{
			PendingCredential: resp.MFAPendingCredential,
			Hints:             hintsFrom(resp.MFAInfo),
		}}
	}

	return &entity.Identity{
		UID:           resp.LocalID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		PhoneNumber:   resp.PhoneNumber,
		EmailVerified: resp.EmailVerified,
		ProviderID:    providerID,
		IsNewUser:     resp.IsNewUser,
		Session:       c.sessionFrom(resp.IDToken, resp.RefreshToken, resp.ExpiresIn),
	}, nil
}

func (c *toolkitClient) sessionFrom(idToken, refreshToken, expiresIn string) entity.Session {
	session := entity.Session{IDToken: idToken, RefreshToken: refreshToken}
	if secs, err := strconv.Atoi(expiresIn); err == nil {
		session.ExpiresAt = c.now().Add(time.Duration(secs) * time.Second)
	}

	return session
}

func hintsFrom(infos []mfaInfo) []entity.FactorHint {
	hints := make([]entity.FactorHint, 0, len(infos))
	for _, info := range infos {
		hints = append(hints, entity.FactorHint{
			EnrollmentID: info.MFAEnrollmentID,
			DisplayName:  info.DisplayName,
			PhoneHint:    info.PhoneInfo,
		})
	}

	return hints
}

// mapProviderError translates an Identity Toolkit error message such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled" into a domain error.
func mapProviderError(message string) error {
	code, details, _ := strings.Cut(message, " : ")
	code = strings.TrimSpace(code)

	switch code {
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_CODE",
		"INVALID_VERIFICATION_CODE", "INVALID_IDP_RESPONSE", "SESSION_EXPIRED",
		"INVALID_SESSION_INFO", "INVALID_MFA_PENDING_CREDENTIAL":
		return domainerrors.ErrInvalidCredential.WithDetails(code)
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return domainerrors.ErrAccountNotFound
	case "EMAIL_EXISTS":
		return domainerrors.ErrEmailAlreadyRegistered
	case "CREDENTIAL_TOO_OLD_LOGIN_AGAIN", "TOKEN_EXPIRED", "INVALID_ID_TOKEN":
		return domainerrors.ErrReauthenticationRequired.WithDetails(code)
	case "USER_DISABLED":
		return domainerrors.ErrForbidden.WithDetails(code)
	case "UNVERIFIED_EMAIL":
		return domainerrors.ErrUnverifiedEmail
	case "WEAK_PASSWORD":
		return domainerrors.ErrPasswordStrength.WithDetails(details)
	case "INVALID_EMAIL", "INVALID_PHONE_NUMBER", "MISSING_PHONE_NUMBER", "MISSING_CODE":
		return domainerrors.ErrValidationFailed.WithDetails(code)
	default:
		return domainerrors.ErrProviderUnavailable.WithDetails(message)
	}
}
