package identity

import (
	"context"
	"time"

	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
)

// adminClaim is the custom claim granted to operator accounts.
const adminClaim = "admin"

// authClient is the part of *auth.Client the admin uses.
type authClient interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

type firebaseAdmin struct {
	client authClient
}

// NewAdmin creates the privileged identity client on the shared Firebase app.
func NewAdmin(app *firebase.App) (service.IdentityAdmin, error) {
	client, err := app.Auth(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get auth client")
	}

	return &firebaseAdmin{client: client}, nil
}

// VerifyIDToken validates a session token, rejecting revoked sessions.
func (a *firebaseAdmin) VerifyIDToken(ctx context.Context, idToken string) (*service.TokenClaims, error) {
	token, err := a.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		if auth.IsIDTokenRevoked(err) || auth.IsIDTokenExpired(err) {
			return nil, domainerrors.ErrReauthenticationRequired.WithDetails(err.Error())
		}

		return nil, domainerrors.ErrUnauthorized.WithDetails(err.Error())
	}

	claims := &service.TokenClaims{
		UID:      token.UID,
		AuthTime: time.Unix(token.AuthTime, 0),
	}
	if email, ok := token.Claims["email"].(string); ok {
		claims.Email = email
	}
	if admin, ok := token.Claims[adminClaim].(bool); ok {
		claims.Admin = admin
	}

	return claims, nil
}

// RevokeSessions invalidates every refresh token of uid.
func (a *firebaseAdmin) RevokeSessions(ctx context.Context, uid string) error {
	if err := a.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return errors.Wrapf(err, "failed to revoke sessions of %s", uid)
	}

	return nil
}

// DeleteIdentity removes the identity; an already missing one is fine.
func (a *firebaseAdmin) DeleteIdentity(ctx context.Context, uid string) error {
	if err := a.client.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return errors.Wrapf(err, "failed to delete identity %s", uid)
	}

	return nil
}
