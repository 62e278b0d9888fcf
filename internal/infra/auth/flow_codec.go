// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"archer/config"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const flowIssuer = "archer/authflow"

// flowClaims carries the FlowState inside an HS256 JWT.
type flowClaims struct {
	State entity.FlowState `json:"state"`
	jwt.RegisteredClaims
}

// jwtFlowCodec is a concrete implementation of the FlowCodec interface using the JWT standard.
type jwtFlowCodec struct {
	secret []byte
	now    func() time.Time
}

// NewFlowCodec builds the codec from secretKey.flow.
func NewFlowCodec(cfg *config.Config) (service.FlowCodec, error) {
	if cfg.SecretKey.Flow == "" {
		return nil, errors.New("flow secret must be provided")
	}

	return &jwtFlowCodec{
		secret: []byte(cfg.SecretKey.Flow),
		now:    time.Now,
	}, nil
}

// Encode signs the state; the token expires with the state.
func (c *jwtFlowCodec) Encode(state *entity.FlowState) (string, error) {
	claims := flowClaims{
		State: *state,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        state.ID.String(),
			Issuer:    flowIssuer,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(state.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign flow token")
	}

	return token, nil
}

// Decode verifies signature, issuer and expiry.
func (c *jwtFlowCodec) Decode(token string) (*entity.FlowState, error) {
	var claims flowClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(flowIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.ErrFlowExpired
		}

		return nil, domainerrors.ErrInvalidFlowToken.WithDetails(err.Error())
	}
	if !claims.State.View.IsValid() || claims.ID != claims.State.ID.String() {
		return nil, domainerrors.ErrInvalidFlowToken
	}

	return &claims.State, nil
}
