package service

import "archer/internal/domain/entity"

// FlowCodec turns a FlowState into an opaque, tamper-evident token handed
// to the caller as the continuation, and back.
type FlowCodec interface {
	// Encode signs the state. The token expires at state.ExpiresAt.
	Encode(state *entity.FlowState) (string, error)

	// Decode verifies the token and returns the state it carries.
	Decode(token string) (*entity.FlowState, error)
}
