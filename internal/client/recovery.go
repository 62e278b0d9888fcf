package client

import (
	"context"
	"sync"

	"archer/internal/errors"
)

// RedirectRecovery runs the startup recovery of a redirect sign-in at most
// once per process.
type RedirectRecovery struct {
	once   sync.Once
	step   *FlowStep
	err    error
	client *Client
	inst   *Installation
}

// NewRedirectRecovery binds the recovery to an installation.
func NewRedirectRecovery(c *Client, inst *Installation) *RedirectRecovery {
	return &RedirectRecovery{client: c, inst: inst}
}

// Run consumes a pending redirect flow, if any. Later calls return the first
// call's outcome without contacting the server. A nil step means nothing was
// pending.
func (r *RedirectRecovery) Run(ctx context.Context) (*FlowStep, error) {
	r.once.Do(func() {
		r.step, r.err = r.recover(ctx)
	})

	return r.step, r.err
}

func (r *RedirectRecovery) recover(ctx context.Context) (*FlowStep, error) {
	token, err := r.inst.PendingFlow()
	if err != nil || token == "" {
		return nil, err
	}

	info, err := r.inst.ClientInfo()
	if err != nil {
		return nil, err
	}

	step, err := r.client.Recover(ctx, token, info)
	if _, isAPI := errors.AsType[*APIError](err); err != nil && !isAPI {
		// Transport failure: keep the token so the next start can retry.
		return nil, err
	}
	if clearErr := r.inst.ClearPendingFlow(); clearErr != nil && err == nil {
		err = clearErr
	}

	return step, err
}
