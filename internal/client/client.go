// Package client talks to the archer HTTP API on behalf of a host process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"archer/internal/errors"
)

const defaultTimeout = 15 * time.Second

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}

	return e.Code + ": " + e.Message
}

// Client is a thin JSON client for the archer API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	idToken    string
}

// New returns a client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// WithIDToken returns a copy that authenticates account calls.
func (c *Client) WithIDToken(idToken string) *Client {
	clone := *c
	clone.idToken = idToken

	return &clone
}

// ClientInfo identifies this installation to the server.
type ClientInfo struct {
	DeviceID   string `json:"device_id"`
	Descriptor string `json:"descriptor"`
	PushToken  string `json:"push_token,omitempty"`
}

// FlowState mirrors the server's view of a flow.
type FlowState struct {
	ID          string       `json:"id"`
	View        string       `json:"view"`
	Email       string       `json:"email,omitempty"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	Hints       []FactorHint `json:"hints,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// FactorHint describes an enrolled second factor.
type FactorHint struct {
	EnrollmentID string `json:"enrollment_id"`
	DisplayName  string `json:"display_name,omitempty"`
	PhoneHint    string `json:"phone_hint,omitempty"`
}

// Notice is a user-visible message attached to a step.
type Notice struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Session holds the provider tokens after sign-in.
type Session struct {
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FlowStep is one transition of the auth flow.
type FlowStep struct {
	Token       string          `json:"token,omitempty"`
	State       *FlowState      `json:"state,omitempty"`
	Done        bool            `json:"done"`
	Account     json.RawMessage `json:"account,omitempty"`
	Session     *Session        `json:"session,omitempty"`
	Failure     *FlowFailure    `json:"failure,omitempty"`
	Notices     []Notice        `json:"notices,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// FlowFailure is a recoverable error that kept the flow in place.
type FlowFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type advanceRequest struct {
	Token  string     `json:"token"`
	Client ClientInfo `json:"client"`
	Action string     `json:"action"`
	Input  any        `json:"input"`
}

type recoverRequest struct {
	Token  string     `json:"token"`
	Client ClientInfo `json:"client"`
}

// StartFlow opens a new flow in LOGIN.
func (c *Client) StartFlow(ctx context.Context) (*FlowStep, error) {
	var step FlowStep
	if err := c.do(ctx, http.MethodPost, "/auth/flows", nil, &step); err != nil {
		return nil, err
	}

	return &step, nil
}

// Advance submits input for action in the flow carried by token.
func (c *Client) Advance(ctx context.Context, token string, info ClientInfo, action string, input any) (*FlowStep, error) {
	var step FlowStep
	body := advanceRequest{Token: token, Client: info, Action: action, Input: input}
	if err := c.do(ctx, http.MethodPost, "/auth/flows/advance", body, &step); err != nil {
		return nil, err
	}

	return &step, nil
}

// Abandon discards the flow on the server.
func (c *Client) Abandon(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/flows/abandon", map[string]string{"token": token}, nil)
}

// Recover asks for a parked redirect sign-in.
func (c *Client) Recover(ctx context.Context, token string, info ClientInfo) (*FlowStep, error) {
	var step FlowStep
	if err := c.do(ctx, http.MethodPost, "/auth/flows/recover", recoverRequest{Token: token, Client: info}, &step); err != nil {
		return nil, err
	}

	return &step, nil
}

// Get fetches an authenticated resource into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body to an authenticated resource and decodes into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Delete removes an authenticated resource.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.idToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.idToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "failed to decode %s %s response (status %d)", method, path, resp.StatusCode)
	}
	if env.Error != nil {
		env.Error.Status = resp.StatusCode

		return env.Error
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}

	return errors.Wrap(json.Unmarshal(env.Data, out), "failed to decode response data")
}
