package cli

import (
	"context"
	"time"

	"archer/internal/client"
	"archer/internal/errors"
)

// Flow views as rendered by the server.
const (
	viewLogin           = "LOGIN"
	viewSignup          = "SIGNUP"
	viewForgotPassword  = "FORGOT_PASSWORD"
	viewPhoneEntry      = "PHONE_ENTRY"
	viewSMSVerify       = "SMS_VERIFY"
	viewMFAVerify       = "MFA_VERIFY"
	viewCompleteProfile = "COMPLETE_PROFILE"
)

const dateLayout = "2006-01-02"

// ErrQuit is returned when the user leaves the flow.
var ErrQuit = errors.New("sign-in abandoned")

// ErrRedirectPending is returned when the flow continues in a browser.
var ErrRedirectPending = errors.New("sign-in continues in the browser")

// FlowAPI is the part of client.Client the driver needs.
type FlowAPI interface {
	StartFlow(ctx context.Context) (*client.FlowStep, error)
	Advance(ctx context.Context, token string, info client.ClientInfo, action string, input any) (*client.FlowStep, error)
	Abandon(ctx context.Context, token string) error
}

// FlowStore persists what survives a process restart.
type FlowStore interface {
	ClientInfo() (client.ClientInfo, error)
	SaveSession(s *client.Session) error
	SavePendingFlow(token string) error
}

// Driver walks the user through the auth flow one view at a time.
type Driver struct {
	api    FlowAPI
	store  FlowStore
	prompt *Prompter
}

// NewDriver builds a driver.
func NewDriver(api FlowAPI, store FlowStore, prompt *Prompter) *Driver {
	return &Driver{api: api, store: store, prompt: prompt}
}

// action is the next request chosen by the user.
type action struct {
	name  string
	input any
	quit  bool
}

// Run starts from recovered when it is non-nil, else from a fresh flow, and
// returns the session once the flow exits.
func (d *Driver) Run(ctx context.Context, recovered *client.FlowStep) (*client.Session, error) {
	info, err := d.store.ClientInfo()
	if err != nil {
		return nil, err
	}

	step := recovered
	if step == nil || (!step.Done && step.State == nil) {
		if step, err = d.api.StartFlow(ctx); err != nil {
			return nil, err
		}
	}

	for {
		d.show(step)

		if step.Done {
			if step.Session == nil {
				return nil, errors.New("flow finished without a session")
			}
			if err := d.store.SaveSession(step.Session); err != nil {
				return nil, err
			}
			d.prompt.Println("Signed in.")

			return step.Session, nil
		}
		if step.RedirectURL != "" {
			if err := d.store.SavePendingFlow(step.Token); err != nil {
				return nil, err
			}
			d.prompt.Println("Open this address to continue, then run archerctl again:")
			d.prompt.Println(step.RedirectURL)

			return nil, ErrRedirectPending
		}

		next, err := d.ask(step.State)
		if err != nil {
			return nil, err
		}
		if next.quit {
			_ = d.api.Abandon(ctx, step.Token)

			return nil, ErrQuit
		}

		advanced, err := d.api.Advance(ctx, step.Token, info, next.name, next.input)
		if apiErr, ok := errors.AsType[*client.APIError](err); ok && apiErr.Status < 500 {
			// Stay on the same view; the token is unchanged.
			d.prompt.Printf("! %s\n", apiErr.Message)

			continue
		}
		if err != nil {
			return nil, err
		}
		step = advanced
	}
}

func (d *Driver) show(step *client.FlowStep) {
	if step.Failure != nil {
		d.prompt.Printf("! %s\n", step.Failure.Message)
	}
	for _, n := range step.Notices {
		d.prompt.Printf("* %s\n", n.Message)
	}
}

func navigate(to string) action {
	return action{name: "navigate", input: map[string]string{"to": to}}
}

func (d *Driver) ask(state *client.FlowState) (action, error) {
	switch state.View {
	case viewLogin:
		return d.askLogin(state)
	case viewSignup:
		return d.askSignup()
	case viewForgotPassword:
		return d.askPasswordReset()
	case viewPhoneEntry:
		phone, err := d.prompt.Text("Phone number in international format (empty to go back)")
		if err != nil || phone == "" {
			return navigate(viewLogin), err
		}

		return action{name: "phone_number", input: map[string]string{"phone_number": phone}}, nil
	case viewSMSVerify:
		code, err := d.prompt.Text("Code sent to " + state.PhoneNumber + " (empty to change number)")
		if err != nil || code == "" {
			return navigate(viewPhoneEntry), err
		}

		return action{name: "sms_code", input: map[string]string{"code": code}}, nil
	case viewMFAVerify:
		hint := "your phone"
		if len(state.Hints) > 0 && state.Hints[0].PhoneHint != "" {
			hint = state.Hints[0].PhoneHint
		}
		code, err := d.prompt.Text("Verification code sent to " + hint + " (empty to cancel)")
		if err != nil || code == "" {
			return navigate(viewLogin), err
		}

		return action{name: "mfa_code", input: map[string]string{"code": code}}, nil
	case viewCompleteProfile:
		return d.askProfile(state)
	default:
		return action{}, errors.Errorf("unknown view %q", state.View)
	}
}

func (d *Driver) askLogin(state *client.FlowState) (action, error) {
	d.prompt.Println("[1] Email and password  [2] Create account  [3] Forgot password")
	d.prompt.Println("[4] Phone number        [5] Google          [q] Quit")

	choice, err := d.prompt.Text("Choose")
	if err != nil {
		return action{}, err
	}

	switch choice {
	case "1":
		email, err := d.prompt.Text("Email")
		if err != nil {
			return action{}, err
		}
		if email == "" {
			email = state.Email
		}
		password, err := d.prompt.Password("Password")
		if err != nil {
			return action{}, err
		}

		return action{name: "password_sign_in", input: map[string]string{"email": email, "password": password}}, nil
	case "2":
		return navigate(viewSignup), nil
	case "3":
		return navigate(viewForgotPassword), nil
	case "4":
		return navigate(viewPhoneEntry), nil
	case "5":
		return action{name: "social_redirect", input: map[string]string{"provider_id": "google.com"}}, nil
	case "q", "Q":
		return action{quit: true}, nil
	default:
		d.prompt.Println("Please pick one of the options.")

		return d.askLogin(state)
	}
}

func (d *Driver) askSignup() (action, error) {
	name, err := d.prompt.Text("Name (empty to go back)")
	if err != nil || name == "" {
		return navigate(viewLogin), err
	}
	email, err := d.prompt.Text("Email")
	if err != nil {
		return action{}, err
	}
	password, err := d.prompt.Password("Password")
	if err != nil {
		return action{}, err
	}

	input := map[string]any{"name": name, "email": email, "password": password}
	dob, err := d.askDate("Date of birth YYYY-MM-DD (optional)", false)
	if err != nil {
		return action{}, err
	}
	if dob != nil {
		input["date_of_birth"] = dob
	}

	return action{name: "signup", input: input}, nil
}

func (d *Driver) askPasswordReset() (action, error) {
	email, err := d.prompt.Text("Email for the reset link (empty to go back)")
	if err != nil || email == "" {
		return navigate(viewLogin), err
	}

	return action{name: "password_reset", input: map[string]string{"email": email}}, nil
}

func (d *Driver) askProfile(state *client.FlowState) (action, error) {
	d.prompt.Println("Finish creating your account.")

	name, err := d.prompt.Text("Name [" + state.DisplayName + "]")
	if err != nil {
		return action{}, err
	}
	if name == "" {
		name = state.DisplayName
	}
	dob, err := d.askDate("Date of birth YYYY-MM-DD", true)
	if err != nil {
		return action{}, err
	}
	hobby, err := d.prompt.Text("Hobby (optional)")
	if err != nil {
		return action{}, err
	}

	return action{name: "complete_profile", input: map[string]any{
		"name":          name,
		"date_of_birth": dob,
		"hobby":         hobby,
	}}, nil
}

func (d *Driver) askDate(prompt string, required bool) (*time.Time, error) {
	for {
		raw, err := d.prompt.Text(prompt)
		if err != nil {
			return nil, err
		}
		if raw == "" && !required {
			return nil, nil
		}

		t, err := time.Parse(dateLayout, raw)
		if err == nil {
			return &t, nil
		}
		d.prompt.Println("Use the form YYYY-MM-DD.")
	}
}
