package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"archer/internal/client"
	"archer/internal/client/cli"
	"archer/internal/errors"

	"github.com/spf13/cobra"
)

type app struct {
	serverURL string
	stateDir  string

	api      *client.Client
	inst     *client.Installation
	recovery *client.RedirectRecovery
	prompt   *cli.Prompter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "archerctl",
		Short:         "Sign in to archer and manage your account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.login(cmd.Context())
		},
	}

	home, _ := os.UserHomeDir()
	defaultServer := os.Getenv("ARCHER_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&a.serverURL, "server", defaultServer, "archer API base URL")
	root.PersistentFlags().StringVar(&a.stateDir, "state-dir", filepath.Join(home, ".archer"), "directory holding the device id and session")

	root.AddCommand(
		&cobra.Command{
			Use:   "login",
			Short: "Sign in interactively",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.login(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Sign out on every device",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.logout(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "me",
			Short: "Show the account",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.show(cmd.Context(), "/me")
			},
		},
		newDevicesCmd(a),
		newScoresCmd(a),
		&cobra.Command{
			Use:   "rank",
			Short: "Show the current rank",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.show(cmd.Context(), "/me/rank")
			},
		},
	)

	return root
}

func newDevicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.show(cmd.Context(), "/me/devices")
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <device-id>",
		Short: "Unregister a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.authed()
			if err != nil {
				return err
			}
			var out any
			if err := api.Delete(cmd.Context(), "/me/devices/"+args[0], &out); err != nil {
				return err
			}

			return printJSON(out)
		},
	})

	return cmd
}

func newScoresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "List recorded scores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.show(cmd.Context(), "/me/scores")
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <score> [label]",
		Short: "Record a session score",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return errors.Wrap(err, "score must be a number")
			}
			body := map[string]any{"score": score}
			if len(args) == 2 {
				body["label"] = args[1]
			}

			api, err := a.authed()
			if err != nil {
				return err
			}
			var out any
			if err := api.Post(cmd.Context(), "/me/scores", body, &out); err != nil {
				return err
			}

			return printJSON(out)
		},
	})

	return cmd
}

// init opens local state shared by every command.
func (a *app) init(_ context.Context) error {
	inst, err := client.OpenInstallation(a.stateDir)
	if err != nil {
		return err
	}

	a.inst = inst
	a.api = client.New(a.serverURL)
	a.recovery = client.NewRedirectRecovery(a.api, inst)
	a.prompt = cli.NewPrompter(os.Stdin, os.Stdout)

	return nil
}

// login first consumes a browser sign-in left pending by a previous run,
// then drives the flow from wherever that left off.
func (a *app) login(ctx context.Context) error {
	recovered, err := a.recovery.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not recover browser sign-in:", err)
		recovered = nil
	}
	if recovered != nil && recovered.Done && recovered.Session != nil {
		fmt.Println("Browser sign-in completed.")

		return a.inst.SaveSession(recovered.Session)
	}

	driver := cli.NewDriver(a.api, a.inst, a.prompt)
	_, err = driver.Run(ctx, recovered)
	if errors.Is(err, cli.ErrRedirectPending) || errors.Is(err, cli.ErrQuit) {
		return nil
	}

	return err
}

func (a *app) logout(ctx context.Context) error {
	api, err := a.authed()
	if err != nil {
		return err
	}
	if err := api.Post(ctx, "/me/sign-out", nil, nil); err != nil {
		return err
	}
	fmt.Println("Signed out.")

	return a.inst.ClearSession()
}

func (a *app) authed() (*client.Client, error) {
	session, err := a.inst.Session()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("not signed in, run archerctl login first")
	}

	return a.api.WithIDToken(session.IDToken), nil
}

func (a *app) show(ctx context.Context, path string) error {
	api, err := a.authed()
	if err != nil {
		return err
	}

	var out any
	if err := api.Get(ctx, path, &out); err != nil {
		return err
	}

	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return errors.WithStack(enc.Encode(v))
}
