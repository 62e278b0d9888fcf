// Package identity adapts the Firebase identity platform to the domain's
// IdentityProvider and IdentityAdmin.
package identity

import (
	"context"
	"log/slog"

	"archer/config"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// NewApp initializes the shared Firebase app used for admin auth,
// Firestore and messaging.
func NewApp(cfg *config.Config, logger *slog.Logger) (*firebase.App, error) {
	if cfg.Firebase == nil {
		return nil, errors.New("firebase section is required")
	}

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsPath))
	}

	app, err := firebase.NewApp(context.Background(), &firebase.Config{
		ProjectID: cfg.Firebase.ProjectID,
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	logger.Info("Firebase app initialized",
		slog.String("project_id", cfg.Firebase.ProjectID),
		slog.Bool("explicit_credentials", cfg.Firebase.CredentialsPath != ""),
	)

	return app, nil
}
