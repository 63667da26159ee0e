// Package firebaseapp wires the Firebase Admin SDK to the relay's own
// access-token cache.
package firebaseapp

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"push-relay/logging"
)

// App holds the initialized Admin SDK and the clients the relay uses.
type App struct {
	projectID string
	app       *firebase.App
	auth      *auth.Client
}

// New initializes the Admin SDK for projectID. Every Google API call the SDK
// makes is authorized by ts, so it shares the relay's cached token.
func New(ctx context.Context, projectID string, ts oauth2.TokenSource, opts ...option.ClientOption) (*App, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	if ts == nil {
		return nil, errors.New("token source is required")
	}

	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	authLog := logging.Component("auth")
	authLog.Info().Str("project", projectID).Msg("firebase admin sdk initialized")
	return &App{projectID: projectID, app: app, auth: authClient}, nil
}

func (a *App) ProjectID() string { return a.projectID }

// Auth returns the Firebase Auth client. It satisfies the ID-token verifier
// used by the firebase caller-auth mode.
func (a *App) Auth() *auth.Client { return a.auth }
