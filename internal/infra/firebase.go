// README: Firebase Admin SDK bootstrap and the caller identity derived from ID tokens.
package infra

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// RoleClaim is the custom claim carrying the caller's role, e.g. "admin".
const RoleClaim = "role"

// Caller is the identity extracted from a verified ID token.
type Caller struct {
	UID    string
	Role   string
	Claims map[string]any
}

// CallerFromClaims builds a Caller, reading Role from RoleClaim when it is a string.
func CallerFromClaims(uid string, claims map[string]any) *Caller {
	c := &Caller{UID: uid, Claims: claims}
	if role, ok := claims[RoleClaim].(string); ok {
		c.Role = role
	}
	return c
}

// TokenVerifier turns a raw ID token into a Caller.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Caller, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier for projectID. credentialsFile
// may be empty to use application-default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Caller, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	return CallerFromClaims(token.UID, token.Claims), nil
}
