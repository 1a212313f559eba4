package auth

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"crowdradar/internal/domain/entities"
)

// FirebaseVerifier accepts Firebase Authentication ID tokens, which is what
// the mobile apps hold after signing in.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes a Firebase app from a credentials file, or
// from Application Default Credentials when the path is empty.
func NewFirebaseVerifier(ctx context.Context, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auth client: %w", err)
	}

	log.Println("[AUTH] Firebase ID token verification enabled")
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Caller, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: invalid id token", entities.ErrUnauthenticated)
	}
	if token.UID == "" {
		return Caller{}, fmt.Errorf("%w: id token has no uid", entities.ErrUnauthenticated)
	}
	return Caller{UserID: token.UID}, nil
}
