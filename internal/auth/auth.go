// Package auth turns a transport credential into a verified Caller. Every
// service operation takes the Caller as an explicit argument; nothing reads
// the identity from ambient state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crowdradar/internal/domain/entities"
)

// Caller is the authenticated identity behind one request.
type Caller struct {
	UserID string
}

// Verifier validates a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, token string) (Caller, error)
}

// JWTVerifier accepts HMAC-signed JWTs whose subject claim is the user id.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for tokens signed with secret. A non-empty
// issuer is also required to match the iss claim.
func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates tokenString. Any failure is reported as
// entities.ErrUnauthenticated.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Caller{}, fmt.Errorf("%w: token expired", entities.ErrUnauthenticated)
		}
		return Caller{}, fmt.Errorf("%w: invalid token", entities.ErrUnauthenticated)
	}
	if !token.Valid || claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: invalid token claims", entities.ErrUnauthenticated)
	}
	return Caller{UserID: claims.Subject}, nil
}

// Issue signs a token for userID valid for ttl from now.
func (v *JWTVerifier) Issue(userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
