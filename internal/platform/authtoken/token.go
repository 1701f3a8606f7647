// Package authtoken issues and verifies the bearer tokens that carry a
// durable user identity to the ledger.
package authtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "habitsync/internal/platform/errors"
)

type Config struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// Issue signs a token for subject valid for ttl.
func Issue(cfg Config, subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", apperrors.Invalid("subject", "is required")
	}
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("token secret is not configured")
	}
	if ttl <= 0 {
		return "", apperrors.Invalid("ttl", "must be positive")
	}
	now := cfg.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry.
func Verify(cfg Config, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, fmt.Errorf("%w: token is required", apperrors.ErrUnauthenticated)
	}
	if len(cfg.Secret) == 0 {
		return Claims{}, errors.New("token verifier is not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed := jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: token subject is required", apperrors.ErrUnauthenticated)
	}
	claims := Claims{Subject: parsed.Subject, Issuer: parsed.Issuer}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}
	return claims, nil
}

// PeekSubject reads the subject without verifying the signature. Clients
// use it to learn their own identity; only the ledger verifies tokens.
func PeekSubject(token string) (string, error) {
	parsed := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &parsed); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if parsed.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return parsed.Subject, nil
}
