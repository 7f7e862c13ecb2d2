package auth

import (
	"context"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Admin is the authenticated operator behind a request.
type Admin struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Session is a signed admin session token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var signingMethod = jwt.SigningMethodHS256

// Sessions issues and verifies HS256 session tokens for the single
// allow-listed admin.
type Sessions struct {
	secret     []byte
	ttl        time.Duration
	adminEmail string
	now        func() time.Time
}

func NewSessions(secret string, ttl time.Duration, adminEmail string) *Sessions {
	return &Sessions{
		secret:     []byte(secret),
		ttl:        ttl,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		now:        time.Now,
	}
}

// Issue signs a session for admin valid for the configured TTL.
func (s *Sessions) Issue(admin Admin) (Session, error) {
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	claims := &sessionClaims{
		UID:   admin.UID,
		Email: admin.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}

	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign session token")
	}
	return Session{Token: token, ExpiresAt: expiresAt.UTC()}, nil
}

// Verify checks a session token and returns the admin it was issued to.
// Bad, expired or foreign tokens are ErrUnauthorized; a valid token for
// another email is ErrForbidden.
func (s *Sessions) Verify(token string) (Admin, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}

	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Admin{}, errors.Mark(errors.Wrap(err, "Invalid or expired admin token"), ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return Admin{}, errors.Mark(errors.New("Invalid or expired admin token"), ErrUnauthorized)
	}
	if !s.allowed(claims.Email) {
		return Admin{}, errors.Mark(errors.New("Forbidden"), ErrForbidden)
	}
	return Admin{UID: claims.UID, Email: claims.Email}, nil
}

func (s *Sessions) allowed(email string) bool {
	return s.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.adminEmail)
}

// TokenVerifier checks identity provider ID tokens. *firebaseauth.Client
// satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Identities exchanges identity provider ID tokens for admins.
type Identities struct {
	verifier   TokenVerifier
	adminEmail string
}

func NewIdentities(verifier TokenVerifier, adminEmail string) *Identities {
	return &Identities{
		verifier:   verifier,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

// Verify validates idToken and requires its email to be the admin's.
func (i *Identities) Verify(ctx context.Context, idToken string) (Admin, error) {
	token, err := i.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Admin{}, errors.Mark(errors.Wrap(err, "Invalid Firebase token"), ErrUnauthorized)
	}

	email, _ := token.Claims["email"].(string)
	if email == "" || i.adminEmail == "" || !strings.EqualFold(strings.TrimSpace(email), i.adminEmail) {
		return Admin{}, errors.Mark(errors.New("Unauthorized admin email"), ErrForbidden)
	}
	return Admin{UID: token.UID, Email: email}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
