package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Errors returned by token parsing.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenMissing = errors.New("missing bearer token")
	ErrForbidden    = errors.New("token scope does not allow this action")
)

// Scope limits what a token holder may do.
type Scope string

const (
	// ScopeShell is the desktop shell: every operation.
	ScopeShell Scope = "shell"
	// ScopeObserver may watch events and read process lists and history.
	ScopeObserver Scope = "observer"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeShell || s == ScopeObserver
}

// CanInvoke reports whether the scope may call native operations.
func (s Scope) CanInvoke() bool {
	return s == ScopeShell
}

// DefaultTTL applies when GenerateToken is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// Claims is the JWT body of a host token.
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// GenerateToken signs an HS256 token for subject with the given scope.
func GenerateToken(subject string, scope Scope, secret string, ttl time.Duration) (string, error) {
	if !scope.Valid() {
		return "", fmt.Errorf("unknown scope %q", scope)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken checks signature, algorithm and expiry and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Scope.Valid() {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrTokenInvalid, claims.Scope)
	}
	return claims, nil
}

// GenerateSecret returns a random 256-bit hex secret. Used when no secret is
// configured; tokens then only survive until the host restarts.
func GenerateSecret() (string, error) {
	b := make([]byte, 32) //nolint:mnd // 256-bit secret
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WriteTokenFile stores token at path readable by the owner only, creating
// parent directories as needed.
func WriteTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
