package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("desktop-shell", ScopeShell, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "desktop-shell" {
		t.Errorf("Subject = %q, want desktop-shell", claims.Subject)
	}
	if claims.Scope != ScopeShell {
		t.Errorf("Scope = %q, want %q", claims.Scope, ScopeShell)
	}
	if claims.ID == "" {
		t.Error("JTI should not be empty")
	}
	if d := time.Until(claims.ExpiresAt.Time); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiry in %v, want about 1h", d)
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	token, err := GenerateToken("s", ScopeObserver, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	diff := claims.ExpiresAt.Time.Sub(time.Now().Add(DefaultTTL))
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL off by %v", diff)
	}
}

func TestGenerateToken_UnknownScope(t *testing.T) {
	if _, err := GenerateToken("s", Scope("root"), testSecret, time.Hour); err == nil {
		t.Error("GenerateToken() error = nil, want unknown scope error")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken("s", ScopeShell, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	expired := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Scope: ScopeShell,
	}, jwt.SigningMethodHS256)

	noExpiry := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "s"},
		Scope:            ScopeShell,
	}, jwt.SigningMethodHS256)

	noSubject := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Scope:            ScopeShell,
	}, jwt.SigningMethodHS256)

	badScope := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: "root",
	}, jwt.SigningMethodHS256)

	wrongAlg := signClaims(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: ScopeShell,
	}, jwt.SigningMethodHS512)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "another-secret-another-secret-another"},
		{"expired", expired, testSecret},
		{"no expiry", noExpiry, testSecret},
		{"no subject", noSubject, testSecret},
		{"unknown scope", badScope, testSecret},
		{"HS512 not accepted", wrongAlg, testSecret},
		{"garbage", "not-a-jwt", testSecret},
		{"empty", "", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func signClaims(t *testing.T, c Claims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, c).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return s
}

func TestScope(t *testing.T) {
	tests := []struct {
		scope     Scope
		valid     bool
		canInvoke bool
	}{
		{ScopeShell, true, true},
		{ScopeObserver, true, false},
		{Scope(""), false, false},
		{Scope("admin"), false, false},
	}
	for _, tt := range tests {
		if got := tt.scope.Valid(); got != tt.valid {
			t.Errorf("%q.Valid() = %v, want %v", tt.scope, got, tt.valid)
		}
		if got := tt.scope.CanInvoke(); got != tt.canInvoke {
			t.Errorf("%q.CanInvoke() = %v, want %v", tt.scope, got, tt.canInvoke)
		}
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	b, _ := GenerateSecret()
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("two secrets should differ")
	}
}

func TestWriteTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "token")
	if err := WriteTokenFile(path, "abc.def.ghi"); err != nil {
		t.Fatalf("WriteTokenFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.TrimSpace(string(data)) != "abc.def.ghi" {
		t.Errorf("token file = %q", data)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	}
}
